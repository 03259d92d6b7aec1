package interceptor

import (
	"sort"
	"sync"
	"time"

	"github.com/opd-ai/headunit/messenger"
)

// Registry maps channels to their handlers. It is built once and then shared
// read-mostly by the Router.
type Registry struct {
	mu       sync.RWMutex
	handlers map[messenger.ChannelID]Handler
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[messenger.ChannelID]Handler)}
}

// Register installs h for channelID and reports whether it replaced another handler
func (r *Registry) Register(channelID messenger.ChannelID, h Handler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced := r.handlers[channelID]
	r.handlers[channelID] = h
	return replaced
}

// Lookup returns the handler for channelID
func (r *Registry) Lookup(channelID messenger.ChannelID) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[channelID]
	return h, ok
}

// Channels returns the channels with a handler in ascending order
func (r *Registry) Channels() []messenger.ChannelID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]messenger.ChannelID, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Handlers returns each distinct handler once, in channel order
func (r *Registry) Handlers() []Handler {
	seen := make(map[Handler]bool)
	var out []Handler
	for _, id := range r.Channels() {
		h, _ := r.Lookup(id)
		if !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// Microphone codecs accepted in Options.MicrophoneCodec
const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

// Default touch surface used when Options leaves it unset
const (
	DefaultTouchWidth  = 1920
	DefaultTouchHeight = 1080
)

// Options configures the handlers installed by DefaultRegistry
type Options struct {
	// TouchWidth and TouchHeight are the pixel size of the touch surface
	TouchWidth  uint32
	TouchHeight uint32

	// MicrophoneCodec is the encoding of side-channel microphone packets
	MicrophoneCodec string

	// IsPaired reports whether a phone Bluetooth address is already paired
	IsPaired func(address string) bool

	// Now supplies timestamps for media packets without one
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TouchWidth == 0 {
		o.TouchWidth = DefaultTouchWidth
	}
	if o.TouchHeight == 0 {
		o.TouchHeight = DefaultTouchHeight
	}
	if o.MicrophoneCodec == "" {
		o.MicrophoneCodec = CodecPCM
	}
	if o.IsPaired == nil {
		o.IsPaired = func(string) bool { return false }
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// DefaultRegistry installs a handler for every service channel
func DefaultRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	r := NewRegistry()

	r.Register(messenger.ChannelMediaSinkVideo, NewMediaSinkHandler(messenger.ChannelMediaSinkVideo, opts.Now))
	for _, ch := range []messenger.ChannelID{
		messenger.ChannelMediaSinkMediaAudio,
		messenger.ChannelMediaSinkGuidanceAudio,
		messenger.ChannelMediaSinkSystemAudio,
		messenger.ChannelMediaSinkTelephonyAudio,
	} {
		r.Register(ch, NewMediaSinkHandler(ch, opts.Now))
	}

	r.Register(messenger.ChannelMediaSourceMicrophone, NewMediaSourceHandler(opts.MicrophoneCodec))
	r.Register(messenger.ChannelInputSource, NewInputSourceHandler(opts.TouchWidth, opts.TouchHeight))
	r.Register(messenger.ChannelSensor, NewSensorHandler())
	r.Register(messenger.ChannelBluetooth, NewBluetoothHandler(opts.IsPaired))

	r.Register(messenger.ChannelNavigationStatus, NewNavigationStatusHandler())
	r.Register(messenger.ChannelPhoneStatus, NewPhoneStatusHandler())
	r.Register(messenger.ChannelMediaPlaybackStatus, NewMediaPlaybackStatusHandler())
	r.Register(messenger.ChannelMediaBrowser, NewMediaBrowserHandler())
	r.Register(messenger.ChannelGenericNotification, NewGenericNotificationHandler())
	r.Register(messenger.ChannelRadio, NewRadioHandler())
	r.Register(messenger.ChannelVendorExtension, NewVendorExtensionHandler())

	return r
}
