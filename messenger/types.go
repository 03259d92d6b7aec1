package messenger

import "fmt"

// ChannelID identifies one logical service multiplexed over the link
type ChannelID uint8

const (
	ChannelControl ChannelID = iota
	ChannelSensor
	ChannelMediaSink
	ChannelMediaSinkVideo
	ChannelMediaSinkMediaAudio
	ChannelMediaSinkGuidanceAudio
	ChannelMediaSinkSystemAudio
	ChannelMediaSinkTelephonyAudio
	ChannelInputSource
	ChannelMediaSourceMicrophone
	ChannelBluetooth
	ChannelRadio
	ChannelNavigationStatus
	ChannelMediaPlaybackStatus
	ChannelPhoneStatus
	ChannelMediaBrowser
	ChannelVendorExtension
	ChannelGenericNotification
	ChannelWifiProjection

	// ChannelNone marks the absence of a channel
	ChannelNone ChannelID = 255
)

var channelNames = map[ChannelID]string{
	ChannelControl:                 "CONTROL",
	ChannelSensor:                  "SENSOR",
	ChannelMediaSink:               "MEDIA_SINK",
	ChannelMediaSinkVideo:          "MEDIA_SINK_VIDEO",
	ChannelMediaSinkMediaAudio:     "MEDIA_SINK_MEDIA_AUDIO",
	ChannelMediaSinkGuidanceAudio:  "MEDIA_SINK_GUIDANCE_AUDIO",
	ChannelMediaSinkSystemAudio:    "MEDIA_SINK_SYSTEM_AUDIO",
	ChannelMediaSinkTelephonyAudio: "MEDIA_SINK_TELEPHONY_AUDIO",
	ChannelInputSource:             "INPUT_SOURCE",
	ChannelMediaSourceMicrophone:   "MEDIA_SOURCE_MICROPHONE",
	ChannelBluetooth:               "BLUETOOTH",
	ChannelRadio:                   "RADIO",
	ChannelNavigationStatus:        "NAVIGATION_STATUS",
	ChannelMediaPlaybackStatus:     "MEDIA_PLAYBACK_STATUS",
	ChannelPhoneStatus:             "PHONE_STATUS",
	ChannelMediaBrowser:            "MEDIA_BROWSER",
	ChannelVendorExtension:         "VENDOR_EXTENSION",
	ChannelGenericNotification:     "GENERIC_NOTIFICATION",
	ChannelWifiProjection:          "WIFI_PROJECTION",
	ChannelNone:                    "NONE",
}

// String returns the protocol name of the channel, used as log and metric label
func (c ChannelID) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CHANNEL_%d", uint8(c))
}

// Known reports whether c is a channel the protocol defines
func (c ChannelID) Known() bool {
	_, ok := channelNames[c]
	return ok
}

// EncryptionType is bit 3 of the frame flags byte
type EncryptionType uint8

const (
	EncryptionPlain     EncryptionType = 0
	EncryptionEncrypted EncryptionType = 1 << 3
)

func (e EncryptionType) String() string {
	if e == EncryptionEncrypted {
		return "ENCRYPTED"
	}
	return "PLAIN"
}

// MessageType is bit 2 of the frame flags byte
type MessageType uint8

const (
	MessageSpecific MessageType = 0
	MessageControl  MessageType = 1 << 2
)

func (m MessageType) String() string {
	if m == MessageControl {
		return "CONTROL"
	}
	return "SPECIFIC"
}

// FrameType occupies bits 0-1 of the frame flags byte
type FrameType uint8

const (
	FrameMiddle FrameType = 0
	FrameFirst  FrameType = 1
	FrameLast   FrameType = 2
	FrameBulk   FrameType = 3
)

func (f FrameType) String() string {
	switch f {
	case FrameMiddle:
		return "MIDDLE"
	case FrameFirst:
		return "FIRST"
	case FrameLast:
		return "LAST"
	case FrameBulk:
		return "BULK"
	default:
		return fmt.Sprintf("FRAME_%d", uint8(f))
	}
}

// MessageID is the 2-byte big-endian id prefixing every payload
type MessageID uint16

const (
	frameTypeMask      = 0x03
	messageTypeMask    = 0x04
	encryptionTypeMask = 0x08
)
