package messenger

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Channel is a logical service endpoint known to the messenger.
// The registry does not own channels; their lifetime is the caller's.
type Channel interface {
	ID() ChannelID
}

// ChannelRegistry maps channel ids to channels. It is safe for concurrent use.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[ChannelID]Channel
}

// NewChannelRegistry creates an empty registry
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[ChannelID]Channel)}
}

// Register adds ch under its id, replacing any channel already registered there.
// It returns true when an entry was replaced.
func (r *ChannelRegistry) Register(ch Channel) bool {
	if ch == nil {
		return false
	}
	id := ch.ID()

	r.mu.Lock()
	_, replaced := r.channels[id]
	r.channels[id] = ch
	r.mu.Unlock()

	fields := logrus.Fields{
		"function": "ChannelRegistry.Register",
		"channel":  id.String(),
	}
	if replaced {
		logrus.WithFields(fields).Warn("Replacing registered channel")
	} else {
		logrus.WithFields(fields).Debug("Channel registered")
	}
	return replaced
}

// Unregister removes the channel with the given id. Unknown ids are ignored.
func (r *ChannelRegistry) Unregister(id ChannelID) bool {
	r.mu.Lock()
	_, ok := r.channels[id]
	delete(r.channels, id)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "ChannelRegistry.Unregister",
		"channel":  id.String(),
		"found":    ok,
	}).Debug("Channel unregistered")
	return ok
}

// Lookup returns the channel registered under id
func (r *ChannelRegistry) Lookup(id ChannelID) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Len returns the number of registered channels
func (r *ChannelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// IDs returns the registered channel ids in ascending order
func (r *ChannelRegistry) IDs() []ChannelID {
	r.mu.RLock()
	ids := make([]ChannelID, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StaticChannel is a Channel identified only by its id
type StaticChannel ChannelID

// ID implements Channel
func (c StaticChannel) ID() ChannelID { return ChannelID(c) }
