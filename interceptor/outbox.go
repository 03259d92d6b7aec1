package interceptor

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/messenger"
)

// ErrOutboxClosed is returned by Enqueue after Close
var ErrOutboxClosed = errors.New("outbox closed")

// ErrOutboxFull is returned by Enqueue when the backlog is at capacity
var ErrOutboxFull = errors.New("outbox full")

// DefaultOutboxDepth bounds the backlog when NewOutbox gets no depth
const DefaultOutboxDepth = 64

// Dispatcher starts a send and reports its settlement.
// *messenger.MessageSender satisfies it.
type Dispatcher interface {
	Dispatch(msg *messenger.Message) *messenger.Promise
	CanSend() bool
}

// Outbox serializes every outbound message in front of a Dispatcher. The next
// message is dispatched from the settlement of the previous one, so the
// dispatcher never sees two sessions at once. The backlog is bounded; beyond it
// messages are dropped and logged.
type Outbox struct {
	dispatcher Dispatcher
	depth      int
	metrics    *Metrics

	mu       sync.Mutex
	queue    []outboxEntry
	inflight bool
	closed   bool
}

// outboxEntry pairs a waiting message with the promise returned by Submit
type outboxEntry struct {
	msg     *messenger.Message
	promise *messenger.Promise
}

var _ Sender = (*Outbox)(nil)

// NewOutbox creates an outbox over d holding up to depth waiting messages
func NewOutbox(d Dispatcher, depth int, metrics *Metrics) *Outbox {
	if depth <= 0 {
		depth = DefaultOutboxDepth
	}
	return &Outbox{dispatcher: d, depth: depth, metrics: metrics}
}

// SendRaw implements Sender
func (o *Outbox) SendRaw(channelID messenger.ChannelID, encryptionType messenger.EncryptionType, messageType messenger.MessageType, id messenger.MessageID, body []byte) {
	logger := logrus.WithFields(logrus.Fields{
		"function":   "Outbox.SendRaw",
		"package":    "interceptor",
		"channel":    channelID.String(),
		"message_id": uint16(id),
	})
	if !o.dispatcher.CanSend() {
		logger.Warn("Dropping message, no transport or cryptor configured")
		o.metrics.outboxDropped(channelID)
		return
	}
	if err := o.Enqueue(messenger.NewMessage(channelID, encryptionType, messageType, id, body)); err != nil {
		logger.WithField("error", err.Error()).Warn("Dropping message")
	}
}

// SendProtobuf implements Sender
func (o *Outbox) SendProtobuf(channelID messenger.ChannelID, encryptionType messenger.EncryptionType, messageType messenger.MessageType, id messenger.MessageID, msg messenger.ProtoMarshaler) {
	body, err := msg.Marshal()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Outbox.SendProtobuf",
			"package":    "interceptor",
			"channel":    channelID.String(),
			"message_id": uint16(id),
			"error":      err.Error(),
		}).Error("Failed to serialize protobuf message")
		return
	}
	o.SendRaw(channelID, encryptionType, messageType, id, body)
}

// Enqueue dispatches msg now if nothing is in flight, otherwise appends it to the backlog
func (o *Outbox) Enqueue(msg *messenger.Message) error {
	_, err := o.Submit(msg)
	return err
}

// Submit is Enqueue for callers that need the outcome: the returned promise
// settles with the result of msg's own send, or with ErrOutboxClosed when the
// backlog is discarded before msg is dispatched.
func (o *Outbox) Submit(msg *messenger.Message) (*messenger.Promise, error) {
	entry := outboxEntry{msg: msg, promise: messenger.NewPromise()}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, ErrOutboxClosed
	}
	if o.inflight {
		if len(o.queue) >= o.depth {
			o.mu.Unlock()
			o.metrics.outboxDropped(msg.ChannelID)
			return nil, ErrOutboxFull
		}
		o.queue = append(o.queue, entry)
		o.metrics.outboxBacklog(len(o.queue))
		o.mu.Unlock()
		return entry.promise, nil
	}
	o.inflight = true
	o.mu.Unlock()

	o.dispatch(entry)
	return entry.promise, nil
}

func (o *Outbox) dispatch(entry outboxEntry) {
	o.dispatcher.Dispatch(entry.msg).Then(func() {
		o.next()
		entry.promise.Resolve()
	}, func(err error) {
		o.next()
		entry.promise.Reject(err)
	})
}

func (o *Outbox) next() {
	o.mu.Lock()
	if o.closed || len(o.queue) == 0 {
		o.inflight = false
		o.mu.Unlock()
		return
	}
	entry := o.queue[0]
	o.queue[0] = outboxEntry{}
	o.queue = o.queue[1:]
	o.metrics.outboxBacklog(len(o.queue))
	o.mu.Unlock()

	o.dispatch(entry)
}

// Pending returns the number of messages waiting behind the one in flight
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Busy reports whether a message is in flight
func (o *Outbox) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inflight
}

// Close discards the backlog and rejects later messages
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrOutboxClosed
	}
	discarded := o.queue
	o.closed = true
	o.queue = nil
	o.metrics.outboxBacklog(0)

	for _, entry := range discarded {
		entry.promise.Reject(ErrOutboxClosed)
	}
	if len(discarded) > 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "Outbox.Close",
			"package":   "interceptor",
			"discarded": len(discarded),
		}).Warn("Discarded queued replies on close")
	}
	return nil
}
