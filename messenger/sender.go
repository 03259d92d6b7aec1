package messenger

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"

	"github.com/opd-ai/headunit/executor"
	"github.com/opd-ai/headunit/interfaces"
)

// ProtoMarshaler is any message that serializes itself to protobuf wire bytes
type ProtoMarshaler interface {
	Marshal() ([]byte, error)
}

type protoV2 struct {
	msg proto.Message
}

func (p protoV2) Marshal() ([]byte, error) {
	return proto.Marshal(p.msg)
}

// ProtoV2 adapts a generated protobuf-go message to ProtoMarshaler
func ProtoV2(msg proto.Message) ProtoMarshaler {
	return protoV2{msg: msg}
}

// SendSnapshot describes the send session in flight
type SendSnapshot struct {
	Active      bool
	SessionID   string
	Channel     ChannelID
	MessageID   MessageID
	FrameCount  int
	FramesSent  int
	BytesSent   int
	Remaining   int
	TotalSize   int
	StartedAt   time.Time
	Elapsed     time.Duration
	Encrypted   bool
	Generation  uint64
	PendingWork int
}

// plannedFrame is one chunk of the message in flight. chunk stays plaintext
// until the frame is about to be written; wire is its announced sealed length.
type plannedFrame struct {
	header FrameHeader
	chunk  []byte
	wire   int
}

// sendSession is owned by the sender's strand
type sendSession struct {
	id         uuid.UUID
	generation uint64
	message    *Message
	promise    *Promise
	transport  interfaces.ITransport
	cryptor    interfaces.ICryptor
	frames     []plannedFrame
	next       int
	total      uint32
	offset     int
	remaining  int
	started    time.Time
	timer      Stopper
}

// MessengerOption configures a MessageSender
type MessengerOption func(*MessageSender)

// WithSendTimeout bounds every send session; 0 disables the bound
func WithSendTimeout(d time.Duration) MessengerOption {
	return func(s *MessageSender) { s.timeout = d }
}

// WithMetrics records sends on m
func WithMetrics(m *Metrics) MessengerOption {
	return func(s *MessageSender) { s.metrics = m }
}

// WithChannelRegistry shares an existing registry instead of creating one
func WithChannelRegistry(r *ChannelRegistry) MessengerOption {
	return func(s *MessageSender) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithTimeProvider replaces the clock used for timeouts and durations
func WithTimeProvider(tp TimeProvider) MessengerOption {
	return func(s *MessageSender) {
		if tp != nil {
			s.clock = tp
		}
	}
}

// MessageSender turns messages into frames and drives them through the transport,
// one message at a time. All session state is confined to its strand.
type MessageSender struct {
	strand   *executor.Strand
	registry *ChannelRegistry
	metrics  *Metrics
	timeout  time.Duration
	clock    TimeProvider

	mu        sync.RWMutex
	transport interfaces.ITransport
	cryptor   interfaces.ICryptor

	// strand-owned
	session    *sendSession
	generation uint64

	snapshot atomic.Pointer[SendSnapshot]
}

// NewMessageSender creates a sender running on strand. transport and cryptor
// may be nil and set later.
func NewMessageSender(strand *executor.Strand, transport interfaces.ITransport, cryptor interfaces.ICryptor, opts ...MessengerOption) *MessageSender {
	s := &MessageSender{
		strand:    strand,
		registry:  NewChannelRegistry(),
		clock:     DefaultTimeProvider{},
		transport: transport,
		cryptor:   cryptor,
	}
	for _, opt := range opts {
		opt(s)
	}

	NewLogger("NewMessageSender").
		WithField("strand", strand.Name()).
		WithField("timeout", s.timeout.String()).
		WithField("has_transport", transport != nil).
		WithField("has_cryptor", cryptor != nil).
		Info("Created message sender")
	return s
}

// SetTransport replaces the transport used by sessions started afterwards
func (s *MessageSender) SetTransport(t interfaces.ITransport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

// SetCryptor replaces the cryptor used by sessions started afterwards
func (s *MessageSender) SetCryptor(c interfaces.ICryptor) {
	s.mu.Lock()
	s.cryptor = c
	s.mu.Unlock()
}

func (s *MessageSender) endpoints() (interfaces.ITransport, interfaces.ICryptor) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport, s.cryptor
}

// CanSend reports whether both transport and cryptor are configured
func (s *MessageSender) CanSend() bool {
	t, c := s.endpoints()
	return t != nil && c != nil
}

// SendRaw sends id+body on channel without waiting for the result.
// Failures are logged; nothing is sent without a transport and cryptor.
func (s *MessageSender) SendRaw(channelID ChannelID, encryptionType EncryptionType, messageType MessageType, id MessageID, body []byte) {
	if !s.CanSend() {
		NewLogger("MessageSender.SendRaw").
			WithField("channel", channelID.String()).
			WithField("message_id", uint16(id)).
			Warn("Dropping message, no transport or cryptor configured")
		s.metrics.sendRejected(channelID, ResultNoSendPath)
		return
	}
	s.Dispatch(NewMessage(channelID, encryptionType, messageType, id, body))
}

// SendProtobuf serializes msg and sends it like SendRaw
func (s *MessageSender) SendProtobuf(channelID ChannelID, encryptionType EncryptionType, messageType MessageType, id MessageID, msg ProtoMarshaler) {
	body, err := msg.Marshal()
	if err != nil {
		NewLogger("MessageSender.SendProtobuf").
			WithField("channel", channelID.String()).
			WithField("message_id", uint16(id)).
			WithError(err, "marshal").
			Error("Failed to serialize protobuf message")
		return
	}
	s.SendRaw(channelID, encryptionType, messageType, id, body)
}

// Dispatch starts sending msg and returns its promise. A default failure
// continuation logs the channel and error; callers may attach more with Then.
func (s *MessageSender) Dispatch(msg *Message) *Promise {
	promise := NewPromise()
	promise.Then(func() {}, func(err error) {
		NewLogger("MessageSender.Dispatch").
			WithMessage(msg).
			WithError(err, "send").
			Error("Send failed")
	})
	s.Stream(msg, promise)
	return promise
}

// Stream queues msg on the sender's strand and settles promise when the last
// frame is acknowledged or the session fails. A second message while a session
// is in flight is rejected with ErrOperationInProgress, never queued.
func (s *MessageSender) Stream(msg *Message, promise *Promise) {
	if promise == nil {
		promise = NewPromise()
	}
	s.strand.Post(func() {
		s.start(msg, promise)
	})
}

func (s *MessageSender) start(msg *Message, promise *Promise) {
	if s.session != nil {
		NewLogger("MessageSender.start").
			WithMessage(msg).
			WithField("active_session", s.session.id.String()).
			Warn("Rejecting send, another session is in flight")
		s.metrics.sendRejected(msg.ChannelID, ResultInProgress)
		promise.Reject(ErrOperationInProgress)
		return
	}

	if err := msg.Validate(); err != nil {
		s.metrics.sendRejected(msg.ChannelID, ResultMalformed)
		promise.Reject(err)
		return
	}

	transport, cryptor := s.endpoints()
	if transport == nil || (msg.Encrypted() && cryptor == nil) {
		s.metrics.sendRejected(msg.ChannelID, ResultNoSendPath)
		promise.Reject(fmt.Errorf("%w: channel %s", ErrNoSendPath, msg.ChannelID))
		return
	}

	frames, total, err := planFrames(msg, cryptor)
	if err != nil {
		s.metrics.sendRejected(msg.ChannelID, resultFor(err))
		promise.Reject(err)
		return
	}

	s.generation++
	sess := &sendSession{
		id:         uuid.New(),
		generation: s.generation,
		message:    msg,
		promise:    promise,
		transport:  transport,
		cryptor:    cryptor,
		frames:     frames,
		total:      total,
		remaining:  len(msg.Payload),
		started:    s.clock.Now(),
	}
	s.session = sess

	if s.timeout > 0 {
		gen := sess.generation
		sess.timer = s.clock.AfterFunc(s.timeout, func() {
			s.strand.Post(func() { s.expire(gen) })
		})
	}

	s.metrics.sessionStarted()
	s.publish()

	NewLogger("MessageSender.start").
		WithMessage(msg).
		WithField("session", sess.id.String()).
		WithField("frames", len(frames)).
		WithField("total_size", total).
		Debug("Send session started")

	s.sendNext()
}

// planFrames cuts msg into chunks without sealing them. Chunks are sealed one
// at a time in sendNext so a session that stops early never spends cipher state
// on frames the peer will not receive. The returned total is the byte length of
// all chunk payloads as they go on the wire, which FIRST frames announce.
func planFrames(msg *Message, cryptor interfaces.ICryptor) ([]plannedFrame, uint32, error) {
	chunks := PlanChunks(len(msg.Payload))
	frames := make([]plannedFrame, 0, len(chunks))
	var total uint64

	for _, c := range chunks {
		wire := c.Size
		if msg.Encrypted() {
			wire = cryptor.SealedSize(c.Size)
			if wire < c.Size {
				return nil, 0, fmt.Errorf("%w: cryptor reported sealed size %d for %d bytes", ErrCryptoFailure, wire, c.Size)
			}
		}
		total += uint64(wire)
		frames = append(frames, plannedFrame{
			header: FrameHeader{
				ChannelID:      msg.ChannelID,
				FrameType:      c.Type,
				MessageType:    msg.MessageType,
				EncryptionType: msg.EncryptionType,
			},
			chunk: msg.Payload[c.Offset : c.Offset+c.Size],
			wire:  wire,
		})
	}

	if total > uint64(^uint32(0)) {
		return nil, 0, fmt.Errorf("%w: message of %d bytes exceeds the size field", ErrMalformedMessage, total)
	}
	return frames, uint32(total), nil
}

// seal returns the wire payload of frame, encrypting it when the message is
// ENCRYPTED. A sealed length other than the announced one would corrupt the
// FIRST frame's total, so it fails the session.
func (s *sendSession) seal(frame plannedFrame) ([]byte, error) {
	if !s.message.Encrypted() {
		return frame.chunk, nil
	}
	sealed, n, err := s.cryptor.Encrypt(frame.chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	if n < 0 || n > len(sealed) {
		return nil, fmt.Errorf("%w: cryptor reported %d bytes of %d", ErrCryptoFailure, n, len(sealed))
	}
	if n != frame.wire {
		return nil, fmt.Errorf("%w: sealed %d bytes, announced %d", ErrCryptoFailure, n, frame.wire)
	}
	return sealed[:n], nil
}

func (s *MessageSender) sendNext() {
	sess := s.session
	frame := sess.frames[sess.next]

	payload, err := sess.seal(frame)
	if err != nil {
		s.finish(sess, err)
		return
	}

	data, err := EncodeFrame(frame.header, payload, sess.total)
	if err != nil {
		s.finish(sess, err)
		return
	}

	gen := sess.generation
	sess.transport.Send(data, func(err error) {
		s.strand.Post(func() { s.onFrameSent(gen, frame.header.FrameType, len(data), err) })
	})
}

func (s *MessageSender) onFrameSent(gen uint64, frameType FrameType, size int, err error) {
	sess := s.session
	if sess == nil || sess.generation != gen {
		logger := NewLogger("MessageSender.onFrameSent").
			WithField("generation", gen).
			WithField("frame_type", frameType.String())
		if err != nil {
			logger = logger.WithError(err, "transport")
		}
		logger.Debug("Ignoring completion of an expired session")
		return
	}

	if err != nil {
		s.finish(sess, fmt.Errorf("%w: %w", ErrTransportFailure, err))
		return
	}

	s.metrics.frameSent(frameType, size)
	sent := sess.frames[sess.next]
	sess.offset += len(sent.chunk)
	sess.remaining -= len(sent.chunk)
	sess.next++

	if sess.next == len(sess.frames) {
		s.finish(sess, nil)
		return
	}
	s.publish()
	s.sendNext()
}

func (s *MessageSender) expire(gen uint64) {
	sess := s.session
	if sess == nil || sess.generation != gen {
		return
	}
	s.finish(sess, fmt.Errorf("%w: after %s, %d of %d frames sent", ErrSendTimeout, s.timeout, sess.next, len(sess.frames)))
}

// finish clears the session before settling so continuations may send again
func (s *MessageSender) finish(sess *sendSession, err error) {
	if sess.timer != nil {
		sess.timer.Stop()
	}
	s.session = nil
	s.snapshot.Store(nil)

	elapsed := s.clock.Since(sess.started)
	s.metrics.sessionFinished(sess.message.ChannelID, resultFor(err), elapsed)

	logger := NewLogger("MessageSender.finish").
		WithMessage(sess.message).
		WithField("session", sess.id.String()).
		WithField("frames_sent", sess.next).
		WithField("elapsed", elapsed.String())
	if err != nil {
		logger.WithError(err, "send").Debug("Send session failed")
		sess.promise.Reject(err)
		return
	}
	logger.Debug("Send session completed")
	sess.promise.Resolve()
}

func (s *MessageSender) publish() {
	sess := s.session
	id, _ := sess.message.ID()
	s.snapshot.Store(&SendSnapshot{
		Active:     true,
		SessionID:  sess.id.String(),
		Channel:    sess.message.ChannelID,
		MessageID:  id,
		FrameCount: len(sess.frames),
		FramesSent: sess.next,
		BytesSent:  sess.offset,
		Remaining:  sess.remaining,
		TotalSize:  int(sess.total),
		StartedAt:  sess.started,
		Encrypted:  sess.message.Encrypted(),
		Generation: sess.generation,
	})
}

// Snapshot returns the state of the session in flight; Active is false when idle
func (s *MessageSender) Snapshot() SendSnapshot {
	snap := s.snapshot.Load()
	if snap == nil {
		return SendSnapshot{PendingWork: s.strand.Pending()}
	}
	out := *snap
	out.Elapsed = s.clock.Since(out.StartedAt)
	out.PendingWork = s.strand.Pending()
	return out
}

// Busy reports whether a send session is in flight
func (s *MessageSender) Busy() bool {
	return s.snapshot.Load() != nil
}

// RegisterChannel adds ch to the sender's channel registry
func (s *MessageSender) RegisterChannel(ch Channel) {
	s.registry.Register(ch)
}

// UnregisterChannel removes the channel with id from the registry
func (s *MessageSender) UnregisterChannel(id ChannelID) {
	s.registry.Unregister(id)
}

// Channel looks up a registered channel
func (s *MessageSender) Channel(id ChannelID) (Channel, bool) {
	return s.registry.Lookup(id)
}

// Registry exposes the channel registry shared with other components
func (s *MessageSender) Registry() *ChannelRegistry {
	return s.registry
}
