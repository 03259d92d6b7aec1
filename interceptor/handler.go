package interceptor

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/headunit/aap"
	"github.com/opd-ai/headunit/messenger"
	"github.com/opd-ai/headunit/sidechannel"
)

// Sender is the outbound capability handlers reply through.
// *messenger.MessageSender and *Outbox both satisfy it.
type Sender interface {
	SendRaw(channelID messenger.ChannelID, encryptionType messenger.EncryptionType, messageType messenger.MessageType, id messenger.MessageID, body []byte)
	SendProtobuf(channelID messenger.ChannelID, encryptionType messenger.EncryptionType, messageType messenger.MessageType, id messenger.MessageID, msg messenger.ProtoMarshaler)
}

// Handler consumes the messages of one channel
type Handler interface {
	// Handle returns true when msg was consumed
	Handle(msg *messenger.Message) bool
	SetMessageSender(sender Sender)
}

// SideChannelBinder is implemented by handlers that publish to the side channel
type SideChannelBinder interface {
	BindSideChannel(transport sidechannel.Transport)
}

// TouchConsumer receives touch packets from the side channel
type TouchConsumer interface {
	OnTouchEvent(timestampUsec uint64, data []byte)
}

// SensorConsumer receives sensor JSON documents from the side channel
type SensorConsumer interface {
	OnSensorEvent(timestampUsec uint64, data []byte)
}

// MicrophoneConsumer receives captured audio from the side channel
type MicrophoneConsumer interface {
	OnMicrophoneAudio(timestampUsec uint64, data []byte)
}

// baseHandler holds what every channel handler shares: the sender, the channel
// and encryption type learned from the channel open request, and a mutex that
// serializes Handle against side-channel callbacks.
type baseHandler struct {
	name string

	mu         sync.Mutex
	sender     Sender
	channelID  messenger.ChannelID
	encryption messenger.EncryptionType
	opened     bool
	received   uint64
}

func newBaseHandler(name string) baseHandler {
	return baseHandler{name: name, channelID: messenger.ChannelNone}
}

// SetMessageSender implements Handler
func (b *baseHandler) SetMessageSender(sender Sender) {
	b.mu.Lock()
	b.sender = sender
	b.mu.Unlock()
}

// OpenedChannel returns the channel and encryption type cached from the last
// channel open request, or ChannelNone before one arrived
func (b *baseHandler) OpenedChannel() (messenger.ChannelID, messenger.EncryptionType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channelID, b.encryption
}

// Received returns the number of messages passed to Handle
func (b *baseHandler) Received() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

func (b *baseHandler) log(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function": function,
		"package":  "interceptor",
		"handler":  b.name,
	})
}

type specificFunc func(msg *messenger.Message, id messenger.MessageID, body []byte) bool

// dispatch decodes the id, answers channel open requests and hands every
// other message to specific. specific runs with b.mu held.
func (b *baseHandler) dispatch(msg *messenger.Message, specific specificFunc) bool {
	id, err := msg.ID()
	if err != nil {
		b.log("Handle").WithError(err).Error("Dropping malformed message")
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.received++

	if msg.IsControl() && id == aap.MessageChannelOpenRequest {
		return b.openChannel(msg, msg.Body())
	}

	if specific == nil {
		return false
	}
	consumed := specific(msg, id, msg.Body())
	if !consumed {
		b.log("Handle").WithFields(logrus.Fields{
			"channel":    msg.ChannelID.String(),
			"message_id": uint16(id),
		}).Debug("Message not handled")
	}
	return consumed
}

// openChannel must be called with b.mu held
func (b *baseHandler) openChannel(msg *messenger.Message, body []byte) bool {
	var req aap.ChannelOpenRequest
	if err := req.Unmarshal(body); err != nil {
		b.log("openChannel").WithError(err).Error("Failed to parse ChannelOpenRequest")
		return false
	}
	if b.sender == nil {
		b.log("openChannel").Error("No message sender, cannot answer ChannelOpenRequest")
		return false
	}

	b.channelID = msg.ChannelID
	b.encryption = msg.EncryptionType
	b.opened = true

	b.sender.SendProtobuf(msg.ChannelID, msg.EncryptionType, messenger.MessageControl,
		aap.MessageChannelOpenResponse, &aap.ChannelOpenResponse{Status: aap.StatusSuccess})

	b.log("openChannel").WithFields(logrus.Fields{
		"channel":    msg.ChannelID.String(),
		"encryption": msg.EncryptionType.String(),
		"priority":   req.Priority,
		"service_id": req.ServiceID,
	}).Info("Channel opened")
	return true
}

// reply sends m on the channel and encryption type of msg. b.mu must be held.
func (b *baseHandler) reply(msg *messenger.Message, id messenger.MessageID, m messenger.ProtoMarshaler) bool {
	if b.sender == nil {
		b.log("reply").WithField("message_id", uint16(id)).Error("No message sender, cannot reply")
		return false
	}
	b.sender.SendProtobuf(msg.ChannelID, msg.EncryptionType, messenger.MessageSpecific, id, m)
	return true
}

// parse unmarshals body into m and logs failures
func (b *baseHandler) parse(label string, body []byte, m interface{ Unmarshal([]byte) error }) bool {
	if err := m.Unmarshal(body); err != nil {
		b.log("parse").WithFields(logrus.Fields{
			"message": label,
			"bytes":   len(body),
			"error":   err.Error(),
		}).Error("Failed to parse payload")
		return false
	}
	return true
}
