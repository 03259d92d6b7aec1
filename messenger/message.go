package messenger

import (
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/headunit/limits"
)

// Message is one logical protocol message: the 2-byte id prefix plus body,
// tagged with the channel, encryption and message type it travels with.
type Message struct {
	ChannelID      ChannelID
	EncryptionType EncryptionType
	MessageType    MessageType
	Payload        []byte
}

// NewMessage builds a message whose payload is id followed by body
func NewMessage(channelID ChannelID, encryptionType EncryptionType, messageType MessageType, id MessageID, body []byte) *Message {
	payload := make([]byte, limits.MessageIDSize+len(body))
	binary.BigEndian.PutUint16(payload, uint16(id))
	copy(payload[limits.MessageIDSize:], body)

	return &Message{
		ChannelID:      channelID,
		EncryptionType: encryptionType,
		MessageType:    messageType,
		Payload:        payload,
	}
}

// ID returns the message id prefix.
// Payloads shorter than the prefix fail with ErrMalformedMessage.
func (m *Message) ID() (MessageID, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	return MessageID(binary.BigEndian.Uint16(m.Payload)), nil
}

// Body returns the payload after the id prefix, or nil for a malformed message
func (m *Message) Body() []byte {
	if len(m.Payload) < limits.MessageIDSize {
		return nil
	}
	return m.Payload[limits.MessageIDSize:]
}

// Validate checks the payload carries a complete id prefix
func (m *Message) Validate() error {
	if err := limits.ValidatePayload(m.Payload); err != nil {
		return fmt.Errorf("%w: channel %s: %w", ErrMalformedMessage, m.ChannelID, err)
	}
	return nil
}

// IsControl reports whether the message travels with the CONTROL message type
func (m *Message) IsControl() bool {
	return m.MessageType == MessageControl
}

// Encrypted reports whether the message travels encrypted
func (m *Message) Encrypted() bool {
	return m.EncryptionType == EncryptionEncrypted
}
