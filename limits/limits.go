// Package limits provides centralized frame and message size limits for the
// head-unit messenger. Codec, sender and assembler validate against the same values.
package limits

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// MaxFramePayloadSize is the largest payload carried by a single frame (0x4000).
	// Messages strictly below it travel as one BULK frame, everything else is split.
	MaxFramePayloadSize = 16384

	// FrameHeaderSize is the channel byte plus the flags byte
	FrameHeaderSize = 2

	// ShortSizeFieldLength is the 2-byte big-endian payload length used by BULK, MIDDLE and LAST
	ShortSizeFieldLength = 2

	// ExtendedSizeFieldLength is the 4-byte total plus 4-byte chunk length used by FIRST
	ExtendedSizeFieldLength = 8

	// MessageIDSize is the big-endian id prefix of every message payload
	MessageIDSize = 2

	// TimestampSize is the big-endian microsecond prefix of media payloads
	TimestampSize = 8

	// EncryptionOverhead is the Poly1305 tag the built-in ciphers add to each sealed chunk
	EncryptionOverhead = chacha20poly1305.Overhead

	// MaxWirePayloadSize is the largest chunk payload a SHORT size field can carry.
	// Sealed chunks are bounded by it rather than by any one cipher's overhead.
	MaxWirePayloadSize = 0xFFFF

	// MaxFrameSize is the worst case encoded frame: header, extended size field
	// and a payload of MaxWirePayloadSize.
	MaxFrameSize = FrameHeaderSize + ExtendedSizeFieldLength + MaxWirePayloadSize

	// MaxMessageSize bounds reassembly of inbound messages (16MB). An EXTENDED total
	// above it is treated as a corrupt stream.
	MaxMessageSize = 16 * 1024 * 1024
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageTooShort indicates a payload without a complete message id prefix
	ErrMessageTooShort = errors.New("message too short")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidatePayload checks that a message payload carries at least the 2-byte id.
// A payload of exactly MessageIDSize bytes is a valid message with an empty body.
func ValidatePayload(payload []byte) error {
	if len(payload) < MessageIDSize {
		return fmt.Errorf("%w: payload size %d below id prefix %d", ErrMessageTooShort, len(payload), MessageIDSize)
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("%w: payload size %d exceeds limit %d", ErrMessageTooLarge, len(payload), MaxMessageSize)
	}
	return nil
}

// ValidateFramePayload checks a single frame payload against MaxWirePayloadSize.
// Empty payloads are legal here: a LAST frame can carry zero bytes.
func ValidateFramePayload(payload []byte) error {
	return ValidateWirePayloadSize(len(payload))
}

// ValidateWirePayloadSize checks a chunk length read from or written to a size field
func ValidateWirePayloadSize(size int) error {
	if size > MaxWirePayloadSize {
		return fmt.Errorf("%w: frame payload size %d exceeds limit %d", ErrMessageTooLarge, size, MaxWirePayloadSize)
	}
	return nil
}

// ValidateTotalSize validates an EXTENDED total announced by a FIRST frame.
func ValidateTotalSize(total uint32) error {
	if total == 0 {
		return ErrMessageEmpty
	}
	if uint64(total) > MaxMessageSize {
		return fmt.Errorf("%w: announced total %d exceeds limit %d", ErrMessageTooLarge, total, MaxMessageSize)
	}
	return nil
}
