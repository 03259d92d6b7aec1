package messenger

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/opd-ai/headunit/limits"
)

// FrameHeader is the 2-byte prefix of every frame
type FrameHeader struct {
	ChannelID      ChannelID
	FrameType      FrameType
	MessageType    MessageType
	EncryptionType EncryptionType
}

// Flags packs frame, message and encryption type into the second header byte
func (h FrameHeader) Flags() byte {
	return byte(h.FrameType)&frameTypeMask | byte(h.MessageType)&messageTypeMask | byte(h.EncryptionType)&encryptionTypeMask
}

// Bytes returns the wire form of the header
func (h FrameHeader) Bytes() []byte {
	return []byte{byte(h.ChannelID), h.Flags()}
}

// DecodeFrameHeader parses the first two bytes of data
func DecodeFrameHeader(data []byte) (FrameHeader, error) {
	if len(data) < limits.FrameHeaderSize {
		return FrameHeader{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrMalformedFrame, limits.FrameHeaderSize, len(data))
	}
	flags := data[1]
	return FrameHeader{
		ChannelID:      ChannelID(data[0]),
		FrameType:      FrameType(flags & frameTypeMask),
		MessageType:    MessageType(flags & messageTypeMask),
		EncryptionType: EncryptionType(flags & encryptionTypeMask),
	}, nil
}

// FrameSizeType selects the width of the size field
type FrameSizeType uint8

const (
	// FrameSizeShort is a 2-byte payload length
	FrameSizeShort FrameSizeType = iota
	// FrameSizeExtended is a 4-byte total message length followed by a 4-byte payload length
	FrameSizeExtended
)

// FrameSize is the size field following the header
type FrameSize struct {
	Type        FrameSizeType
	PayloadSize uint32
	TotalSize   uint32
}

// SizeTypeFor returns the size field width a frame type carries: EXTENDED for FIRST only
func SizeTypeFor(frameType FrameType) FrameSizeType {
	if frameType == FrameFirst {
		return FrameSizeExtended
	}
	return FrameSizeShort
}

// Len returns the encoded length of the size field
func (s FrameSize) Len() int {
	if s.Type == FrameSizeExtended {
		return limits.ExtendedSizeFieldLength
	}
	return limits.ShortSizeFieldLength
}

// Bytes returns the wire form of the size field
func (s FrameSize) Bytes() []byte {
	if s.Type == FrameSizeExtended {
		b := make([]byte, limits.ExtendedSizeFieldLength)
		binary.BigEndian.PutUint32(b[0:4], s.TotalSize)
		binary.BigEndian.PutUint32(b[4:8], s.PayloadSize)
		return b
	}
	b := make([]byte, limits.ShortSizeFieldLength)
	binary.BigEndian.PutUint16(b, uint16(s.PayloadSize))
	return b
}

// DecodeFrameSize parses the size field that follows a header of the given frame type
func DecodeFrameSize(data []byte, frameType FrameType) (FrameSize, error) {
	if SizeTypeFor(frameType) == FrameSizeExtended {
		if len(data) < limits.ExtendedSizeFieldLength {
			return FrameSize{}, fmt.Errorf("%w: extended size needs %d bytes, have %d", ErrIncompleteFrame, limits.ExtendedSizeFieldLength, len(data))
		}
		return FrameSize{
			Type:        FrameSizeExtended,
			TotalSize:   binary.BigEndian.Uint32(data[0:4]),
			PayloadSize: binary.BigEndian.Uint32(data[4:8]),
		}, nil
	}
	if len(data) < limits.ShortSizeFieldLength {
		return FrameSize{}, fmt.Errorf("%w: short size needs %d bytes, have %d", ErrIncompleteFrame, limits.ShortSizeFieldLength, len(data))
	}
	return FrameSize{
		Type:        FrameSizeShort,
		PayloadSize: uint32(binary.BigEndian.Uint16(data)),
	}, nil
}

// Frame is a decoded frame: header, size field and the payload bytes it carries
type Frame struct {
	Header  FrameHeader
	Size    FrameSize
	Payload []byte
}

// EncodeFrame serializes header, size field and payload. totalSize is only
// written for FIRST frames, where it is the length of the whole message on the wire.
func EncodeFrame(header FrameHeader, payload []byte, totalSize uint32) ([]byte, error) {
	if err := limits.ValidateFramePayload(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	size := FrameSize{
		Type:        SizeTypeFor(header.FrameType),
		PayloadSize: uint32(len(payload)),
		TotalSize:   totalSize,
	}

	out := make([]byte, 0, limits.FrameHeaderSize+size.Len()+len(payload))
	out = append(out, header.Bytes()...)
	out = append(out, size.Bytes()...)
	out = append(out, payload...)
	return out, nil
}

// DecodeFrame parses one frame from the start of data and returns it together
// with the number of bytes consumed. ErrIncompleteFrame means more bytes are needed.
func DecodeFrame(data []byte) (*Frame, int, error) {
	if len(data) < limits.FrameHeaderSize {
		return nil, 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrIncompleteFrame, limits.FrameHeaderSize, len(data))
	}
	header, err := DecodeFrameHeader(data)
	if err != nil {
		return nil, 0, err
	}

	size, err := DecodeFrameSize(data[limits.FrameHeaderSize:], header.FrameType)
	if err != nil {
		return nil, 0, err
	}
	if err := limits.ValidateWirePayloadSize(int(size.PayloadSize)); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	start := limits.FrameHeaderSize + size.Len()
	end := start + int(size.PayloadSize)
	if len(data) < end {
		return nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrIncompleteFrame, end, len(data))
	}

	payload := make([]byte, size.PayloadSize)
	copy(payload, data[start:end])

	return &Frame{Header: header, Size: size, Payload: payload}, end, nil
}

// ReadFrame reads exactly one frame from r
func ReadFrame(r io.Reader) (*Frame, error) {
	head := make([]byte, limits.FrameHeaderSize)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, err
	}
	header, err := DecodeFrameHeader(head)
	if err != nil {
		return nil, err
	}

	sizeBuf := make([]byte, FrameSize{Type: SizeTypeFor(header.FrameType)}.Len())
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompleteFrame, err)
	}
	size, err := DecodeFrameSize(sizeBuf, header.FrameType)
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateWirePayloadSize(int(size.PayloadSize)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	payload := make([]byte, size.PayloadSize)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompleteFrame, err)
	}
	return &Frame{Header: header, Size: size, Payload: payload}, nil
}

// Chunk is one planned frame of an outbound message
type Chunk struct {
	Type   FrameType
	Offset int
	Size   int
}

// PlanChunks returns the frame sequence for a payload of the given length.
// Below MaxFramePayloadSize the message is a single BULK frame. Otherwise each
// chunk takes up to MaxFramePayloadSize bytes: the first is FIRST, a chunk that
// leaves bytes behind is MIDDLE, and the chunk that exhausts the remainder is
// LAST. A FIRST chunk is always followed by a LAST one, so a length that is an
// exact multiple of the limit ends with an empty LAST frame.
func PlanChunks(length int) []Chunk {
	if length < limits.MaxFramePayloadSize {
		return []Chunk{{Type: FrameBulk, Offset: 0, Size: length}}
	}

	chunks := make([]Chunk, 0, length/limits.MaxFramePayloadSize+1)
	offset, remaining := 0, length
	for {
		size := min(remaining, limits.MaxFramePayloadSize)
		var frameType FrameType
		switch {
		case offset == 0:
			frameType = FrameFirst
		case remaining-size > 0:
			frameType = FrameMiddle
		default:
			frameType = FrameLast
		}
		chunks = append(chunks, Chunk{Type: frameType, Offset: offset, Size: size})
		offset += size
		remaining -= size
		if frameType == FrameLast {
			return chunks
		}
	}
}
