package messenger

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opd-ai/headunit/interfaces"
	"github.com/opd-ai/headunit/limits"
)

type partialMessage struct {
	header   FrameHeader
	total    uint32
	received uint32
	payload  []byte
}

// Assembler rebuilds inbound messages from frames. Frames of one channel must
// arrive in order; channels are independent. It is safe for concurrent use.
type Assembler struct {
	decryptor interfaces.IDecryptor
	metrics   *Metrics

	mu      sync.Mutex
	partial map[ChannelID]*partialMessage
}

// NewAssembler creates an assembler. decryptor may be nil when the peer never
// sends encrypted frames.
func NewAssembler(decryptor interfaces.IDecryptor, metrics *Metrics) *Assembler {
	return &Assembler{
		decryptor: decryptor,
		metrics:   metrics,
		partial:   make(map[ChannelID]*partialMessage),
	}
}

// SetDecryptor replaces the decryptor for frames pushed afterwards
func (a *Assembler) SetDecryptor(d interfaces.IDecryptor) {
	a.mu.Lock()
	a.decryptor = d
	a.mu.Unlock()
}

// Push consumes one frame. It returns the completed message when f finishes
// one, or nil while a split message is still incomplete. A malformed sequence
// drops the channel's partial message and returns ErrMalformedFrame.
func (a *Assembler) Push(f *Frame) (*Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.metrics.frameReceived(f.Header.FrameType)
	ch := f.Header.ChannelID

	switch f.Header.FrameType {
	case FrameBulk:
		if p, ok := a.partial[ch]; ok {
			NewLogger("Assembler.Push").
				WithField("channel", ch.String()).
				WithField("discarded_bytes", p.received).
				Warn("BULK frame interrupted a split message")
			delete(a.partial, ch)
		}
		payload, err := a.open(f)
		if err != nil {
			return nil, err
		}
		return a.complete(f.Header, payload)

	case FrameFirst:
		if f.Size.Type != FrameSizeExtended {
			return nil, fmt.Errorf("%w: FIRST frame without extended size", ErrMalformedFrame)
		}
		if err := limits.ValidateTotalSize(f.Size.TotalSize); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
		if _, ok := a.partial[ch]; ok {
			NewLogger("Assembler.Push").
				WithField("channel", ch.String()).
				Warn("FIRST frame restarted a split message")
		}
		p := &partialMessage{header: f.Header, total: f.Size.TotalSize}
		a.partial[ch] = p
		return nil, a.append(ch, p, f)

	case FrameMiddle, FrameLast:
		p, ok := a.partial[ch]
		if !ok {
			return nil, fmt.Errorf("%w: %s frame on %s without FIRST", ErrMalformedFrame, f.Header.FrameType, ch)
		}
		if p.header.EncryptionType != f.Header.EncryptionType || p.header.MessageType != f.Header.MessageType {
			delete(a.partial, ch)
			return nil, fmt.Errorf("%w: %s frame flags differ from FIRST on %s", ErrMalformedFrame, f.Header.FrameType, ch)
		}
		if err := a.append(ch, p, f); err != nil {
			return nil, err
		}
		if f.Header.FrameType == FrameMiddle {
			return nil, nil
		}
		delete(a.partial, ch)
		if p.received != p.total {
			return nil, fmt.Errorf("%w: %s reassembled %d bytes, FIRST announced %d", ErrMalformedFrame, ch, p.received, p.total)
		}
		return a.complete(p.header, p.payload)
	}
	return nil, fmt.Errorf("%w: unknown frame type %d", ErrMalformedFrame, f.Header.FrameType)
}

func (a *Assembler) append(ch ChannelID, p *partialMessage, f *Frame) error {
	p.received += uint32(len(f.Payload))
	if p.received > p.total {
		delete(a.partial, ch)
		return fmt.Errorf("%w: %s received %d bytes, FIRST announced %d", ErrMalformedFrame, ch, p.received, p.total)
	}
	payload, err := a.open(f)
	if err != nil {
		delete(a.partial, ch)
		return err
	}
	p.payload = append(p.payload, payload...)
	return nil
}

func (a *Assembler) open(f *Frame) ([]byte, error) {
	if f.Header.EncryptionType != EncryptionEncrypted {
		return f.Payload, nil
	}
	if a.decryptor == nil {
		return nil, fmt.Errorf("%w: encrypted frame on %s without decryptor", ErrCryptoFailure, f.Header.ChannelID)
	}
	plain, err := a.decryptor.Decrypt(f.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCryptoFailure, err)
	}
	return plain, nil
}

func (a *Assembler) complete(header FrameHeader, payload []byte) (*Message, error) {
	msg := &Message{
		ChannelID:      header.ChannelID,
		EncryptionType: header.EncryptionType,
		MessageType:    header.MessageType,
		Payload:        payload,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	a.metrics.messageReceived(header.ChannelID)
	return msg, nil
}

// Pending returns the number of channels with an incomplete split message
func (a *Assembler) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.partial)
}

// Reset drops every partial message
func (a *Assembler) Reset() {
	a.mu.Lock()
	a.partial = make(map[ChannelID]*partialMessage)
	a.mu.Unlock()
}

// ReadMessages reads frames from r until it fails, passing each completed
// message to fn. Malformed frame sequences and short messages are logged and
// skipped; a decode error of the stream itself, or an error from fn, stops the
// loop. A clean end of stream returns nil.
func (a *Assembler) ReadMessages(r io.Reader, fn func(*Message) error) error {
	for {
		frame, err := ReadFrame(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		msg, err := a.Push(frame)
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) || errors.Is(err, ErrMalformedMessage) || errors.Is(err, ErrCryptoFailure) {
				NewLogger("Assembler.ReadMessages").
					WithField("channel", frame.Header.ChannelID.String()).
					WithField("frame_type", frame.Header.FrameType.String()).
					WithError(err, "assemble").
					Warn("Dropping inbound frame")
				continue
			}
			return err
		}
		if msg == nil {
			continue
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}
