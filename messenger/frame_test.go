package messenger

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/headunit/limits"
)

func TestFrameHeaderFlags(t *testing.T) {
	tests := []struct {
		name   string
		header FrameHeader
		want   []byte
	}{
		{"plain specific bulk", FrameHeader{ChannelMediaSinkVideo, FrameBulk, MessageSpecific, EncryptionPlain}, []byte{0x03, 0x03}},
		{"encrypted control bulk", FrameHeader{ChannelControl, FrameBulk, MessageControl, EncryptionEncrypted}, []byte{0x00, 0x0f}},
		{"first", FrameHeader{ChannelSensor, FrameFirst, MessageSpecific, EncryptionPlain}, []byte{0x01, 0x01}},
		{"middle encrypted", FrameHeader{ChannelInputSource, FrameMiddle, MessageSpecific, EncryptionEncrypted}, []byte{0x08, 0x08}},
		{"last control", FrameHeader{ChannelBluetooth, FrameLast, MessageControl, EncryptionPlain}, []byte{0x0a, 0x06}},
		{"none channel", FrameHeader{ChannelNone, FrameBulk, MessageSpecific, EncryptionPlain}, []byte{0xff, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.header.Bytes())
			decoded, err := DecodeFrameHeader(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.header, decoded)
		})
	}
}

func TestDecodeFrameHeaderShort(t *testing.T) {
	_, err := DecodeFrameHeader([]byte{0x01})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestFrameSizeEncoding(t *testing.T) {
	short := FrameSize{Type: FrameSizeShort, PayloadSize: 0x1234}
	assert.Equal(t, []byte{0x12, 0x34}, short.Bytes())

	ext := FrameSize{Type: FrameSizeExtended, TotalSize: 0x00010002, PayloadSize: 0x4000}
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x00, 0x40, 0x00}, ext.Bytes())

	decoded, err := DecodeFrameSize(ext.Bytes(), FrameFirst)
	require.NoError(t, err)
	assert.Equal(t, ext, decoded)

	_, err = DecodeFrameSize([]byte{0, 0, 0}, FrameFirst)
	assert.ErrorIs(t, err, ErrIncompleteFrame)
	_, err = DecodeFrameSize([]byte{0}, FrameLast)
	assert.ErrorIs(t, err, ErrIncompleteFrame)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		header  FrameHeader
		payload []byte
		total   uint32
	}{
		{"bulk", FrameHeader{ChannelSensor, FrameBulk, MessageSpecific, EncryptionPlain}, []byte{0x80, 0x03, 1, 2, 3}, 0},
		{"first", FrameHeader{ChannelMediaSinkVideo, FrameFirst, MessageSpecific, EncryptionEncrypted}, bytes.Repeat([]byte{7}, 100), 5000},
		{"empty last", FrameHeader{ChannelMediaSinkVideo, FrameLast, MessageSpecific, EncryptionPlain}, nil, 0},
		{"full middle", FrameHeader{ChannelMediaSinkVideo, FrameMiddle, MessageSpecific, EncryptionPlain}, make([]byte, limits.MaxFramePayloadSize), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeFrame(tt.header, tt.payload, tt.total)
			require.NoError(t, err)

			frame, n, err := DecodeFrame(data)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, tt.header, frame.Header)
			assert.Equal(t, len(tt.payload), len(frame.Payload))
			if len(tt.payload) > 0 {
				assert.Equal(t, tt.payload, frame.Payload)
			}
			if tt.header.FrameType == FrameFirst {
				assert.Equal(t, FrameSizeExtended, frame.Size.Type)
				assert.Equal(t, tt.total, frame.Size.TotalSize)
			} else {
				assert.Equal(t, FrameSizeShort, frame.Size.Type)
			}

			streamed, err := ReadFrame(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, frame.Header, streamed.Header)
			assert.Equal(t, frame.Size, streamed.Size)
		})
	}
}

func TestEncodeFrameWireLayout(t *testing.T) {
	data, err := EncodeFrame(FrameHeader{ChannelSensor, FrameFirst, MessageSpecific, EncryptionPlain}, []byte{0xaa, 0xbb}, 20000)
	require.NoError(t, err)
	want := []byte{
		0x01, 0x01, // channel, FIRST
		0x00, 0x00, 0x4e, 0x20, // total 20000
		0x00, 0x00, 0x00, 0x02, // chunk 2
		0xaa, 0xbb,
	}
	assert.Equal(t, want, data)
}

func TestEncodeFrameTooLarge(t *testing.T) {
	_, err := EncodeFrame(FrameHeader{FrameType: FrameBulk}, make([]byte, limits.MaxWirePayloadSize+1), 0)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

// Record ciphers grow a full chunk by more than a bare AEAD tag
func TestSealedChunkOverheadRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		frameType FrameType
		overhead  int
	}{
		{"aead tag on first", FrameFirst, limits.EncryptionOverhead},
		{"tls record on first", FrameFirst, 29},
		{"tls record on middle", FrameMiddle, 29},
		{"tls record on last", FrameLast, 29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := bytes.Repeat([]byte{0x5a}, limits.MaxFramePayloadSize+tt.overhead)
			header := FrameHeader{ChannelMediaSinkVideo, tt.frameType, MessageSpecific, EncryptionEncrypted}

			data, err := EncodeFrame(header, payload, 3*uint32(len(payload)))
			require.NoError(t, err)

			f, n, err := DecodeFrame(data)
			require.NoError(t, err)
			assert.Equal(t, len(data), n)
			assert.Equal(t, payload, f.Payload)

			f, err = ReadFrame(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, len(payload), len(f.Payload))
		})
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	data, err := EncodeFrame(FrameHeader{ChannelSensor, FrameBulk, MessageSpecific, EncryptionPlain}, []byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)

	for cut := 0; cut < len(data); cut++ {
		_, _, err := DecodeFrame(data[:cut])
		assert.ErrorIs(t, err, ErrIncompleteFrame, "cut at %d", cut)
	}
}

func TestDecodeFrameOversizedPayload(t *testing.T) {
	// FIRST frame announcing a 65536 byte chunk, one past the wire limit
	data := []byte{0x01, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}
	_, _, err := DecodeFrame(data)
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = ReadFrame(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestReadFrameEOF(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, io.EOF))

	_, err = ReadFrame(bytes.NewReader([]byte{0x01, 0x03, 0x00, 0x05, 1}))
	assert.ErrorIs(t, err, ErrIncompleteFrame)
}

func TestPlanChunks(t *testing.T) {
	limit := limits.MaxFramePayloadSize
	tests := []struct {
		name   string
		length int
		want   []Chunk
	}{
		{"empty", 0, []Chunk{{FrameBulk, 0, 0}}},
		{"small", 100, []Chunk{{FrameBulk, 0, 100}}},
		{"one below threshold", limit - 1, []Chunk{{FrameBulk, 0, limit - 1}}},
		{"exact threshold", limit, []Chunk{{FrameFirst, 0, limit}, {FrameLast, limit, 0}}},
		{"threshold plus one", limit + 1, []Chunk{{FrameFirst, 0, limit}, {FrameLast, limit, 1}}},
		{"two full chunks", 2 * limit, []Chunk{{FrameFirst, 0, limit}, {FrameLast, limit, limit}}},
		{"two full chunks plus one", 2*limit + 1, []Chunk{{FrameFirst, 0, limit}, {FrameMiddle, limit, limit}, {FrameLast, 2 * limit, 1}}},
		{"four chunks", 3*limit + 10, []Chunk{{FrameFirst, 0, limit}, {FrameMiddle, limit, limit}, {FrameMiddle, 2 * limit, limit}, {FrameLast, 3 * limit, 10}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanChunks(tt.length)
			assert.Equal(t, tt.want, got)

			sum := 0
			for _, c := range got {
				assert.LessOrEqual(t, c.Size, limit)
				sum += c.Size
			}
			assert.Equal(t, tt.length, sum)
		})
	}
}

func TestMessageID(t *testing.T) {
	msg := NewMessage(ChannelSensor, EncryptionPlain, MessageSpecific, 0x8003, []byte{9, 9})
	assert.Equal(t, []byte{0x80, 0x03, 9, 9}, msg.Payload)

	id, err := msg.ID()
	require.NoError(t, err)
	assert.Equal(t, MessageID(0x8003), id)
	assert.Equal(t, []byte{9, 9}, msg.Body())

	empty := NewMessage(ChannelSensor, EncryptionPlain, MessageSpecific, 7, nil)
	assert.NoError(t, empty.Validate(), "id without body is valid")
	assert.Empty(t, empty.Body())

	short := &Message{ChannelID: ChannelSensor, Payload: []byte{0x80}}
	_, err = short.ID()
	assert.ErrorIs(t, err, ErrMalformedMessage)
	assert.ErrorIs(t, err, limits.ErrMessageTooShort)
	assert.Nil(t, short.Body())
}

func TestChannelIDString(t *testing.T) {
	assert.Equal(t, "MEDIA_SINK_VIDEO", ChannelMediaSinkVideo.String())
	assert.Equal(t, "WIFI_PROJECTION", ChannelWifiProjection.String())
	assert.Equal(t, "NONE", ChannelNone.String())
	assert.Equal(t, "CHANNEL_42", ChannelID(42).String())
	assert.Equal(t, ChannelID(18), ChannelWifiProjection)
	assert.False(t, ChannelID(42).Known())
}

func TestTimestamp(t *testing.T) {
	ts := Timestamp(0x0102030405060708)
	data := PrependTimestamp(ts, []byte{0xee})
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 0xee}, data)

	got, rest, err := SplitTimestamp(data)
	require.NoError(t, err)
	assert.Equal(t, ts, got)
	assert.Equal(t, []byte{0xee}, rest)

	_, _, err = SplitTimestamp([]byte{1, 2})
	assert.ErrorIs(t, err, ErrMalformedMessage)
}
