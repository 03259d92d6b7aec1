package messenger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/opd-ai/headunit/limits"
)

// Timestamp is a media timestamp in microseconds
type Timestamp uint64

// TimestampFromTime converts t to microseconds since the Unix epoch
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}

// Bytes returns the 8-byte big-endian wire form
func (ts Timestamp) Bytes() []byte {
	b := make([]byte, limits.TimestampSize)
	binary.BigEndian.PutUint64(b, uint64(ts))
	return b
}

// PrependTimestamp returns ts followed by data
func PrependTimestamp(ts Timestamp, data []byte) []byte {
	out := make([]byte, 0, limits.TimestampSize+len(data))
	out = append(out, ts.Bytes()...)
	return append(out, data...)
}

// SplitTimestamp splits an 8-byte timestamp prefix from data
func SplitTimestamp(data []byte) (Timestamp, []byte, error) {
	if len(data) < limits.TimestampSize {
		return 0, nil, fmt.Errorf("%w: timestamp needs %d bytes, have %d", ErrMalformedMessage, limits.TimestampSize, len(data))
	}
	return Timestamp(binary.BigEndian.Uint64(data)), data[limits.TimestampSize:], nil
}
