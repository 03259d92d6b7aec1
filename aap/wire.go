// Package aap encodes and decodes the protobuf messages the head unit exchanges
// with the phone. Messages are written field by field with protowire, so only
// the fields the handlers use are modeled; unknown fields are skipped on decode.
package aap

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidWire indicates bytes that are not a well-formed protobuf message
var ErrInvalidWire = errors.New("invalid protobuf wire data")

type encoder struct {
	b []byte
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, v)
}

func (e *encoder) int32(num protowire.Number, v int32) {
	e.varint(num, uint64(int64(v)))
}

func (e *encoder) boolean(num protowire.Number, v bool) {
	e.varint(num, protowire.EncodeBool(v))
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, v)
}

func (e *encoder) str(num protowire.Number, v string) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

// field is one decoded protobuf field
type field struct {
	num   protowire.Number
	typ   protowire.Type
	value uint64
	data  []byte
}

func (f field) int32() int32 { return int32(f.value) }
func (f field) bool() bool   { return protowire.DecodeBool(f.value) }

// walk decodes the fields of b in order and calls fn for each
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrInvalidWire, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.value, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.value = uint64(v)
		case protowire.Fixed64Type:
			f.value, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.data, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrInvalidWire, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports whether b is a well-formed protobuf message
func Validate(b []byte) error {
	return walk(b, func(field) error { return nil })
}

// FieldCount returns the number of top-level fields in b
func FieldCount(b []byte) (int, error) {
	count := 0
	err := walk(b, func(field) error {
		count++
		return nil
	})
	return count, err
}
