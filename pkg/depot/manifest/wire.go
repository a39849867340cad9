package manifest

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// EncodeMode selects how default-valued fields are written.
type EncodeMode int

const (
	// OmitDefaults skips scalar fields holding their zero value.
	OmitDefaults EncodeMode = iota

	// EmitAll writes every field regardless of value.
	EmitAll
)

// String returns the mode name.
func (m EncodeMode) String() string {
	switch m {
	case OmitDefaults:
		return "omit-defaults"
	case EmitAll:
		return "emit-all"
	default:
		return fmt.Sprintf("EncodeMode(%d)", int(m))
	}
}

// encoder appends protobuf wire fields to buf. Nested messages are always
// written; the mode only governs scalar and byte fields.
type encoder struct {
	buf  []byte
	mode EncodeMode
}

func (e *encoder) skip(zero bool) bool {
	return zero && e.mode == OmitDefaults
}

func (e *encoder) uint(num protowire.Number, v uint64) {
	if e.skip(v == 0) {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *encoder) bool(num protowire.Number, v bool) {
	e.uint(num, protowire.EncodeBool(v))
}

func (e *encoder) fixed32(num protowire.Number, v uint32) {
	if e.skip(v == 0) {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, v)
}

func (e *encoder) bytes(num protowire.Number, v []byte) {
	if e.skip(len(v) == 0) {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
}

func (e *encoder) string(num protowire.Number, v string) {
	if e.skip(v == "") {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

func (e *encoder) message(num protowire.Number, body []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, body)
}

// field is one decoded wire field. Only the value matching typ is set.
type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	raw     []byte
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrInvalidSection, f.num, f.typ, typ)
	}
	return nil
}

func (f field) uint() (uint64, error) {
	return f.varint, f.expect(protowire.VarintType)
}

func (f field) uint32() (uint32, error) {
	v, err := f.uint()
	return uint32(v), err
}

func (f field) bool() (bool, error) {
	v, err := f.uint()
	return protowire.DecodeBool(v), err
}

func (f field) fixed() (uint32, error) {
	return f.fixed32, f.expect(protowire.Fixed32Type)
}

// bytes returns a copy of the field so decoded sections never alias the
// caller's buffer.
func (f field) bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return bytes.Clone(f.raw), nil
}

func (f field) string() (string, error) {
	return string(f.raw), f.expect(protowire.BytesType)
}

// message returns the embedded message body without copying.
func (f field) message() ([]byte, error) {
	return f.raw, f.expect(protowire.BytesType)
}

// decodeFields walks the fields of a message body in order. Unknown field
// numbers are passed to fn like any other; fn ignores the ones it does not
// know.
func decodeFields(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidSection, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.Fixed64Type:
			f.fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrInvalidSection, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
