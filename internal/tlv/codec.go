package tlv

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/crypto/cryptobyte"
)

// ErrMalformed is returned when input bytes do not form a valid TLV element.
var ErrMalformed = errors.New("tlv: malformed element")

// Encoder accumulates TLV elements in wire order.
type Encoder struct {
	b *cryptobyte.Builder
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{b: cryptobyte.NewBuilder(nil)}
}

// Bytes returns the encoded output.
func (e *Encoder) Bytes() ([]byte, error) {
	return e.b.Bytes()
}

// WriteVarNumber appends n using the 1, 3, 5 or 9 byte var-number form.
func (e *Encoder) WriteVarNumber(n uint64) {
	switch {
	case n < 253:
		e.b.AddUint8(uint8(n))
	case n <= math.MaxUint16:
		e.b.AddUint8(253)
		e.b.AddUint16(uint16(n))
	case n <= math.MaxUint32:
		e.b.AddUint8(254)
		e.b.AddUint32(uint32(n))
	default:
		e.b.AddUint8(255)
		e.b.AddUint64(n)
	}
}

// WriteBlock appends a complete element with the given value.
func (e *Encoder) WriteBlock(typ uint64, value []byte) {
	e.WriteVarNumber(typ)
	e.WriteVarNumber(uint64(len(value)))
	e.b.AddBytes(value)
}

// WriteRaw appends already-encoded bytes.
func (e *Encoder) WriteRaw(raw []byte) {
	e.b.AddBytes(raw)
}

// WriteNonNegativeInteger appends an element holding n in its shortest
// 1, 2, 4 or 8 byte big-endian form.
func (e *Encoder) WriteNonNegativeInteger(typ uint64, n uint64) {
	e.WriteBlock(typ, nonNegativeInteger(n))
}

// WriteNested appends an element whose value is produced by fn.
func (e *Encoder) WriteNested(typ uint64, fn func(*Encoder) error) error {
	inner := NewEncoder()
	if err := fn(inner); err != nil {
		return err
	}
	value, err := inner.Bytes()
	if err != nil {
		return fmt.Errorf("tlv: encode nested %d: %w", typ, err)
	}
	e.WriteBlock(typ, value)
	return nil
}

func nonNegativeInteger(n uint64) []byte {
	b := cryptobyte.NewBuilder(make([]byte, 0, 8))
	switch {
	case n <= math.MaxUint8:
		b.AddUint8(uint8(n))
	case n <= math.MaxUint16:
		b.AddUint16(uint16(n))
	case n <= math.MaxUint32:
		b.AddUint32(uint32(n))
	default:
		b.AddUint64(n)
	}
	return b.BytesOrPanic()
}

// Decoder reads TLV elements sequentially.
type Decoder struct {
	s cryptobyte.String
}

// NewDecoder returns a decoder over input.
func NewDecoder(input []byte) *Decoder {
	return &Decoder{s: cryptobyte.String(input)}
}

// Empty reports whether all input was consumed.
func (d *Decoder) Empty() bool {
	return d.s.Empty()
}

// ReadVarNumber consumes one var-number.
func (d *Decoder) ReadVarNumber() (uint64, error) {
	return readVarNumber(&d.s)
}

func readVarNumber(s *cryptobyte.String) (uint64, error) {
	var first uint8
	if !s.ReadUint8(&first) {
		return 0, ErrMalformed
	}
	switch first {
	case 253:
		var v uint16
		if !s.ReadUint16(&v) {
			return 0, ErrMalformed
		}
		return uint64(v), nil
	case 254:
		var v uint32
		if !s.ReadUint32(&v) {
			return 0, ErrMalformed
		}
		return uint64(v), nil
	case 255:
		var v uint64
		if !s.ReadUint64(&v) {
			return 0, ErrMalformed
		}
		return v, nil
	default:
		return uint64(first), nil
	}
}

// PeekType returns the type of the next element without consuming it.
func (d *Decoder) PeekType() (uint64, bool) {
	probe := d.s
	typ, err := readVarNumber(&probe)
	if err != nil {
		return 0, false
	}
	return typ, true
}

// ReadElement consumes the next element and returns its type, value and the
// raw bytes of the whole element.
func (d *Decoder) ReadElement() (uint64, []byte, []byte, error) {
	start := d.s
	typ, err := readVarNumber(&d.s)
	if err != nil {
		return 0, nil, nil, err
	}
	length, err := readVarNumber(&d.s)
	if err != nil {
		return 0, nil, nil, err
	}
	if length > uint64(len(d.s)) {
		return 0, nil, nil, fmt.Errorf("%w: length %d exceeds remaining %d", ErrMalformed, length, len(d.s))
	}
	var value []byte
	if !d.s.ReadBytes(&value, int(length)) {
		return 0, nil, nil, ErrMalformed
	}
	consumed := len(start) - len(d.s)
	return typ, value, []byte(start[:consumed]), nil
}

// ReadBlock consumes the next element and requires it to have type typ.
func (d *Decoder) ReadBlock(typ uint64) ([]byte, error) {
	got, value, _, err := d.ReadElement()
	if err != nil {
		return nil, err
	}
	if got != typ {
		return nil, fmt.Errorf("%w: expected type %d, got %d", ErrMalformed, typ, got)
	}
	return value, nil
}

// ReadOptionalBlock consumes the next element only when it has type typ.
func (d *Decoder) ReadOptionalBlock(typ uint64) ([]byte, bool, error) {
	next, ok := d.PeekType()
	if !ok || next != typ {
		return nil, false, nil
	}
	value, err := d.ReadBlock(typ)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ReadNonNegativeInteger consumes an element of type typ holding an integer.
func (d *Decoder) ReadNonNegativeInteger(typ uint64) (uint64, error) {
	value, err := d.ReadBlock(typ)
	if err != nil {
		return 0, err
	}
	return DecodeNonNegativeInteger(value)
}

// ReadOptionalNonNegativeInteger is ReadNonNegativeInteger for optional fields.
func (d *Decoder) ReadOptionalNonNegativeInteger(typ uint64) (uint64, bool, error) {
	value, ok, err := d.ReadOptionalBlock(typ)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := DecodeNonNegativeInteger(value)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// DecodeNonNegativeInteger parses a 1, 2, 4 or 8 byte big-endian integer.
func DecodeNonNegativeInteger(value []byte) (uint64, error) {
	s := cryptobyte.String(value)
	switch len(value) {
	case 1:
		var v uint8
		s.ReadUint8(&v)
		return uint64(v), nil
	case 2:
		var v uint16
		s.ReadUint16(&v)
		return uint64(v), nil
	case 4:
		var v uint32
		s.ReadUint32(&v)
		return uint64(v), nil
	case 8:
		var v uint64
		s.ReadUint64(&v)
		return v, nil
	default:
		return 0, fmt.Errorf("%w: non-negative integer of %d bytes", ErrMalformed, len(value))
	}
}
