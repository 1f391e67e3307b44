package value

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"
)

// MaxPayloadSize bounds text, byte and chunk payloads.
const MaxPayloadSize = 4096

// Kind is the tag of a Value.
type Kind uint8

// Value kinds. The numeric values are the wire tags.
const (
	KindInvalid Kind = 0
	KindBool    Kind = 1
	KindInt     Kind = 2
	KindFloat   Kind = 3
	KindText    Kind = 4
	KindBytes   Kind = 5
	KindChunk   Kind = 6
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindChunk:
		return "chunk"
	default:
		return "invalid"
	}
}

// IsValid reports whether k names a known kind.
func (k Kind) IsValid() bool {
	return k >= KindBool && k <= KindChunk
}

// IsScalar reports whether k can be used as a parameter kind.
func (k Kind) IsScalar() bool {
	return k >= KindBool && k <= KindBytes
}

// IsNumeric reports whether k is int or float.
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseKind parses a kind name as returned by String.
func ParseKind(s string) (Kind, error) {
	for k := KindBool; k <= KindChunk; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Errors returned by constructors and the codec.
var (
	ErrPayloadTooLarge = errors.New("value payload too large")
	ErrUnknownKind     = errors.New("unknown value kind")
	ErrMalformed       = errors.New("malformed value")
	ErrKindMismatch    = errors.New("value kind mismatch")
)

// Chunk is one piece of a binary stream.
type Chunk struct {
	Seq  uint32
	Data []byte
	Last bool
}

// Value is a closed sum of the types a route can take as parameter or return
// as payload. The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte
	seq  uint32
	last bool
}

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a text value. Text longer than MaxPayloadSize or not valid
// UTF-8 is rejected.
func Text(s string) (Value, error) {
	if len(s) > MaxPayloadSize {
		return Value{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(s))
	}
	if !utf8.ValidString(s) {
		return Value{}, fmt.Errorf("%w: text is not valid UTF-8", ErrMalformed)
	}
	return Value{kind: KindText, s: s}, nil
}

// MustText is like Text but panics on invalid input. Use for literals.
func MustText(s string) Value {
	v, err := Text(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Bytes returns a byte sequence value. The slice is copied.
func Bytes(b []byte) (Value, error) {
	if len(b) > MaxPayloadSize {
		return Value{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(b))
	}
	return Value{kind: KindBytes, raw: bytes.Clone(b)}, nil
}

// NewChunk returns a stream chunk value. The data is copied.
func NewChunk(c Chunk) (Value, error) {
	if len(c.Data) > MaxPayloadSize {
		return Value{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(c.Data))
	}
	return Value{kind: KindChunk, raw: bytes.Clone(c.Data), seq: c.Seq, last: c.Last}, nil
}

// Zero returns the zero value of a scalar kind.
func Zero(k Kind) Value {
	switch k {
	case KindBool:
		return Bool(false)
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindText:
		return Value{kind: KindText}
	case KindBytes:
		return Value{kind: KindBytes, raw: []byte{}}
	default:
		return Value{}
	}
}

// Kind returns the tag of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind.IsValid() }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the integer payload.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }

// Float returns the float payload. Integers are widened.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Text returns the text payload.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }

// Bytes returns a copy of the byte payload.
func (v Value) Bytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return bytes.Clone(v.raw), true
}

// Chunk returns the stream chunk payload.
func (v Value) Chunk() (Chunk, bool) {
	if v.kind != KindChunk {
		return Chunk{}, false
	}
	return Chunk{Seq: v.seq, Data: bytes.Clone(v.raw), Last: v.last}, true
}

// Equal reports whether two values have the same kind and payload.
// NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		if math.IsNaN(v.f) && math.IsNaN(o.f) {
			return true
		}
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindChunk:
		return v.seq == o.seq && v.last == o.last && bytes.Equal(v.raw, o.raw)
	default:
		return true
	}
}

// String renders v for humans.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBytes:
		return hex.EncodeToString(v.raw)
	case KindChunk:
		return fmt.Sprintf("chunk#%d(%d bytes, last=%t)", v.seq, len(v.raw), v.last)
	default:
		return "<invalid>"
	}
}

// Parse converts the textual form of a parameter into a value of kind k.
// It is used for path segments and query strings.
func Parse(k Kind, s string) (Value, error) {
	switch k {
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a bool", ErrMalformed, s)
		}
		return Bool(b), nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not an int", ErrMalformed, s)
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a float", ErrMalformed, s)
		}
		return Float(f), nil
	case KindText:
		return Text(s)
	case KindBytes:
		b, err := hex.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not hex", ErrMalformed, s)
		}
		return Bytes(b)
	default:
		return Value{}, fmt.Errorf("%w: cannot parse %s from text", ErrKindMismatch, k)
	}
}
