package value

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	chunk, err := NewChunk(Chunk{Seq: 7, Data: []byte{0xde, 0xad}, Last: true})
	require.NoError(t, err)

	tests := []struct {
		name string
		v    Value
	}{
		{"BoolTrue", Bool(true)},
		{"BoolFalse", Bool(false)},
		{"IntZero", Int(0)},
		{"IntNegative", Int(-42)},
		{"IntMax", Int(math.MaxInt64)},
		{"IntMin", Int(math.MinInt64)},
		{"Float", Float(4.0)},
		{"FloatFraction", Float(-0.125)},
		{"FloatNaN", Float(math.NaN())},
		{"TextEmpty", MustText("")},
		{"Text", MustText("living room")},
		{"BytesEmpty", Zero(KindBytes)},
		{"Chunk", chunk},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.v)
			require.NoError(t, err)

			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.True(t, tt.v.Equal(got), "got %v, want %v", got, tt.v)
			assert.Equal(t, tt.v.Kind(), got.Kind())
		})
	}
}

func TestMarshalIsSelfDescribing(t *testing.T) {
	data, err := Marshal(Bool(true))
	require.NoError(t, err)

	// [1, true]
	assert.Equal(t, []byte{0x82, 0x01, 0xf5}, data)
}

func TestMarshalInvalid(t *testing.T) {
	_, err := Marshal(Value{})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestUnmarshalRejectsMismatchedPayload(t *testing.T) {
	// [2, "x"]: int tag with a text payload.
	_, err := Unmarshal([]byte{0x82, 0x02, 0x61, 'x'})
	assert.ErrorIs(t, err, ErrMalformed)

	// [9, true]: unknown tag.
	_, err = Unmarshal([]byte{0x82, 0x09, 0xf5})
	assert.ErrorIs(t, err, ErrUnknownKind)

	// Not an array.
	_, err = Unmarshal([]byte{0xf5})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTextRejectsInvalidUTF8(t *testing.T) {
	_, err := Text("\xff\xfe")
	assert.ErrorIs(t, err, ErrMalformed)

	v, err := Text("Küche")
	require.NoError(t, err)
	data, err := Marshal(v)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, v.Equal(got))
}

func TestPayloadLimit(t *testing.T) {
	_, err := Text(strings.Repeat("a", MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = Bytes(make([]byte, MaxPayloadSize+1))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = NewChunk(Chunk{Data: make([]byte, MaxPayloadSize+1)})
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	v, err := Text(strings.Repeat("a", MaxPayloadSize))
	require.NoError(t, err)
	assert.Equal(t, KindText, v.Kind())
}

func TestParse(t *testing.T) {
	tests := []struct {
		kind    Kind
		in      string
		want    Value
		wantErr bool
	}{
		{KindBool, "true", Bool(true), false},
		{KindBool, "false", Bool(false), false},
		{KindBool, "maybe", Value{}, true},
		{KindInt, "-12", Int(-12), false},
		{KindInt, "4.0", Value{}, true},
		{KindFloat, "4.0", Float(4), false},
		{KindFloat, "x", Value{}, true},
		{KindText, "hello", MustText("hello"), false},
		{KindText, "\xff\xfe", Value{}, true},
		{KindBytes, "cafe", mustBytes(t, []byte{0xca, 0xfe}), false},
		{KindBytes, "zz", Value{}, true},
		{KindChunk, "00", Value{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String()+"/"+tt.in, func(t *testing.T) {
			got, err := Parse(tt.kind, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestAccessors(t *testing.T) {
	b, ok := Bool(true).Bool()
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = Int(1).Bool()
	assert.False(t, ok)

	f, ok := Int(3).Float()
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	raw := []byte{1, 2, 3}
	v, err := Bytes(raw)
	require.NoError(t, err)
	raw[0] = 9
	got, _ := v.Bytes()
	assert.Equal(t, []byte{1, 2, 3}, got, "Bytes must copy its input")
}

func TestKindHelpers(t *testing.T) {
	assert.False(t, KindInvalid.IsValid())
	assert.True(t, KindChunk.IsValid())
	assert.False(t, KindChunk.IsScalar())
	assert.True(t, KindFloat.IsNumeric())
	assert.False(t, KindText.IsNumeric())

	k, err := ParseKind("float")
	require.NoError(t, err)
	assert.Equal(t, KindFloat, k)

	_, err = ParseKind("decimal")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func mustBytes(t *testing.T, b []byte) Value {
	t.Helper()
	v, err := Bytes(b)
	require.NoError(t, err)
	return v
}
