package value

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create value CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create value CBOR decoder mode: %v", err))
	}
}

// envelope is the self-describing wire form: a two element array of tag and payload.
type envelope struct {
	_       struct{} `cbor:",toarray"`
	Tag     Kind
	Payload cbor.RawMessage
}

type chunkPayload struct {
	_    struct{} `cbor:",toarray"`
	Seq  uint32
	Data []byte
	Last bool
}

// Marshal encodes v in its self-describing wire form.
func Marshal(v Value) ([]byte, error) {
	return v.MarshalCBOR()
}

// Unmarshal decodes a value from its wire form.
func Unmarshal(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalCBOR(data); err != nil {
		return Value{}, err
	}
	return v, nil
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindBool:
		payload = v.b
	case KindInt:
		payload = v.i
	case KindFloat:
		payload = v.f
	case KindText:
		payload = v.s
	case KindBytes:
		payload = v.raw
		if v.raw == nil {
			payload = []byte{}
		}
	case KindChunk:
		payload = chunkPayload{Seq: v.seq, Data: v.raw, Last: v.last}
	default:
		return nil, fmt.Errorf("%w: cannot encode invalid value", ErrMalformed)
	}

	raw, err := encMode.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(envelope{Tag: v.kind, Payload: raw})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}

	switch env.Tag {
	case KindBool:
		var b bool
		if err := decMode.Unmarshal(env.Payload, &b); err != nil {
			return payloadError(env.Tag, err)
		}
		*v = Bool(b)
	case KindInt:
		var i int64
		if err := decMode.Unmarshal(env.Payload, &i); err != nil {
			return payloadError(env.Tag, err)
		}
		*v = Int(i)
	case KindFloat:
		var f float64
		if err := decMode.Unmarshal(env.Payload, &f); err != nil {
			return payloadError(env.Tag, err)
		}
		*v = Float(f)
	case KindText:
		var s string
		if err := decMode.Unmarshal(env.Payload, &s); err != nil {
			return payloadError(env.Tag, err)
		}
		text, err := Text(s)
		if err != nil {
			return err
		}
		*v = text
	case KindBytes:
		var b []byte
		if err := decMode.Unmarshal(env.Payload, &b); err != nil {
			return payloadError(env.Tag, err)
		}
		bv, err := Bytes(b)
		if err != nil {
			return err
		}
		*v = bv
	case KindChunk:
		var c chunkPayload
		if err := decMode.Unmarshal(env.Payload, &c); err != nil {
			return payloadError(env.Tag, err)
		}
		cv, err := NewChunk(Chunk{Seq: c.Seq, Data: c.Data, Last: c.Last})
		if err != nil {
			return err
		}
		*v = cv
	default:
		return fmt.Errorf("%w: tag %d", ErrUnknownKind, env.Tag)
	}
	return nil
}

func payloadError(k Kind, err error) error {
	return fmt.Errorf("%w: %s payload: %v", ErrMalformed, k, err)
}
