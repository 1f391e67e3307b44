package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Errors.
var (
	ErrBrokerDisconnected = errors.New("broker disconnected")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrInvalidEvent       = errors.New("invalid event")
	ErrInvalidInterval    = errors.New("invalid event interval")
)

// MinInterval is the shortest period accepted by RunPeriodic.
const MinInterval = 100 * time.Millisecond

// Event is one device notification.
type Event struct {
	Device    string      `cbor:"1,keyasint"`
	Epoch     int64       `cbor:"2,keyasint"`
	Seq       uint64      `cbor:"3,keyasint"`
	Timestamp time.Time   `cbor:"4,keyasint"`
	Name      string      `cbor:"5,keyasint"`
	Payload   value.Value `cbor:"6,keyasint"`
}

// After reports whether e is newer than o in publication order.
func (e Event) After(o Event) bool {
	if e.Epoch != o.Epoch {
		return e.Epoch > o.Epoch
	}
	return e.Seq > o.Seq
}

// Validate checks the mandatory fields.
func (e Event) Validate() error {
	switch {
	case e.Device == "":
		return fmt.Errorf("%w: empty device", ErrInvalidEvent)
	case e.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidEvent)
	case !e.Payload.IsValid():
		return fmt.Errorf("%w: invalid payload", ErrInvalidEvent)
	}
	return nil
}

// Encode returns the wire form of e.
func (e Event) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return wire.Marshal(e)
}

// Decode parses and validates an event.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := wire.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
