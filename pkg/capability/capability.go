// Package capability defines the hardware operations route handlers call
// and simulated drivers that implement them on a host OS.
package capability

import (
	"context"
	"errors"

	"github.com/tosca-iot/tosca-go/pkg/value"
)

// Errors.
var (
	ErrOutOfRange = errors.New("value out of range")
	ErrNoReading  = errors.New("sensor returned no reading")
)

// Switch is an on/off actuator.
type Switch interface {
	SetOn(ctx context.Context, on bool) error
	IsOn(ctx context.Context) (bool, error)
}

// Dimmer is a switch with a brightness level in [0, 1].
type Dimmer interface {
	Switch
	SetBrightness(ctx context.Context, level float64) error
	Brightness(ctx context.Context) (float64, error)
}

// PowerMeter reports the current electrical power draw in watts.
type PowerMeter interface {
	Power(ctx context.Context) (float64, error)
}

// Sensor produces readings of one kind.
type Sensor interface {
	Read(ctx context.Context) (value.Value, error)
	Kind() value.Kind
	Unit() string
}

// Stateful drivers can save and restore their state as text fields.
type Stateful interface {
	Fields() map[string]string
	Restore(fields map[string]string) error
}
