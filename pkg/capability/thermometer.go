package capability

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/value"
)

// Resolution is the step of thermometer readings in degrees Celsius, as
// reported by 12-bit one-wire sensors.
const Resolution = 0.0625

// DefaultHistorySize is the number of readings a thermometer keeps.
const DefaultHistorySize = 256

// Reading is one timestamped temperature.
type Reading struct {
	At      time.Time
	Celsius float64
}

// SimulatedThermometer produces temperatures that wander around a base
// value.
type SimulatedThermometer struct {
	mu      sync.Mutex
	base    float64
	current float64
	drift   float64
	fault   error
	history []Reading
	size    int
	rnd     *rand.Rand
	now     func() time.Time
}

// NewSimulatedThermometer starts at base degrees. Each reading moves by at
// most drift degrees.
func NewSimulatedThermometer(base, drift float64) *SimulatedThermometer {
	return &SimulatedThermometer{
		base:    base,
		current: base,
		drift:   drift,
		size:    DefaultHistorySize,
		rnd:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)), // #nosec G404 -- simulation only
		now:     time.Now,
	}
}

// SetFault makes subsequent reads fail with err. Nil clears the fault.
func (t *SimulatedThermometer) SetFault(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fault = err
}

// Read returns the next temperature, quantized to Resolution.
func (t *SimulatedThermometer) Read(ctx context.Context) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fault != nil {
		return value.Value{}, t.fault
	}

	step := (t.rnd.Float64()*2 - 1) * t.drift
	// Pull back towards the base so the walk stays bounded.
	t.current += step - (t.current-t.base)*0.1
	c := math.Round(t.current/Resolution) * Resolution

	t.history = append(t.history, Reading{At: t.now(), Celsius: c})
	if len(t.history) > t.size {
		t.history = t.history[len(t.history)-t.size:]
	}
	return value.Float(c), nil
}

func (t *SimulatedThermometer) Kind() value.Kind { return value.KindFloat }

func (t *SimulatedThermometer) Unit() string { return "°C" }

// History returns the kept readings, oldest first.
func (t *SimulatedThermometer) History() []Reading {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Reading(nil), t.history...)
}
