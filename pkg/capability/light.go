package capability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// DefaultRatedPower is the power of a simulated light at full brightness.
const DefaultRatedPower = 9.0

// SimulatedLight is an in-memory dimmable light.
type SimulatedLight struct {
	mu         sync.RWMutex
	on         bool
	brightness float64
	ratedPower float64
	onChange   func(on bool, brightness float64)
}

// NewSimulatedLight returns a light that is off at full brightness.
func NewSimulatedLight(ratedPower float64) *SimulatedLight {
	if ratedPower <= 0 {
		ratedPower = DefaultRatedPower
	}
	return &SimulatedLight{brightness: 1, ratedPower: ratedPower}
}

// OnChange sets a callback invoked after every state change.
func (l *SimulatedLight) OnChange(fn func(on bool, brightness float64)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = fn
}

func (l *SimulatedLight) SetOn(_ context.Context, on bool) error {
	l.mu.Lock()
	l.on = on
	fn, b := l.onChange, l.brightness
	l.mu.Unlock()
	if fn != nil {
		fn(on, b)
	}
	return nil
}

func (l *SimulatedLight) IsOn(context.Context) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.on, nil
}

func (l *SimulatedLight) SetBrightness(_ context.Context, level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("%w: brightness %g", ErrOutOfRange, level)
	}
	l.mu.Lock()
	l.brightness = level
	fn, on := l.onChange, l.on
	l.mu.Unlock()
	if fn != nil {
		fn(on, level)
	}
	return nil
}

func (l *SimulatedLight) Brightness(context.Context) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.brightness, nil
}

// Power is the rated power scaled by brightness while on, else zero.
func (l *SimulatedLight) Power(context.Context) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.on {
		return 0, nil
	}
	return l.ratedPower * l.brightness, nil
}

func (l *SimulatedLight) Fields() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return map[string]string{
		"on":         strconv.FormatBool(l.on),
		"brightness": strconv.FormatFloat(l.brightness, 'g', -1, 64),
	}
}

// Restore applies saved fields. Missing fields keep their value.
func (l *SimulatedLight) Restore(fields map[string]string) error {
	l.mu.RLock()
	on, brightness := l.on, l.brightness
	l.mu.RUnlock()
	if s, ok := fields["on"]; ok {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("field on: %w", err)
		}
		on = v
	}
	if s, ok := fields["brightness"]; ok {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("field brightness: %w", err)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: brightness %g", ErrOutOfRange, v)
		}
		brightness = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.on, l.brightness = on, brightness
	return nil
}
