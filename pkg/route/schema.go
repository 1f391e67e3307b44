package route

import (
	"fmt"
	"math"

	"github.com/tosca-iot/tosca-go/pkg/value"
)

// Parameter describes one input of a route.
type Parameter struct {
	Name     string
	Kind     value.Kind
	Required bool

	// Default is sent by controllers issuing a plain request. Required
	// parameters must have one; optional parameters fall back to the zero
	// value of their kind.
	Default value.Value

	// Min and Max bound numeric parameters, inclusive.
	Min *float64
	Max *float64

	// Step restricts numeric parameters to Min + k*Step (0 + k*Step
	// without Min).
	Step *float64

	Description string
}

// Schema is the ordered parameter list of a route. Order defines positional
// binding.
type Schema []Parameter

// BoolParam returns a required boolean parameter.
func BoolParam(name string, def bool) Parameter {
	return Parameter{Name: name, Kind: value.KindBool, Required: true, Default: value.Bool(def)}
}

// IntParam returns a required integer parameter.
func IntParam(name string, def int64) Parameter {
	return Parameter{Name: name, Kind: value.KindInt, Required: true, Default: value.Int(def)}
}

// FloatParam returns a required float parameter.
func FloatParam(name string, def float64) Parameter {
	return Parameter{Name: name, Kind: value.KindFloat, Required: true, Default: value.Float(def)}
}

// TextParam returns a required text parameter.
func TextParam(name, def string) Parameter {
	return Parameter{Name: name, Kind: value.KindText, Required: true, Default: value.MustText(def)}
}

// Optional returns a copy of p that is not required.
func (p Parameter) Optional() Parameter {
	p.Required = false
	return p
}

// Range returns a copy of p bounded to [lo, hi].
func (p Parameter) Range(lo, hi float64) Parameter {
	p.Min = &lo
	p.Max = &hi
	return p
}

// Stepped returns a copy of p restricted to multiples of step.
func (p Parameter) Stepped(step float64) Parameter {
	p.Step = &step
	return p
}

// Describe returns a copy of p with a description.
func (p Parameter) Describe(d string) Parameter {
	p.Description = d
	return p
}

// Check reports whether v is acceptable for p: same kind and within range.
func (p Parameter) Check(v value.Value) error {
	if v.Kind() != p.Kind {
		return fmt.Errorf("parameter %q: %w: want %s, got %s", p.Name, value.ErrKindMismatch, p.Kind, v.Kind())
	}
	if p.Min == nil && p.Max == nil && p.Step == nil {
		return nil
	}
	f, _ := v.Float()
	if p.Min != nil && f < *p.Min {
		return fmt.Errorf("parameter %q: %w: %v < %v", p.Name, ErrOutOfRange, f, *p.Min)
	}
	if p.Max != nil && f > *p.Max {
		return fmt.Errorf("parameter %q: %w: %v > %v", p.Name, ErrOutOfRange, f, *p.Max)
	}
	if p.Step != nil && !onStep(f, p.Min, *p.Step) {
		return fmt.Errorf("parameter %q: %w: %v is not a step of %v", p.Name, ErrOutOfRange, f, *p.Step)
	}
	return nil
}

// stepTolerance absorbs float rounding in decimal steps such as 0.1.
const stepTolerance = 1e-9

func onStep(f float64, lo *float64, step float64) bool {
	base := 0.0
	if lo != nil {
		base = *lo
	}
	n := (f - base) / step
	return math.Abs(n-math.Round(n)) <= stepTolerance*math.Max(1, math.Abs(n))
}

// normalize validates the schema and returns a copy in which every parameter
// has a default.
func (s Schema) normalize() (Schema, error) {
	out := make(Schema, len(s))
	seen := make(map[string]bool, len(s))
	for i, p := range s {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: parameter %d has no name", ErrInvalidSchema, i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidSchema, p.Name)
		}
		seen[p.Name] = true

		if !p.Kind.IsScalar() {
			return nil, fmt.Errorf("%w: parameter %q has kind %s", ErrInvalidSchema, p.Name, p.Kind)
		}
		if (p.Min != nil || p.Max != nil) && !p.Kind.IsNumeric() {
			return nil, fmt.Errorf("%w: parameter %q: range on %s", ErrInvalidSchema, p.Name, p.Kind)
		}
		if p.Step != nil && (!p.Kind.IsNumeric() || !(*p.Step > 0) || math.IsInf(*p.Step, 0)) {
			return nil, fmt.Errorf("%w: parameter %q: step must be a positive number", ErrInvalidSchema, p.Name)
		}
		if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
			return nil, fmt.Errorf("%w: parameter %q: min %v > max %v", ErrInvalidSchema, p.Name, *p.Min, *p.Max)
		}

		if !p.Default.IsValid() {
			if p.Required {
				return nil, fmt.Errorf("%w: required parameter %q has no default", ErrInvalidSchema, p.Name)
			}
			p.Default = value.Zero(p.Kind)
			if p.Check(p.Default) != nil {
				// Zero is out of range: use the nearest bound.
				p.Default = nearestBound(p)
			}
		}
		if err := p.Check(p.Default); err != nil {
			return nil, fmt.Errorf("%w: default: %v", ErrInvalidSchema, err)
		}
		out[i] = p
	}
	return out, nil
}

// Lookup returns the parameter named name.
func (s Schema) Lookup(name string) (Parameter, bool) {
	for _, p := range s {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Defaults returns the default value of every parameter.
func (s Schema) Defaults() Params {
	out := make(Params, len(s))
	for _, p := range s {
		out[p.Name] = p.Default
	}
	return out
}

func nearestBound(p Parameter) value.Value {
	if p.Min != nil {
		if p.Kind == value.KindInt {
			return value.Int(int64(math.Ceil(*p.Min)))
		}
		return value.Float(*p.Min)
	}
	if p.Kind == value.KindInt {
		return value.Int(int64(math.Floor(*p.Max)))
	}
	return value.Float(*p.Max)
}
