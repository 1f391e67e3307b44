package policy

import (
	"fmt"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
)

// Evaluate decides whether a route with the given hazards may be invoked.
// It is a pure function of its arguments.
func Evaluate(hazards hazard.Set, p Policy) (Action, error) {
	if hazards.Empty() {
		return Allow, nil
	}
	outcome := Allow
	for _, c := range hazards.Categories() {
		sev, _ := hazards.MaxSeverity(c)
		a, err := decide(c, sev, p)
		if err != nil {
			return 0, err
		}
		outcome = restrictive(outcome, a)
	}
	return outcome, nil
}

// EvaluateDevice is Evaluate plus the hazard id block lists of p, global
// and for device.
func EvaluateDevice(device string, hazards hazard.Set, p Policy) (Action, error) {
	if len(Offending(device, hazards, p)) > 0 {
		return Block, nil
	}
	return Evaluate(hazards, p)
}

// Offending returns the hazards of the set that the block lists of p name.
func Offending(device string, hazards hazard.Set, p Policy) []hazard.Hazard {
	var out []hazard.Hazard
	for _, h := range hazards.All() {
		if h.ID == "" {
			continue
		}
		if contains(p.Blocked, h.ID) || contains(p.Devices[device], h.ID) {
			out = append(out, h)
		}
	}
	return out
}

func decide(c hazard.Category, sev hazard.Severity, p Policy) (Action, error) {
	for i, r := range p.Rules {
		if !r.Matches(c, sev) {
			continue
		}
		if !r.Action.IsValid() {
			return 0, fmt.Errorf("%w %d: %w", ErrInvalidRule, i, ErrInvalidAction)
		}
		return r.Action, nil
	}
	if p.Default == nil {
		return 0, fmt.Errorf("%w: no rule for %s severity %d", ErrNoDefault, c, sev)
	}
	if !p.Default.IsValid() {
		return 0, fmt.Errorf("%w: default: %w", ErrNoDefault, ErrInvalidAction)
	}
	return *p.Default, nil
}

// restrictive allows only when both actions allow.
func restrictive(a, b Action) Action {
	if a == Allow && b == Allow {
		return Allow
	}
	return Block
}

func contains(ids []hazard.ID, id hazard.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
