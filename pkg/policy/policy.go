package policy

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
)

// Errors.
var (
	// ErrNoDefault is a configuration fault: no rule matched and the policy
	// names no default action.
	ErrNoDefault     = errors.New("policy has no default action")
	ErrInvalidAction = errors.New("invalid policy action")
	ErrInvalidRule   = errors.New("invalid policy rule")
)

// Action is the outcome of an evaluation.
type Action uint8

const (
	Allow Action = 1
	Block Action = 2
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Block:
		return "block"
	default:
		return "invalid"
	}
}

// IsValid reports whether a is Allow or Block.
func (a Action) IsValid() bool {
	return a == Allow || a == Block
}

// ParseAction parses "allow" or "block", case-insensitively.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return Allow, nil
	case "block":
		return Block, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Rule matches hazards of Category whose severity is at least Threshold.
type Rule struct {
	Category  hazard.Category
	Threshold hazard.Severity
	Action    Action
}

// Matches reports whether the rule applies to a category whose highest
// severity is sev.
func (r Rule) Matches(c hazard.Category, sev hazard.Severity) bool {
	return r.Category == c && r.Threshold <= sev
}

// Policy is an ordered list of rules with an explicit default.
type Policy struct {
	Rules []Rule

	// Default applies to categories no rule matches. Nil means none was
	// configured.
	Default *Action

	// Blocked lists hazard ids that are blocked on every device.
	Blocked []hazard.ID

	// Devices lists hazard ids blocked per device identity.
	Devices map[string][]hazard.ID
}

// Validate checks every rule and the default.
func (p Policy) Validate() error {
	for i, r := range p.Rules {
		if !r.Category.IsValid() {
			return fmt.Errorf("%w %d: category %d", ErrInvalidRule, i, r.Category)
		}
		if r.Threshold > hazard.MaxSeverity {
			return fmt.Errorf("%w %d: threshold %d", ErrInvalidRule, i, r.Threshold)
		}
		if !r.Action.IsValid() {
			return fmt.Errorf("%w %d: %w", ErrInvalidRule, i, ErrInvalidAction)
		}
	}
	if p.Default != nil && !p.Default.IsValid() {
		return fmt.Errorf("default: %w", ErrInvalidAction)
	}
	return nil
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	out := Policy{
		Rules:   slices.Clone(p.Rules),
		Blocked: slices.Clone(p.Blocked),
	}
	if p.Default != nil {
		d := *p.Default
		out.Default = &d
	}
	if p.Devices != nil {
		out.Devices = maps.Clone(p.Devices)
		for k, v := range out.Devices {
			out.Devices[k] = slices.Clone(v)
		}
	}
	return out
}

// WithDefault returns a copy of p with the default action set.
func (p Policy) WithDefault(a Action) Policy {
	out := p.Clone()
	out.Default = &a
	return out
}
