package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
)

// UnmarshalYAML parses "allow" or "block".
func (a *Action) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*a = parsed
	return nil
}

// MarshalYAML renders the action name.
func (a Action) MarshalYAML() (any, error) {
	return a.String(), nil
}

type fileRule struct {
	Category  string `yaml:"category"`
	Threshold uint8  `yaml:"threshold"`
	Action    Action `yaml:"action"`
}

type filePolicy struct {
	Default *Action                `yaml:"default,omitempty"`
	Rules   []fileRule             `yaml:"rules"`
	Blocked []hazard.ID            `yaml:"blocked,omitempty"`
	Devices map[string][]hazard.ID `yaml:"devices,omitempty"`
}

// Parse reads a policy from YAML:
//
//	default: block
//	rules:
//	  - {category: safety, threshold: 5, action: block}
//	  - {category: privacy, threshold: 0, action: allow}
//	blocked: [take-pictures]
//	devices:
//	  aabbccddeeff: [spend-money]
func Parse(data []byte) (Policy, error) {
	var f filePolicy
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, fmt.Errorf("parsing policy: %w", err)
	}

	p := Policy{Default: f.Default, Blocked: f.Blocked, Devices: f.Devices}
	for i, fr := range f.Rules {
		c, err := hazard.ParseCategory(fr.Category)
		if err != nil {
			return Policy{}, fmt.Errorf("%w %d: %w", ErrInvalidRule, i, err)
		}
		p.Rules = append(p.Rules, Rule{Category: c, Threshold: hazard.Severity(fr.Threshold), Action: fr.Action})
	}
	for _, id := range p.Blocked {
		if _, err := hazard.Lookup(id); err != nil {
			return Policy{}, err
		}
	}
	for _, ids := range p.Devices {
		for _, id := range ids {
			if _, err := hazard.Lookup(id); err != nil {
				return Policy{}, err
			}
		}
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Load reads a policy file.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy: %w", err)
	}
	return Parse(data)
}

// Marshal renders p as YAML in the format Parse reads.
func Marshal(p Policy) ([]byte, error) {
	f := filePolicy{Default: p.Default, Blocked: p.Blocked, Devices: p.Devices}
	for _, r := range p.Rules {
		f.Rules = append(f.Rules, fileRule{Category: r.Category.String(), Threshold: uint8(r.Threshold), Action: r.Action})
	}
	return yaml.Marshal(&f)
}
