package policy

import (
	"sync/atomic"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
)

// Store holds the active policy. Evaluations see either the old or the new
// policy in full, never a partial edit.
type Store struct {
	p atomic.Pointer[Policy]
}

// NewStore returns a store holding p. p is validated and copied.
func NewStore(p Policy) (*Store, error) {
	s := &Store{}
	if err := s.Replace(p); err != nil {
		return nil, err
	}
	return s, nil
}

// Replace validates p and swaps it in as a whole.
func (s *Store) Replace(p Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c := p.Clone()
	s.p.Store(&c)
	return nil
}

// Load returns a copy of the active policy.
func (s *Store) Load() Policy {
	p := s.p.Load()
	if p == nil {
		return Policy{}
	}
	return p.Clone()
}

// Evaluate runs EvaluateDevice against the active policy.
func (s *Store) Evaluate(device string, hazards hazard.Set) (Action, error) {
	p := s.p.Load()
	if p == nil {
		return Evaluate(hazards, Policy{})
	}
	return EvaluateDevice(device, hazards, *p)
}

// Offending returns the hazards the active block lists name for device.
func (s *Store) Offending(device string, hazards hazard.Set) []hazard.Hazard {
	p := s.p.Load()
	if p == nil {
		return nil
	}
	return Offending(device, hazards, *p)
}
