package hazard

import (
	"slices"
)

// Set is an immutable collection of hazards keyed by category.
// The zero Set is empty and ready to use.
type Set struct {
	byCategory [NumCategories][]Hazard
}

// NewSet builds a set from hazards. Duplicates are dropped and each
// category is kept in canonical order.
func NewSet(hazards ...Hazard) (Set, error) {
	var s Set
	for _, h := range hazards {
		if err := h.Validate(); err != nil {
			return Set{}, err
		}
		bucket := s.byCategory[h.Category]
		if slices.Contains(bucket, h) {
			continue
		}
		s.byCategory[h.Category] = append(bucket, h)
	}
	for c := range s.byCategory {
		slices.SortFunc(s.byCategory[c], func(a, b Hazard) int {
			switch {
			case less(a, b):
				return -1
			case less(b, a):
				return 1
			}
			return 0
		})
	}
	return s, nil
}

// MustSet is like NewSet but panics on invalid hazards.
func MustSet(hazards ...Hazard) Set {
	s, err := NewSet(hazards...)
	if err != nil {
		panic(err)
	}
	return s
}

// Empty reports whether the set holds no hazard.
func (s Set) Empty() bool {
	return s.Len() == 0
}

// Len returns the number of hazards.
func (s Set) Len() int {
	n := 0
	for _, b := range s.byCategory {
		n += len(b)
	}
	return n
}

// Has reports whether at least one hazard of category c is present.
func (s Set) Has(c Category) bool {
	return c.IsValid() && len(s.byCategory[c]) > 0
}

// Categories returns the categories present, in enumeration order.
func (s Set) Categories() []Category {
	var out []Category
	for c := Category(0); c < NumCategories; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// MaxSeverity returns the highest severity in category c and whether the
// category is present.
func (s Set) MaxSeverity(c Category) (Severity, bool) {
	if !s.Has(c) {
		return 0, false
	}
	// Buckets are sorted by descending severity.
	return s.byCategory[c][0].Severity, true
}

// InCategory returns a copy of the hazards in category c.
func (s Set) InCategory(c Category) []Hazard {
	if !c.IsValid() {
		return nil
	}
	return slices.Clone(s.byCategory[c])
}

// All returns every hazard in canonical order.
func (s Set) All() []Hazard {
	out := make([]Hazard, 0, s.Len())
	for _, b := range s.byCategory {
		out = append(out, b...)
	}
	return out
}

// Contains reports whether a hazard with the given catalogue id is present.
func (s Set) Contains(id ID) bool {
	for _, b := range s.byCategory {
		for _, h := range b {
			if h.ID == id {
				return true
			}
		}
	}
	return false
}

// Outside returns the hazards whose id is not in allowed.
func (s Set) Outside(allowed []ID) []Hazard {
	var out []Hazard
	for _, h := range s.All() {
		if !slices.Contains(allowed, h.ID) {
			out = append(out, h)
		}
	}
	return out
}
