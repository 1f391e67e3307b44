package hazard

import (
	"errors"
	"fmt"
	"strings"
)

// Category classifies the kind of risk a hazard represents.
type Category uint8

const (
	// Safety hazards can harm people, animals or property.
	Safety Category = 0
	// Financial hazards cost money or consume metered resources.
	Financial Category = 1
	// Privacy hazards record or disclose personal data.
	Privacy Category = 2

	// NumCategories is the size of the category enumeration.
	NumCategories = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Safety:
		return "safety"
	case Financial:
		return "financial"
	case Privacy:
		return "privacy"
	default:
		return "unknown"
	}
}

// IsValid reports whether c is one of the three categories.
func (c Category) IsValid() bool {
	return c < NumCategories
}

// ParseCategory parses a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safety":
		return Safety, nil
	case "financial":
		return Financial, nil
	case "privacy":
		return Privacy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Severity grades a hazard from 0 (negligible) to MaxSeverity.
type Severity uint8

// MaxSeverity is the highest severity.
const MaxSeverity Severity = 10

// Errors.
var (
	ErrUnknownCategory = errors.New("unknown hazard category")
	ErrInvalidSeverity = errors.New("hazard severity out of range")
	ErrUnknownHazard   = errors.New("unknown hazard")
)

// ID names a catalogued hazard. Custom hazards may leave it empty.
type ID string

// Hazard is a declared risk of an operation.
type Hazard struct {
	ID          ID       `cbor:"1,keyasint,omitempty" yaml:"id,omitempty"`
	Category    Category `cbor:"2,keyasint" yaml:"category"`
	Severity    Severity `cbor:"3,keyasint" yaml:"severity"`
	Description string   `cbor:"4,keyasint,omitempty" yaml:"description,omitempty"`
}

// New returns a custom hazard.
func New(category Category, severity Severity, description string) (Hazard, error) {
	h := Hazard{Category: category, Severity: severity, Description: description}
	if err := h.Validate(); err != nil {
		return Hazard{}, err
	}
	return h, nil
}

// Validate checks category and severity ranges.
func (h Hazard) Validate() error {
	if !h.Category.IsValid() {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, h.Category)
	}
	if h.Severity > MaxSeverity {
		return fmt.Errorf("%w: %d > %d", ErrInvalidSeverity, h.Severity, MaxSeverity)
	}
	return nil
}

// String renders the hazard for humans.
func (h Hazard) String() string {
	name := string(h.ID)
	if name == "" {
		name = h.Description
	}
	return fmt.Sprintf("%s(%s/%d)", name, h.Category, h.Severity)
}

// less orders hazards canonically: severity descending, then id, then description.
func less(a, b Hazard) bool {
	if a.Severity != b.Severity {
		return a.Severity > b.Severity
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Description < b.Description
}
