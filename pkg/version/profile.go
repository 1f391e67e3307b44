package version

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var profileFS embed.FS

// Manifest describes what a protocol version requires of each device
// kind.
type Manifest struct {
	Version     string                 `yaml:"version"`
	Description string                 `yaml:"description"`
	Kinds       map[string]KindProfile `yaml:"kinds"`
}

// KindProfile lists the obligations of one device kind.
type KindProfile struct {
	MainRoute string     `yaml:"mainRoute"`
	Mandatory []RouteDef `yaml:"mandatory"`

	// AllowedHazards restricts the hazard ids routes may declare. A nil
	// list means unrestricted.
	AllowedHazards []string `yaml:"allowedHazards"`
}

// RouteDef names a route by method and path.
type RouteDef struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

func (r RouteDef) String() string {
	return strings.ToUpper(r.Method) + " " + r.Path
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Manifest)
)

// LoadManifest loads a manifest by version string (e.g. "1.0").
func LoadManifest(ver string) (*Manifest, error) {
	cacheMu.RLock()
	if s, ok := cache[ver]; ok {
		cacheMu.RUnlock()
		return s, nil
	}
	cacheMu.RUnlock()

	data, err := profileFS.ReadFile("profiles/" + ver + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("manifest version %q not found: %w", ver, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %q: %w", ver, err)
	}

	cacheMu.Lock()
	cache[ver] = &m
	cacheMu.Unlock()

	return &m, nil
}

// LoadCurrentManifest loads the manifest for the current protocol version.
func LoadCurrentManifest() (*Manifest, error) {
	return LoadManifest(Current)
}

// AvailableManifests returns the version strings of all embedded manifests.
func AvailableManifests() ([]string, error) {
	entries, err := profileFS.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("reading profiles directory: %w", err)
	}

	var versions []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") {
			versions = append(versions, strings.TrimSuffix(name, ".yaml"))
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// Profile returns the profile of a device kind. Unknown kinds have an empty
// profile.
func (s *Manifest) Profile(kind string) KindProfile {
	return s.Kinds[kind]
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ValidationResult holds the outcome of validating a device against a manifest.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidateDevice checks that a device of the given kind exposes every
// mandatory route and declares only allowed hazards.
// routes holds "METHOD /path" keys; hazards the declared hazard ids.
func ValidateDevice(manifest *Manifest, kind string, routes []RouteDef, hazards []string) ValidationResult {
	var result ValidationResult
	profile, known := manifest.Kinds[kind]
	if !known {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("device kind %q has no profile in manifest %s", kind, manifest.Version))
	}

	present := make(map[string]bool, len(routes))
	for _, r := range routes {
		present[r.String()] = true
	}
	for _, m := range profile.Mandatory {
		if !present[m.String()] {
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s device missing mandatory route %s", kind, m))
		}
	}

	if profile.AllowedHazards != nil {
		allowed := makeStringSet(profile.AllowedHazards)
		for _, h := range hazards {
			if !allowed[h] {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s device declares prohibited hazard %s", kind, h))
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func makeStringSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
