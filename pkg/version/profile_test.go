package version

import (
	"testing"
)

func TestLoadCurrentManifest(t *testing.T) {
	manifest, err := LoadCurrentManifest()
	if err != nil {
		t.Fatalf("LoadCurrentManifest() error: %v", err)
	}
	if manifest.Version != Current {
		t.Errorf("Version = %q, want %q", manifest.Version, Current)
	}
	if manifest.Description == "" {
		t.Error("Description is empty")
	}
}

func TestLoadManifest_NotFound(t *testing.T) {
	_, err := LoadManifest("99.99")
	if err == nil {
		t.Fatal("LoadManifest(99.99) should return error")
	}
}

func TestAvailableManifests(t *testing.T) {
	versions, err := AvailableManifests()
	if err != nil {
		t.Fatalf("AvailableManifests() error: %v", err)
	}
	found := false
	for _, v := range versions {
		if v == "1.0" {
			found = true
		}
	}
	if !found {
		t.Errorf("AvailableManifests() = %v, want to contain %q", versions, "1.0")
	}
}

func TestLightProfile(t *testing.T) {
	manifest := mustLoadManifest(t, "1.0")
	light := manifest.Profile("light")

	if light.MainRoute != "/light" {
		t.Errorf("MainRoute = %q, want /light", light.MainRoute)
	}
	if len(light.Mandatory) != 2 {
		t.Fatalf("light has %d mandatory routes, want 2", len(light.Mandatory))
	}
	if got := light.Mandatory[0].String(); got != "PUT /on" {
		t.Errorf("Mandatory[0] = %q, want %q", got, "PUT /on")
	}
	if len(light.AllowedHazards) != 3 {
		t.Errorf("light allows %d hazards, want 3", len(light.AllowedHazards))
	}
}

func TestSensorProfileIsUnrestricted(t *testing.T) {
	manifest := mustLoadManifest(t, "1.0")
	if manifest.Profile("sensor").AllowedHazards != nil {
		t.Error("sensor profile should not restrict hazards")
	}
}

func TestValidateDevice(t *testing.T) {
	manifest := mustLoadManifest(t, "1.0")
	on := RouteDef{Method: "PUT", Path: "/on"}
	off := RouteDef{Method: "put", Path: "/off"}

	tests := []struct {
		name      string
		kind      string
		routes    []RouteDef
		hazards   []string
		valid     bool
		errCount  int
		warnCount int
	}{
		{"complete light", "light", []RouteDef{on, off}, []string{"fire-hazard"}, true, 0, 0},
		{"light missing off", "light", []RouteDef{on}, nil, false, 1, 0},
		{"light prohibited hazard", "light", []RouteDef{on, off}, []string{"take-pictures"}, false, 1, 0},
		{"sensor anything goes", "sensor", nil, []string{"take-pictures"}, true, 0, 0},
		{"unprofiled kind", "toaster", nil, nil, true, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ValidateDevice(manifest, tt.kind, tt.routes, tt.hazards)
			if r.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors: %v)", r.Valid, tt.valid, r.Errors)
			}
			if len(r.Errors) != tt.errCount {
				t.Errorf("got %d errors, want %d: %v", len(r.Errors), tt.errCount, r.Errors)
			}
			if len(r.Warnings) != tt.warnCount {
				t.Errorf("got %d warnings, want %d: %v", len(r.Warnings), tt.warnCount, r.Warnings)
			}
		})
	}
}

func mustLoadManifest(t *testing.T, ver string) *Manifest {
	t.Helper()
	manifest, err := LoadManifest(ver)
	if err != nil {
		t.Fatalf("LoadManifest(%q) error: %v", ver, err)
	}
	return manifest
}
