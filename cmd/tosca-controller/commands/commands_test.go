package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-iot/tosca-go/internal/config"
	"github.com/tosca-iot/tosca-go/pkg/capability"
	"github.com/tosca-iot/tosca-go/pkg/controller"
	"github.com/tosca-iot/tosca-go/pkg/discovery"
	"github.com/tosca-iot/tosca-go/pkg/dispatch"
	"github.com/tosca-iot/tosca-go/pkg/examples"
	"github.com/tosca-iot/tosca-go/pkg/transport"
)

const kitchenID = "aabbcc001122"

func startLight(t *testing.T) (*capability.SimulatedLight, string) {
	t.Helper()
	light := capability.NewSimulatedLight(10)
	desc, err := examples.NewLight(examples.LightConfig{Name: "kitchen", WiFiMAC: "aa:bb:cc:00:11:22"}, light)
	require.NoError(t, err)

	srv := httptest.NewServer(transport.NewHandler(dispatch.New(desc), desc))
	t.Cleanup(srv.Close)
	return light, srv.URL
}

// run executes the command line against a fresh command tree.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiscoverStaticDevice(t *testing.T) {
	_, url := startLight(t)

	out, err := run(t, "--no-mdns", "--device", url, "-o", "json", "discover")
	require.NoError(t, err)

	var rows []deviceRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, kitchenID, rows[0].Identity)
	assert.Equal(t, "kitchen", rows[0].Name)
	assert.Equal(t, "light", rows[0].Kind)
	assert.Equal(t, url, rows[0].URL)
	assert.Equal(t, 6, rows[0].Routes)
	assert.True(t, rows[0].Changed)
}

func TestDiscoverTable(t *testing.T) {
	_, url := startLight(t)

	out, err := run(t, "--no-mdns", "--device", url, "discover")
	require.NoError(t, err)
	assert.Contains(t, out, "IDENTITY")
	assert.Contains(t, out, kitchenID)
	assert.Contains(t, out, "changed")
}

func TestSendAllowed(t *testing.T) {
	light, url := startLight(t)

	out, err := run(t, "--no-mdns", "--device", url, "--policy-default", "allow",
		"send", "kitchen", "PUT", "/on", "brightness=0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "SUCCESS")

	on, _ := light.IsOn(context.Background())
	level, _ := light.Brightness(context.Background())
	assert.True(t, on)
	assert.InDelta(t, 0.5, level, 1e-9)

	out, err = run(t, "--no-mdns", "--device", url, "--policy-default", "allow",
		"send", kitchenID[:6], "GET", "/power")
	require.NoError(t, err)
	assert.Contains(t, out, "5")
}

func TestSendBlockedNeverReachesDevice(t *testing.T) {
	light, url := startLight(t)

	_, err := run(t, "--no-mdns", "--device", url, "--policy-default", "block",
		"send", "kitchen", "PUT", "/on")
	require.ErrorIs(t, err, controller.ErrBlocked)

	on, _ := light.IsOn(context.Background())
	assert.False(t, on)
}

func TestSendWithoutHazardsNeedsNoDefault(t *testing.T) {
	_, url := startLight(t)

	out, err := run(t, "--no-mdns", "--device", url, "send", "kitchen", "GET", "/state")
	require.NoError(t, err)
	assert.Contains(t, out, "false")
}

func TestSendArgumentErrors(t *testing.T) {
	_, url := startLight(t)
	base := []string{"--no-mdns", "--device", url, "--policy-default", "allow", "send", "kitchen"}

	tests := []struct {
		name string
		args []string
	}{
		{"bad method", []string{"FETCH", "/on"}},
		{"unknown route", []string{"PUT", "/dim"}},
		{"unknown parameter", []string{"PUT", "/on", "colour=red"}},
		{"not name=value", []string{"PUT", "/on", "0.5"}},
		{"unparsable value", []string{"PUT", "/on", "brightness=bright"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(append([]string{}, base...), tt.args...)...)
			assert.Error(t, err)
		})
	}
}

func TestSendUnknownDevice(t *testing.T) {
	_, url := startLight(t)

	_, err := run(t, "--no-mdns", "--device", url, "send", "garage", "PUT", "/on")
	assert.ErrorIs(t, err, controller.ErrUnknownDevice)
}

func TestRoutesVerdicts(t *testing.T) {
	_, url := startLight(t)

	out, err := run(t, "--no-mdns", "--device", url, "-o", "json", "routes", "kitchen")
	require.NoError(t, err)

	var rows []routeRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	verdicts := make(map[string]string)
	for _, r := range rows {
		verdicts[r.Method+" "+r.Path] = r.Verdict
	}
	assert.Equal(t, verdictNoRule, verdicts["PUT /on"])
	assert.Equal(t, verdictAllow, verdicts["PUT /off"])
	assert.Equal(t, verdictAllow, verdicts["GET /state"])
	assert.Equal(t, verdictNoRule, verdicts["GET /power"])
}

func TestPolicyCheckWithFile(t *testing.T) {
	_, url := startLight(t)
	file := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
default: allow
rules:
  - {category: safety, threshold: 5, action: block}
`), 0o600))

	out, err := run(t, "--no-mdns", "--device", url, "--policy", file, "policy", "check", "kitchen")
	require.NoError(t, err)
	assert.Contains(t, out, "/on")
	assert.Contains(t, out, "block")
	assert.Contains(t, out, "fire-hazard")
	assert.Contains(t, out, "allow")

	out, err = run(t, "--policy", file, "policy", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default: allow")
	assert.Contains(t, out, "safety")
}

func TestInvalidFlags(t *testing.T) {
	_, err := run(t, "-o", "xml", "devices")
	assert.Error(t, err)

	_, err = run(t, "--policy-default", "maybe", "devices")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "protocol 1.0")
}

func TestDevicesFromCache(t *testing.T) {
	_, url := startLight(t)
	cache := filepath.Join(t.TempDir(), "cache.db")
	t.Setenv("TOSCA_CACHE_PATH", cache)

	_, err := run(t, "--no-mdns", "--device", url, "discover")
	require.NoError(t, err)

	// No device address: the device comes from the cache.
	out, err := run(t, "--no-mdns", "-o", "json", "devices")
	require.NoError(t, err)
	var rows []deviceRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, kitchenID, rows[0].Identity)

	out, err = run(t, "--no-mdns", "forget", "kitchen")
	require.NoError(t, err)
	assert.Contains(t, out, "Forgot kitchen")

	out, err = run(t, "--no-mdns", "-o", "json", "devices")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestShell(t *testing.T) {
	light, url := startLight(t)
	cfg := config.DefaultController()
	cfg.Discovery.Enabled = false
	cfg.Devices = []string{url}

	a, err := openApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	s := &shell{a: a, out: &out, format: formatTable}
	ctx := context.Background()

	s.execute(ctx, "discover")
	assert.Contains(t, out.String(), kitchenID)

	out.Reset()
	s.execute(ctx, "send kitchen PUT /on")
	assert.Contains(t, out.String(), "no default")

	out.Reset()
	s.execute(ctx, "default allow")
	s.execute(ctx, "send kitchen PUT /on brightness=0.25")
	on, _ := light.IsOn(ctx)
	assert.True(t, on)

	out.Reset()
	s.execute(ctx, "watch kitchen 1s")
	assert.Contains(t, out.String(), "no event subscriber")

	out.Reset()
	s.execute(ctx, "routes")
	assert.Contains(t, out.String(), "usage: routes <device>")

	out.Reset()
	s.execute(ctx, "frobnicate")
	assert.Contains(t, out.String(), "Unknown command: frobnicate")

	assert.False(t, s.execute(ctx, ""))
	assert.True(t, s.execute(ctx, "quit"))
}

func TestBrowsersDeduplicate(t *testing.T) {
	a, err := discovery.NewStaticBrowser("10.0.0.1:3000", "10.0.0.2:3000")
	require.NoError(t, err)
	b, err := discovery.NewStaticBrowser("http://10.0.0.1:3000")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	round, err := browsers{a, b}.Browse(ctx, time.Second)
	require.NoError(t, err)

	var instances []string
	for h := range round.C() {
		instances = append(instances, h.Instance)
	}
	assert.ElementsMatch(t, []string{"10.0.0.1:3000", "10.0.0.2:3000"}, instances)
	assert.NoError(t, round.Err())
}

func TestBrowsersReportFailedRound(t *testing.T) {
	static, err := discovery.NewStaticBrowser("10.0.0.1:3000")
	require.NoError(t, err)
	mdns := discovery.NewBrowser(discovery.WithBrowseFunc(
		func(context.Context, discovery.BrowseRequest, chan<- discovery.ServiceEntry) error {
			return errors.New("no multicast interface")
		}))

	round, err := browsers{mdns, static}.Browse(context.Background(), time.Second)
	require.NoError(t, err)

	var instances []string
	for h := range round.C() {
		instances = append(instances, h.Instance)
	}
	assert.Equal(t, []string{"10.0.0.1:3000"}, instances)
	assert.ErrorIs(t, round.Err(), discovery.ErrBrowseFailed)
}
