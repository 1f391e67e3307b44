package examples

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-iot/tosca-go/pkg/capability"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/dispatch"
	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

func put(path string, params map[string]value.Value) *wire.Request {
	return &wire.Request{ID: 1, Method: wire.MethodPut, Path: path, Params: params}
}

func get(path string) *wire.Request {
	return &wire.Request{ID: 2, Method: wire.MethodGet, Path: path}
}

func TestLightDescriptor(t *testing.T) {
	desc, err := NewLight(LightConfig{Name: "kitchen", WiFiMAC: "AA:BB:CC:00:11:22"}, capability.NewSimulatedLight(0))
	require.NoError(t, err)

	assert.Equal(t, "/light", desc.MainRoute())
	assert.Equal(t, "aabbcc001122", desc.Identity())

	res, err := desc.Validate()
	require.NoError(t, err)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	doc := desc.Document()
	assert.Equal(t, descriptor.KindLight, doc.Device.Kind)
	assert.ElementsMatch(t,
		[]hazard.ID{hazard.FireHazard, hazard.ElectricEnergyConsumption, hazard.LogEnergyConsumption},
		doc.AllowedHazards)
	require.Len(t, doc.Events, 2)
	assert.Equal(t, DefaultPowerInterval, doc.Events[0].Interval)

	on, ok := doc.Route("/on", wire.MethodPut)
	require.True(t, ok)
	hs, err := on.HazardSet()
	require.NoError(t, err)
	assert.True(t, hs.Contains(hazard.FireHazard))
}

func TestLightRoutes(t *testing.T) {
	ctx := context.Background()
	light := capability.NewSimulatedLight(10)
	desc, err := NewLight(LightConfig{Name: "desk"}, light)
	require.NoError(t, err)
	e := dispatch.New(desc)

	resp := e.Dispatch(ctx, put("/brightness", map[string]value.Value{"level": value.Float(0.5)}))
	assert.Equal(t, wire.StatusHandlerFailure, resp.Status)
	assert.Equal(t, CodeLightOff, resp.Code)

	resp = e.Dispatch(ctx, put("/on", map[string]value.Value{"brightness": value.Float(0.3)}))
	require.Equal(t, wire.StatusSuccess, resp.Status, resp.Message)
	on, _ := light.IsOn(ctx)
	assert.True(t, on)

	resp = e.Dispatch(ctx, put("/brightness", map[string]value.Value{"level": value.Float(0.5)}))
	require.Equal(t, wire.StatusSuccess, resp.Status, resp.Message)

	resp = e.Dispatch(ctx, get("/power"))
	require.Equal(t, wire.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Payload)
	w, _ := resp.Payload.Float()
	assert.InDelta(t, 5.0, w, 1e-9)

	resp = e.Dispatch(ctx, get("/state"))
	require.Equal(t, wire.StatusSuccess, resp.Status)
	var state LightState
	require.NoError(t, wire.Unmarshal(resp.Info, &state))
	assert.Equal(t, LightState{On: true, Brightness: 0.5}, state)

	resp = e.Dispatch(ctx, put("/brightness", map[string]value.Value{"level": value.Float(2)}))
	assert.Equal(t, wire.StatusBadParameters, resp.Status)

	resp = e.Dispatch(ctx, put("/off", nil))
	require.Equal(t, wire.StatusSuccess, resp.Status)
	on, _ = light.IsOn(ctx)
	assert.False(t, on)

	resp = e.Dispatch(ctx, get("/info"))
	require.Equal(t, wire.StatusSuccess, resp.Status)
	assert.Equal(t, desc.WireForm(), []byte(resp.Info))
}

func TestLightOnDefaultsToFullBrightness(t *testing.T) {
	ctx := context.Background()
	light := capability.NewSimulatedLight(0)
	require.NoError(t, light.SetBrightness(ctx, 0.2))
	desc, err := NewLight(LightConfig{Name: "hall"}, light)
	require.NoError(t, err)

	resp := dispatch.New(desc).Dispatch(ctx, put("/on", nil))
	require.Equal(t, wire.StatusSuccess, resp.Status, resp.Message)
	b, _ := light.Brightness(ctx)
	assert.Equal(t, 1.0, b)
}

func TestLightEvents(t *testing.T) {
	ctx := context.Background()
	light := capability.NewSimulatedLight(4)
	sources := LightEvents(LightConfig{PowerInterval: time.Minute}, light)
	require.Len(t, sources, 2)

	assert.Equal(t, "power", sources[0].Name)
	assert.Equal(t, time.Minute, sources[0].Interval)
	require.NoError(t, light.SetOn(ctx, true))
	v, err := sources[0].Read(ctx)
	require.NoError(t, err)
	assert.True(t, value.Float(4).Equal(v))

	assert.True(t, sources[1].OnChange)
	v, err = sources[1].Read(ctx)
	require.NoError(t, err)
	assert.True(t, value.Bool(true).Equal(v))
}

func TestBuilderRequiresMandatoryRoutes(t *testing.T) {
	noop := route.OkHandler(func(context.Context, route.Params) error { return nil })

	b, err := NewBuilder(descriptor.Metadata{Name: "half", Kind: descriptor.KindLight})
	require.NoError(t, err)
	_, err = b.Route("/on", wire.MethodPut, nil, hazard.Set{}, noop).Build()
	assert.ErrorIs(t, err, ErrMissingMandatoryRoute)

	b, err = NewBuilder(descriptor.Metadata{Name: "whole", Kind: descriptor.KindLight})
	require.NoError(t, err)
	desc, err := b.
		Route("/on", wire.MethodPut, nil, hazard.Set{}, noop).
		Route("/off", wire.MethodPut, nil, hazard.Set{}, noop).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "/light", desc.MainRoute())
}

func TestBuilderRejectsProhibitedHazard(t *testing.T) {
	noop := route.OkHandler(func(context.Context, route.Params) error { return nil })

	b, err := NewBuilder(descriptor.Metadata{Name: "risky", Kind: descriptor.KindLight})
	require.NoError(t, err)
	_, err = b.
		Route("/on", wire.MethodPut, nil, hazard.MustOf(hazard.WaterFlooding), noop).
		Route("/off", wire.MethodPut, nil, hazard.Set{}, noop).
		Build()
	assert.ErrorIs(t, err, route.ErrProhibitedHazard)
}

func TestThermometer(t *testing.T) {
	ctx := context.Background()
	th := capability.NewSimulatedThermometer(20, 0.2)
	desc, err := NewThermometer(ThermometerConfig{Name: "attic", Interval: time.Second}, th)
	require.NoError(t, err)
	assert.Equal(t, "/sensor", desc.MainRoute())
	e := dispatch.New(desc)

	for range 3 {
		resp := e.Dispatch(ctx, get("/temperature"))
		require.Equal(t, wire.StatusSuccess, resp.Status, resp.Message)
		c, ok := resp.Payload.Float()
		require.True(t, ok)
		assert.InDelta(t, 20, c, 3)
	}

	resp := e.Dispatch(ctx, &wire.Request{Method: wire.MethodGet, Path: "/readings", Params: map[string]value.Value{"limit": value.Int(2)}})
	require.Equal(t, wire.StatusSuccess, resp.Status, resp.Message)
	data, err := wire.ReadAll(resp.Stream)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,celsius", lines[0])

	sources := ThermometerEvents(ThermometerConfig{}, th)
	require.Len(t, sources, 1)
	assert.Equal(t, DefaultTemperatureInterval, sources[0].Interval)
}

func TestThermometerSensorFailure(t *testing.T) {
	th := capability.NewSimulatedThermometer(20, 0.2)
	th.SetFault(capability.ErrNoReading)
	desc, err := NewThermometer(ThermometerConfig{Name: "cellar"}, th)
	require.NoError(t, err)

	resp := dispatch.New(desc).Dispatch(context.Background(), get("/temperature"))
	assert.Equal(t, wire.StatusHandlerFailure, resp.Status)
	assert.Equal(t, CodeSensorFailure, resp.Code)
}
