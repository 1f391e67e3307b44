package examples

import (
	"context"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/capability"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Light handler error codes.
const (
	CodeLightOff uint16 = 100 + iota
	CodeDriverFailure
)

// DefaultPowerInterval is the publishing period of the power event.
const DefaultPowerInterval = 10 * time.Second

// LightDriver is the hardware behind a light.
type LightDriver interface {
	capability.Dimmer
	capability.PowerMeter
}

// LightConfig configures a light.
type LightConfig struct {
	Name        string
	Identity    string
	WiFiMAC     string
	Description string
	Environment descriptor.Environment
	Broker      *descriptor.BrokerInfo

	// PowerInterval is the period of the power event.
	PowerInterval time.Duration
}

// LightState is the answer of GET /state.
type LightState struct {
	On         bool    `cbor:"1,keyasint"`
	Brightness float64 `cbor:"2,keyasint"`
}

// NewLight builds a dimmable light on top of d.
func NewLight(cfg LightConfig, d LightDriver) (*descriptor.Descriptor, error) {
	interval := cfg.PowerInterval
	if interval <= 0 {
		interval = DefaultPowerInterval
	}

	b, err := NewBuilder(descriptor.Metadata{
		Name:        cfg.Name,
		Identity:    cfg.Identity,
		Kind:        descriptor.KindLight,
		Environment: cfg.Environment,
		Description: cfg.Description,
		WiFiMAC:     cfg.WiFiMAC,
		Structure: descriptor.Structure{
			Fields: []descriptor.Field{
				{Name: "on", Kind: value.KindBool},
				{Name: "brightness", Kind: value.KindFloat, Description: "Level in [0, 1]"},
			},
			Methods: []string{"turn_on", "turn_off", "set_brightness"},
		},
		Events: []descriptor.EventDescription{
			{Name: "power", Kind: value.KindFloat, Description: "Power draw in W", Interval: interval},
			{Name: "on", Kind: value.KindBool, Description: "Switch state changes"},
		},
		Broker: cfg.Broker,
	})
	if err != nil {
		return nil, err
	}

	b.Route("/on", wire.MethodPut,
		route.Schema{route.FloatParam("brightness", 1).Range(0, 1).Optional()},
		hazard.MustOf(hazard.FireHazard, hazard.ElectricEnergyConsumption),
		route.OkHandler(func(ctx context.Context, p route.Params) error {
			if err := d.SetBrightness(ctx, p.Float("brightness")); err != nil {
				return route.Fail(CodeDriverFailure, "%v", err)
			}
			return d.SetOn(ctx, true)
		}),
		route.WithName("turn_on"),
		route.WithDescription("Turn the light on"),
		route.WithEstimate(route.Estimate{EnergyWh: 9, Duration: time.Hour}))

	b.Route("/off", wire.MethodPut, nil, hazard.Set{},
		route.OkHandler(func(ctx context.Context, _ route.Params) error {
			return d.SetOn(ctx, false)
		}),
		route.WithName("turn_off"),
		route.WithDescription("Turn the light off"))

	b.Route("/brightness", wire.MethodPut,
		route.Schema{route.FloatParam("level", 1).Range(0, 1)},
		hazard.MustOf(hazard.ElectricEnergyConsumption),
		route.OkHandler(func(ctx context.Context, p route.Params) error {
			on, err := d.IsOn(ctx)
			if err != nil {
				return route.Fail(CodeDriverFailure, "%v", err)
			}
			if !on {
				return route.Fail(CodeLightOff, "light is off")
			}
			return d.SetBrightness(ctx, p.Float("level"))
		}),
		route.WithName("set_brightness"),
		route.WithDescription("Change the brightness of a lit light"))

	b.Route("/state", wire.MethodGet, nil, hazard.Set{},
		route.InfoHandler(func(ctx context.Context, _ route.Params) (any, error) {
			on, err := d.IsOn(ctx)
			if err != nil {
				return nil, err
			}
			level, err := d.Brightness(ctx)
			if err != nil {
				return nil, err
			}
			return LightState{On: on, Brightness: level}, nil
		}),
		route.WithDescription("Current switch state and brightness"))

	b.Route("/power", wire.MethodGet, nil,
		hazard.MustOf(hazard.LogEnergyConsumption),
		route.SerialHandler(func(ctx context.Context, _ route.Params) (value.Value, error) {
			w, err := d.Power(ctx)
			if err != nil {
				return value.Value{}, err
			}
			return value.Float(w), nil
		}),
		route.WithDescription("Current power draw in W"))

	b.Route("/info", wire.MethodGet, nil, hazard.Set{}, route.DescriptorInfo(),
		route.WithDescription("Device descriptor"))

	return b.Build()
}

// LightEvents returns the event sources of a light built by NewLight.
func LightEvents(cfg LightConfig, d LightDriver) []EventSource {
	interval := cfg.PowerInterval
	if interval <= 0 {
		interval = DefaultPowerInterval
	}
	return []EventSource{
		{
			Name:     "power",
			Interval: interval,
			Read: func(ctx context.Context) (value.Value, error) {
				w, err := d.Power(ctx)
				if err != nil {
					return value.Value{}, err
				}
				return value.Float(w), nil
			},
		},
		{
			Name:     "on",
			Interval: time.Second,
			OnChange: true,
			Read: func(ctx context.Context) (value.Value, error) {
				on, err := d.IsOn(ctx)
				if err != nil {
					return value.Value{}, err
				}
				return value.Bool(on), nil
			},
		},
	}
}
