package examples

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/capability"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// CodeSensorFailure reports a failed sensor read.
const CodeSensorFailure uint16 = 200

// DefaultTemperatureInterval is the publishing period of the temperature
// event.
const DefaultTemperatureInterval = 5 * time.Second

// ThermometerDriver is the hardware behind a thermometer.
type ThermometerDriver interface {
	capability.Sensor
	History() []capability.Reading
}

// ThermometerConfig configures a thermometer.
type ThermometerConfig struct {
	Name        string
	Identity    string
	WiFiMAC     string
	Description string
	Environment descriptor.Environment
	Broker      *descriptor.BrokerInfo
	Interval    time.Duration
}

func (c ThermometerConfig) interval() time.Duration {
	if c.Interval <= 0 {
		return DefaultTemperatureInterval
	}
	return c.Interval
}

// NewThermometer builds a temperature sensor on top of d.
func NewThermometer(cfg ThermometerConfig, d ThermometerDriver) (*descriptor.Descriptor, error) {
	b, err := NewBuilder(descriptor.Metadata{
		Name:        cfg.Name,
		Identity:    cfg.Identity,
		Kind:        descriptor.KindSensor,
		Environment: cfg.Environment,
		Description: cfg.Description,
		WiFiMAC:     cfg.WiFiMAC,
		Structure: descriptor.Structure{
			Fields:  []descriptor.Field{{Name: "temperature", Kind: d.Kind(), Description: d.Unit()}},
			Methods: []string{"read"},
		},
		Events: []descriptor.EventDescription{
			{Name: "temperature", Kind: d.Kind(), Description: d.Unit(), Interval: cfg.interval()},
		},
		Broker: cfg.Broker,
	})
	if err != nil {
		return nil, err
	}

	b.Route("/temperature", wire.MethodGet, nil, hazard.Set{},
		route.SerialHandler(func(ctx context.Context, _ route.Params) (value.Value, error) {
			v, err := d.Read(ctx)
			if err != nil {
				return value.Value{}, route.Fail(CodeSensorFailure, "%v", err)
			}
			return v, nil
		}),
		route.WithName("read"),
		route.WithDescription("Read the temperature in "+d.Unit()))

	b.Route("/readings", wire.MethodGet,
		route.Schema{route.IntParam("limit", 0).Optional().Describe("Newest readings to return, 0 for all")},
		hazard.Set{},
		route.StreamHandler(func(_ context.Context, p route.Params) (io.Reader, error) {
			return strings.NewReader(readingsCSV(d.History(), int(p.Int("limit")))), nil
		}),
		route.WithDescription("Kept readings as CSV"))

	b.Route("/info", wire.MethodGet, nil, hazard.Set{}, route.DescriptorInfo())

	return b.Build()
}

// ThermometerEvents returns the event sources of a thermometer built by
// NewThermometer.
func ThermometerEvents(cfg ThermometerConfig, d ThermometerDriver) []EventSource {
	return []EventSource{{Name: "temperature", Interval: cfg.interval(), Read: d.Read}}
}

func readingsCSV(rs []capability.Reading, limit int) string {
	if limit > 0 && limit < len(rs) {
		rs = rs[len(rs)-limit:]
	}
	var sb strings.Builder
	sb.WriteString("time,celsius\n")
	for _, r := range rs {
		fmt.Fprintf(&sb, "%s,%.4f\n", r.At.UTC().Format(time.RFC3339Nano), r.Celsius)
	}
	return sb.String()
}
