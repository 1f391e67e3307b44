package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tosca-iot/tosca-go/internal/config"
	"github.com/tosca-iot/tosca-go/pkg/capability"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/examples"
	"github.com/tosca-iot/tosca-go/pkg/persistence"
)

// Simulated thermometer parameters.
const (
	thermometerBase  = 21.0
	thermometerDrift = 0.25
)

// device is one simulated device: its hardware, descriptor and events.
type device struct {
	desc    *descriptor.Descriptor
	sources []examples.EventSource

	light  *capability.SimulatedLight
	thermo *capability.SimulatedThermometer

	state  *persistence.StateStore
	logger *slog.Logger
}

func newDevice(cfg *config.Device, logger *slog.Logger) (*device, error) {
	d := &device{logger: logger}

	var brokerInfo *descriptor.BrokerInfo
	if cfg.Broker.Enabled {
		brokerInfo = &descriptor.BrokerInfo{
			Host:  cfg.Broker.Host,
			Port:  uint16(cfg.Broker.Port),
			Topic: cfg.Broker.TopicPrefix,
		}
	}

	var err error
	switch cfg.Kind {
	case config.KindLight:
		d.light = capability.NewSimulatedLight(capability.DefaultRatedPower)
		lc := examples.LightConfig{
			Name:          cfg.Name,
			WiFiMAC:       cfg.WiFiMAC,
			Description:   cfg.Description,
			Broker:        brokerInfo,
			PowerInterval: cfg.Events.Interval,
		}
		d.desc, err = examples.NewLight(lc, d.light)
		d.sources = examples.LightEvents(lc, d.light)
	case config.KindThermometer:
		d.thermo = capability.NewSimulatedThermometer(thermometerBase, thermometerDrift)
		tc := examples.ThermometerConfig{
			Name:        cfg.Name,
			WiFiMAC:     cfg.WiFiMAC,
			Description: cfg.Description,
			Broker:      brokerInfo,
			Interval:    cfg.Events.Interval,
		}
		d.desc, err = examples.NewThermometer(tc, d.thermo)
		d.sources = examples.ThermometerEvents(tc, d.thermo)
	default:
		return nil, fmt.Errorf("unsupported device kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", cfg.Kind, err)
	}

	if cfg.StateFile != "" {
		d.state = persistence.NewStateStore(cfg.StateFile)
		if err := d.restore(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// stateful returns the driver whose state survives restarts, if any.
func (d *device) stateful() capability.Stateful {
	if d.light != nil {
		return d.light
	}
	return nil
}

// restore applies the saved state and saves again after every change.
func (d *device) restore() error {
	s := d.stateful()
	if s == nil {
		return nil
	}

	saved, err := d.state.Load()
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	if saved != nil && saved.Identity == d.desc.Identity() {
		if err := s.Restore(saved.Fields); err != nil {
			return fmt.Errorf("restoring state: %w", err)
		}
		d.logger.Info("state restored", "path", d.state.Path(), "saved_at", saved.SavedAt)
	}

	d.light.OnChange(func(bool, float64) {
		if err := d.save(); err != nil {
			d.logger.Warn("saving state failed", "error", err)
		}
	})
	return nil
}

func (d *device) save() error {
	s := d.stateful()
	if d.state == nil || s == nil {
		return nil
	}
	return d.state.Save(&persistence.DeviceState{
		Identity: d.desc.Identity(),
		SavedAt:  time.Now(),
		Fields:   s.Fields(),
	})
}

// publish runs every event source until ctx ends.
func (d *device) publish(ctx context.Context, p *events.Publisher) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, src := range d.sources {
		g.Go(func() error {
			var err error
			if src.OnChange {
				err = p.RunOnChange(ctx, src.Name, src.Interval, src.Read)
			} else {
				err = p.RunPeriodic(ctx, src.Name, src.Interval, src.Read)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("event %s: %w", src.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
