package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tosca-iot/tosca-go/internal/config"
	"github.com/tosca-iot/tosca-go/internal/logging"
	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/controller"
	"github.com/tosca-iot/tosca-go/pkg/discovery"
	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/history"
	"github.com/tosca-iot/tosca-go/pkg/persistence"
	"github.com/tosca-iot/tosca-go/pkg/transport"
)

// errAmbiguousDevice is returned when a device reference matches several devices.
var errAmbiguousDevice = errors.New("ambiguous device")

// app is a controller with everything it was built from.
type app struct {
	cfg    *config.Controller
	logger *slog.Logger
	ctl    *controller.Controller

	discovered bool
	closers    []func() error
}

// openApp wires a controller from cfg. Logs go to logOut. Devices in the
// descriptor cache are known right away.
func openApp(ctx context.Context, cfg *config.Controller, logOut io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewWithWriter(cfg.Log, "tosca-controller", logOut),
	}
	if err := a.wire(ctx); err != nil {
		a.Close() //nolint:errcheck // the wiring error is reported
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	plog, closeLog, err := logging.Protocol(cfg.Log, a.logger)
	if err != nil {
		return fmt.Errorf("opening protocol log: %w", err)
	}
	a.closers = append(a.closers, closeLog)

	pol, err := cfg.Policy.Load()
	if err != nil {
		return err
	}

	browser, err := a.browser()
	if err != nil {
		return err
	}
	client := transport.NewClient(
		transport.WithRequestTimeout(cfg.Requests.Timeout),
		transport.WithClientLogger(a.logger),
		transport.WithClientProtocolLogger(plog))

	opts := []controller.Option{controller.WithLogger(a.logger)}

	if cfg.Cache.Path != "" {
		cache, err := persistence.Open(cfg.Cache.Store())
		if err != nil {
			return err
		}
		a.closers = append(a.closers, cache.Close)
		opts = append(opts, controller.WithCache(cache))
	}

	if cfg.History.Enabled {
		rec, err := history.Connect(ctx, cfg.History.Recorder(), history.WithLogger(a.logger))
		if err != nil {
			// Requests work without history.
			a.logger.Warn("event history unavailable", "error", err)
		} else {
			a.closers = append(a.closers, rec.Close)
			opts = append(opts, controller.WithRecorder(rec))
		}
	}

	if cfg.Broker.Enabled {
		bc, err := broker.Connect(ctx, cfg.Broker.Client(), a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, bc.Close)
		opts = append(opts, controller.WithSubscriber(events.NewSubscriber(bc,
			events.WithLogger(a.logger),
			events.WithProtocolLogger(plog))))
	}

	a.ctl, err = controller.New(controller.Config{
		Policy:           pol,
		DiscoveryTimeout: cfg.Discovery.Timeout,
		FetchConcurrency: cfg.Requests.FetchConcurrency,
	}, browser, client, opts...)
	if err != nil {
		return err
	}

	if _, err := a.ctl.Restore(ctx); err != nil {
		a.logger.Warn("restoring cached devices failed", "error", err)
	}
	return nil
}

// browser combines mDNS with the static device list.
func (a *app) browser() (controller.Browser, error) {
	var all browsers
	if a.cfg.Discovery.Enabled {
		opts := []discovery.Option{
			discovery.WithServiceName(a.cfg.Discovery.ServiceName),
			discovery.WithLogger(a.logger),
		}
		if a.cfg.Discovery.Interface != "" {
			opts = append(opts, discovery.WithInterface(a.cfg.Discovery.Interface))
		}
		all = append(all, discovery.NewBrowser(opts...))
	}
	if len(a.cfg.Devices) > 0 {
		static, err := discovery.NewStaticBrowser(a.cfg.Devices...)
		if err != nil {
			return nil, err
		}
		all = append(all, static)
	}
	return all, nil
}

// Close releases everything in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// discover runs a discovery round. A failed browser is only a warning when
// another one still found devices.
func (a *app) discover(ctx context.Context) ([]controller.Device, error) {
	found, err := a.ctl.Discover(ctx)
	a.discovered = true
	if err != nil && errors.Is(err, discovery.ErrBrowseFailed) && len(found) > 0 {
		a.logger.Warn("discovery incomplete", "error", err)
		return found, nil
	}
	return found, err
}

// lookup resolves a device by identity, name or identity prefix. A device
// that is not known yet triggers one discovery round.
func (a *app) lookup(ctx context.Context, ref string) (controller.Device, error) {
	d, err := a.match(ref)
	if err == nil || !errors.Is(err, controller.ErrUnknownDevice) || a.discovered {
		return d, err
	}
	if _, err := a.discover(ctx); err != nil {
		return controller.Device{}, err
	}
	return a.match(ref)
}

func (a *app) match(ref string) (controller.Device, error) {
	if d, err := a.ctl.Device(ref); err == nil {
		return d, nil
	}
	var hits []controller.Device
	for _, d := range a.ctl.Devices() {
		if strings.EqualFold(d.Name, ref) || strings.HasPrefix(d.Identity, ref) {
			hits = append(hits, d)
		}
	}
	switch len(hits) {
	case 0:
		return controller.Device{}, fmt.Errorf("%w: %s", controller.ErrUnknownDevice, ref)
	case 1:
		return hits[0], nil
	default:
		ids := make([]string, len(hits))
		for i, d := range hits {
			ids[i] = d.Identity
		}
		return controller.Device{}, fmt.Errorf("%w: %s matches %s", errAmbiguousDevice, ref, strings.Join(ids, ", "))
	}
}

// browsers runs several browsers in one round. Devices reachable at the
// same URL are reported once.
type browsers []controller.Browser

func (bs browsers) Browse(ctx context.Context, timeout time.Duration) (*discovery.Round, error) {
	var (
		rounds []*discovery.Round
		errs   []error
	)
	for _, b := range bs {
		r, err := b.Browse(ctx, timeout)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rounds = append(rounds, r)
	}
	if len(rounds) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out := make(chan discovery.DeviceHandle)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool)
	)
	for _, r := range rounds {
		wg.Go(func() {
			for h := range r.C() {
				key, err := h.DescriptorURL()
				if err != nil {
					key = h.Instance
				}
				mu.Lock()
				dup := seen[key]
				seen[key] = true
				mu.Unlock()
				if dup {
					continue
				}
				select {
				case out <- h:
				case <-ctx.Done():
				}
			}
			if err := r.Err(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(out)
		close(done)
	}()
	return discovery.NewRound(out, func() error {
		<-done
		return errors.Join(errs...)
	}), nil
}
