// Command tosca-device runs a simulated tosca device on a host OS.
//
// The device serves its routes over HTTP, announces itself over mDNS and
// publishes its events to an MQTT broker when one is configured.
//
// Usage:
//
//	tosca-device [flags]
//
// Flags:
//
//	-config string     Configuration file path
//	-kind string       Device kind: light, thermometer
//	-name string       Device name
//	-port int          Listen port
//	-log-level string  Log level: debug, info, warn, error
//	-interactive       Start an interactive shell
//
// Examples:
//
//	# Start a light with defaults
//	tosca-device
//
//	# Start a thermometer publishing to a broker
//	TOSCA_BROKER_ENABLED=true tosca-device -kind thermometer -name attic
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tosca-iot/tosca-go/internal/config"
	"github.com/tosca-iot/tosca-go/internal/logging"
	"github.com/tosca-iot/tosca-go/pkg/broker"
	"github.com/tosca-iot/tosca-go/pkg/discovery"
	"github.com/tosca-iot/tosca-go/pkg/dispatch"
	"github.com/tosca-iot/tosca-go/pkg/events"
	"github.com/tosca-iot/tosca-go/pkg/transport"
	"github.com/tosca-iot/tosca-go/pkg/version"
)

type flags struct {
	configFile  string
	kind        string
	name        string
	port        int
	logLevel    string
	interactive bool
}

func main() {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "Configuration file path")
	flag.StringVar(&f.kind, "kind", "", "Device kind: light, thermometer")
	flag.StringVar(&f.name, "name", "", "Device name")
	flag.IntVar(&f.port, "port", 0, "Listen port")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&f.interactive, "interactive", false, "Start an interactive shell")
	flag.Parse()

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, cfg, f.interactive); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, then applies flags that were set.
func loadConfig(f flags) (*config.Device, error) {
	cfg, err := config.LoadDevice(f.configFile)
	if err != nil {
		return nil, err
	}
	if f.kind != "" {
		cfg.Kind = f.kind
	}
	if f.name != "" {
		cfg.Name = f.name
	}
	if f.port != 0 {
		cfg.HTTP.Port = f.port
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Device, interactive bool) error {
	var sh *shell
	logger := logging.New(cfg.Log, "tosca-device")
	if interactive {
		var err error
		if sh, err = newShell(); err != nil {
			return err
		}
		logger = logging.NewWithWriter(cfg.Log, "tosca-device", sh.Stderr())
	}
	plog, closeLog, err := logging.Protocol(cfg.Log, logger)
	if err != nil {
		return fmt.Errorf("opening protocol log: %w", err)
	}
	defer closeLog() //nolint:errcheck // best effort on shutdown

	dev, err := newDevice(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("device ready",
		"name", cfg.Name,
		"kind", cfg.Kind,
		"identity", dev.desc.Identity(),
		"routes", len(dev.desc.Routes()),
		"protocol", version.Current)

	engine := dispatch.New(dev.desc, dispatch.WithLogger(plog))
	handler := transport.NewHandler(engine, dev.desc,
		transport.WithHandlerLogger(logger),
		transport.WithProtocolLogger(plog))

	srv, err := transport.NewServer(transport.ServerConfig{
		Address: cfg.HTTP.Address(),
		Handler: handler,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	defer srv.Stop() //nolint:errcheck // best effort on shutdown
	logger.Info("serving", "addr", srv.Addr().String(), "main_route", dev.desc.MainRoute())

	if cfg.Discovery.Enabled {
		adv, err := advertise(cfg, dev, int(srv.Port()))
		if err != nil {
			// Devices stay reachable by address without mDNS.
			logger.Warn("mDNS advertising failed", "error", err)
		} else {
			defer adv.Stop()
			logger.Info("advertising", "service", adv.Service())
		}
	}

	if cfg.Broker.Enabled {
		client, err := broker.Connect(ctx, cfg.Broker.Client(), logger)
		if err != nil {
			return err
		}
		defer client.Close() //nolint:errcheck // best effort on shutdown

		pub := events.NewPublisher(client, dev.desc.Identity(), events.WithPublisherLogger(logger))
		go func() {
			if err := dev.publish(ctx, pub); err != nil {
				logger.Error("event publishing stopped", "error", err)
			}
		}()
	}

	if sh != nil {
		sh.Run(ctx, cancel, dev)
	} else {
		<-ctx.Done()
	}
	logger.Info("shutting down")
	return nil
}

func advertise(cfg *config.Device, dev *device, port int) (*discovery.Advertiser, error) {
	adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		Instance:    cfg.Name,
		ServiceName: cfg.Discovery.ServiceName,
		Port:        port,
		Interface:   cfg.Discovery.Interface,
		TXT: discovery.DeviceTXT{
			ID:      dev.desc.Identity(),
			Kind:    string(dev.desc.Document().Device.Kind),
			Version: version.Current,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := adv.Start(); err != nil {
		return nil, err
	}
	return adv, nil
}
