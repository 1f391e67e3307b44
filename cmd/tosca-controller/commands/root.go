// Package commands implements the tosca-controller command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tosca-iot/tosca-go/internal/config"
)

// options holds the global flags.
type options struct {
	configFile    string
	output        string
	logLevel      string
	devices       []string
	noMDNS        bool
	policyDefault string
	policyFile    string

	cfg *config.Controller
}

// NewRootCmd builds the command tree. Every call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "tosca-controller",
		Short: "Discover tosca devices and send them policy-checked requests",
		Long: `tosca-controller finds devices over mDNS or a static address list,
fetches their descriptors and sends requests after checking the hazards of
each route against the configured policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "configuration file")
	pf.StringVarP(&opts.output, "output", "o", "table", "output format: table, json, yaml")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringSliceVar(&opts.devices, "device", nil, "device address to query besides mDNS (repeatable)")
	pf.BoolVar(&opts.noMDNS, "no-mdns", false, "do not browse mDNS")
	pf.StringVar(&opts.policyFile, "policy", "", "policy file")
	pf.StringVar(&opts.policyDefault, "policy-default", "", "default policy action: allow, block")

	root.AddCommand(
		newDiscoverCmd(opts),
		newDevicesCmd(opts),
		newRoutesCmd(opts),
		newSendCmd(opts),
		newWatchCmd(opts),
		newForgetCmd(opts),
		newPolicyCmd(opts),
		newShellCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and applies the global flags.
func (o *options) load() error {
	cfg, err := config.LoadController(o.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if len(o.devices) > 0 {
		cfg.Devices = append(cfg.Devices, o.devices...)
	}
	if o.noMDNS {
		cfg.Discovery.Enabled = false
	}
	if o.policyFile != "" {
		cfg.Policy.File = o.policyFile
	}
	if o.policyDefault != "" {
		cfg.Policy.Default = o.policyDefault
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch o.output {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", o.output)
	}
	o.cfg = cfg
	return nil
}

// Execute runs the root command until it finishes or a signal arrives.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
