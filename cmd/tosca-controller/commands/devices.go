package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tosca-iot/tosca-go/pkg/controller"
)

// withApp opens the controller for one command and closes it afterwards.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, opts.cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // nothing left to report to

	return fn(ctx, a)
}

// deviceRow is the printable form of a device.
type deviceRow struct {
	Identity string    `json:"identity" yaml:"identity"`
	Name     string    `json:"name" yaml:"name"`
	Kind     string    `json:"kind" yaml:"kind"`
	URL      string    `json:"url" yaml:"url"`
	Routes   int       `json:"routes" yaml:"routes"`
	Events   int       `json:"events" yaml:"events"`
	Changed  bool      `json:"changed" yaml:"changed"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen"`
}

func toRow(d controller.Device) deviceRow {
	r := deviceRow{
		Identity: d.Identity,
		Name:     d.Name,
		Kind:     string(d.Kind),
		URL:      d.URL,
		Changed:  d.Changed,
		LastSeen: d.LastSeen,
	}
	if d.Document != nil {
		r.Routes = len(d.Document.Routes)
		r.Events = len(d.Document.Events)
	}
	return r
}

func printDevices(w io.Writer, format string, devices []controller.Device) error {
	rows := make([]deviceRow, len(devices))
	for i, d := range devices {
		rows[i] = toRow(d)
	}
	if format != formatTable {
		return encode(w, format, rows)
	}

	t := newTable("IDENTITY", "NAME", "KIND", "URL", "ROUTES", "EVENTS", "STATUS")
	for _, r := range rows {
		status, style := "known", plainStyle
		if r.Changed {
			status, style = "changed", warnStyle
		}
		t.add(style, r.Identity, r.Name, r.Kind, r.URL, strconv.Itoa(r.Routes), strconv.Itoa(r.Events), status)
	}
	t.render(w)
	return nil
}

func runDiscover(ctx context.Context, a *app, w io.Writer, format string) error {
	found, err := a.discover(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	return printDevices(w, format, found)
}

func runForget(ctx context.Context, a *app, w io.Writer, ref string) error {
	d, err := a.match(ref)
	if err != nil {
		return err
	}
	if err := a.ctl.Forget(ctx, d.Identity); err != nil {
		return err
	}
	fmt.Fprintf(w, "Forgot %s (%s).\n", d.Name, d.Identity)
	return nil
}

func newDiscoverCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Run one discovery round and list the devices that answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runDiscover(ctx, a, cmd.OutOrStdout(), opts.output)
			})
		},
	}
}

func newDevicesCmd(opts *options) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List known devices from the descriptor cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if refresh {
					if _, err := a.discover(ctx); err != nil {
						return fmt.Errorf("discovery failed: %w", err)
					}
				}
				return printDevices(cmd.OutOrStdout(), opts.output, a.ctl.Devices())
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "run a discovery round first")
	return cmd
}

func newForgetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <device>",
		Short: "Remove a device from the known devices and the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runForget(ctx, a, cmd.OutOrStdout(), args[0])
			})
		},
	}
}
