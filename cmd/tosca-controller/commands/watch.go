package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tosca-iot/tosca-go/pkg/events"
)

func formatEvent(ev events.Event) string {
	return fmt.Sprintf("%s %s %s=%s %s",
		ev.Timestamp.Format(time.TimeOnly),
		ev.Device,
		headerStyle.Render(ev.Name),
		ev.Payload,
		dimStyle.Render(fmt.Sprintf("seq=%d", ev.Seq)))
}

// runWatch prints the events of a device until ctx ends.
func runWatch(ctx context.Context, a *app, w io.Writer, ref string) error {
	d, err := a.lookup(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Watching %s (%s), Ctrl-C to stop.\n", d.Name, d.Identity)
	err = a.ctl.Watch(ctx, d.Identity, func(ev events.Event) {
		fmt.Fprintln(w, formatEvent(ev))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <device>",
		Short: "Follow the events a device publishes to the broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runWatch(ctx, a, cmd.OutOrStdout(), args[0])
			})
		},
	}
}
