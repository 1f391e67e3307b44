package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// buildParams starts from the route defaults and applies name=value
// arguments, typed by the route schema.
func buildParams(ri *descriptor.RouteInfo, args []string) (route.Params, error) {
	params := ri.Schema().Defaults()
	for _, arg := range args {
		name, text, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("argument %q is not name=value", arg)
		}
		var info *descriptor.ParameterInfo
		for i := range ri.Parameters {
			if ri.Parameters[i].Name == name {
				info = &ri.Parameters[i]
				break
			}
		}
		if info == nil {
			return nil, fmt.Errorf("route %s has no parameter %q", ri.Key(), name)
		}
		v, err := value.Parse(info.Kind, text)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", name, err)
		}
		params[name] = v
	}
	return params, nil
}

// runSend resolves the device and route, then sends the request. args are
// device, method, path and optional name=value parameters.
func runSend(ctx context.Context, a *app, w io.Writer, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: send <device> <method> <path> [name=value...]")
	}
	method, err := wire.ParseMethod(args[1])
	if err != nil {
		return err
	}
	path := args[2]

	d, err := a.lookup(ctx, args[0])
	if err != nil {
		return err
	}
	ri, ok := d.Document.Route(path, method)
	if !ok {
		return fmt.Errorf("%s has no route %s %s", d.Name, method, path)
	}
	params, err := buildParams(ri, args[3:])
	if err != nil {
		return err
	}

	resp, err := a.ctl.Send(ctx, d.Identity, method, path, params)
	var statusErr *wire.StatusError
	if errors.As(err, &statusErr) {
		fmt.Fprintln(w, blockedStyle.Render(statusErr.Error()))
		return err
	}
	if err != nil {
		return err
	}
	return printResponse(w, resp)
}

func printResponse(w io.Writer, resp *wire.Response) error {
	switch resp.Kind {
	case wire.ResponseSerial:
		if resp.Payload == nil {
			fmt.Fprintln(w, okStyle.Render(resp.Status.String()))
			return nil
		}
		fmt.Fprintln(w, resp.Payload.String())
	case wire.ResponseInfo:
		var doc any
		if err := wire.Unmarshal(resp.Info, &doc); err != nil {
			return fmt.Errorf("decoding info: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case wire.ResponseStream:
		if resp.Stream == nil {
			return nil
		}
		defer resp.Stream.Close()
		for {
			c, err := resp.Stream.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading stream: %w", err)
			}
			if _, err := w.Write(c.Data); err != nil {
				return err
			}
			if c.Last {
				return nil
			}
		}
	default:
		fmt.Fprintln(w, okStyle.Render(resp.Status.String()))
	}
	return nil
}

func newSendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <device> <method> <path> [name=value...]",
		Short: "Send a request to a device after checking the policy",
		Long: `Send invokes a route of a device. Parameters not given keep the default
from the device descriptor. The request is refused before it leaves the
controller when the policy blocks one of the route's hazards.`,
		Example: `  tosca-controller send kitchen PUT /on brightness=0.5
  tosca-controller send aabbcc GET /state`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runSend(ctx, a, cmd.OutOrStdout(), args)
			})
		},
	}
}
