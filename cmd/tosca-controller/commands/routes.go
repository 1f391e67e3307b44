package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tosca-iot/tosca-go/pkg/controller"
	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/policy"
)

// Policy verdicts as printed.
const (
	verdictAllow   = "allow"
	verdictBlock   = "block"
	verdictNoRule  = "no-default"
	verdictInvalid = "invalid"
)

// routeRow is the printable form of a route.
type routeRow struct {
	Method     string   `json:"method" yaml:"method"`
	Path       string   `json:"path" yaml:"path"`
	Response   string   `json:"response" yaml:"response"`
	Parameters []string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Hazards    []string `json:"hazards,omitempty" yaml:"hazards,omitempty"`
	Verdict    string   `json:"verdict" yaml:"verdict"`
}

// verdict turns the result of Controller.Allowed into a printable word.
func verdict(err error) string {
	switch {
	case err == nil:
		return verdictAllow
	case errors.Is(err, controller.ErrBlocked):
		return verdictBlock
	case errors.Is(err, policy.ErrNoDefault):
		return verdictNoRule
	default:
		return verdictInvalid
	}
}

func parameterSummary(p descriptor.ParameterInfo) string {
	s := fmt.Sprintf("%s:%s=%s", p.Name, p.Kind, p.Default)
	if p.Min != nil && p.Max != nil {
		s += fmt.Sprintf("[%g..%g]", *p.Min, *p.Max)
	}
	if p.Step != nil {
		s += fmt.Sprintf("/%g", *p.Step)
	}
	if p.Required {
		s += "!"
	}
	return s
}

func routeRows(a *app, d controller.Device) []routeRow {
	rows := make([]routeRow, 0, len(d.Document.Routes))
	for _, ri := range d.Document.Routes {
		r := routeRow{
			Method:   ri.Method.String(),
			Path:     ri.Path,
			Response: ri.Response.String(),
			Verdict:  verdict(a.ctl.Allowed(d.Identity, ri.Method, ri.Path)),
		}
		for _, p := range ri.Parameters {
			r.Parameters = append(r.Parameters, parameterSummary(p))
		}
		for _, h := range ri.Hazards {
			r.Hazards = append(r.Hazards, h.String())
		}
		rows = append(rows, r)
	}
	return rows
}

func verdictStyle(v string) lipgloss.Style {
	switch v {
	case verdictAllow:
		return okStyle
	case verdictBlock:
		return blockedStyle
	default:
		return warnStyle
	}
}

func runRoutes(ctx context.Context, a *app, w io.Writer, format, ref string) error {
	d, err := a.lookup(ctx, ref)
	if err != nil {
		return err
	}
	rows := routeRows(a, d)
	if format != formatTable {
		return encode(w, format, rows)
	}

	fmt.Fprintf(w, "%s %s (%s) main route %s\n",
		headerStyle.Render(d.Name), d.Identity, d.Kind, d.Document.Device.MainRoute)
	t := newTable("METHOD", "PATH", "RESPONSE", "PARAMETERS", "HAZARDS", "POLICY")
	for _, r := range rows {
		t.add(verdictStyle(r.Verdict), r.Method, r.Path, r.Response,
			strings.Join(r.Parameters, " "), strings.Join(r.Hazards, ", "), r.Verdict)
	}
	t.render(w)
	return nil
}

// runCheck prints only the policy verdict of every route.
func runCheck(ctx context.Context, a *app, w io.Writer, ref string) error {
	d, err := a.lookup(ctx, ref)
	if err != nil {
		return err
	}
	for _, ri := range d.Document.Routes {
		err := a.ctl.Allowed(d.Identity, ri.Method, ri.Path)
		v := verdict(err)
		line := fmt.Sprintf("%-6s %-24s %s", ri.Method, ri.Path, verdictStyle(v).Render(v))
		var blocked *controller.BlockedError
		if errors.As(err, &blocked) {
			names := make([]string, len(blocked.Hazards))
			for i, h := range blocked.Hazards {
				names[i] = h.String()
			}
			line += " " + dimStyle.Render(strings.Join(names, ", "))
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func runPolicyShow(a *app, w io.Writer) error {
	data, err := policy.Marshal(a.ctl.Policy())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func newRoutesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "routes <device>",
		Short: "Show the routes of a device with their hazards and policy verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runRoutes(ctx, a, cmd.OutOrStdout(), opts.output, args[0])
			})
		},
	}
}

func newPolicyCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the hazard policy",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the active policy as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(_ context.Context, a *app) error {
					return runPolicyShow(a, cmd.OutOrStdout())
				})
			},
		},
		&cobra.Command{
			Use:   "check <device>",
			Short: "Evaluate every route of a device against the policy",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd, opts, func(ctx context.Context, a *app) error {
					return runCheck(ctx, a, cmd.OutOrStdout(), args[0])
				})
			},
		},
	)
	return cmd
}
