package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tosca-iot/tosca-go/pkg/policy"
)

// defaultWatchDuration bounds a watch started from the shell.
const defaultWatchDuration = 30 * time.Second

// shell runs controller commands against one long-lived controller.
type shell struct {
	a      *app
	out    io.Writer
	format string
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintln(s.out, "  discover, d                          Run a discovery round")
	fmt.Fprintln(s.out, "  devices, ls                          List known devices")
	fmt.Fprintln(s.out, "  routes, r <device>                   Show routes and policy verdicts")
	fmt.Fprintln(s.out, "  send, s <device> <method> <path> ... Send a request (name=value parameters)")
	fmt.Fprintln(s.out, "  watch, w <device> [duration]         Follow events (default 30s)")
	fmt.Fprintln(s.out, "  forget <device>                      Forget a device")
	fmt.Fprintln(s.out, "  policy                               Show the active policy")
	fmt.Fprintln(s.out, "  check <device>                       Evaluate the routes of a device")
	fmt.Fprintln(s.out, "  default <allow|block>                Replace the default policy action")
	fmt.Fprintln(s.out, "  quit, q                              Exit")
}

// execute runs one line and reports whether the shell should exit.
func (s *shell) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "discover", "d":
		err = runDiscover(ctx, s.a, s.out, s.format)
	case "devices", "ls":
		err = printDevices(s.out, s.format, s.a.ctl.Devices())
	case "routes", "r":
		if err = needArgs(args, 1, "routes <device>"); err == nil {
			err = runRoutes(ctx, s.a, s.out, s.format, args[0])
		}
	case "send", "s":
		err = runSend(ctx, s.a, s.out, args)
	case "watch", "w":
		err = s.watch(ctx, args)
	case "forget":
		if err = needArgs(args, 1, "forget <device>"); err == nil {
			err = runForget(ctx, s.a, s.out, args[0])
		}
	case "policy":
		err = runPolicyShow(s.a, s.out)
	case "check":
		if err = needArgs(args, 1, "check <device>"); err == nil {
			err = runCheck(ctx, s.a, s.out, args[0])
		}
	case "default":
		err = s.setDefault(args)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintln(s.out, blockedStyle.Render("Error: "+err.Error()))
	}
	return false
}

func (s *shell) watch(ctx context.Context, args []string) error {
	if err := needArgs(args, 1, "watch <device> [duration]"); err != nil {
		return err
	}
	d := defaultWatchDuration
	if len(args) > 1 {
		var err error
		if d, err = time.ParseDuration(args[1]); err != nil {
			return fmt.Errorf("invalid duration %q", args[1])
		}
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err := runWatch(ctx, s.a, s.out, args[0])
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// setDefault replaces the policy with a copy carrying a new default action.
func (s *shell) setDefault(args []string) error {
	if err := needArgs(args, 1, "default <allow|block>"); err != nil {
		return err
	}
	action, err := policy.ParseAction(args[0])
	if err != nil {
		return err
	}
	if err := s.a.ctl.SetPolicy(s.a.ctl.Policy().WithDefault(action)); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Default policy action is now %s.\n", action)
	return nil
}

func needArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func newShellCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "controller> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()

			ctx := cmd.Context()
			a, err := openApp(ctx, opts.cfg, rl.Stderr())
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck // nothing left to report to

			s := &shell{a: a, out: rl.Stdout(), format: opts.output}
			s.printHelp()
			for {
				if ctx.Err() != nil {
					return nil
				}
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if err != nil {
					return nil
				}
				if s.execute(ctx, line) {
					return nil
				}
			}
		},
	}
}
