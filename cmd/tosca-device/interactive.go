package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"
)

// errInjectedFault is the fault the shell puts on a thermometer.
var errInjectedFault = errors.New("sensor disconnected")

// shell is the interactive command line of tosca-device.
type shell struct {
	rl *readline.Instance
}

func newShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "device> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{rl: rl}, nil
}

// Stderr returns a writer that does not garble the prompt.
func (s *shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Run reads commands until quit, EOF or ctx ends.
func (s *shell) Run(ctx context.Context, cancel context.CancelFunc, dev *device) {
	defer s.rl.Close()

	out := s.rl.Stdout()
	printHelp(out, dev)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
		if quit := execute(ctx, out, dev, line); quit {
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
	}
}

// execute runs one command line and reports whether the shell should exit.
func execute(ctx context.Context, w io.Writer, dev *device, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		printHelp(w, dev)
	case "info", "i":
		printInfo(w, dev)
	case "routes", "r":
		printRoutes(w, dev)
	case "state", "s":
		err = printState(ctx, w, dev)
	case "on", "off":
		err = cmdPower(ctx, w, dev, cmd == "on")
	case "brightness", "b":
		err = cmdBrightness(ctx, w, dev, args)
	case "fault":
		err = cmdFault(w, dev, errInjectedFault)
	case "clear":
		err = cmdFault(w, dev, nil)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(w, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
	return false
}

func printHelp(w io.Writer, dev *device) {
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  info, i              Show the device description")
	fmt.Fprintln(w, "  routes, r            List routes")
	fmt.Fprintln(w, "  state, s             Show the current state")
	if dev.light != nil {
		fmt.Fprintln(w, "  on | off             Switch the light")
		fmt.Fprintln(w, "  brightness, b <0-1>  Set the brightness")
	}
	if dev.thermo != nil {
		fmt.Fprintln(w, "  fault | clear        Inject or clear a sensor fault")
	}
	fmt.Fprintln(w, "  quit, q              Exit")
}

func printInfo(w io.Writer, dev *device) {
	doc := dev.desc.Document()
	fmt.Fprintf(w, "Name:       %s\n", doc.Device.Name)
	fmt.Fprintf(w, "Identity:   %s\n", doc.Device.Identity)
	fmt.Fprintf(w, "Kind:       %s\n", doc.Device.Kind)
	fmt.Fprintf(w, "Main route: %s\n", doc.Device.MainRoute)
	fmt.Fprintf(w, "Digest:     %s\n", dev.desc.Digest())
	if doc.Broker != nil {
		fmt.Fprintf(w, "Broker:     %s:%d (%s)\n", doc.Broker.Host, doc.Broker.Port, doc.Broker.Topic)
	}
	for _, ev := range doc.Events {
		fmt.Fprintf(w, "Event:      %s every %s\n", ev.Name, ev.Interval)
	}
}

func printRoutes(w io.Writer, dev *device) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tRESPONSE\tHAZARDS")
	for _, r := range dev.desc.Routes() {
		var hazards []string
		for _, h := range r.Hazards.All() {
			hazards = append(hazards, h.String())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Response, strings.Join(hazards, ", "))
	}
	tw.Flush() //nolint:errcheck // interactive output
}

func printState(ctx context.Context, w io.Writer, dev *device) error {
	switch {
	case dev.light != nil:
		on, _ := dev.light.IsOn(ctx)
		level, _ := dev.light.Brightness(ctx)
		watts, _ := dev.light.Power(ctx)
		fmt.Fprintf(w, "on=%t brightness=%.2f power=%.2fW\n", on, level, watts)
	case dev.thermo != nil:
		v, err := dev.thermo.Read(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "temperature=%s%s readings=%d\n", v, dev.thermo.Unit(), len(dev.thermo.History()))
	}
	return nil
}

func cmdPower(ctx context.Context, w io.Writer, dev *device, on bool) error {
	if dev.light == nil {
		return errors.New("not a light")
	}
	if err := dev.light.SetOn(ctx, on); err != nil {
		return err
	}
	return printState(ctx, w, dev)
}

func cmdBrightness(ctx context.Context, w io.Writer, dev *device, args []string) error {
	if dev.light == nil {
		return errors.New("not a light")
	}
	if len(args) != 1 {
		return errors.New("usage: brightness <0-1>")
	}
	level, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid brightness %q", args[0])
	}
	if err := dev.light.SetBrightness(ctx, level); err != nil {
		return err
	}
	return printState(ctx, w, dev)
}

func cmdFault(w io.Writer, dev *device, fault error) error {
	if dev.thermo == nil {
		return errors.New("not a thermometer")
	}
	dev.thermo.SetFault(fault)
	if fault != nil {
		fmt.Fprintf(w, "fault injected: %v\n", fault)
	} else {
		fmt.Fprintln(w, "fault cleared")
	}
	return nil
}
