package controller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/route"
)

// Controller errors.
var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrUnknownRoute  = errors.New("unknown route")
	ErrBlocked       = errors.New("request blocked by policy")
	ErrNoSubscriber  = errors.New("no event subscriber configured")
	ErrNoEvents      = errors.New("device publishes no events")
)

// BlockedError reports a request the policy refused. errors.Is(err,
// ErrBlocked) holds for it.
type BlockedError struct {
	Device  string
	Route   route.Key
	Hazards []hazard.Hazard
}

func (e *BlockedError) Error() string {
	names := make([]string, len(e.Hazards))
	for i, h := range e.Hazards {
		names[i] = h.String()
	}
	return fmt.Sprintf("%s: %s on %s: %s", ErrBlocked, e.Route, e.Device, strings.Join(names, ", "))
}

func (e *BlockedError) Unwrap() error {
	return ErrBlocked
}
