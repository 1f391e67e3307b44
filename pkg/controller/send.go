package controller

import (
	"context"
	"fmt"

	"github.com/tosca-iot/tosca-go/pkg/descriptor"
	"github.com/tosca-iot/tosca-go/pkg/hazard"
	"github.com/tosca-iot/tosca-go/pkg/policy"
	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// Send invokes a route of a device with named parameters.
//
// The route must be in the device descriptor. Its hazards are evaluated
// against the active policy first: a blocked request returns a
// *BlockedError and is not sent, and a policy fault such as a missing
// default action is returned as is. A response with a failure status is
// returned together with its *wire.StatusError.
//
// Stream responses must be closed by the caller.
func (c *Controller) Send(ctx context.Context, id string, method wire.Method, path string, params route.Params) (*wire.Response, error) {
	d, ri, err := c.resolve(id, method, path)
	if err != nil {
		return nil, err
	}
	if err := c.authorize(id, ri); err != nil {
		return nil, err
	}

	q := c.queueFor(id)
	if err := q.acquire(ctx); err != nil {
		return nil, err
	}
	defer q.release()

	req := &wire.Request{Method: method, Path: path}
	if len(params) > 0 {
		req.Params = params
	}

	c.logger.Debug("sending request", "device", id, "route", ri.Key())
	resp, err := c.client.Do(ctx, d.URL, d.Document.Device.MainRoute, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", id, ri.Key(), err)
	}
	return resp, resp.Err()
}

// SendDefaults invokes a route with the default value of every parameter.
func (c *Controller) SendDefaults(ctx context.Context, id string, method wire.Method, path string) (*wire.Response, error) {
	_, ri, err := c.resolve(id, method, path)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, id, method, path, ri.Schema().Defaults())
}

// Allowed reports whether the active policy lets the route through, without
// sending anything.
func (c *Controller) Allowed(id string, method wire.Method, path string) error {
	_, ri, err := c.resolve(id, method, path)
	if err != nil {
		return err
	}
	return c.authorize(id, ri)
}

func (c *Controller) resolve(id string, method wire.Method, path string) (Device, *descriptor.RouteInfo, error) {
	d, err := c.Device(id)
	if err != nil {
		return Device{}, nil, err
	}
	ri, ok := d.Document.Route(path, method)
	if !ok {
		return Device{}, nil, fmt.Errorf("%w: %s %s on %s", ErrUnknownRoute, method, path, id)
	}
	return d, ri, nil
}

func (c *Controller) authorize(id string, ri *descriptor.RouteInfo) error {
	hazards, err := ri.HazardSet()
	if err != nil {
		return fmt.Errorf("%s: %w", ri.Key(), err)
	}

	action, err := c.policy.Evaluate(id, hazards)
	if err != nil {
		return err
	}
	if action != policy.Block {
		return nil
	}

	blocked := &BlockedError{Device: id, Route: ri.Key(), Hazards: c.offending(id, hazards)}
	c.logger.Warn("request blocked", "device", id, "route", ri.Key(), "hazards", len(blocked.Hazards))
	return blocked
}

// offending returns the hazards that made the policy block: block list
// entries if any, else the hazards of every blocked category.
func (c *Controller) offending(id string, hazards hazard.Set) []hazard.Hazard {
	if out := c.policy.Offending(id, hazards); len(out) > 0 {
		return out
	}
	var out []hazard.Hazard
	for _, cat := range hazards.Categories() {
		in := hazards.InCategory(cat)
		set, err := hazard.NewSet(in...)
		if err != nil {
			continue
		}
		if a, err := c.policy.Evaluate(id, set); err == nil && a == policy.Block {
			out = append(out, in...)
		}
	}
	return out
}
