package controller

import (
	"context"
	"errors"
	"time"

	"github.com/tosca-iot/tosca-go/pkg/connection"
	"github.com/tosca-iot/tosca-go/pkg/events"
)

// EventFunc receives the events of a watched device.
type EventFunc func(ev events.Event)

// Watch delivers the events of a device to fn until ctx ends. A lost broker
// connection ends the current subscription; Watch then subscribes again
// with exponential backoff. Watch returns ctx.Err() once ctx ends, or the
// first error that a new subscription cannot recover from.
func (c *Controller) Watch(ctx context.Context, id string, fn EventFunc) error {
	if c.subscriber == nil {
		return ErrNoSubscriber
	}
	d, err := c.Device(id)
	if err != nil {
		return err
	}
	if len(d.Document.Events) == 0 {
		return ErrNoEvents
	}

	sup := connection.NewSupervisor(
		connection.WithBackoff(connection.NewBackoffWithConfig(c.watchBackoff)),
		connection.WithRetryable(func(err error) bool {
			return errors.Is(err, events.ErrBrokerDisconnected)
		}),
	)
	sup.OnRetry(func(attempt int, delay time.Duration, err error) {
		c.logger.Warn("event subscription lost", "device", id, "attempt", attempt, "retry_in", delay, "error", err)
	})

	return sup.Run(ctx, func(ctx context.Context) error {
		sub, err := c.subscriber.Subscribe(ctx, id)
		if err != nil {
			return err
		}
		defer sub.Close()

		c.logger.Debug("watching device", "device", id)
		for ev := range sub.C() {
			if c.recorder != nil {
				if err := c.recorder.Record(ev); err != nil {
					c.logger.Debug("event not recorded", "device", id, "event", ev.Name, "error", err)
				}
			}
			fn(ev)
		}
		return sub.Err()
	})
}
