package controller

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tosca-iot/tosca-go/pkg/discovery"
)

// Discover runs one discovery round and fetches the descriptor of every
// device that answers. Devices whose descriptor cannot be fetched or speaks
// an incompatible protocol version are skipped. The returned devices are
// those seen in this round; Changed marks new or different descriptors.
// A browse failure is returned together with the devices found before it.
func (c *Controller) Discover(ctx context.Context) ([]Device, error) {
	round, err := c.browser.Browse(ctx, c.timeout)
	if err != nil {
		return nil, err
	}

	var (
		wg    sync.WaitGroup
		sem   = semaphore.NewWeighted(int64(c.concurrency))
		mu    sync.Mutex
		found []Device
	)
	for h := range round.C() {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Go(func() {
			defer sem.Release(1)
			d, err := c.fetch(ctx, h)
			if err != nil {
				c.logger.Warn("skipping device", "instance", h.Instance, "error", err)
				return
			}
			mu.Lock()
			found = append(found, d)
			mu.Unlock()
		})
	}
	wg.Wait()

	slices.SortFunc(found, func(a, b Device) int { return strings.Compare(a.Identity, b.Identity) })
	c.logger.Info("discovery round finished", "devices", len(found))
	if err := round.Err(); err != nil {
		c.logger.Warn("discovery round failed", "error", err)
		return found, err
	}
	if err := ctx.Err(); err != nil {
		return found, err
	}
	return found, nil
}

func (c *Controller) fetch(ctx context.Context, h discovery.DeviceHandle) (Device, error) {
	base, err := h.URL()
	if err != nil {
		return Device{}, err
	}
	doc, err := discovery.FetchDescriptor(ctx, c.client, h)
	if err != nil {
		return Device{}, err
	}

	id := doc.Device.Identity
	c.mu.RLock()
	prev, known := c.devices[id]
	c.mu.RUnlock()

	changed := !known || !prev.Document.SameAs(doc)
	if c.cache != nil {
		cacheChanged, err := c.cache.Put(ctx, doc, base)
		if err != nil {
			c.logger.Warn("caching descriptor failed", "device", id, "error", err)
		} else {
			changed = cacheChanged
		}
	}

	d := &Device{
		Identity: id,
		Name:     doc.Device.Name,
		Kind:     doc.Device.Kind,
		URL:      base,
		Handle:   h,
		Document: doc,
		Changed:  changed,
		LastSeen: c.now(),
	}
	c.mu.Lock()
	c.devices[id] = d
	c.mu.Unlock()

	if changed {
		c.logger.Info("device descriptor changed", "device", id, "name", d.Name, "url", base)
	}
	return *d, nil
}

// Restore loads the devices of the descriptor cache that are not known
// yet. It returns how many were added.
func (c *Controller) Restore(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	entries, err := c.cache.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("restoring devices: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	added := 0
	for _, e := range entries {
		if _, ok := c.devices[e.Identity]; ok {
			continue
		}
		c.devices[e.Identity] = &Device{
			Identity: e.Identity,
			Name:     e.Name,
			Kind:     e.Kind,
			URL:      e.URL,
			Document: e.Document,
			LastSeen: e.UpdatedAt,
		}
		added++
	}
	return added, nil
}
