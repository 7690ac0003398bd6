package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

// Precondition failures. They are also raised as warning notices.
var (
	ErrEmptySelection = errors.New("dashboard: no hotspots selected")
	ErrEmptyList      = errors.New("dashboard: no hotspots to delete")
)

// SetSelection replaces the selection set. Ids missing from the list are
// ignored when the selection is read.
func (c *Coordinator) SetSelection(ids []int64) {
	c.store.SetSelection(ids)
	v := c.store.View()
	c.metrics.SetListSizes(len(v.Records), len(v.Selection))
}

// DeleteOne deletes a single record and reloads the list.
func (c *Coordinator) DeleteOne(ctx context.Context, id int64) error {
	err := c.mutate(ctx, []int64{id}, func(ctx context.Context) error {
		return c.backend.DeleteHotspot(ctx, id)
	})
	if err != nil {
		return err
	}
	c.notify("", notify.LevelSuccess, state.OpDelete, "Hotspot deleted", nil)
	c.reconcile(ctx)
	return nil
}

// DeleteSelected bulk-deletes exactly the selected records, clears the
// selection and reloads. An empty selection issues no request.
func (c *Coordinator) DeleteSelected(ctx context.Context) error {
	ids := c.store.Selection()
	if len(ids) == 0 {
		c.notify("", notify.LevelWarning, state.OpDelete, "Select hotspots to delete first", nil)
		return ErrEmptySelection
	}
	return c.deleteMany(ctx, ids)
}

// DeleteAll bulk-deletes every record in the current filtered list, not the
// whole backend. An empty list issues no request.
func (c *Coordinator) DeleteAll(ctx context.Context) error {
	ids := c.store.RecordIDs()
	if len(ids) == 0 {
		c.notify("", notify.LevelWarning, state.OpDelete, "No hotspots to delete", nil)
		return ErrEmptyList
	}
	return c.deleteMany(ctx, ids)
}

func (c *Coordinator) deleteMany(ctx context.Context, ids []int64) error {
	var count int
	err := c.mutate(ctx, ids, func(ctx context.Context) error {
		n, err := c.backend.DeleteHotspots(ctx, ids)
		count = n
		return err
	})
	if err != nil {
		return err
	}
	c.store.ClearSelection()
	c.notify("", notify.LevelSuccess, state.OpDelete, fmt.Sprintf("Deleted %d hotspots", count), nil)
	c.reconcile(ctx)
	return nil
}

// mutate brackets a delete call with the in-flight flag and, on success,
// forgets the deleted ids. Nothing changes on failure.
func (c *Coordinator) mutate(ctx context.Context, ids []int64, call func(context.Context) error) error {
	t := c.store.Begin(state.OpDelete)
	start := time.Now()
	err := call(ctx)
	c.metrics.ObserveBackend(string(t.Op), err, time.Since(start))
	if err != nil {
		c.store.Finish(t)
		c.notify("", notify.LevelError, t.Op, "Failed to delete", err)
		return fmt.Errorf("delete %v: %w", ids, err)
	}
	c.store.Forget(ids)
	c.store.Finish(t)
	return nil
}

// reconcile reloads the list after a mutation. A reload failure is already
// surfaced by LoadHotspots and does not fail the mutation.
func (c *Coordinator) reconcile(ctx context.Context) {
	if err := c.LoadHotspots(ctx); err != nil {
		c.logger.Warn("reload after delete failed", zap.Error(err))
	}
}
