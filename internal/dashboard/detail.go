package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

var (
	// ErrDetailNotOpen means the detail view is closed or shows another id.
	ErrDetailNotOpen = errors.New("dashboard: detail view not open for this hotspot")
	// ErrNotListed means the id is not in the current list.
	ErrNotListed = errors.New("dashboard: hotspot not in current list")
	// ErrIdentityChanged means an enrichment came back for a different id.
	ErrIdentityChanged = errors.New("dashboard: enrichment returned a different hotspot")
)

// OpenDetail shows a snapshot of rec.
func (c *Coordinator) OpenDetail(rec hotspot.Record) {
	c.store.OpenDetail(rec)
}

// OpenDetailByID opens the listed record with the given id.
func (c *Coordinator) OpenDetailByID(id int64) (hotspot.Record, error) {
	rec, ok := c.store.Record(id)
	if !ok {
		return hotspot.Record{}, fmt.Errorf("open detail %d: %w", id, ErrNotListed)
	}
	c.store.OpenDetail(rec)
	return rec, nil
}

// CloseDetail closes the detail view. An enrichment still in flight is
// discarded when it returns.
func (c *Coordinator) CloseDetail() {
	c.store.CloseDetail()
}

// FetchDetails enriches the open record. On success the detail view and the
// list entry are replaced together; on failure neither changes. The result is
// dropped if the detail view was closed or moved to another id meanwhile.
func (c *Coordinator) FetchDetails(ctx context.Context, id int64) (hotspot.Record, error) {
	if d, open := c.store.Detail(); !open || d.ID != id {
		c.notify("", notify.LevelWarning, state.OpDetails, "Open the hotspot before fetching details", nil)
		return hotspot.Record{}, fmt.Errorf("fetch details %d: %w", id, ErrDetailNotOpen)
	}

	t := c.store.Begin(state.OpDetails)
	defer c.store.Finish(t)

	start := time.Now()
	rec, err := c.backend.FetchDetails(ctx, id)
	c.metrics.ObserveBackend(string(t.Op), err, time.Since(start))
	if err == nil && rec.ID != id {
		err = fmt.Errorf("%w: got %d", ErrIdentityChanged, rec.ID)
	}
	if err != nil {
		c.notify("", notify.LevelError, t.Op, "Failed to fetch details", err)
		return hotspot.Record{}, fmt.Errorf("fetch details %d: %w", id, err)
	}

	if !c.store.ApplyDetails(t, rec) {
		if c.store.Stale(t) {
			c.discarded(t)
		} else {
			c.logger.Debug("enrichment dropped, detail view changed", zap.Int64("id", id))
		}
		return rec, nil
	}
	c.notify("", notify.LevelSuccess, t.Op, "Details fetched", nil)
	return rec, nil
}
