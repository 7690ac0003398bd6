// Package schedule provides cancellable scheduled-task handles on top of a
// clock.Clock. A handle is created when a task is enabled and invalidated when
// it is disabled; a tick that has not started by the time Stop returns never
// runs.
package schedule

import (
	"sync"
	"time"

	"github.com/JakeFAU/hotspot-dashboard/internal/clock"
)

// Handle controls one scheduled task.
type Handle struct {
	mu       sync.Mutex
	clk      clock.Clock
	period   time.Duration
	periodic bool
	fn       func()
	timer    clock.Timer
	stopped  bool
}

// Every runs fn every period until the handle is stopped. The first run
// happens one period after the call. A non-positive period yields an inactive
// handle.
func Every(clk clock.Clock, period time.Duration, fn func()) *Handle {
	h := &Handle{clk: clk, period: period, periodic: true, fn: fn}
	if period <= 0 {
		h.stopped = true
		return h
	}
	h.mu.Lock()
	h.timer = clk.AfterFunc(period, h.tick)
	h.mu.Unlock()
	return h
}

// After runs fn once, d from now, unless the handle is stopped first.
func After(clk clock.Clock, d time.Duration, fn func()) *Handle {
	if d < 0 {
		d = 0
	}
	h := &Handle{clk: clk, period: d, fn: fn}
	h.mu.Lock()
	h.timer = clk.AfterFunc(d, h.tick)
	h.mu.Unlock()
	return h
}

// Stop invalidates the handle. It reports whether the handle was still active.
// Stop is safe to call multiple times and on a nil handle.
func (h *Handle) Stop() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return false
	}
	h.stopped = true
	if h.timer != nil {
		h.timer.Stop()
	}
	return true
}

// Active reports whether further runs may still happen.
func (h *Handle) Active() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.stopped
}

func (h *Handle) tick() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	if h.periodic {
		h.timer = h.clk.AfterFunc(h.period, h.tick)
	} else {
		h.stopped = true
	}
	h.mu.Unlock()
	h.fn()
}
