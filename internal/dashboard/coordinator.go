// Package dashboard drives the hotspot dashboard: it decides when to fetch,
// sequences concurrent backend calls into the state store, runs the polling
// loop, and implements the delete and detail operations.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/clock"
	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/metrics"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/schedule"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

// Default timings.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultRefetchDelay = 2 * time.Second
)

// NoticeKeyCrawl groups the crawl progress notice with its outcome.
const NoticeKeyCrawl = "crawl"

// ErrClosed is returned by operations invoked after Close.
var ErrClosed = errors.New("dashboard: coordinator closed")

// Backend is the crawler service as seen by the coordinator.
type Backend interface {
	Sources(ctx context.Context) ([]string, error)
	Hotspots(ctx context.Context, params url.Values) ([]hotspot.Record, error)
	Crawl(ctx context.Context, params url.Values) error
	SchedulerStatus(ctx context.Context) (hotspot.SchedulerStatus, error)
	DeleteHotspot(ctx context.Context, id int64) error
	DeleteHotspots(ctx context.Context, ids []int64) (int, error)
	FetchDetails(ctx context.Context, id int64) (hotspot.Record, error)
}

// Config tunes the coordinator.
type Config struct {
	// PollInterval is the auto-refresh period.
	PollInterval time.Duration
	// RefetchDelay is how long after an acknowledged crawl the coordinator
	// waits before reloading. The backend gives no completion signal, so this
	// is a guess: a crawl that outlives it shows up on a later refresh.
	RefetchDelay time.Duration
	// ListLimit is sent as the list limit when the criteria carry none.
	ListLimit int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RefetchDelay <= 0 {
		c.RefetchDelay = DefaultRefetchDelay
	}
	return c
}

// Coordinator owns fetch sequencing, polling, mutations and the detail view.
// All state lives in the store; the coordinator only decides what to call and
// how to apply the result.
type Coordinator struct {
	backend Backend
	store   *state.Store
	notices notify.Emitter
	metrics *metrics.Metrics
	clock   clock.Clock
	cfg     Config
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	poll    *schedule.Handle
	pending map[*schedule.Handle]struct{}
	closed  bool

	pollBusy map[state.Operation]*atomic.Bool
}

// New wires a coordinator. Nil notices, metrics and logger are replaced with
// no-op implementations.
func New(
	backend Backend,
	store *state.Store,
	notices notify.Emitter,
	m *metrics.Metrics,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	if store == nil {
		store = state.New()
	}
	if notices == nil {
		notices = notify.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		backend: backend,
		store:   store,
		notices: notices,
		metrics: m,
		clock:   clk,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: map[*schedule.Handle]struct{}{},
		pollBusy: map[state.Operation]*atomic.Bool{
			state.OpHotspots:  {},
			state.OpScheduler: {},
		},
	}
}

// Store exposes the underlying state for readers.
func (c *Coordinator) Store() *state.Store {
	return c.store
}

// View returns the current snapshot.
func (c *Coordinator) View() state.View {
	return c.store.View()
}

// Refresh performs the initial load: sources, hotspots and scheduler status.
// The three requests are independent and run concurrently; Refresh returns
// once all have settled. Only a hotspot failure is returned; the other two are
// supplementary.
func (c *Coordinator) Refresh(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = c.LoadSources(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = c.LoadSchedulerStatus(ctx)
	}()
	err := c.LoadHotspots(ctx)
	wg.Wait()
	return err
}

// LoadSources replaces the source catalog. Failures are logged and the
// previous catalog is kept.
func (c *Coordinator) LoadSources(ctx context.Context) error {
	t := c.store.Begin(state.OpSources)
	defer c.store.Finish(t)

	start := time.Now()
	sources, err := c.backend.Sources(ctx)
	c.metrics.ObserveBackend(string(t.Op), err, time.Since(start))
	if err != nil {
		c.logger.Warn("load sources failed", zap.Uint64("seq", t.Seq), zap.Error(err))
		return fmt.Errorf("load sources: %w", err)
	}
	if !c.store.ApplySources(t, sources) {
		c.discarded(t)
	}
	return nil
}

// LoadHotspots replaces the record list with the backend's answer for the
// current criteria. On failure an error notice is raised and the list is kept.
func (c *Coordinator) LoadHotspots(ctx context.Context) error {
	t, criteria := c.store.BeginHotspots()
	defer c.store.Finish(t)
	params := c.listParams(criteria)

	start := time.Now()
	records, err := c.backend.Hotspots(ctx, params)
	c.metrics.ObserveBackend(string(t.Op), err, time.Since(start))
	if err != nil {
		if c.store.Stale(t) {
			c.logger.Debug("stale hotspot load failed", zap.Uint64("seq", t.Seq), zap.Error(err))
		} else {
			c.notify("", notify.LevelError, t.Op, "Failed to load hotspots", err)
		}
		return fmt.Errorf("load hotspots: %w", err)
	}
	if !c.store.ApplyHotspots(t, records) {
		c.discarded(t)
		return nil
	}
	v := c.store.View()
	c.metrics.SetListSizes(len(v.Records), len(v.Selection))
	return nil
}

// LoadSchedulerStatus refreshes the scheduler snapshot. Failures are logged
// and the previous status is kept.
func (c *Coordinator) LoadSchedulerStatus(ctx context.Context) error {
	t := c.store.Begin(state.OpScheduler)
	defer c.store.Finish(t)

	start := time.Now()
	status, err := c.backend.SchedulerStatus(ctx)
	c.metrics.ObserveBackend(string(t.Op), err, time.Since(start))
	if err != nil {
		c.logger.Warn("load scheduler status failed", zap.Uint64("seq", t.Seq), zap.Error(err))
		return fmt.Errorf("load scheduler status: %w", err)
	}
	if !c.store.ApplyScheduler(t, status) {
		c.discarded(t)
	}
	return nil
}

// SetFilter replaces the criteria and reloads the list. Sources and scheduler
// status are not refetched.
func (c *Coordinator) SetFilter(ctx context.Context, criteria hotspot.Criteria) error {
	c.store.SetCriteria(criteria)
	return c.LoadHotspots(ctx)
}

// TriggerCrawl asks the backend to crawl within the current date range and,
// once acknowledged, schedules a full reload after the refetch delay.
func (c *Coordinator) TriggerCrawl(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	params := c.store.Criteria().CrawlParams()
	t := c.store.Begin(state.OpCrawl)
	defer c.store.Finish(t)

	c.notify(NoticeKeyCrawl, notify.LevelLoading, t.Op, "Crawl in progress...", nil)
	start := time.Now()
	err := c.backend.Crawl(ctx, params)
	c.metrics.ObserveBackend(string(t.Op), err, time.Since(start))
	if err != nil {
		c.notify(NoticeKeyCrawl, notify.LevelError, t.Op, "Failed to start crawl", err)
		return fmt.Errorf("trigger crawl: %w", err)
	}
	c.notify(NoticeKeyCrawl, notify.LevelSuccess, t.Op, "Crawl started", nil)
	c.after(c.cfg.RefetchDelay, func(ctx context.Context) {
		_ = c.LoadHotspots(ctx)
		_ = c.LoadSources(ctx)
		_ = c.LoadSchedulerStatus(ctx)
	})
	return nil
}

// SetAutoRefresh enables or disables the polling loop. Disabling stops future
// ticks; requests already in flight still complete and apply.
func (c *Coordinator) SetAutoRefresh(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.poll.Stop()
	c.poll = nil
	if on {
		c.poll = schedule.Every(c.clock, c.cfg.PollInterval, c.pollTick)
	}
	c.store.SetAutoRefresh(on)
}

// pollTick starts one poll fetch per operation unless the previous poll fetch
// for that operation is still running.
func (c *Coordinator) pollTick() {
	c.pollOp(state.OpHotspots, c.LoadHotspots)
	c.pollOp(state.OpScheduler, c.LoadSchedulerStatus)
}

func (c *Coordinator) pollOp(op state.Operation, load func(context.Context) error) {
	busy := c.pollBusy[op]
	if !busy.CompareAndSwap(false, true) {
		c.metrics.ObservePollTick(string(op), metrics.PollSkipped)
		c.logger.Debug("poll tick skipped", zap.String("operation", string(op)))
		return
	}
	c.metrics.ObservePollTick(string(op), metrics.PollRun)
	if !c.spawn(func(ctx context.Context) {
		defer busy.Store(false)
		_ = load(ctx)
	}) {
		busy.Store(false)
	}
}

// after runs fn on a goroutine once d has elapsed, unless the coordinator is
// closed first.
func (c *Coordinator) after(d time.Duration, fn func(context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	var h *schedule.Handle
	h = schedule.After(c.clock, d, func() {
		c.mu.Lock()
		delete(c.pending, h)
		c.mu.Unlock()
		c.spawn(fn)
	})
	c.pending[h] = struct{}{}
}

// spawn runs fn on a tracked goroutine bound to the coordinator's lifetime.
func (c *Coordinator) spawn(fn func(context.Context)) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
	return true
}

// Close stops polling and pending reloads, cancels background fetches and
// waits for them to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.poll.Stop()
	c.poll = nil
	for h := range c.pending {
		h.Stop()
	}
	c.pending = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.store.SetAutoRefresh(false)
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Coordinator) listParams(criteria hotspot.Criteria) url.Values {
	params := criteria.Params()
	if criteria.Limit <= 0 && c.cfg.ListLimit > 0 {
		params.Set(hotspot.ParamLimit, strconv.Itoa(c.cfg.ListLimit))
	}
	return params
}

func (c *Coordinator) discarded(t state.Ticket) {
	c.metrics.ObserveStale(string(t.Op))
	c.logger.Debug("stale response discarded",
		zap.String("operation", string(t.Op)),
		zap.Uint64("seq", t.Seq),
	)
}

func (c *Coordinator) notify(key string, level notify.Level, op state.Operation, msg string, err error) {
	n := notify.Notice{
		Key:       key,
		Level:     level,
		Operation: string(op),
		Message:   msg,
		TS:        c.clock.Now(),
	}
	if err != nil {
		n.Err = err.Error()
	}
	c.notices.Emit(n)
}
