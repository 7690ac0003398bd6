package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config controls buffering and batching for the Hub.
//   - BufferSize: capacity of the intake channel (default 256).
//   - MaxBatch: flush once this many notices are pending (default 32).
//   - MaxWait: flush a partial batch after this long (default 100ms).
//   - SinkTimeout: per-sink deadline while flushing (default 2s).
//   - Logger: optional structured logger for hub warnings.
type Config struct {
	BufferSize  int
	MaxBatch    int
	MaxWait     time.Duration
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

const (
	defaultBufferSize  = 256
	defaultMaxBatch    = 32
	defaultMaxWait     = 100 * time.Millisecond
	defaultSinkTimeout = 2 * time.Second
	dropWarnInterval   = 5 * time.Second
)

// Hub fans notices out to sinks. Emit never blocks; when the intake buffer is
// full the notice is dropped and counted.
type Hub struct {
	cfg      Config
	sinks    []Sink
	intake   chan Notice
	stop     chan struct{}
	done     chan struct{}
	logger   *zap.Logger
	dropped  atomic.Int64
	lastWarn atomic.Int64
	closed   atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub applies defaults and starts the batching goroutine.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = defaultMaxBatch
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		cfg:    cfg,
		sinks:  append([]Sink(nil), sinks...),
		intake: make(chan Notice, cfg.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go h.run()
	return h
}

// Emit enqueues a notice for delivery.
func (h *Hub) Emit(n Notice) {
	if h == nil || h.closed.Load() {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.TS.IsZero() {
		n.TS = time.Now().UTC()
	}
	if err := n.Validate(); err != nil {
		h.logger.Debug("discarding invalid notice", zap.Error(err))
		return
	}
	select {
	case h.intake <- n:
	default:
		h.dropped.Add(1)
		h.warnDropped(time.Now())
	}
}

// Dropped returns how many notices were discarded because of backpressure.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close drains pending notices, flushes and closes sinks, and waits for the
// batching goroutine. Further Emit calls are ignored.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notify hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.done)
	pending := make([]Notice, 0, h.cfg.MaxBatch)
	var flushC <-chan time.Time
	var flushTimer *time.Timer
	for {
		select {
		case n := <-h.intake:
			pending = append(pending, n)
			if len(pending) >= h.cfg.MaxBatch {
				h.flush(pending)
				pending = pending[:0]
				flushC = nil
				continue
			}
			if flushC == nil {
				flushTimer = time.NewTimer(h.cfg.MaxWait)
				flushC = flushTimer.C
			}
		case <-flushC:
			flushC = nil
			h.flush(pending)
			pending = pending[:0]
		case <-h.stop:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			h.drain(pending)
			return
		}
	}
}

func (h *Hub) drain(pending []Notice) {
	for {
		select {
		case n := <-h.intake:
			pending = append(pending, n)
		default:
			h.flush(pending)
			h.closeSinks()
			return
		}
	}
}

func (h *Hub) flush(batch []Notice) {
	if len(batch) == 0 {
		return
	}
	out := append([]Notice(nil), batch...)
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, out); err != nil {
			h.logger.Warn("notice sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("notice sink close failed", zap.Error(err))
		}
	}
}

func (h *Hub) warnDropped(now time.Time) {
	last := h.lastWarn.Load()
	if now.UnixNano()-last < dropWarnInterval.Nanoseconds() {
		return
	}
	if h.lastWarn.CompareAndSwap(last, now.UnixNano()) {
		h.logger.Warn("notices dropped due to backpressure", zap.Int64("dropped_total", h.dropped.Load()))
	}
}
