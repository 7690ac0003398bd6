package dashboard

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hotspot-dashboard/internal/clock/fake"
	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/metrics"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

var errBackendDown = errors.New("connection refused")

// fakeBackend serves an in-memory record set and records every call. Hooks
// override individual endpoints.
type fakeBackend struct {
	mu        sync.Mutex
	records   []hotspot.Record
	sources   []string
	scheduler hotspot.SchedulerStatus

	hotspotsHook func(ctx context.Context, params url.Values) ([]hotspot.Record, error)
	detailsHook  func(ctx context.Context, id int64) (hotspot.Record, error)
	sourcesHook  func(ctx context.Context) ([]string, error)
	sourcesErr   error
	schedErr     error
	crawlErr     error
	deleteErr    error

	calls       map[string]int
	listParams  []url.Values
	crawlParams []url.Values
	bulkDeletes [][]int64
	oneDeletes  []int64
}

func newFakeBackend(records ...hotspot.Record) *fakeBackend {
	return &fakeBackend{
		records:   records,
		sources:   []string{"知乎热榜", "新浪新闻"},
		scheduler: hotspot.SchedulerStatus{Status: "manual_only", Mode: "manual", Description: "crawl on demand"},
		calls:     map[string]int{},
	}
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func (b *fakeBackend) Sources(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	b.calls["sources"]++
	hook := b.sourcesHook
	b.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sourcesErr != nil {
		return nil, b.sourcesErr
	}
	return append([]string(nil), b.sources...), nil
}

func (b *fakeBackend) Hotspots(ctx context.Context, params url.Values) ([]hotspot.Record, error) {
	b.mu.Lock()
	b.calls["hotspots"]++
	b.listParams = append(b.listParams, params)
	hook := b.hotspotsHook
	b.mu.Unlock()
	if hook != nil {
		return hook(ctx, params)
	}
	return b.filter(params), nil
}

func (b *fakeBackend) filter(params url.Values) []hotspot.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := params.Get(hotspot.ParamSource)
	out := []hotspot.Record{}
	for _, rec := range b.records {
		if src == "" || rec.Source == src {
			out = append(out, rec.Clone())
		}
	}
	return out
}

func (b *fakeBackend) Crawl(_ context.Context, params url.Values) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["crawl"]++
	b.crawlParams = append(b.crawlParams, params)
	return b.crawlErr
}

func (b *fakeBackend) SchedulerStatus(context.Context) (hotspot.SchedulerStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["scheduler"]++
	if b.schedErr != nil {
		return hotspot.SchedulerStatus{}, b.schedErr
	}
	return b.scheduler, nil
}

func (b *fakeBackend) DeleteHotspot(_ context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["delete_one"]++
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.oneDeletes = append(b.oneDeletes, id)
	b.removeLocked([]int64{id})
	return nil
}

func (b *fakeBackend) DeleteHotspots(_ context.Context, ids []int64) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["delete_many"]++
	if b.deleteErr != nil {
		return 0, b.deleteErr
	}
	b.bulkDeletes = append(b.bulkDeletes, append([]int64(nil), ids...))
	return b.removeLocked(ids), nil
}

func (b *fakeBackend) removeLocked(ids []int64) int {
	drop := map[int64]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := b.records[:0]
	for _, rec := range b.records {
		if !drop[rec.ID] {
			kept = append(kept, rec)
		}
	}
	n := len(b.records) - len(kept)
	b.records = kept
	return n
}

func (b *fakeBackend) FetchDetails(ctx context.Context, id int64) (hotspot.Record, error) {
	b.mu.Lock()
	b.calls["details"]++
	hook := b.detailsHook
	b.mu.Unlock()
	if hook != nil {
		return hook(ctx, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, rec := range b.records {
		if rec.ID == id {
			content, summary := "full text", "short"
			rec.Content, rec.Summary = &content, &summary
			b.records[i] = rec
			return rec.Clone(), nil
		}
	}
	return hotspot.Record{}, errors.New("not found")
}

// noticeLog captures emitted notices.
type noticeLog struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (l *noticeLog) Emit(n notify.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) all() []notify.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]notify.Notice(nil), l.notices...)
}

func (l *noticeLog) levels() []notify.Level {
	out := []notify.Level{}
	for _, n := range l.all() {
		out = append(out, n.Level)
	}
	return out
}

type harness struct {
	backend *fakeBackend
	clock   *fake.Clock
	notices *noticeLog
	reg     *prometheus.Registry
	coord   *Coordinator
}

func newHarness(t *testing.T, cfg Config, records ...hotspot.Record) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	h := &harness{
		backend: newFakeBackend(records...),
		clock:   fake.New(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)),
		notices: &noticeLog{},
		reg:     reg,
	}
	h.coord = New(h.backend, state.New(), h.notices, m, h.clock, cfg, nil)
	t.Cleanup(h.coord.Close)
	return h
}

// counter reads one labeled counter from the registry.
func (h *harness) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func record(id int64, source string) hotspot.Record {
	return hotspot.Record{
		ID:        id,
		Rank:      int(id),
		Title:     "topic",
		URL:       "https://example.com/" + source,
		HotValue:  "1000",
		Source:    source,
		CreatedAt: hotspot.NewTimestamp(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
	}
}

func ids(records []hotspot.Record) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
