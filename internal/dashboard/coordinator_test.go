package dashboard

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/metrics"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
)

const (
	zhihu = "知乎热榜"
	sina  = "新浪新闻"
)

func TestLoadHotspotsWithoutFilterReturnsAllSources(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, record(1, zhihu), record(2, sina), record(3, zhihu))
	require.NoError(t, h.coord.Refresh(context.Background()))

	v := h.coord.View()
	require.Equal(t, []int64{1, 2, 3}, ids(v.Records))
	require.ElementsMatch(t, []string{zhihu, sina}, v.Sources)
	require.Equal(t, "manual_only", v.Scheduler.Status)
	require.False(t, v.Loading)
	require.Empty(t, h.backend.listParams[0].Get(hotspot.ParamSource))
	require.Empty(t, h.backend.listParams[0].Get(hotspot.ParamStartTime))
}

func TestSetFilterReloadsOnlyHotspots(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, record(1, zhihu), record(2, sina), record(3, zhihu))
	ctx := context.Background()
	require.NoError(t, h.coord.Refresh(ctx))

	require.NoError(t, h.coord.SetFilter(ctx, hotspot.Criteria{Source: zhihu}))

	require.Equal(t, 2, h.backend.count("hotspots"))
	require.Equal(t, 1, h.backend.count("sources"))
	require.Equal(t, 1, h.backend.count("scheduler"))
	require.Equal(t, zhihu, h.backend.listParams[1].Get(hotspot.ParamSource))
	for _, rec := range h.coord.View().Records {
		require.Equal(t, zhihu, rec.Source)
	}
}

func TestRefreshLoadsSupplementaryDataAlongsideHotspots(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, record(1, zhihu))
	listed := make(chan struct{})
	h.backend.mu.Lock()
	h.backend.hotspotsHook = func(context.Context, url.Values) ([]hotspot.Record, error) {
		close(listed)
		return []hotspot.Record{record(1, zhihu)}, nil
	}
	overlapped := false
	h.backend.sourcesHook = func(context.Context) ([]string, error) {
		select {
		case <-listed:
			overlapped = true
		case <-time.After(2 * time.Second):
		}
		return []string{zhihu}, nil
	}
	h.backend.mu.Unlock()

	require.NoError(t, h.coord.Refresh(context.Background()))

	require.True(t, overlapped)
	v := h.coord.View()
	require.Equal(t, []int64{1}, ids(v.Records))
	require.Equal(t, []string{zhihu}, v.Sources)
	require.Equal(t, "manual_only", v.Scheduler.Status)
}

func TestConcurrentFiltersNeverMixCriteriaAndRecords(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, record(1, zhihu), record(2, sina), record(3, zhihu), record(4, sina))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		src := zhihu
		if i%2 == 1 {
			src = sina
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.coord.SetFilter(ctx, hotspot.Criteria{Source: src})
		}()
	}
	wg.Wait()

	v := h.coord.View()
	require.NotEmpty(t, v.Records)
	for _, rec := range v.Records {
		require.Equal(t, v.Criteria.Source, rec.Source)
	}
	require.False(t, v.Loading)
}

func TestPartialDateRangeNeverLeaksABound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, h.coord.SetFilter(context.Background(), hotspot.Criteria{
		Range: &hotspot.DateRange{Start: &start},
	}))

	params := h.backend.listParams[0]
	require.Empty(t, params.Get(hotspot.ParamStartTime))
	require.Empty(t, params.Get(hotspot.ParamEndTime))
}

func TestListLimitAppliesWhenCriteriaHaveNone(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{ListLimit: 50})
	ctx := context.Background()
	require.NoError(t, h.coord.LoadHotspots(ctx))
	require.NoError(t, h.coord.SetFilter(ctx, hotspot.Criteria{Limit: 5}))

	require.Equal(t, "50", h.backend.listParams[0].Get(hotspot.ParamLimit))
	require.Equal(t, "5", h.backend.listParams[1].Get(hotspot.ParamLimit))
}

func TestLoadHotspotsTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, record(1, zhihu), record(2, sina))
	ctx := context.Background()
	require.NoError(t, h.coord.LoadHotspots(ctx))
	first := h.coord.View().Records
	require.NoError(t, h.coord.LoadHotspots(ctx))
	require.Equal(t, first, h.coord.View().Records)
}

func TestLoadHotspotsFailureKeepsListAndNotifies(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{}, record(1, zhihu))
	ctx := context.Background()
	require.NoError(t, h.coord.LoadHotspots(ctx))

	h.backend.mu.Lock()
	h.backend.hotspotsHook = func(context.Context, url.Values) ([]hotspot.Record, error) {
		return nil, errBackendDown
	}
	h.backend.mu.Unlock()

	err := h.coord.LoadHotspots(ctx)
	require.ErrorIs(t, err, errBackendDown)

	v := h.coord.View()
	require.Equal(t, []int64{1}, ids(v.Records))
	require.False(t, v.Loading)
	require.Equal(t, []notify.Level{notify.LevelError}, h.notices.levels())
}

func TestSupplementaryFailuresAreSilent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.coord.Refresh(ctx))

	h.backend.mu.Lock()
	h.backend.sourcesErr = errBackendDown
	h.backend.schedErr = errBackendDown
	h.backend.mu.Unlock()

	require.NoError(t, h.coord.Refresh(ctx))
	v := h.coord.View()
	require.ElementsMatch(t, []string{zhihu, sina}, v.Sources)
	require.Equal(t, "manual_only", v.Scheduler.Status)
	require.Empty(t, h.notices.all())
}

func TestOlderResponseNeverOverwritesNewer(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})
	release := make(chan struct{})
	var calls int
	var mu sync.Mutex
	h.backend.hotspotsHook = func(context.Context, url.Values) ([]hotspot.Record, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			<-release
			return []hotspot.Record{record(1, zhihu)}, nil
		}
		return []hotspot.Record{record(2, sina)}, nil
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- h.coord.LoadHotspots(ctx) }()
	require.Eventually(t, func() bool { return h.backend.count("hotspots") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.coord.LoadHotspots(ctx))
	close(release)
	require.NoError(t, <-done)

	v := h.coord.View()
	require.Equal(t, []int64{2}, ids(v.Records))
	require.False(t, v.Loading)
	require.Equal(t, 1.0, h.counter(t, "hotdash_stale_responses_total", map[string]string{"operation": "hotspots"}))
}

func TestTriggerCrawlRefetchesAfterDelay(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{RefetchDelay: 2 * time.Second}, record(1, zhihu))
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	h.coord.Store().SetCriteria(hotspot.Criteria{Source: zhihu, Range: &hotspot.DateRange{Start: &start, End: &end}})

	require.NoError(t, h.coord.TriggerCrawl(ctx))

	params := h.backend.crawlParams[0]
	require.Empty(t, params.Get(hotspot.ParamSource))
	require.Equal(t, "2024-05-01T00:00:00Z", params.Get(hotspot.ParamStartTime))
	require.Equal(t, "2024-05-02T00:00:00Z", params.Get(hotspot.ParamEndTime))

	notices := h.notices.all()
	require.Len(t, notices, 2)
	require.Equal(t, notify.LevelLoading, notices[0].Level)
	require.Equal(t, notify.LevelSuccess, notices[1].Level)
	require.Equal(t, NoticeKeyCrawl, notices[0].Key)
	require.Equal(t, NoticeKeyCrawl, notices[1].Key)

	h.clock.Advance(1999 * time.Millisecond)
	h.coord.wg.Wait()
	require.Zero(t, h.backend.count("hotspots"))

	h.clock.Advance(time.Millisecond)
	h.coord.wg.Wait()
	require.Equal(t, 1, h.backend.count("hotspots"))
	require.Equal(t, 1, h.backend.count("sources"))
	require.Equal(t, 1, h.backend.count("scheduler"))
	require.False(t, h.coord.View().Crawling)
}

func TestTriggerCrawlFailureSchedulesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{})
	h.backend.crawlErr = errBackendDown

	require.ErrorIs(t, h.coord.TriggerCrawl(context.Background()), errBackendDown)
	require.Zero(t, h.clock.Pending())

	notices := h.notices.all()
	require.Len(t, notices, 2)
	require.Equal(t, notify.LevelError, notices[1].Level)
	require.Equal(t, NoticeKeyCrawl, notices[1].Key)
}

func TestAutoRefreshStopsAfterDisable(t *testing.T) {
	t.Parallel()

	interval := 10 * time.Second
	h := newHarness(t, Config{PollInterval: interval})

	h.coord.SetAutoRefresh(true)
	require.True(t, h.coord.View().AutoRefresh)

	h.clock.Advance(interval)
	h.coord.wg.Wait()
	require.Equal(t, 1, h.backend.count("hotspots"))
	require.Equal(t, 1, h.backend.count("scheduler"))

	h.clock.Advance(interval / 2)
	h.coord.SetAutoRefresh(false)
	h.clock.Advance(3 * interval)
	h.coord.wg.Wait()

	require.Equal(t, 1, h.backend.count("hotspots"))
	require.Equal(t, 1, h.backend.count("scheduler"))
	require.False(t, h.coord.View().AutoRefresh)
	require.Zero(t, h.clock.Pending())
}

func TestPollSkipsOperationStillInFlight(t *testing.T) {
	t.Parallel()

	interval := 10 * time.Second
	h := newHarness(t, Config{PollInterval: interval})
	release := make(chan struct{})
	h.backend.hotspotsHook = func(context.Context, url.Values) ([]hotspot.Record, error) {
		<-release
		return []hotspot.Record{record(1, zhihu)}, nil
	}

	h.coord.SetAutoRefresh(true)
	h.clock.Advance(interval)
	require.Eventually(t, func() bool { return h.backend.count("hotspots") == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return h.backend.count("scheduler") == 1 }, time.Second, time.Millisecond)

	h.clock.Advance(interval)
	require.Eventually(t, func() bool { return h.backend.count("scheduler") == 2 }, time.Second, time.Millisecond)
	require.Equal(t, 1, h.backend.count("hotspots"))
	require.Equal(t, 1.0, h.counter(t, "hotdash_poll_ticks_total",
		map[string]string{"operation": "hotspots", "outcome": metrics.PollSkipped}))

	close(release)
	h.coord.SetAutoRefresh(false)
	h.coord.wg.Wait()
	require.Equal(t, []int64{1}, ids(h.coord.View().Records))
}

func TestCloseCancelsPendingWork(t *testing.T) {
	t.Parallel()

	h := newHarness(t, Config{PollInterval: time.Second, RefetchDelay: time.Second})
	ctx := context.Background()
	require.NoError(t, h.coord.TriggerCrawl(ctx))
	h.coord.SetAutoRefresh(true)
	require.Equal(t, 2, h.clock.Pending())

	h.coord.Close()
	require.Zero(t, h.clock.Pending())
	h.clock.Advance(time.Minute)
	require.Zero(t, h.backend.count("hotspots"))
	require.ErrorIs(t, h.coord.TriggerCrawl(ctx), ErrClosed)
	h.coord.Close()
}
