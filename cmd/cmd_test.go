package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/hotspot-dashboard/internal/config"
	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

type fakeDashboard struct {
	view     state.View
	criteria hotspot.Criteria

	refreshErr error
	deleteErr  error
	fetched    *hotspot.Record

	calls     []string
	selection []int64
	deleted   int64
	closed    bool
}

func (d *fakeDashboard) View() state.View { return d.view }

func (d *fakeDashboard) Refresh(context.Context) error {
	d.calls = append(d.calls, "refresh")
	return d.refreshErr
}

func (d *fakeDashboard) SetFilter(_ context.Context, c hotspot.Criteria) error {
	d.calls = append(d.calls, "filter")
	d.criteria = c
	return d.refreshErr
}

func (d *fakeDashboard) TriggerCrawl(context.Context) error {
	d.calls = append(d.calls, "crawl")
	return nil
}

func (d *fakeDashboard) SetSelection(ids []int64) {
	d.calls = append(d.calls, "select")
	d.selection = ids
	d.view.Selection = nil
	for _, id := range ids {
		for _, rec := range d.view.Records {
			if rec.ID == id {
				d.view.Selection = append(d.view.Selection, id)
			}
		}
	}
}

func (d *fakeDashboard) DeleteOne(_ context.Context, id int64) error {
	d.calls = append(d.calls, "delete_one")
	d.deleted = id
	return d.deleteErr
}

func (d *fakeDashboard) DeleteSelected(context.Context) error {
	d.calls = append(d.calls, "delete_selected")
	return d.deleteErr
}

func (d *fakeDashboard) DeleteAll(context.Context) error {
	d.calls = append(d.calls, "delete_all")
	return d.deleteErr
}

func (d *fakeDashboard) OpenDetailByID(id int64) (hotspot.Record, error) {
	d.calls = append(d.calls, "open")
	for _, rec := range d.view.Records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return hotspot.Record{}, errors.New("not listed")
}

func (d *fakeDashboard) FetchDetails(context.Context, int64) (hotspot.Record, error) {
	d.calls = append(d.calls, "fetch")
	return *d.fetched, nil
}

func (d *fakeDashboard) Close() { d.closed = true }

type fakeApp struct {
	cfg  *config.Config
	dash *fakeDashboard
}

func (a *fakeApp) Config() *config.Config { return a.cfg }
func (a *fakeApp) Logger() *zap.Logger { return zap.NewNop() }
func (a *fakeApp) Dashboard() Dashboard { return a.dash }
func (a *fakeApp) MediaURL(path string) string { return "http://crawler.test" + path }
func (a *fakeApp) Close() { a.dash.Close() }

func strPtr(s string) *string { return &s }

func sampleView() state.View {
	return state.View{
		Records: []hotspot.Record{
			{ID: 1, Rank: 1, Title: "first", Source: "weibo", HotValue: "900"},
			{ID: 2, Rank: 2, Title: "second", Source: "zhihu", HotValue: "500", MediaPaths: strPtr("/media/2.png")},
		},
		Sources:   []string{"weibo", "zhihu"},
		Scheduler: &hotspot.SchedulerStatus{Status: "running", Mode: "interval", Description: "every hour"},
		Stats: state.Stats{
			Total:    2,
			BySource: []state.SourceCount{{Source: "weibo", Count: 1}, {Source: "zhihu", Count: 1}},
		},
	}
}

// runCmd executes the root command with a fake app. It must not run in
// parallel because newApp is package state.
func runCmd(t *testing.T, dash *fakeDashboard, args ...string) (string, string, error) {
	t.Helper()
	cfg := config.Config{}
	cfg.Crawl.RefetchDelay = time.Second
	app := &fakeApp{cfg: &cfg, dash: dash}

	origApp, origSleep := newApp, sleep
	newApp = func(string, io.Writer) (App, error) { return app, nil }
	sleep = func(*cobra.Command, time.Duration) error { return nil }
	t.Cleanup(func() {
		newApp, sleep = origApp, origSleep
	})

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestListTable(t *testing.T) {
	dash := &fakeDashboard{view: sampleView()}
	out, _, err := runCmd(t, dash, "list", "--source", "weibo", "--limit", "5")
	require.NoError(t, err)
	require.Equal(t, []string{"filter"}, dash.calls)
	require.Equal(t, "weibo", dash.criteria.Source)
	require.Equal(t, 5, dash.criteria.Limit)
	require.Nil(t, dash.criteria.Range)
	require.Contains(t, out, "first")
	require.Contains(t, out, "zhihu")
	require.True(t, dash.closed)
}

func TestListJSON(t *testing.T) {
	dash := &fakeDashboard{view: sampleView()}
	out, _, err := runCmd(t, dash, "list", "-o", "json")
	require.NoError(t, err)

	var got listOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Records, 2)
	require.Equal(t, 2, got.Stats.Total)
}

func TestListDateRange(t *testing.T) {
	dash := &fakeDashboard{view: sampleView()}
	_, _, err := runCmd(t, dash, "list", "--start", "2024-01-01", "--end", "2024-01-02T12:00:00Z")
	require.NoError(t, err)
	require.True(t, dash.criteria.Range.Complete())
	require.Equal(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), *dash.criteria.Range.End)
}

func TestListRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"bad time", []string{"list", "--start", "yesterday"}},
		{"negative limit", []string{"list", "--limit", "-1"}},
		{"bad output", []string{"list", "-o", "xml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dash := &fakeDashboard{view: sampleView()}
			_, _, err := runCmd(t, dash, tc.args...)
			require.Error(t, err)
			require.Empty(t, dash.calls)
		})
	}
}

func TestStatusYAML(t *testing.T) {
	dash := &fakeDashboard{view: sampleView()}
	out, _, err := runCmd(t, dash, "status", "-o", "yaml")
	require.NoError(t, err)
	require.Equal(t, []string{"refresh"}, dash.calls)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Contains(t, got, "scheduler")
	require.Contains(t, out, "running")
}

func TestStatusRefreshError(t *testing.T) {
	dash := &fakeDashboard{view: sampleView(), refreshErr: errors.New("backend down")}
	_, _, err := runCmd(t, dash, "status")
	require.ErrorContains(t, err, "backend down")
}

func TestCrawl(t *testing.T) {
	t.Run("trigger only", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		out, _, err := runCmd(t, dash, "crawl", "--start", "2024-01-01", "--end", "2024-01-02")
		require.NoError(t, err)
		require.Equal(t, []string{"filter", "crawl"}, dash.calls)
		require.Empty(t, out)
	})
	t.Run("wait reloads", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		out, _, err := runCmd(t, dash, "crawl", "--wait")
		require.NoError(t, err)
		require.Equal(t, []string{"filter", "crawl", "refresh"}, dash.calls)
		require.Contains(t, out, "second")
	})
}

func TestDelete(t *testing.T) {
	t.Run("single id", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		_, _, err := runCmd(t, dash, "delete", "2")
		require.NoError(t, err)
		require.Equal(t, []string{"delete_one"}, dash.calls)
		require.EqualValues(t, 2, dash.deleted)
	})
	t.Run("several ids", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		_, stderr, err := runCmd(t, dash, "delete", "1", "2", "99")
		require.NoError(t, err)
		require.Equal(t, []string{"filter", "select", "delete_selected"}, dash.calls)
		require.Equal(t, []int64{1, 2, 99}, dash.selection)
		require.Contains(t, stderr, "1 id(s) not in the current list")
	})
	t.Run("all needs confirmation", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		_, _, err := runCmd(t, dash, "delete", "--all")
		require.ErrorContains(t, err, "--yes")
		require.Empty(t, dash.calls)
	})
	t.Run("all confirmed", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		_, _, err := runCmd(t, dash, "delete", "--all", "--yes", "--source", "weibo")
		require.NoError(t, err)
		require.Equal(t, []string{"filter", "delete_all"}, dash.calls)
		require.Equal(t, "weibo", dash.criteria.Source)
	})
	t.Run("invalid id", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		_, _, err := runCmd(t, dash, "delete", "abc")
		require.ErrorContains(t, err, `invalid id "abc"`)
	})
	t.Run("backend failure", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView(), deleteErr: errors.New("boom")}
		_, _, err := runCmd(t, dash, "delete", "1")
		require.ErrorContains(t, err, "boom")
	})
}

func TestDetail(t *testing.T) {
	t.Run("listed record", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		out, _, err := runCmd(t, dash, "detail", "2", "-o", "json")
		require.NoError(t, err)
		require.Equal(t, []string{"refresh", "open"}, dash.calls)

		var got detailOutput
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		require.EqualValues(t, 2, got.Record.ID)
		require.Equal(t, "http://crawler.test/media/2.png", got.MediaURL)
	})
	t.Run("fetch enriches", func(t *testing.T) {
		enriched := sampleView().Records[0]
		enriched.Content = strPtr("full text")
		enriched.Summary = strPtr("short")
		dash := &fakeDashboard{view: sampleView(), fetched: &enriched}
		out, _, err := runCmd(t, dash, "detail", "1", "--fetch")
		require.NoError(t, err)
		require.Equal(t, []string{"refresh", "open", "fetch"}, dash.calls)
		require.Contains(t, out, "full text")
		require.Contains(t, out, "short")
	})
	t.Run("unlisted record", func(t *testing.T) {
		dash := &fakeDashboard{view: sampleView()}
		_, _, err := runCmd(t, dash, "detail", "7")
		require.Error(t, err)
	})
}

func TestResolveAppMissing(t *testing.T) {
	t.Parallel()
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	require.Equal(t, "abc", truncate("abc", 5))
	require.Equal(t, "ab…", truncate("abcdef", 3))
}
