package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"

	titleWidth = 48
	timeLayout = "2006-01-02 15:04"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// encode writes v as JSON or YAML. It reports false for the table format so
// the caller can render its own table.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return true, fmt.Errorf("encode json: %w", err)
		}
		return true, nil
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return true, fmt.Errorf("encode yaml: %w", err)
		}
		return true, nil
	default:
		return false, nil
	}
}

type listOutput struct {
	Records []hotspot.Record `json:"records" yaml:"records"`
	Stats   state.Stats      `json:"stats" yaml:"stats"`
}

func renderRecords(w io.Writer, format string, v state.View) error {
	if done, err := encode(w, format, listOutput{Records: v.Records, Stats: v.Stats}); done {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Rank", "Source", "Title", "Hot", "Created", "Enriched"})
	for _, rec := range v.Records {
		t.AppendRow(table.Row{
			rec.ID,
			rec.Rank,
			rec.Source,
			truncate(rec.Title, titleWidth),
			rec.HotValue,
			formatCreated(rec.CreatedAt),
			yesNo(rec.HasContent()),
		})
	}
	t.AppendFooter(table.Row{"", "", "Total", v.Stats.Total})
	t.Render()

	if len(v.Stats.BySource) > 1 {
		s := table.NewWriter()
		s.SetOutputMirror(w)
		s.SetStyle(table.StyleLight)
		s.AppendHeader(table.Row{"Source", "Records"})
		for _, sc := range v.Stats.BySource {
			s.AppendRow(table.Row{sc.Source, sc.Count})
		}
		s.Render()
	}
	return nil
}

type statusOutput struct {
	Scheduler *hotspot.SchedulerStatus `json:"scheduler" yaml:"scheduler"`
	Sources   []string                 `json:"sources" yaml:"sources"`
	Stats     state.Stats              `json:"stats" yaml:"stats"`
}

func renderStatus(w io.Writer, format string, v state.View) error {
	out := statusOutput{Scheduler: v.Scheduler, Sources: v.Sources, Stats: v.Stats}
	if done, err := encode(w, format, out); done {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if v.Scheduler != nil {
		t.AppendRow(table.Row{"Scheduler", v.Scheduler.Status})
		t.AppendRow(table.Row{"Mode", v.Scheduler.Mode})
		t.AppendRow(table.Row{"Description", v.Scheduler.Description})
	} else {
		t.AppendRow(table.Row{"Scheduler", "unavailable"})
	}
	t.AppendRow(table.Row{"Sources", strings.Join(v.Sources, ", ")})
	t.AppendRow(table.Row{"Records", v.Stats.Total})
	t.Render()
	return nil
}

type detailOutput struct {
	Record   hotspot.Record `json:"record" yaml:"record"`
	MediaURL string         `json:"media_url,omitempty" yaml:"media_url,omitempty"`
}

func renderDetail(w io.Writer, format string, d detailOutput) error {
	if done, err := encode(w, format, d); done {
		return err
	}

	rec := d.Record
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"ID", rec.ID},
		{"Rank", rec.Rank},
		{"Source", rec.Source},
		{"Title", rec.Title},
		{"URL", rec.URL},
		{"Hot", rec.HotValue},
		{"Created", formatCreated(rec.CreatedAt)},
		{"Summary", deref(rec.Summary)},
		{"Media", d.MediaURL},
	})
	t.Render()
	if content := deref(rec.Content); content != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, content)
	}
	return nil
}

func formatCreated(ts hotspot.Timestamp) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
