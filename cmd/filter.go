package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
)

var inputTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

type filterFlags struct {
	source string
	start  string
	end    string
	limit  int
}

func (f *filterFlags) register(cmd *cobra.Command, withSource bool) {
	if withSource {
		cmd.Flags().StringVar(&f.source, "source", "", "only records from this source")
	}
	cmd.Flags().StringVar(&f.start, "start", "", "range start (RFC3339 or YYYY-MM-DD); ignored without --end")
	cmd.Flags().StringVar(&f.end, "end", "", "range end (RFC3339 or YYYY-MM-DD); ignored without --start")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "maximum records (0 uses backend.list_limit)")
}

func (f *filterFlags) criteria() (hotspot.Criteria, error) {
	if f.limit < 0 {
		return hotspot.Criteria{}, fmt.Errorf("--limit must be >= 0")
	}
	c := hotspot.Criteria{Source: f.source, Limit: f.limit}
	start, err := parseTime("--start", f.start)
	if err != nil {
		return hotspot.Criteria{}, err
	}
	end, err := parseTime("--end", f.end)
	if err != nil {
		return hotspot.Criteria{}, err
	}
	if start != nil || end != nil {
		c.Range = &hotspot.DateRange{Start: start, End: end}
	}
	return c, nil
}

func parseTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range inputTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s: cannot parse %q as a time", flag, value)
}
