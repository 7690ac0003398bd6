package hotspot

import (
	"net/url"
	"strconv"
	"time"
)

// Query parameter names understood by the backend.
const (
	ParamSource    = "source"
	ParamStartTime = "start_time"
	ParamEndTime   = "end_time"
	ParamLimit     = "limit"
)

// DateRange bounds records by creation time. A range with either bound unset
// is treated as no range at all.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// Complete reports whether both bounds are set.
func (r *DateRange) Complete() bool {
	return r != nil && r.Start != nil && r.End != nil
}

// Criteria is the operator's filter state.
type Criteria struct {
	// Source selects exactly one source label; empty matches every source.
	Source string `json:"source,omitempty"`
	// Range optionally restricts records to a creation window.
	Range *DateRange `json:"range,omitempty"`
	// Limit caps the number of returned records; zero leaves the backend default.
	Limit int `json:"limit,omitempty"`
}

// Params maps the criteria onto the hotspot list query.
func (c Criteria) Params() url.Values {
	params := c.CrawlParams()
	if c.Source != "" {
		params.Set(ParamSource, c.Source)
	}
	if c.Limit > 0 {
		params.Set(ParamLimit, strconv.Itoa(c.Limit))
	}
	return params
}

// CrawlParams maps the criteria onto the crawl trigger query. Crawls are never
// scoped by source.
func (c Criteria) CrawlParams() url.Values {
	params := url.Values{}
	if c.Range.Complete() {
		params.Set(ParamStartTime, FormatTime(*c.Range.Start))
		params.Set(ParamEndTime, FormatTime(*c.Range.End))
	}
	return params
}

// Clone returns a copy that shares no pointers with c.
func (c Criteria) Clone() Criteria {
	cp := c
	if c.Range != nil {
		r := DateRange{}
		if c.Range.Start != nil {
			s := *c.Range.Start
			r.Start = &s
		}
		if c.Range.End != nil {
			e := *c.Range.End
			r.End = &e
		}
		cp.Range = &r
	}
	return cp
}

// FormatTime renders t as an ISO-8601 UTC timestamp.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
