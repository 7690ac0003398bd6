package state

import (
	"sort"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
)

// View is an immutable snapshot for renderers. Nothing in it aliases store
// memory.
type View struct {
	Version         uint64                   `json:"version" yaml:"version"`
	Records         []hotspot.Record         `json:"records" yaml:"records"`
	Sources         []string                 `json:"sources" yaml:"sources"`
	Scheduler       *hotspot.SchedulerStatus `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	Criteria        hotspot.Criteria         `json:"criteria" yaml:"criteria"`
	Selection       []int64                  `json:"selection" yaml:"selection"`
	Detail          *hotspot.Record          `json:"detail,omitempty" yaml:"detail,omitempty"`
	Loading         bool                     `json:"loading" yaml:"loading"`
	Crawling        bool                     `json:"crawling" yaml:"crawling"`
	Deleting        bool                     `json:"deleting" yaml:"deleting"`
	FetchingDetails bool                     `json:"fetching_details" yaml:"fetching_details"`
	AutoRefresh     bool                     `json:"auto_refresh" yaml:"auto_refresh"`
	Stats           Stats                    `json:"stats" yaml:"stats"`
}

// Stats summarizes the loaded list.
type Stats struct {
	Total    int           `json:"total" yaml:"total"`
	BySource []SourceCount `json:"by_source" yaml:"by_source"`
}

// SourceCount is the number of listed records from one source.
type SourceCount struct {
	Source string `json:"source" yaml:"source"`
	Count  int    `json:"count" yaml:"count"`
}

// View returns the current snapshot.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Store) viewLocked() View {
	v := View{
		Version:         s.version,
		Records:         hotspot.CloneRecords(s.records),
		Sources:         append(make([]string, 0, len(s.sources)), s.sources...),
		Criteria:        s.criteria.Clone(),
		Selection:       s.selectionLocked(),
		Loading:         s.inflight[OpHotspots] > 0,
		Crawling:        s.inflight[OpCrawl] > 0,
		Deleting:        s.inflight[OpDelete] > 0,
		FetchingDetails: s.inflight[OpDetails] > 0,
		AutoRefresh:     s.auto,
		Stats:           statsFor(s.records),
	}
	if s.scheduler != nil {
		st := *s.scheduler
		v.Scheduler = &st
	}
	if s.detail != nil {
		d := s.detail.Clone()
		v.Detail = &d
	}
	return v
}

// statsFor counts records per source, ordered by count then name.
func statsFor(records []hotspot.Record) Stats {
	counts := map[string]int{}
	for _, rec := range records {
		counts[rec.Source]++
	}
	by := make([]SourceCount, 0, len(counts))
	for src, n := range counts {
		by = append(by, SourceCount{Source: src, Count: n})
	}
	sort.Slice(by, func(i, j int) bool {
		if by[i].Count != by[j].Count {
			return by[i].Count > by[j].Count
		}
		return by[i].Source < by[j].Source
	})
	return Stats{Total: len(records), BySource: by}
}
