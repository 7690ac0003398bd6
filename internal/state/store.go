// Package state holds the dashboard's shared mutable state behind a single
// mutex and hands out immutable View snapshots. Every change goes through one
// method per operation, so each transition is atomic for readers.
//
// Backend fetches are bracketed by Begin and Finish. Begin assigns a
// per-operation sequence number; an Apply* call carrying a sequence lower than
// the highest one already applied for that operation is rejected as stale.
package state

import (
	"slices"
	"sync"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
)

// Operation names a logical backend operation.
type Operation string

// Operations tracked by the store.
const (
	OpSources   Operation = "sources"
	OpHotspots  Operation = "hotspots"
	OpScheduler Operation = "scheduler_status"
	OpCrawl     Operation = "crawl"
	OpDelete    Operation = "delete"
	OpDetails   Operation = "fetch_details"
)

// Ticket identifies one issued request.
type Ticket struct {
	Op  Operation
	Seq uint64
}

type enrichment struct {
	rec       hotspot.Record
	listIssue uint64
}

// Store owns the record list, catalog, scheduler status, criteria, selection
// and detail view.
type Store struct {
	mu sync.Mutex

	version   uint64
	records   []hotspot.Record
	sources   []string
	scheduler *hotspot.SchedulerStatus
	criteria  hotspot.Criteria
	selection map[int64]struct{}
	detail    *hotspot.Record
	auto      bool

	issued   map[Operation]uint64
	applied  map[Operation]uint64
	inflight map[Operation]int

	// enriched holds fetched details keyed by id, each with the last list
	// sequence issued before it was applied. A list response issued at or
	// below that mark predates the enrichment and must not overwrite it.
	enriched map[int64]enrichment

	subs   map[int]chan View
	nextID int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records:   []hotspot.Record{},
		sources:   []string{},
		selection: map[int64]struct{}{},
		issued:    map[Operation]uint64{},
		applied:   map[Operation]uint64{},
		inflight:  map[Operation]int{},
		enriched:  map[int64]enrichment{},
		subs:      map[int]chan View{},
	}
}

// Begin marks op in flight and returns its ticket.
func (s *Store) Begin(op Operation) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[op]++
	s.inflight[op]++
	s.changed()
	return Ticket{Op: op, Seq: s.issued[op]}
}

// BeginHotspots is Begin for OpHotspots that also returns the criteria the
// request must be built from, taken under the same lock so the newest ticket
// always carries the newest criteria.
func (s *Store) BeginHotspots() (Ticket, hotspot.Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[OpHotspots]++
	s.inflight[OpHotspots]++
	s.changed()
	return Ticket{Op: OpHotspots, Seq: s.issued[OpHotspots]}, s.criteria.Clone()
}

// Finish clears the in-flight mark taken by Begin. It must run exactly once
// per ticket, whatever the outcome.
func (s *Store) Finish(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[t.Op] > 0 {
		s.inflight[t.Op]--
	}
	s.changed()
}

// InFlight reports whether any request for op is outstanding.
func (s *Store) InFlight(op Operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight[op] > 0
}

// Stale reports whether a newer response for t.Op has already been applied.
func (s *Store) Stale(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleLocked(t)
}

func (s *Store) staleLocked(t Ticket) bool {
	return t.Seq < s.applied[t.Op]
}

// accept records t as applied unless it is stale.
func (s *Store) accept(t Ticket) bool {
	if s.staleLocked(t) {
		return false
	}
	s.applied[t.Op] = t.Seq
	return true
}

// ApplySources replaces the source catalog.
func (s *Store) ApplySources(t Ticket, sources []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept(t) {
		return false
	}
	s.sources = append(make([]string, 0, len(sources)), sources...)
	s.changed()
	return true
}

// ApplyScheduler replaces the scheduler status.
func (s *Store) ApplyScheduler(t Ticket, status hotspot.SchedulerStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept(t) {
		return false
	}
	s.scheduler = &status
	s.changed()
	return true
}

// ApplyHotspots replaces the whole record list. Duplicate ids keep their first
// occurrence. Entries enriched after the response was requested keep their
// enriched form. The selection is intersected with the new ids and an open
// detail whose id is still listed mirrors the new entry.
func (s *Store) ApplyHotspots(t Ticket, records []hotspot.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.accept(t) {
		return false
	}
	seen := make(map[int64]struct{}, len(records))
	list := make([]hotspot.Record, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		if e, ok := s.enriched[rec.ID]; ok && t.Seq <= e.listIssue {
			rec = e.rec
		}
		list = append(list, rec.Clone())
	}
	for id, e := range s.enriched {
		if t.Seq > e.listIssue {
			delete(s.enriched, id)
		}
	}
	s.records = list
	for id := range s.selection {
		if _, ok := seen[id]; !ok {
			delete(s.selection, id)
		}
	}
	if s.detail != nil {
		if i := s.indexLocked(s.detail.ID); i >= 0 {
			rec := s.records[i].Clone()
			s.detail = &rec
		}
	}
	s.changed()
	return true
}

// ApplyDetails writes an enrichment result into the open detail view and the
// list entry with the same id. It is rejected when the detail view is closed,
// shows another id, or a newer enrichment was already applied.
func (s *Store) ApplyDetails(t Ticket, rec hotspot.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil || s.detail.ID != rec.ID || s.staleLocked(t) {
		return false
	}
	s.applied[t.Op] = t.Seq
	enriched := rec.Clone()
	s.detail = &enriched
	s.enriched[rec.ID] = enrichment{rec: rec.Clone(), listIssue: s.issued[OpHotspots]}
	if i := s.indexLocked(rec.ID); i >= 0 {
		s.records[i] = rec.Clone()
	}
	s.changed()
	return true
}

// Forget drops deleted ids from the selection and closes the detail view if it
// shows one of them. The list itself is left for the reconciling reload.
func (s *Store) Forget(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.selection, id)
		delete(s.enriched, id)
		if s.detail != nil && s.detail.ID == id {
			s.detail = nil
		}
	}
	s.changed()
}

// Criteria returns a copy of the active filter.
func (s *Store) Criteria() hotspot.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria.Clone()
}

// SetCriteria replaces the active filter.
func (s *Store) SetCriteria(c hotspot.Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c.Clone()
	s.changed()
}

// SetSelection replaces the selection set. Ids not in the list are kept until
// the next reload but never reported.
func (s *Store) SetSelection(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.selection[id] = struct{}{}
	}
	s.changed()
}

// ClearSelection empties the selection set.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = map[int64]struct{}{}
	s.changed()
}

// Selection returns the selected ids present in the list, in list order.
func (s *Store) Selection() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionLocked()
}

func (s *Store) selectionLocked() []int64 {
	out := make([]int64, 0, len(s.selection))
	for _, rec := range s.records {
		if _, ok := s.selection[rec.ID]; ok {
			out = append(out, rec.ID)
		}
	}
	return out
}

// RecordIDs returns the ids of the current list in order.
func (s *Store) RecordIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(s.records))
	for i, rec := range s.records {
		ids[i] = rec.ID
	}
	return ids
}

// Record looks up a listed record by id.
func (s *Store) Record(id int64) (hotspot.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return hotspot.Record{}, false
}

// OpenDetail shows a copy of rec in the detail view.
func (s *Store) OpenDetail(rec hotspot.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec.Clone()
	s.detail = &cp
	s.changed()
}

// CloseDetail clears the detail view.
func (s *Store) CloseDetail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detail = nil
	s.changed()
}

// Detail returns the open detail record.
func (s *Store) Detail() (hotspot.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detail == nil {
		return hotspot.Record{}, false
	}
	return s.detail.Clone(), true
}

// SetAutoRefresh records whether polling is enabled.
func (s *Store) SetAutoRefresh(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auto == on {
		return
	}
	s.auto = on
	s.changed()
}

func (s *Store) indexLocked(id int64) int {
	return slices.IndexFunc(s.records, func(r hotspot.Record) bool { return r.ID == id })
}

// changed bumps the version and publishes to subscribers. Callers hold mu.
func (s *Store) changed() {
	s.version++
	if len(s.subs) == 0 {
		return
	}
	v := s.viewLocked()
	for _, ch := range s.subs {
		publish(ch, v)
	}
}
