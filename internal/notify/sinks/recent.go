package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
)

const defaultRecentCapacity = 20

// RecentSink retains the newest notices for renderers. A notice whose key
// matches a retained notice replaces it, so a crawl's progress notice is
// superseded by its outcome.
type RecentSink struct {
	mu       sync.RWMutex
	capacity int
	notices  []notify.Notice
}

// NewRecentSink keeps at most capacity notices (20 when non-positive).
func NewRecentSink(capacity int) *RecentSink {
	if capacity <= 0 {
		capacity = defaultRecentCapacity
	}
	return &RecentSink{capacity: capacity}
}

// Consume records the batch in arrival order.
func (s *RecentSink) Consume(_ context.Context, batch []notify.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range batch {
		if n.Key != "" {
			s.removeKey(n.Key)
		}
		s.notices = append(s.notices, n)
	}
	if over := len(s.notices) - s.capacity; over > 0 {
		s.notices = append([]notify.Notice(nil), s.notices[over:]...)
	}
	return nil
}

// Recent returns retained notices, oldest first.
func (s *RecentSink) Recent() []notify.Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]notify.Notice(nil), s.notices...)
}

// Dismiss removes a notice by id and reports whether it was retained.
func (s *RecentSink) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i], s.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Close implements notify.Sink; it performs no action.
func (s *RecentSink) Close(context.Context) error {
	return nil
}

func (s *RecentSink) removeKey(key string) {
	kept := s.notices[:0]
	for _, n := range s.notices {
		if n.Key != key {
			kept = append(kept, n)
		}
	}
	s.notices = kept
}
