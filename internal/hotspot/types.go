package hotspot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one crawled trending-topic entry. ID is the identity; enrichment
// only ever fills the nullable fields.
type Record struct {
	ID         int64     `json:"id" yaml:"id"`
	Rank       int       `json:"rank" yaml:"rank"`
	Title      string    `json:"title" yaml:"title"`
	URL        string    `json:"url" yaml:"url"`
	HotValue   string    `json:"hot_value" yaml:"hot_value"`
	Source     string    `json:"source" yaml:"source"`
	CreatedAt  Timestamp `json:"created_at" yaml:"created_at"`
	Summary    *string   `json:"summary" yaml:"summary,omitempty"`
	Content    *string   `json:"content" yaml:"content,omitempty"`
	MediaPaths *string   `json:"media_paths" yaml:"media_paths,omitempty"`
}

// Clone returns a deep copy so callers never share nullable fields with the
// store.
func (r Record) Clone() Record {
	cp := r
	cp.Summary = cloneString(r.Summary)
	cp.Content = cloneString(r.Content)
	cp.MediaPaths = cloneString(r.MediaPaths)
	return cp
}

// HasContent reports whether the record has been enriched.
func (r Record) HasContent() bool {
	return r.Content != nil && *r.Content != ""
}

// SchedulerStatus is the backend's scheduler snapshot. It is displayed as-is.
type SchedulerStatus struct {
	Status      string `json:"status" yaml:"status"`
	Mode        string `json:"mode" yaml:"mode"`
	Description string `json:"description" yaml:"description"`
}

// CloneRecords deep-copies a record slice. A nil input yields an empty slice.
func CloneRecords(src []Record) []Record {
	out := make([]Record, len(src))
	for i, rec := range src {
		out[i] = rec.Clone()
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Timestamp decodes both RFC 3339 values and the zone-less ISO form the
// backend emits for naive UTC datetimes.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// MarshalYAML renders the timestamp as RFC 3339.
func (t Timestamp) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339), nil
}
