package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
)

// PrometheusSink counts notices by level and operation.
type PrometheusSink struct {
	notices *prometheus.CounterVec
}

// NewPrometheusSink registers the collector against reg (the default
// registerer when nil).
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hotdash_notices_total",
			Help: "User-visible notices raised by the dashboard, partitioned by level and operation.",
		}, []string{"level", "operation"}),
	}
	if err := reg.Register(s.notices); err != nil {
		return nil, fmt.Errorf("register notice collector: %w", err)
	}
	return s, nil
}

// Consume increments the counter for every notice.
func (s *PrometheusSink) Consume(_ context.Context, batch []notify.Notice) error {
	for _, n := range batch {
		op := n.Operation
		if op == "" {
			op = "unknown"
		}
		s.notices.WithLabelValues(string(n.Level), op).Inc()
	}
	return nil
}

// Close implements notify.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
