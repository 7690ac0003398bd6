package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/backend"
	"github.com/JakeFAU/hotspot-dashboard/internal/dashboard"
	"github.com/JakeFAU/hotspot-dashboard/internal/hash/sha256"
	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/id/uuid"
	"github.com/JakeFAU/hotspot-dashboard/internal/metrics"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
)

const actionTimeout = 60 * time.Second

// Dashboard is the subset of the coordinator the API drives.
type Dashboard interface {
	View() state.View
	Refresh(ctx context.Context) error
	SetFilter(ctx context.Context, criteria hotspot.Criteria) error
	TriggerCrawl(ctx context.Context) error
	SetAutoRefresh(on bool)
	SetSelection(ids []int64)
	DeleteOne(ctx context.Context, id int64) error
	DeleteSelected(ctx context.Context) error
	DeleteAll(ctx context.Context) error
	OpenDetailByID(id int64) (hotspot.Record, error)
	CloseDetail()
	FetchDetails(ctx context.Context, id int64) (hotspot.Record, error)
}

// Subscriber streams view snapshots.
type Subscriber interface {
	Subscribe(buffer int) (<-chan state.View, func())
}

// NoticeBoard holds recent notices for renderers.
type NoticeBoard interface {
	Recent() []notify.Notice
	Dismiss(id string) bool
}

// MediaResolver turns backend-relative media paths into absolute URLs.
type MediaResolver interface {
	MediaURL(path string) string
}

// Tagger derives entity tags from response bodies.
type Tagger interface {
	ETag(data []byte) string
}

// Options carries the optional collaborators and switches.
type Options struct {
	Notices NoticeBoard
	Media   MediaResolver
	Metrics *metrics.Metrics
	IDs     *uuid.Generator
	Tags    Tagger
	Logger  *zap.Logger
	// APIKey, when set, is required on every request except /healthz.
	APIKey string
	// Heartbeat is the SSE keep-alive period.
	Heartbeat time.Duration
}

// Server wires HTTP handlers to the dashboard coordinator.
type Server struct {
	router  chi.Router
	dash    Dashboard
	subs    Subscriber
	notices NoticeBoard
	media   MediaResolver
	tags    Tagger
	logger  *zap.Logger
	beat    time.Duration
}

// NewServer constructs a Server with middleware and routes.
func NewServer(dash Dashboard, subs Subscriber, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ids := opts.IDs
	if ids == nil {
		ids = uuid.New()
	}
	tags := opts.Tags
	if tags == nil {
		tags = sha256.New()
	}
	beat := opts.Heartbeat
	if beat <= 0 {
		beat = defaultHeartbeat
	}
	s := &Server{
		dash:    dash,
		subs:    subs,
		notices: opts.Notices,
		media:   opts.Media,
		tags:    tags,
		logger:  logger,
		beat:    beat,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(ids))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(opts.Metrics.Middleware)

	r.Get("/healthz", s.healthz)

	r.Group(func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

		r.Route("/v1", func(r chi.Router) {
			r.Get("/events", s.events)

			r.Group(func(r chi.Router) {
				r.Use(timeoutMiddleware(actionTimeout))

				r.Get("/view", s.view)
				r.Get("/notices", s.listNotices)
				r.Delete("/notices/{notice_id}", s.dismissNotice)

				r.Post("/refresh", s.refresh)
				r.Put("/filter", s.setFilter)
				r.Post("/crawl", s.crawl)
				r.Put("/auto-refresh", s.setAutoRefresh)
				r.Put("/selection", s.setSelection)

				r.Post("/hotspots/delete-selected", s.deleteSelected)
				r.Post("/hotspots/delete-all", s.deleteAll)
				r.Delete("/hotspots/{hotspot_id}", s.deleteOne)

				r.Delete("/detail", s.closeDetail)
				r.Post("/detail/{hotspot_id}", s.openDetail)
				r.Post("/detail/{hotspot_id}/fetch", s.fetchDetails)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// errorStatus maps operation errors onto HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrEmptySelection),
		errors.Is(err, dashboard.ErrEmptyList),
		errors.Is(err, dashboard.ErrDetailNotOpen):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrNotListed), errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, dashboard.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
