package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/logging"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
)

type filterRequest struct {
	Source    string     `json:"source"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Limit     int        `json:"limit"`
}

func (f filterRequest) criteria() hotspot.Criteria {
	c := hotspot.Criteria{Source: f.Source, Limit: f.Limit}
	if f.StartTime != nil || f.EndTime != nil {
		c.Range = &hotspot.DateRange{Start: f.StartTime, End: f.EndTime}
	}
	return c
}

type autoRefreshRequest struct {
	Enabled bool `json:"enabled"`
}

type selectionRequest struct {
	IDs []int64 `json:"ids"`
}

type detailResponse struct {
	Record   hotspot.Record `json:"record"`
	MediaURL string         `json:"media_url,omitempty"`
}

// view serves the current snapshot with an entity tag over its content. The
// version counter is left out of the tag so a reload that changed nothing
// still revalidates.
func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	v := s.dash.View()
	version := v.Version
	v.Version = 0
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode view")
		return
	}
	tag := s.tags.ETag(body)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	v.Version = version
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.Refresh(detached(r)); err != nil {
		s.fail(w, r, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) setFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit must be >= 0")
		return
	}
	if err := s.dash.SetFilter(detached(r), req.criteria()); err != nil {
		s.fail(w, r, "set filter", err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.TriggerCrawl(detached(r)); err != nil {
		s.fail(w, r, "trigger crawl", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "crawl started"})
}

func (s *Server) setAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var req autoRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.dash.SetAutoRefresh(req.Enabled)
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) setSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.dash.SetSelection(req.IDs)
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) deleteOne(w http.ResponseWriter, r *http.Request) {
	id, ok := hotspotID(w, r)
	if !ok {
		return
	}
	if err := s.dash.DeleteOne(detached(r), id); err != nil {
		s.fail(w, r, "delete hotspot", err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) deleteSelected(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.DeleteSelected(detached(r)); err != nil {
		s.fail(w, r, "delete selected", err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) deleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.DeleteAll(detached(r)); err != nil {
		s.fail(w, r, "delete all", err)
		return
	}
	writeJSON(w, http.StatusOK, s.dash.View())
}

func (s *Server) openDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := hotspotID(w, r)
	if !ok {
		return
	}
	rec, err := s.dash.OpenDetailByID(id)
	if err != nil {
		s.fail(w, r, "open detail", err)
		return
	}
	writeJSON(w, http.StatusOK, s.detail(rec))
}

func (s *Server) closeDetail(w http.ResponseWriter, _ *http.Request) {
	s.dash.CloseDetail()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fetchDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := hotspotID(w, r)
	if !ok {
		return
	}
	rec, err := s.dash.FetchDetails(detached(r), id)
	if err != nil {
		s.fail(w, r, "fetch details", err)
		return
	}
	writeJSON(w, http.StatusOK, s.detail(rec))
}

func (s *Server) listNotices(w http.ResponseWriter, _ *http.Request) {
	notices := []notify.Notice{}
	if s.notices != nil {
		notices = s.notices.Recent()
	}
	writeJSON(w, http.StatusOK, map[string]any{"notices": notices})
}

func (s *Server) dismissNotice(w http.ResponseWriter, r *http.Request) {
	if s.notices == nil || !s.notices.Dismiss(chi.URLParam(r, "notice_id")) {
		writeError(w, http.StatusNotFound, "notice not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) detail(rec hotspot.Record) detailResponse {
	resp := detailResponse{Record: rec}
	if s.media != nil && rec.MediaPaths != nil {
		resp.MediaURL = s.media.MediaURL(*rec.MediaPaths)
	}
	return resp
}

// fail logs err with the request id and writes the mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := errorStatus(err)
	logging.FromContext(r.Context(), s.logger).Warn("dashboard action failed",
		zap.String("action", action),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, err.Error())
}

// detached keeps the request's values but drops its cancellation, so a
// client hanging up does not abort a dashboard operation halfway.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func hotspotID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "hotspot_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid hotspot id")
		return 0, false
	}
	return id, true
}
