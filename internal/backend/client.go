// Package backend is the HTTP client for the crawler service's REST surface:
// source catalog, hotspot listing and deletion, crawl triggering, scheduler
// status, and on-demand detail enrichment.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/id/uuid"
)

const (
	// DefaultAPIPrefix is the path prefix every endpoint lives under.
	DefaultAPIPrefix = "/api"
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second

	maxErrorBody = 4 << 10
)

// IDGenerator produces request ids for calls made outside a request scope.
type IDGenerator interface {
	NewID() (string, error)
}

// Limiter paces calls per operation key.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Operation keys passed to the Limiter.
const (
	OpSources   = "sources"
	OpHotspots  = "hotspots"
	OpCrawl     = "crawl"
	OpScheduler = "scheduler_status"
	OpDelete    = "delete"
	OpDetails   = "fetch_details"
)

// Client talks to the crawler backend.
type Client struct {
	base       *url.URL
	prefix     string
	httpClient *http.Client
	limiter    Limiter
	ids        IDGenerator
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-call timeout on the underlying HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithAPIPrefix overrides the "/api" path prefix.
func WithAPIPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(prefix, "/")
		if c.prefix == "/" {
			c.prefix = ""
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLimiter paces every call through l.
func WithLimiter(l Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithIDGenerator sets the request id source.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *Client) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// New builds a Client for the backend at baseURL (scheme and host, e.g.
// http://localhost:8000).
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend url %q must include scheme and host", baseURL)
	}
	c := &Client{
		base:       base,
		prefix:     DefaultAPIPrefix,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		ids:        uuid.New(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sources lists the distinct source labels.
func (c *Client) Sources(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, OpSources, http.MethodGet, "/sources", nil, nil, &raw); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	sources, err := decodeSources(raw)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

// Hotspots lists records matching params.
func (c *Client) Hotspots(ctx context.Context, params url.Values) ([]hotspot.Record, error) {
	records := []hotspot.Record{}
	if err := c.do(ctx, OpHotspots, http.MethodGet, "/hotspots", params, nil, &records); err != nil {
		return nil, fmt.Errorf("list hotspots: %w", err)
	}
	return records, nil
}

// Crawl asks the backend to start a crawl. The call returns once the request
// is acknowledged; there is no completion signal.
func (c *Client) Crawl(ctx context.Context, params url.Values) error {
	if err := c.do(ctx, OpCrawl, http.MethodPost, "/crawl", params, nil, nil); err != nil {
		return fmt.Errorf("trigger crawl: %w", err)
	}
	return nil
}

// SchedulerStatus fetches the scheduler snapshot.
func (c *Client) SchedulerStatus(ctx context.Context) (hotspot.SchedulerStatus, error) {
	var status hotspot.SchedulerStatus
	if err := c.do(ctx, OpScheduler, http.MethodGet, "/scheduler/status", nil, nil, &status); err != nil {
		return hotspot.SchedulerStatus{}, fmt.Errorf("scheduler status: %w", err)
	}
	return status, nil
}

// DeleteHotspot removes one record.
func (c *Client) DeleteHotspot(ctx context.Context, id int64) error {
	path := "/hotspots/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, OpDelete, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete hotspot %d: %w", id, err)
	}
	return nil
}

// DeleteHotspots removes every listed record and returns the backend's count.
func (c *Client) DeleteHotspots(ctx context.Context, ids []int64) (int, error) {
	var resp struct {
		Message string `json:"message"`
		Count   int    `json:"count"`
	}
	if ids == nil {
		ids = []int64{}
	}
	if err := c.do(ctx, OpDelete, http.MethodDelete, "/hotspots", nil, ids, &resp); err != nil {
		return 0, fmt.Errorf("delete %d hotspots: %w", len(ids), err)
	}
	return resp.Count, nil
}

// FetchDetails asks the backend to enrich a record and returns the result.
func (c *Client) FetchDetails(ctx context.Context, id int64) (hotspot.Record, error) {
	var rec hotspot.Record
	path := "/hotspots/" + strconv.FormatInt(id, 10) + "/fetch_details"
	if err := c.do(ctx, OpDetails, http.MethodPost, path, nil, nil, &rec); err != nil {
		return hotspot.Record{}, fmt.Errorf("fetch details %d: %w", id, err)
	}
	return rec, nil
}

// MediaURL resolves a backend-relative media path against the backend origin.
// Absolute URLs and empty paths are returned unchanged.
func (c *Client) MediaURL(path string) string {
	if path == "" {
		return ""
	}
	ref, err := url.Parse(path)
	if err != nil || ref.IsAbs() {
		return path
	}
	return c.base.ResolveReference(ref).String()
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + c.prefix + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, op); err != nil {
			return err
		}
	}
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, params), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := c.requestID(ctx)
	if reqID != "" {
		req.Header.Set(uuid.HeaderName, reqID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) requestID(ctx context.Context) string {
	if id, ok := uuid.RequestID(ctx); ok {
		return id
	}
	id, err := c.ids.NewID()
	if err != nil {
		c.logger.Debug("request id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// decodeSources accepts a plain list of labels as well as the older
// one-element-row form ([["label"], ...]).
func decodeSources(raw json.RawMessage) ([]string, error) {
	var flat []string
	if err := json.Unmarshal(raw, &flat); err == nil {
		if flat == nil {
			flat = []string{}
		}
		return flat, nil
	}
	var rows [][]string
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, errors.New("decode sources: expected a list of strings")
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			out = append(out, row[0])
		}
	}
	return out, nil
}
