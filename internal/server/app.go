// Package server assembles the dashboard process from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/api"
	"github.com/JakeFAU/hotspot-dashboard/internal/backend"
	"github.com/JakeFAU/hotspot-dashboard/internal/clock/system"
	"github.com/JakeFAU/hotspot-dashboard/internal/config"
	"github.com/JakeFAU/hotspot-dashboard/internal/dashboard"
	"github.com/JakeFAU/hotspot-dashboard/internal/id/uuid"
	"github.com/JakeFAU/hotspot-dashboard/internal/logging"
	"github.com/JakeFAU/hotspot-dashboard/internal/metrics"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify/sinks"
	"github.com/JakeFAU/hotspot-dashboard/internal/policy/ratelimit"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
	"github.com/JakeFAU/hotspot-dashboard/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the long-running process's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	tracing   *telemetry.Tracing
	client    *backend.Client
	store     *state.Store
	coord     *dashboard.Coordinator
	hub       *notify.Hub
	recent    *sinks.RecentSink
	apiServer *api.Server
}

// NewTracing starts tracing when the configuration enables it. The result
// may be nil.
func NewTracing(ctx context.Context, cfg *config.Config) (*telemetry.Tracing, error) {
	tr, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Tracing,
		ServiceName: cfg.Telemetry.ServiceName,
		Exporter:    cfg.Telemetry.Exporter,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}
	return tr, nil
}

// NewBackendClient builds the crawler client from configuration. m and tr
// may be nil.
func NewBackendClient(
	cfg *config.Config,
	m *metrics.Metrics,
	tr *telemetry.Tracing,
	logger *zap.Logger,
) (*backend.Client, error) {
	limiter := ratelimit.New(ratelimit.Config{
		RPS:     cfg.Backend.RateLimitRPS,
		Burst:   cfg.Backend.RateLimitBurst,
		OnDelay: m.ObserveRateLimitWait,
	})
	opts := []backend.Option{
		backend.WithHTTPClient(&http.Client{
			Transport: tr.Transport(nil),
			Timeout:   cfg.Backend.Timeout,
		}),
		backend.WithAPIPrefix(cfg.Backend.APIPrefix),
		backend.WithIDGenerator(uuid.New()),
		backend.WithLogger(logger.Named("backend")),
	}
	if limiter != nil {
		opts = append(opts, backend.WithLimiter(limiter))
	}
	client, err := backend.New(cfg.Backend.BaseURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("backend client init failed: %w", err)
	}
	return client, nil
}

// NewDashboard builds a coordinator over client with fresh state. One-shot
// commands use it directly; Build wraps it for the server.
func NewDashboard(
	cfg *config.Config,
	client dashboard.Backend,
	notices notify.Emitter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *dashboard.Coordinator {
	return dashboard.New(
		client,
		state.New(),
		notices,
		m,
		system.New(),
		dashboard.Config{
			PollInterval: cfg.Refresh.Interval,
			RefetchDelay: cfg.Crawl.RefetchDelay,
			ListLimit:    cfg.Backend.ListLimit,
		},
		logger.Named("dashboard"),
	)
}

// Build creates the application's dependencies.
func Build(cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return BuildWithLogger(cfg, logger)
}

// BuildWithLogger is Build with a caller-supplied logger.
func BuildWithLogger(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{cfg: cfg, logger: logger}
	var err error
	logger.Info("building application dependencies",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auto_refresh", cfg.Refresh.Auto),
	)

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics, err = metrics.New(app.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics init failed: %w", err)
	}

	if err := app.setupNotices(); err != nil {
		return nil, err
	}

	app.tracing, err = NewTracing(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	app.client, err = NewBackendClient(cfg, app.metrics, app.tracing, logger)
	if err != nil {
		return nil, err
	}
	app.coord = NewDashboard(cfg, app.client, app.hub, app.metrics, logger)
	app.store = app.coord.Store()

	var apiKey string
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	app.apiServer = api.NewServer(app.coord, app.store, api.Options{
		Notices: app.recent,
		Media:   app.client,
		Metrics: app.metrics,
		IDs:     uuid.New(),
		Logger:  logger.Named("api"),
		APIKey:  apiKey,
	})
	return app, nil
}

func (a *App) setupNotices() error {
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return fmt.Errorf("notice metrics init failed: %w", err)
	}
	a.recent = sinks.NewRecentSink(a.cfg.Notify.Recent)
	hubCfg := notify.Config{
		BufferSize: a.cfg.Notify.BufferSize,
		MaxWait:    a.cfg.Notify.MaxBatchWait,
		Logger:     a.logger.Named("notify"),
	}
	a.hub = notify.NewHub(hubCfg,
		a.recent,
		sinks.NewLogSink(a.logger.Named("notices")),
		promSink,
	)
	a.logger.Info("notice hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Duration("max_batch_wait", hubCfg.MaxWait),
		zap.Int("recent", a.cfg.Notify.Recent),
	)
	return nil
}

// Handler exposes the renderer API.
func (a *App) Handler() http.Handler {
	return a.tracing.Handler(a.apiServer.Handler(), "hotdash.api")
}

// Coordinator exposes the dashboard core.
func (a *App) Coordinator() *dashboard.Coordinator {
	return a.coord
}

// Run performs the initial load, starts polling when configured, serves the
// API, and blocks until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.coord.Refresh(ctx); err != nil {
		a.logger.Warn("initial load failed", zap.Error(err))
	}
	if a.cfg.Refresh.Auto {
		a.coord.SetAutoRefresh(true)
		a.logger.Info("auto refresh enabled", zap.Duration("interval", a.cfg.Refresh.Interval))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close(shutdownCtx)
}

// Close stops the coordinator, drains notices and flushes the logger.
func (a *App) Close(ctx context.Context) error {
	if a.coord != nil {
		a.coord.Close()
	}
	var err error
	if a.hub != nil {
		if err = a.hub.Close(ctx); err != nil {
			a.logger.Warn("notice hub close failed", zap.Error(err))
		}
	}
	if tErr := a.tracing.Shutdown(ctx); tErr != nil {
		a.logger.Warn("tracing shutdown failed", zap.Error(tErr))
	}
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	a.logger.Info("shutdown complete")
	if err != nil {
		return fmt.Errorf("close notice hub: %w", err)
	}
	return nil
}
