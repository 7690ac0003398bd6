package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/backend"
	"github.com/JakeFAU/hotspot-dashboard/internal/config"
	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
	"github.com/JakeFAU/hotspot-dashboard/internal/logging"
	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
	"github.com/JakeFAU/hotspot-dashboard/internal/server"
	"github.com/JakeFAU/hotspot-dashboard/internal/state"
	"github.com/JakeFAU/hotspot-dashboard/internal/telemetry"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// Dashboard is the slice of the coordinator the one-shot commands use.
type Dashboard interface {
	View() state.View
	Refresh(ctx context.Context) error
	SetFilter(ctx context.Context, criteria hotspot.Criteria) error
	TriggerCrawl(ctx context.Context) error
	SetSelection(ids []int64)
	DeleteOne(ctx context.Context, id int64) error
	DeleteSelected(ctx context.Context) error
	DeleteAll(ctx context.Context) error
	OpenDetailByID(id int64) (hotspot.Record, error)
	FetchDetails(ctx context.Context, id int64) (hotspot.Record, error)
	Close()
}

// App is what commands need from the process. Tests swap in a fake through
// newApp.
type App interface {
	Config() *config.Config
	Logger() *zap.Logger
	Dashboard() Dashboard
	MediaURL(path string) string
	Close()
}

type cliApp struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracing *telemetry.Tracing
	client  *backend.Client
	dash    Dashboard
}

func (a *cliApp) Config() *config.Config { return a.cfg }
func (a *cliApp) Logger() *zap.Logger { return a.logger }
func (a *cliApp) Dashboard() Dashboard { return a.dash }
func (a *cliApp) MediaURL(path string) string { return a.client.MediaURL(path) }

func (a *cliApp) Close() {
	a.dash.Close()
	if err := a.tracing.Shutdown(context.Background()); err != nil {
		a.logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync() //nolint:errcheck // best-effort flush
}

// newApp is the application factory. It is a variable so tests can replace
// it with a fake.
var newApp = func(cfgPath string, stderr io.Writer) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	tracing, err := server.NewTracing(context.Background(), &cfg)
	if err != nil {
		return nil, err
	}
	client, err := server.NewBackendClient(&cfg, nil, tracing, logger)
	if err != nil {
		return nil, err
	}
	dash := server.NewDashboard(&cfg, client, noticePrinter(stderr), nil, logger)
	return &cliApp{cfg: &cfg, logger: logger, tracing: tracing, client: client, dash: dash}, nil
}

// noticePrinter writes notices to w, one per line.
func noticePrinter(w io.Writer) notify.Emitter {
	return notify.EmitterFunc(func(n notify.Notice) {
		if n.Level == notify.LevelLoading {
			return
		}
		if n.Err != "" {
			fmt.Fprintf(w, "[%s] %s: %s\n", n.Level, n.Message, n.Err)
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
	})
}

type rootOptions struct {
	cfgFile string
	output  string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "hotdash",
		Short: "Monitor and manage hotspot records collected by the crawler service.",
		Long: `hotdash keeps a consistent view of the crawler service's hotspot records,
source catalog and scheduler status. Run "hotdash serve" for the long-running
dashboard API, or use the one-shot commands to list, crawl, delete and enrich
records from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(opts.output); err != nil {
				return err
			}
			appInstance, err := newApp(opts.cfgFile, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML/TOML/JSON)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputTable, "output format: table, json or yaml")

	cmd.AddCommand(
		newServeCmd(),
		newListCmd(opts),
		newCrawlCmd(opts),
		newDeleteCmd(opts),
		newDetailCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
