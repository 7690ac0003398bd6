package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

// sleep is replaced in tests.
var sleep = func(cmd *cobra.Command, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
}

func newCrawlCmd(opts *rootOptions) *cobra.Command {
	var (
		filter filterFlags
		wait   bool
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Ask the crawler service to run a crawl",
		Long: `crawl triggers a crawl on the backend. A complete --start/--end range
scopes the crawl; without one the backend crawls its default window.
With --wait the command sleeps for crawl.refetch_delay and prints the
reloaded records.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			criteria, err := filter.criteria()
			if err != nil {
				return err
			}
			dash := app.Dashboard()
			if err := dash.SetFilter(cmd.Context(), criteria); err != nil {
				return err
			}
			if err := dash.TriggerCrawl(cmd.Context()); err != nil {
				return err
			}
			if !wait {
				return nil
			}
			if err := sleep(cmd, app.Config().Crawl.RefetchDelay); err != nil {
				return err
			}
			if err := dash.Refresh(cmd.Context()); err != nil {
				return err
			}
			return renderRecords(cmd.OutOrStdout(), opts.output, dash.View())
		},
	}
	filter.register(cmd, false)
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the refetch delay and print the reloaded list")
	return cmd
}
