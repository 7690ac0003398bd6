package cmd

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show scheduler status, known sources and record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dash := app.Dashboard()
			if err := dash.Refresh(cmd.Context()); err != nil {
				return err
			}
			return renderStatus(cmd.OutOrStdout(), opts.output, dash.View())
		},
	}
}
