package cmd

import (
	"github.com/spf13/cobra"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	var filter filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hotspot records matching the filter",
		Args:  cobra.NoArgs,
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
			return renderRecords(cmd.OutOrStdout(), opts.output, dash.View())
		},
	}
	filter.register(cmd, true)
	return cmd
}
