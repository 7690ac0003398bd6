package cmd

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/hotspot-dashboard/internal/hotspot"
)

func newDetailCmd(opts *rootOptions) *cobra.Command {
	var fetch bool
	cmd := &cobra.Command{
		Use:   "detail <id>",
		Short: "Show one record, optionally asking the backend to enrich it first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			id := ids[0]
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dash := app.Dashboard()
			if err := dash.Refresh(cmd.Context()); err != nil {
				return err
			}
			rec, err := dash.OpenDetailByID(id)
			if err != nil {
				return err
			}
			if fetch {
				if rec, err = dash.FetchDetails(cmd.Context(), id); err != nil {
					return err
				}
			}
			return renderDetail(cmd.OutOrStdout(), opts.output, detailOutput{
				Record:   rec,
				MediaURL: mediaURL(app, rec),
			})
		},
	}
	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch content and summary from the backend")
	return cmd
}

func mediaURL(app App, rec hotspot.Record) string {
	path := deref(rec.MediaPaths)
	if path == "" {
		return ""
	}
	return app.MediaURL(path)
}
