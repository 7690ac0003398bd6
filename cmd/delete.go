package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newDeleteCmd(_ *rootOptions) *cobra.Command {
	var (
		filter filterFlags
		all    bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "delete [id...]",
		Short: "Delete hotspot records by id, or every listed record with --all",
		Long: `delete removes records on the backend. Several ids are deleted as one
batch; ids outside the list selected by the filter flags are skipped.
--all deletes every record the filter flags select and requires --yes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass ids or --all, not both")
			}
			if !all && len(args) == 0 {
				return errors.New("at least one id is required")
			}
			if all && !yes {
				return errors.New("--all deletes every listed record; confirm with --yes")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			criteria, err := filter.criteria()
			if err != nil {
				return err
			}
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			dash := app.Dashboard()
			ctx := cmd.Context()

			switch {
			case all:
				if err := dash.SetFilter(ctx, criteria); err != nil {
					return err
				}
				return dash.DeleteAll(ctx)
			case len(ids) == 1:
				return dash.DeleteOne(ctx, ids[0])
			default:
				if err := dash.SetFilter(ctx, criteria); err != nil {
					return err
				}
				dash.SetSelection(ids)
				if missing := len(ids) - len(dash.View().Selection); missing > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "%d id(s) not in the current list, skipped\n", missing)
				}
				return dash.DeleteSelected(ctx)
			}
		},
	}
	filter.register(cmd, true)
	cmd.Flags().BoolVar(&all, "all", false, "delete every record the list currently shows")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm --all")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
