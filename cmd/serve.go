package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/hotspot-dashboard/internal/server"
)

type runner interface {
	Run(ctx context.Context) error
}

// buildServer is swapped in tests so serve does not bind a port.
var buildServer = func(app App) (runner, error) {
	return server.BuildWithLogger(app.Config(), app.Logger())
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API with optional auto refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			srv, err := buildServer(app)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}
}
