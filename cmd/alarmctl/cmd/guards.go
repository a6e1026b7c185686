package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/panoraguard/alarm-console/internal/app"
)

var guardsCmd = &cobra.Command{
	Use:   "guards",
	Short: "List guards that can be notified.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			guards, err := a.Console.Guards(ctx)
			if err != nil {
				return err
			}

			printGuards(cmd.OutOrStdout(), guards)

			return nil
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(guardsCmd)
}
