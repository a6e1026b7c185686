package cmd

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/panoraguard/alarm-console/internal/app"
	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/coordinator"
	"github.com/panoraguard/alarm-console/internal/remote"
)

var (
	// guardID is the guard chosen by "alarm notify".
	guardID string
	// imageOut is where "alarm image" writes the decoded snapshot.
	imageOut string
	// assumeYes skips the confirmation prompt of lifecycle commands.
	assumeYes bool

	alarmCmd = &cobra.Command{
		Use:   "alarm",
		Short: "Inspect and act on one alarm.",
	}

	showCmd = &cobra.Command{
		Use:   "show <alarm-id>",
		Short: "Show alarm details.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				found, err := a.Console.Alarm(ctx, args[0])
				if err != nil {
					return err
				}

				printAlarm(cmd.OutOrStdout(), found)

				return nil
			})
		},
	}

	dismissCmd = &cobra.Command{
		Use:   "dismiss <alarm-id>",
		Short: "Mark the alarm ignored and stop the siren.",
		Args:  cobra.ExactArgs(1),
		RunE: transition("Dismiss",
			func(ctx context.Context, a *app.App, alarmID string) (*coordinator.Outcome, error) {
				return a.Console.Dismiss(ctx, alarmID)
			}),
	}

	notifyCmd = &cobra.Command{
		Use:   "notify <alarm-id> --guard <guard-id>",
		Short: "Dispatch a guard to the alarm.",
		Args:  cobra.ExactArgs(1),
		RunE: transition("Notify a guard about",
			func(ctx context.Context, a *app.App, alarmID string) (*coordinator.Outcome, error) {
				return a.Console.NotifyAndAssign(ctx, alarmID, guardID)
			}),
	}

	resolveCmd = &cobra.Command{
		Use:   "resolve <alarm-id>",
		Short: "Close a notified alarm and stop the siren.",
		Args:  cobra.ExactArgs(1),
		RunE: transition("Resolve",
			func(ctx context.Context, a *app.App, alarmID string) (*coordinator.Outcome, error) {
				return a.Console.Resolve(ctx, alarmID)
			}),
	}

	imageCmd = &cobra.Command{
		Use:   "image <alarm-id>",
		Short: "Save the alarm snapshot.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				encoded, err := a.Console.AlarmImage(ctx, args[0])
				if errors.Is(err, remote.ErrNoImage) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No image available.")

					return nil
				}

				if err != nil {
					return err
				}

				return writeImage(cmd, args[0], encoded)
			})
		},
	}
)

// errNotConfirmed is returned when the operator declines a lifecycle command.
var errNotConfirmed = errors.New("cancelled")

// transition wraps a lifecycle command with confirmation, outcome and failure reporting.
func transition(
	verb string,
	act func(ctx context.Context, a *app.App, alarmID string) (*coordinator.Outcome, error),
) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if !assumeYes && !confirm(cmd, fmt.Sprintf("%s alarm %s?", verb, args[0])) {
			return errNotConfirmed
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			outcome, err := act(ctx, a, args[0])
			if err != nil {
				return explain(cmd.ErrOrStderr(), err)
			}

			printOutcome(cmd.OutOrStdout(), outcome)

			return nil
		})
	}
}

// writeImage decodes the base64 snapshot into imageOut or <alarm-id>.jpg.
func writeImage(cmd *cobra.Command, alarmID, encoded string) error {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	path := imageOut
	if path == "" {
		path = alarmID + ".jpg"
	}

	if err := os.WriteFile(filepath.Clean(path), data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write image: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)

	return nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	notifyCmd.Flags().StringVarP(&guardID, "guard", "g", "", "guard to notify")
	for _, c := range []*cobra.Command{dismissCmd, notifyCmd, resolveCmd} {
		c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	}

	imageCmd.Flags().StringVarP(&imageOut, "out", "o", "", "output file (default <alarm-id>.jpg)")

	alarmCmd.AddCommand(showCmd, dismissCmd, notifyCmd, resolveCmd, imageCmd)
	rootCmd.AddCommand(alarmCmd)
}
