package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/panoraguard/alarm-console/internal/app"
	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string
	// sessionFile overrides the session file from the settings.
	sessionFile string
	// logLevel overrides the level from the settings.
	logLevel string

	// rootCmd is the base command of the alarm console.
	rootCmd = &cobra.Command{
		Use:   "alarmctl",
		Short: "Triage camera alarms from the terminal.",
		Long: `Operator console for the camera alarm service.

Log in once; the session is kept in a local file and expires 30 minutes after login.
Active alarms can be dismissed, or handed to a guard and later resolved.
"alarms watch" keeps a live mirror fed by polling and by the push channel.`,
		SilenceUsage: true,
	}
)

// Execute runs the alarmctl CLI and exits with non-zero status on error.
func Execute() {
	rootCmd.AddCommand(version.Command())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp opens the console, runs fn and saves the session afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := open(ctx, nil)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)

	if err := a.Close(context.WithoutCancel(ctx)); err != nil {
		logger.WarnKV(ctx, "Failed to save session", "error", err)
	}

	return runErr
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}

// open assembles the console, applying the log level from flags or settings.
func open(ctx context.Context, opts *app.Options) (*app.App, error) {
	if opts == nil {
		opts = new(app.Options)
	}

	opts.ConfigPath = configPath
	opts.SessionFile = sessionFile

	a, err := app.Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	level := a.Settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	if !logger.Setup(level) {
		logger.WarnKV(ctx, "Unknown log level, using info", "log_level", level)
	}

	return a, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "path of the saved session")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}
