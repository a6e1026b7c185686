package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/panoraguard/alarm-console/internal/app"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/watch"
)

var (
	// historyPage is the page shown by "alarms history".
	historyPage int

	alarmsCmd = &cobra.Command{
		Use:   "alarms",
		Short: "List and watch alarms.",
	}

	activeCmd = &cobra.Command{
		Use:   "active",
		Short: "List pending and notified alarms.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				alarms, err := a.Console.ActiveAlarms(ctx)
				if err != nil {
					return err
				}

				printAlarms(cmd.OutOrStdout(), alarms)

				return nil
			})
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List resolved and ignored alarms of one page.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				alarms, err := a.Console.HistoricalAlarms(ctx, historyPage)
				if err != nil {
					return err
				}

				printAlarms(cmd.OutOrStdout(), alarms)

				if pages, err := a.Console.TotalPages(ctx); err == nil {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Page %d of %d\n", max(historyPage, 1), pages)
				}

				return nil
			})
		},
	}

	locationCmd = &cobra.Command{
		Use:   "location <location> <camera>",
		Short: "List the alarms raised by one camera at a location.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				alarms, err := a.Console.AlarmsByLocation(ctx, args[0], args[1])
				if err != nil {
					return err
				}

				printAlarms(cmd.OutOrStdout(), alarms)

				return nil
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Mirror alarms live until interrupted.",
		Long: `Keeps the active alarm list current by polling page 1 and following the push channel.

New alarms are printed as they arrive. When health_addr or metrics_addr are set,
a gRPC health service and a Prometheus endpoint are served as well.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := prometheus.NewRegistry()

			m, err := metrics.New(reg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			a, err := open(ctx, &app.Options{Metrics: m})
			if err != nil {
				return err
			}

			defer func() {
				if err := a.Close(context.WithoutCancel(ctx)); err != nil {
					logger.WarnKV(ctx, "Failed to save session", "error", err)
				}
			}()

			return runWatch(cmd, a, m, reg)
		},
	}
)

// runWatch starts the watcher with settings from a.
func runWatch(cmd *cobra.Command, a *app.App, m *metrics.Metrics, reg *prometheus.Registry) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()

	return watch.Run(ctx, &watch.Options{
		Fetcher:        a.Client,
		Registry:       a.Console.Registry(),
		Sessions:       a.Sessions,
		PushURL:        a.Settings.PushURL,
		PollInterval:   a.Settings.PollInterval,
		PageSize:       a.Settings.PageSize,
		HealthAddress:  a.Settings.HealthAddress,
		MetricsAddress: a.Settings.MetricsAddress,
		Metrics:        m,
		Gatherer:       reg,
		OnNewAlarm: func(n *alarm.Alarm) {
			_, _ = fmt.Fprintf(out, "New alarm %s at %s (%s, %s)\n",
				n.ID, n.CameraLocation, n.Type, formatTime(n.Timestamp))
		},
	})
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "page number")

	alarmsCmd.AddCommand(activeCmd, historyCmd, locationCmd, watchCmd)
	rootCmd.AddCommand(alarmsCmd)
}
