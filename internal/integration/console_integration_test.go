package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/panoraguard/alarm-console/internal/access"
	"github.com/panoraguard/alarm-console/internal/app"
	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/watch"
)

// writeSettings stores console settings pointing at svc and returns their path.
func writeSettings(t *testing.T, svc *alarmService, mutate func(*config.Config)) string {
	t.Helper()

	dir := t.TempDir()
	settings := &config.Config{
		APIBaseURL:     svc.URL,
		SpeakerBaseURL: svc.URL,
		SessionFile:    filepath.Join(dir, "session.json"),
		Timeout:        5 * time.Second,
	}

	if mutate != nil {
		mutate(settings)
	}

	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, config.Save(path, settings))

	return path
}

// freeAddress reserves a loopback port for a server started later.
func freeAddress(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	require.NoError(t, l.Close())

	return addr
}

// TestConsole_NotifyThenResolve drives an alarm through its lifecycle across two CLI runs.
func TestConsole_NotifyThenResolve(t *testing.T) {
	t.Parallel()

	svc := newAlarmService(t,
		&alarm.Alarm{ID: "a-1", Status: alarm.StatusPending, CameraLocation: "north-gate", Timestamp: time.Now().UTC()},
		&alarm.Alarm{ID: "a-0", Status: alarm.StatusResolved, Timestamp: time.Now().Add(-time.Hour).UTC()},
	)
	configPath := writeSettings(t, svc, nil)
	ctx := context.Background()

	// First run: log in and dispatch a guard.
	first, err := app.Open(ctx, &app.Options{ConfigPath: configPath})
	require.NoError(t, err)

	login, err := first.Console.Login(ctx, "olga", "secret")
	require.NoError(t, err)
	require.Equal(t, user.RoleOperator, login.Principal.Role)
	require.Equal(t, access.RouteOperator, login.Destination)

	active, err := first.Console.ActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "a-1", active[0].ID)

	outcome, err := first.Console.NotifyAndAssign(ctx, "a-1", "g-1")
	require.NoError(t, err)
	require.Equal(t, alarm.StatusNotified, outcome.Alarm.Status)
	require.Equal(t, "olga", outcome.Operator)
	require.Equal(t, []string{"g-1/a-1"}, svc.notifications())
	require.Zero(t, svc.stopCount())
	require.NoError(t, first.Close(ctx))

	// Second run: the saved session resolves the alarm.
	second, err := app.Open(ctx, &app.Options{ConfigPath: configPath})
	require.NoError(t, err)

	principal, err := second.Console.Authorize(user.Any)
	require.NoError(t, err)
	require.Equal(t, "op-1", principal.UserID)

	outcome, err = second.Console.Resolve(ctx, "a-1")
	require.NoError(t, err)
	require.Equal(t, alarm.StatusResolved, outcome.Alarm.Status)
	require.Empty(t, outcome.Warnings)
	require.Equal(t, 1, svc.stopCount())

	history, err := second.Console.HistoricalAlarms(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)

	pages, err := second.Console.TotalPages(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, pages)

	second.Console.Logout()
	require.NoError(t, second.Close(ctx))
}

// TestConsole_ResolveOffPageOne acts on a NOTIFIED alarm that only a later page lists.
func TestConsole_ResolveOffPageOne(t *testing.T) {
	t.Parallel()

	guard, operator := "g-1", "op-1"
	svc := newAlarmService(t,
		&alarm.Alarm{ID: "a-new", Status: alarm.StatusPending, Timestamp: time.Now().UTC()},
		&alarm.Alarm{
			ID:         "a-old",
			Status:     alarm.StatusNotified,
			GuardID:    &guard,
			OperatorID: &operator,
			Timestamp:  time.Now().Add(-time.Hour).UTC(),
		},
	)
	ctx := context.Background()

	a, err := app.Open(ctx, &app.Options{ConfigPath: writeSettings(t, svc, func(c *config.Config) {
		c.PageSize = 1
	})})
	require.NoError(t, err)

	_, err = a.Console.Login(ctx, "olga", "secret")
	require.NoError(t, err)

	history, err := a.Console.HistoricalAlarms(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, history)

	active, err := a.Console.ActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "a-new", active[0].ID)

	outcome, err := a.Console.Resolve(ctx, "a-old")
	require.NoError(t, err)
	require.Equal(t, alarm.StatusResolved, outcome.Alarm.Status)
	require.Equal(t, 1, svc.stopCount())

	history, err = a.Console.HistoricalAlarms(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "a-old", history[0].ID)

	active, err = a.Console.ActiveAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
}

// TestConsole_BadPassword leaves the console logged out.
func TestConsole_BadPassword(t *testing.T) {
	t.Parallel()

	svc := newAlarmService(t)
	ctx := context.Background()

	a, err := app.Open(ctx, &app.Options{ConfigPath: writeSettings(t, svc, nil)})
	require.NoError(t, err)

	_, err = a.Console.Login(ctx, "olga", "wrong")
	require.Error(t, err)

	_, err = a.Console.Authorize(user.Any)
	require.ErrorIs(t, err, access.ErrUnauthorized)
}

// TestWatch_PushAndHealth runs the watcher against the push channel and probes its health service.
func TestWatch_PushAndHealth(t *testing.T) {
	t.Parallel()

	svc := newAlarmService(t, &alarm.Alarm{ID: "a-1", Status: alarm.StatusPending, Timestamp: time.Now().UTC()})
	svc.schedulePush(&alarm.Alarm{ID: "a-2", Status: alarm.StatusPending, Timestamp: time.Now().UTC()})

	healthAddress := freeAddress(t)
	configPath := writeSettings(t, svc, func(c *config.Config) {
		c.PushURL = svc.pushURL()
		c.HealthAddress = healthAddress
		c.PollInterval = time.Hour
	})

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, &app.Options{ConfigPath: configPath, Metrics: m})
	require.NoError(t, err)

	_, err = a.Console.Login(ctx, "olga", "secret")
	require.NoError(t, err)

	announced := make(chan string, 4)
	done := make(chan error, 1)

	go func() {
		done <- watch.Run(ctx, &watch.Options{
			Fetcher:       a.Client,
			Registry:      a.Console.Registry(),
			Sessions:      a.Sessions,
			PushURL:       a.Settings.PushURL,
			PollInterval:  a.Settings.PollInterval,
			PageSize:      a.Settings.PageSize,
			HealthAddress: a.Settings.HealthAddress,
			Metrics:       m,
			OnNewAlarm:    func(n *alarm.Alarm) { announced <- n.ID },
		})
	}()

	select {
	case id := <-announced:
		require.Equal(t, "a-2", id)
	case <-time.After(10 * time.Second):
		t.Fatal("pushed alarm was not announced")
	}

	conn, err := grpc.NewClient(healthAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	defer conn.Close()

	client := healthpb.NewHealthClient(conn)

	require.Eventually(t, func() bool {
		for _, service := range []string{watch.ServicePoll, watch.ServicePush} {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
			if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return false
			}
		}

		return true
	}, 10*time.Second, 50*time.Millisecond)

	_, ok := a.Console.Registry().Get("a-1")
	require.True(t, ok)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}
