package watch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/registry"
	"github.com/panoraguard/alarm-console/internal/remote"
)

// Options controls the watcher.
type Options struct {
	// Fetcher reads pages for the poller.
	Fetcher Fetcher
	// Registry is the mirror both producers feed.
	Registry *registry.Registry
	// Sessions gates the watcher and supplies the push handshake token.
	Sessions Sessions
	// PushURL is the Socket.IO server URL; empty disables push.
	PushURL string
	// PollInterval separates page-1 refreshes.
	PollInterval time.Duration
	// PageSize is the number of alarms per page.
	PageSize int
	// ReconnectInterval paces push reconnects; zero uses the subscriber default.
	ReconnectInterval time.Duration
	// HealthAddress, when set, serves the gRPC health service.
	HealthAddress string
	// MetricsAddress, when set, serves Prometheus metrics.
	MetricsAddress string
	// Metrics records producer outcomes.
	Metrics *metrics.Metrics
	// Gatherer is served on MetricsAddress.
	Gatherer prometheus.Gatherer
	// OnNewAlarm is called from the registry loop for every inserted push.
	OnNewAlarm func(a *alarm.Alarm)
}

// errNotLoggedIn is returned when the watcher starts without a session.
var errNotLoggedIn = errors.New("log in before watching alarms")

// Sessions is the part of the session store the watcher reads.
type Sessions interface {
	Token() (string, bool)
	HasRole(req user.Requirement) bool
}

// Run starts the registry loop, the poller, the push subscriber and the
// optional health and metrics servers, and blocks until ctx is cancelled or
// one of them fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "watch")

	if !opts.Sessions.HasRole(user.Any) {
		return errNotLoggedIn
	}

	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}

	if opts.PageSize <= 0 {
		opts.PageSize = config.DefaultPageSize
	}

	var (
		health = NewHealth()
		loop   = registry.NewLoop(opts.Registry, registry.WithMetrics(opts.Metrics))
		poller = &Poller{
			fetcher:  opts.Fetcher,
			registry: opts.Registry,
			loop:     loop,
			interval: opts.PollInterval,
			pageSize: opts.PageSize,
			metrics:  opts.Metrics,
			report:   func(err error) { health.Set(ServicePoll, err == nil) },
		}
		sub       *remote.Subscriber
		listeners = make(map[string]net.Listener, 2)
		err       error
	)

	if opts.PushURL != "" {
		if sub, err = newSubscriber(opts, health); err != nil {
			return err
		}
	} else {
		logger.Info(ctx, "Push channel not configured, polling only")
	}

	for name, address := range map[string]string{"health": opts.HealthAddress, "metrics": opts.MetricsAddress} {
		if address == "" || (name == "metrics" && opts.Gatherer == nil) {
			continue
		}

		lis, listenErr := listen(ctx, name, address)
		if listenErr != nil {
			closeAll(listeners)

			return listenErr
		}

		listeners[name] = lis
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return loop.Run(groupCtx) })
	group.Go(func() error { return poller.Run(groupCtx) })

	if sub != nil {
		group.Go(func() error {
			return sub.Run(groupCtx, func(ctx context.Context, a *alarm.Alarm) {
				done := make(chan bool, 1)
				if err := loop.Submit(ctx, registry.PushUpdate{Alarm: a, Done: done}); err != nil {
					return
				}

				select {
				case inserted := <-done:
					if inserted && opts.OnNewAlarm != nil {
						opts.OnNewAlarm(a)
					}
				case <-ctx.Done():
				}
			})
		})
	}

	if lis, ok := listeners["health"]; ok {
		group.Go(func() error { return health.Serve(groupCtx, lis) })
	}

	if lis, ok := listeners["metrics"]; ok {
		group.Go(func() error { return ServeMetrics(groupCtx, lis, opts.Gatherer) })
	}

	logger.InfoKV(ctx, "Watching alarms", "poll_interval", opts.PollInterval, "push", opts.PushURL != "")

	if err := group.Wait(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	return nil
}

// newSubscriber builds the push subscriber reporting to health.
func newSubscriber(opts *Options, health *Health) (*remote.Subscriber, error) {
	subOpts := []remote.SubscriberOption{
		remote.WithSubscriberToken(opts.Sessions.Token),
		remote.WithConnectionState(func(up bool) { health.Set(ServicePush, up) }),
	}

	if opts.ReconnectInterval > 0 {
		subOpts = append(subOpts, remote.WithReconnectInterval(opts.ReconnectInterval))
	}

	sub, err := remote.NewSubscriber(opts.PushURL, subOpts...)
	if err != nil {
		return nil, fmt.Errorf("create push subscriber: %w", err)
	}

	return sub, nil
}

// listen opens a TCP listener for the named server.
func listen(ctx context.Context, name, address string) (net.Listener, error) {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen %s on %s: %w", name, address, err)
	}

	return lis, nil
}

// closeAll releases listeners opened before a startup failure.
func closeAll(listeners map[string]net.Listener) {
	for _, lis := range listeners {
		_ = lis.Close()
	}
}
