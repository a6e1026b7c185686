package watch

import (
	"context"
	"time"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/registry"
)

// Fetcher reads one page of alarms.
type Fetcher interface {
	ListAlarms(ctx context.Context, page, perPage int) ([]*alarm.Alarm, error)
}

// Poller refreshes page 1 through the registry loop.
type Poller struct {
	// fetcher reads pages from the alarm service.
	fetcher Fetcher
	// registry provides the revision captured before each fetch.
	registry *registry.Registry
	// loop applies fetched pages.
	loop *registry.Loop
	// interval separates polls.
	interval time.Duration
	// pageSize is the number of alarms per page.
	pageSize int
	// metrics records fetch results.
	metrics *metrics.Metrics
	// report is told the result of every poll.
	report func(err error)
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		err := p.poll(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if p.report != nil {
			p.report(err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll fetches page 1 and waits until the loop merged it.
func (p *Poller) poll(ctx context.Context) error {
	since := p.registry.Revision()

	alarms, err := p.fetcher.ListAlarms(ctx, 1, p.pageSize)
	p.metrics.Fetch(err)

	if err != nil {
		logger.WarnKV(ctx, "Poll failed, keeping last known state", "error", err)

		return err
	}

	done := make(chan registry.PageResult, 1)
	if err = p.loop.Submit(ctx, registry.PageUpdate{Page: 1, Since: since, Alarms: alarms, Done: done}); err != nil {
		return err
	}

	select {
	case result := <-done:
		logger.DebugKV(ctx, "Poll merged", "alarms", len(result.Alarms), "evicted", result.Evicted)

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
