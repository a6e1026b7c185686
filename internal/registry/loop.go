package registry

import (
	"context"
	"errors"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
)

// DefaultQueueSize is the update buffer of a Loop.
const DefaultQueueSize = 64

// ErrLoopStopped is returned by Submit after the loop has exited.
var ErrLoopStopped = errors.New("registry loop stopped")

// Update is a mutation applied by the Loop.
type Update interface {
	apply(ctx context.Context, r *Registry, m *metrics.Metrics)
}

// PageUpdate carries a fetched page.
type PageUpdate struct {
	// Page is the 1-based page number.
	Page int
	// Since is the registry revision captured before the fetch.
	Since uint64
	// Alarms is the page content.
	Alarms []*alarm.Alarm
	// Done, when set, receives the merge result; it needs room for one value.
	Done chan<- PageResult
}

func (u PageUpdate) apply(ctx context.Context, r *Registry, m *metrics.Metrics) {
	result := r.ApplyPage(u.Page, u.Since, u.Alarms)

	m.Evicted(result.Evicted)
	logger.DebugKV(ctx, "Page merged",
		"page", u.Page,
		"upserted", result.Upserted,
		"kept", result.Kept,
		"evicted", result.Evicted,
		"skipped", result.Skipped,
	)

	if u.Done != nil {
		u.Done <- result
	}
}

// PushUpdate carries an alarm delivered by the push channel.
type PushUpdate struct {
	// Alarm is the pushed record.
	Alarm *alarm.Alarm
	// Done, when set, receives whether the alarm was inserted; it needs room for one value.
	Done chan<- bool
}

func (u PushUpdate) apply(ctx context.Context, r *Registry, m *metrics.Metrics) {
	inserted := r.ApplyPush(u.Alarm)

	m.Push(inserted)

	if inserted {
		logger.InfoKV(ctx, "New alarm", "id", u.Alarm.ID, "camera", u.Alarm.CameraID, "type", u.Alarm.Type)
	} else if u.Alarm != nil {
		logger.DebugKV(ctx, "Duplicate push ignored", "id", u.Alarm.ID)
	}

	if u.Done != nil {
		u.Done <- inserted
	}
}

// Loop is the single consumer of registry updates.
type Loop struct {
	registry *Registry
	metrics  *metrics.Metrics
	updates  chan Update
	done     chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMetrics records merge outcomes.
func WithMetrics(m *metrics.Metrics) LoopOption {
	return func(l *Loop) {
		l.metrics = m
	}
}

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) LoopOption {
	return func(l *Loop) {
		if n >= 0 {
			l.updates = make(chan Update, n)
		}
	}
}

// NewLoop creates a loop feeding r.
func NewLoop(r *Registry, opts ...LoopOption) *Loop {
	l := &Loop{
		registry: r,
		updates:  make(chan Update, DefaultQueueSize),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Submit queues u, blocking while the queue is full.
func (l *Loop) Submit(ctx context.Context, u Update) error {
	select {
	case l.updates <- u:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies updates until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	ctx = logger.WithName(ctx, "registry")

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-l.updates:
			u.apply(ctx, l.registry, l.metrics)
			l.metrics.ActiveAlarms(len(l.registry.Active()))
		}
	}
}
