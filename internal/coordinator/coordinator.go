package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panoraguard/alarm-console/internal/access"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/remote"
)

// unknownOperatorLabel is shown when the operator cannot be resolved.
const unknownOperatorLabel = "N/A"

// Remote is the part of the alarm service the coordinator calls.
type Remote interface {
	NotifyGuard(ctx context.Context, guardID, alarmID string) error
	UpdateStatus(ctx context.Context, alarmID string, update remote.StatusUpdate) (*alarm.Alarm, error)
	StopAlert(ctx context.Context) error
	User(ctx context.Context, userID string) (*user.User, error)
}

// Gate authorizes the caller from a fresh session read.
type Gate interface {
	Require(req user.Requirement) (access.Principal, error)
}

// Registry is the local alarm mirror.
type Registry interface {
	Get(id string) (*alarm.Alarm, bool)
	Replace(a *alarm.Alarm)
}

// Outcome is a committed transition.
type Outcome struct {
	// Alarm is the record as stored by the alarm service.
	Alarm *alarm.Alarm
	// Transition is the edge that was taken.
	Transition alarm.Transition
	// Operator is the display name of the acting operator, or "N/A".
	Operator string
	// Destination is the home view of the actor.
	Destination access.Route
	// Warnings lists best-effort side effects that failed.
	Warnings []error
}

// Coordinator runs transitions. It is safe for concurrent use.
type Coordinator struct {
	remote   Remote
	gate     Gate
	registry Registry
	metrics  *metrics.Metrics

	// mu guards inFlight.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records transition outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a coordinator.
func New(r Remote, gate Gate, registry Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		remote:   r,
		gate:     gate,
		registry: registry,
		inFlight: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dismiss moves a PENDING or NOTIFIED alarm to IGNORED.
func (c *Coordinator) Dismiss(ctx context.Context, alarmID string) (*Outcome, error) {
	return c.run(ctx, alarmID, alarm.ActionDismiss, "")
}

// Resolve moves a NOTIFIED alarm to RESOLVED.
func (c *Coordinator) Resolve(ctx context.Context, alarmID string) (*Outcome, error) {
	return c.run(ctx, alarmID, alarm.ActionResolve, "")
}

// NotifyAndAssign notifies the guard and then commits NOTIFIED with the assignment.
func (c *Coordinator) NotifyAndAssign(ctx context.Context, alarmID, guardID string) (*Outcome, error) {
	if guardID == "" {
		return nil, ErrGuardRequired
	}

	return c.run(ctx, alarmID, alarm.ActionNotify, guardID)
}

// run performs the checks shared by every action and dispatches to the saga steps.
func (c *Coordinator) run(ctx context.Context, alarmID string, action alarm.Action, guardID string) (*Outcome, error) {
	ctx = logger.WithFields(logger.WithName(ctx, "coordinator"), "alarm_id", alarmID, "action", action)

	principal, err := c.gate.Require(user.Any)
	if err != nil {
		return nil, fmt.Errorf("%s alarm: %w", action, err)
	}

	current, ok := c.registry.Get(alarmID)
	if !ok {
		return nil, fmt.Errorf("%s alarm %s: %w", action, alarmID, ErrAlarmNotFound)
	}

	if !c.acquire(alarmID) {
		return nil, fmt.Errorf("%s alarm %s: %w", action, alarmID, ErrTransitionInProgress)
	}
	defer c.release(alarmID)

	// Re-read under the in-flight guard so a transition that just finished is seen.
	if fresh, found := c.registry.Get(alarmID); found {
		current = fresh
	}

	transition, err := alarm.Decide(current.Status, action, principal.Role)
	if err != nil {
		c.metrics.Transition(string(action), metrics.ResultError)

		return nil, err
	}

	var updated *alarm.Alarm
	if transition.Has(alarm.EffectDeliverNotification) {
		updated, err = c.notifyThenCommit(ctx, current, transition, principal, guardID)
	} else {
		updated, err = c.commit(ctx, current, transition, principal, current.GuardID)
	}

	if err != nil {
		c.metrics.Transition(string(action), metrics.ResultError)

		return nil, err
	}

	outcome := &Outcome{
		Alarm:      updated,
		Transition: transition,
	}

	if transition.Has(alarm.EffectStopAlert) {
		if err = c.remote.StopAlert(ctx); err != nil {
			c.metrics.StopAlertError()
			logger.WarnKV(ctx, "Stop alert failed", "error", err)
			outcome.Warnings = append(outcome.Warnings, err)
		}
	}

	operatorID := principal.UserID
	if updated.OperatorID != nil {
		operatorID = *updated.OperatorID
	}

	outcome.Operator = c.operatorName(ctx, operatorID)
	outcome.Destination, _ = access.Home(principal.Role)

	c.metrics.Transition(string(action), metrics.ResultSuccess)
	logger.InfoKV(ctx, "Alarm transitioned", "from", transition.From, "to", transition.To, "operator", outcome.Operator)

	return outcome, nil
}

// notifyThenCommit is the guard notification saga.
func (c *Coordinator) notifyThenCommit(
	ctx context.Context,
	current *alarm.Alarm,
	transition alarm.Transition,
	principal access.Principal,
	guardID string,
) (*alarm.Alarm, error) {
	if err := c.remote.NotifyGuard(ctx, guardID, current.ID); err != nil {
		c.metrics.SagaFailure(metrics.PhaseNotify)
		logger.ErrorKV(ctx, "Guard notification failed", "guard_id", guardID, "error", err)

		return nil, &NotifyError{AlarmID: current.ID, GuardID: guardID, Err: err}
	}

	// The guard is on the way; show it while the status is being saved.
	pending := current.Clone()
	pending.Status = transition.To
	pending.GuardID = &guardID
	pending.OperatorID = &principal.UserID
	c.registry.Replace(pending)

	updated, err := c.commit(ctx, current, transition, principal, &guardID)
	if err != nil {
		c.registry.Replace(current)
		c.metrics.SagaFailure(metrics.PhaseCommit)
		logger.ErrorKV(ctx, "Status commit failed after guard notification, rolled back", "guard_id", guardID, "error", err)

		var commitErr *CommitError
		if errors.As(err, &commitErr) {
			commitErr.GuardNotified = true
		}

		return nil, err
	}

	return updated, nil
}

// commit sends the status update and stores the server record.
func (c *Coordinator) commit(
	ctx context.Context,
	current *alarm.Alarm,
	transition alarm.Transition,
	principal access.Principal,
	guardID *string,
) (*alarm.Alarm, error) {
	update := remote.StatusUpdate{
		Status:     transition.To,
		GuardID:    guardID,
		OperatorID: principal.UserID,
	}

	updated, err := c.remote.UpdateStatus(ctx, current.ID, update)
	if err != nil {
		return nil, &CommitError{AlarmID: current.ID, Action: transition.Action, Err: err}
	}

	switch {
	case updated == nil:
		return nil, &CommitError{AlarmID: current.ID, Action: transition.Action, Err: errEmptyReply}
	case updated.ID != current.ID || updated.Status != transition.To:
		err = fmt.Errorf("%w: got alarm %q in %s", errUnexpectedReply, updated.ID, updated.Status)

		return nil, &CommitError{AlarmID: current.ID, Action: transition.Action, Err: err}
	}

	c.registry.Replace(updated)

	return updated.Clone(), nil
}

// operatorName looks the operator up on every transition, falling back to "N/A".
func (c *Coordinator) operatorName(ctx context.Context, userID string) string {
	if userID == "" {
		return unknownOperatorLabel
	}

	u, err := c.remote.User(ctx, userID)
	if err != nil || u == nil || u.Username == "" {
		logger.WarnKV(ctx, "Operator lookup failed", "user_id", userID, "error", err)

		return unknownOperatorLabel
	}

	return u.Username
}

func (c *Coordinator) acquire(alarmID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[alarmID]; busy {
		return false
	}

	c.inFlight[alarmID] = struct{}{}

	return true
}

func (c *Coordinator) release(alarmID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, alarmID)
}
