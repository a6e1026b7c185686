package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/panoraguard/alarm-console/internal/access"
	"github.com/panoraguard/alarm-console/internal/config"
	"github.com/panoraguard/alarm-console/internal/coordinator"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
	"github.com/panoraguard/alarm-console/internal/logger"
	"github.com/panoraguard/alarm-console/internal/metrics"
	"github.com/panoraguard/alarm-console/internal/registry"
	"github.com/panoraguard/alarm-console/internal/remote"
	"github.com/panoraguard/alarm-console/internal/session"
)

// Remote is the alarm service as used by the console.
type Remote interface {
	coordinator.Remote

	ListAlarms(ctx context.Context, page, perPage int) ([]*alarm.Alarm, error)
	CountAlarms(ctx context.Context) (int, error)
	Alarm(ctx context.Context, alarmID string) (*alarm.Alarm, error)
	AlarmsByLocation(ctx context.Context, location, camera string) ([]*alarm.Alarm, error)
	AlarmImage(ctx context.Context, alarmID string) (string, error)
	Guards(ctx context.Context) ([]user.User, error)
	Login(ctx context.Context, username, password string) (*remote.LoginResult, error)
}

// LoginOutcome is a successful login.
type LoginOutcome struct {
	// Principal is the new session identity.
	Principal access.Principal
	// Destination is the home view for the role.
	Destination access.Route
}

// Console is the alarm console core.
type Console struct {
	remote      Remote
	sessions    *session.Store
	gate        *access.Gate
	registry    *registry.Registry
	coordinator *coordinator.Coordinator
	metrics     *metrics.Metrics
	pageSize    int
}

// Option configures a Console.
type Option func(*Console)

// WithPageSize overrides config.DefaultPageSize.
func WithPageSize(n int) Option {
	return func(c *Console) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRegistry shares a registry, such as the one fed by the watch loop.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Console) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithMetrics records fetch and transition outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Console) {
		c.metrics = m
	}
}

// New creates a console over the remote service and session store.
func New(r Remote, sessions *session.Store, opts ...Option) *Console {
	c := &Console{
		remote:   r,
		sessions: sessions,
		gate:     access.NewGate(sessions),
		registry: registry.New(),
		pageSize: config.DefaultPageSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.coordinator = coordinator.New(r, c.gate, c.registry, coordinator.WithMetrics(c.metrics))

	return c
}

// Registry returns the alarm mirror.
func (c *Console) Registry() *registry.Registry {
	return c.registry
}

// PageSize returns the number of alarms per page.
func (c *Console) PageSize() int {
	return c.pageSize
}

// Authorize checks the current session against req.
func (c *Console) Authorize(req user.Requirement) (access.Principal, error) {
	return c.gate.Require(req)
}

// Login authenticates and stores the session. Accounts whose role has no
// console home are rejected without a session.
func (c *Console) Login(ctx context.Context, username, password string) (*LoginOutcome, error) {
	result, err := c.remote.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	destination, ok := access.Home(result.Role)
	if !ok {
		return nil, fmt.Errorf("login as %q: %w", result.Role, ErrUnknownRole)
	}

	c.sessions.SetUntil(result.Token, result.UserID, result.Role, result.ExpiresAt)
	logger.InfoKV(ctx, "Logged in", "user_id", result.UserID, "role", result.Role)

	return &LoginOutcome{
		Principal: access.Principal{
			Token:  result.Token,
			UserID: result.UserID,
			Role:   result.Role,
		},
		Destination: destination,
	}, nil
}

// Logout clears the session.
func (c *Console) Logout() {
	c.sessions.Clear()
}

// ActiveAlarms refreshes page 1 and returns the active partition.
func (c *Console) ActiveAlarms(ctx context.Context) ([]*alarm.Alarm, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return nil, err
	}

	if _, err := c.fetchPage(ctx, 1); err != nil {
		return c.registry.Active(), err
	}

	return c.registry.Active(), nil
}

// HistoricalAlarms fetches a page and returns its RESOLVED and IGNORED alarms.
func (c *Console) HistoricalAlarms(ctx context.Context, page int) ([]*alarm.Alarm, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}

	result, err := c.fetchPage(ctx, page)
	if err != nil {
		return c.registry.HistoricalPage(page, c.pageSize), err
	}

	_, historical := alarm.Split(result.Alarms)

	return historical, nil
}

// TotalPages returns the number of pages of the full alarm list.
func (c *Console) TotalPages(ctx context.Context) (int, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return 0, err
	}

	total, err := c.remote.CountAlarms(ctx)
	if err != nil {
		return 0, &FetchError{Op: "count alarms", Err: err}
	}

	return (total + c.pageSize - 1) / c.pageSize, nil
}

// Alarm returns one alarm, fetching it by id when it is not mirrored yet.
func (c *Console) Alarm(ctx context.Context, alarmID string) (*alarm.Alarm, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return nil, err
	}

	if err := c.ensure(ctx, alarmID); err != nil {
		return nil, err
	}

	a, _ := c.registry.Get(alarmID)

	return a, nil
}

// AlarmsByLocation lists the alarms raised by one camera at a location.
func (c *Console) AlarmsByLocation(ctx context.Context, location, camera string) ([]*alarm.Alarm, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return nil, err
	}

	since := c.registry.Revision()

	alarms, err := c.remote.AlarmsByLocation(ctx, location, camera)
	if err != nil {
		return nil, &FetchError{Op: "alarms by location", Err: err}
	}

	result := c.registry.ApplyPage(0, since, alarms)

	return result.Alarms, nil
}

// AlarmImage returns the snapshot of an alarm. Dismissed alarms have none.
func (c *Console) AlarmImage(ctx context.Context, alarmID string) (string, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return "", err
	}

	if a, ok := c.registry.Get(alarmID); ok && a.Status == alarm.StatusIgnored {
		return "", remote.ErrNoImage
	}

	img, err := c.remote.AlarmImage(ctx, alarmID)
	if err != nil {
		if errors.Is(err, remote.ErrNoImage) {
			return "", err
		}

		return "", &FetchError{Op: "alarm image", Err: err}
	}

	return img, nil
}

// Guards lists the guards that can be notified.
func (c *Console) Guards(ctx context.Context) ([]user.User, error) {
	if _, err := c.gate.Require(user.Any); err != nil {
		return nil, err
	}

	guards, err := c.remote.Guards(ctx)
	if err != nil {
		return nil, &FetchError{Op: "list guards", Err: err}
	}

	return guards, nil
}

// Dismiss moves the alarm to IGNORED.
func (c *Console) Dismiss(ctx context.Context, alarmID string) (*coordinator.Outcome, error) {
	if err := c.ensure(ctx, alarmID); err != nil {
		return nil, err
	}

	return c.coordinator.Dismiss(ctx, alarmID)
}

// NotifyAndAssign dispatches the guard and moves the alarm to NOTIFIED.
func (c *Console) NotifyAndAssign(ctx context.Context, alarmID, guardID string) (*coordinator.Outcome, error) {
	if err := c.ensure(ctx, alarmID); err != nil {
		return nil, err
	}

	return c.coordinator.NotifyAndAssign(ctx, alarmID, guardID)
}

// Resolve moves the alarm to RESOLVED.
func (c *Console) Resolve(ctx context.Context, alarmID string) (*coordinator.Outcome, error) {
	if err := c.ensure(ctx, alarmID); err != nil {
		return nil, err
	}

	return c.coordinator.Resolve(ctx, alarmID)
}

// fetchPage captures the registry revision, fetches and merges.
func (c *Console) fetchPage(ctx context.Context, page int) (registry.PageResult, error) {
	since := c.registry.Revision()

	alarms, err := c.remote.ListAlarms(ctx, page, c.pageSize)
	c.metrics.Fetch(err)

	if err != nil {
		logger.WarnKV(ctx, "Alarm fetch failed, keeping last known state", "page", page, "error", err)

		return registry.PageResult{}, &FetchError{Op: fmt.Sprintf("fetch page %d", page), Err: err}
	}

	result := c.registry.ApplyPage(page, since, alarms)
	c.metrics.Evicted(result.Evicted)

	return result, nil
}

// ensure fetches alarmID by id when it is not mirrored yet, so an alarm that
// left page 1 can still be acted on. An unauthorized caller is reported here.
func (c *Console) ensure(ctx context.Context, alarmID string) error {
	if _, err := c.gate.Require(user.Any); err != nil {
		return err
	}

	if _, ok := c.registry.Get(alarmID); ok {
		return nil
	}

	since := c.registry.Revision()

	a, err := c.remote.Alarm(ctx, alarmID)
	c.metrics.Fetch(err)

	switch {
	case remote.IsStatus(err, http.StatusNotFound):
		return fmt.Errorf("alarm %s: %w", alarmID, coordinator.ErrAlarmNotFound)
	case err != nil:
		return &FetchError{Op: "get alarm " + alarmID, Err: err}
	case a == nil || a.ID != alarmID:
		return fmt.Errorf("alarm %s: %w", alarmID, coordinator.ErrAlarmNotFound)
	}

	c.registry.ApplyFetched(since, a)

	return nil
}
