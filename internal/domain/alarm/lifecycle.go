package alarm

import (
	"errors"
	"fmt"

	"github.com/panoraguard/alarm-console/internal/domain/user"
)

// Action is an operator command applied to an alarm.
type Action string

const (
	// ActionDismiss moves an alarm to IGNORED.
	ActionDismiss Action = "dismiss"
	// ActionNotify dispatches a guard and moves a PENDING alarm to NOTIFIED.
	ActionNotify Action = "notify"
	// ActionResolve closes a NOTIFIED alarm as RESOLVED.
	ActionResolve Action = "resolve"
)

// Effect is a side effect the coordinator performs after a committed transition.
type Effect string

const (
	// EffectStopAlert silences the audible/visual alert at the camera.
	EffectStopAlert Effect = "stop_alert"
	// EffectRecordAssignment stores guard_id and operator_id on the alarm.
	EffectRecordAssignment Effect = "record_assignment"
	// EffectDeliverNotification sends the notification to the guard.
	EffectDeliverNotification Effect = "deliver_notification"
)

var (
	// ErrTerminalState is returned for any action on a RESOLVED or IGNORED alarm.
	ErrTerminalState = errors.New("alarm is in a terminal state")
	// ErrInvalidTransition is returned for an action not allowed from the current state.
	ErrInvalidTransition = errors.New("transition not allowed")
	// ErrRoleNotPermitted is returned when the actor role may not transition alarms.
	ErrRoleNotPermitted = errors.New("role may not transition alarms")
)

// Transition is the outcome of a permitted decision.
type Transition struct {
	// From is the status the decision was made against.
	From Status
	// To is the status after the transition commits.
	To Status
	// Action is the command that produced the transition.
	Action Action
	// Effects lists side effects in the order they must run.
	Effects []Effect
}

// Has reports whether the transition carries the effect.
func (t Transition) Has(effect Effect) bool {
	for _, e := range t.Effects {
		if e == effect {
			return true
		}
	}

	return false
}

// edge is a key of the transition table.
type edge struct {
	from   Status
	action Action
}

// rule is a value of the transition table.
type rule struct {
	to      Status
	effects []Effect
}

// transitions is the complete lifecycle table; anything absent is rejected.
//
//nolint:gochecknoglobals // Read-only table.
var transitions = map[edge]rule{
	{StatusPending, ActionDismiss}: {StatusIgnored, []Effect{EffectStopAlert}},
	{StatusPending, ActionNotify}: {
		StatusNotified,
		[]Effect{EffectDeliverNotification, EffectRecordAssignment},
	},
	{StatusNotified, ActionResolve}: {StatusResolved, []Effect{EffectStopAlert}},
	{StatusNotified, ActionDismiss}: {StatusIgnored, []Effect{EffectStopAlert}},
}

// CanTransition reports whether role may transition alarms at all.
// Guards only read alarm details; their field acknowledgment happens elsewhere.
func CanTransition(role user.Role) bool {
	switch role {
	case user.RoleOperator, user.RoleManager, user.RoleAdmin:
		return true
	default:
		return false
	}
}

// Decide maps (current status, action, actor role) to a transition.
// It is pure: a rejected decision leaves nothing to undo.
func Decide(from Status, action Action, role user.Role) (Transition, error) {
	if !CanTransition(role) {
		return Transition{}, fmt.Errorf("%s as %q: %w", action, role, ErrRoleNotPermitted)
	}

	if from.Terminal() {
		return Transition{}, fmt.Errorf("%s on %s alarm: %w", action, from, ErrTerminalState)
	}

	r, ok := transitions[edge{from, action}]
	if !ok {
		return Transition{}, fmt.Errorf("%s on %s alarm: %w", action, from, ErrInvalidTransition)
	}

	effects := make([]Effect, len(r.effects))
	copy(effects, r.effects)

	return Transition{
		From:    from,
		To:      r.to,
		Action:  action,
		Effects: effects,
	}, nil
}
