package coordinator

import (
	"errors"
	"fmt"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
)

// NotifyFailureInstruction is shown to the operator when a guard could not be notified.
const NotifyFailureInstruction = "Notification failed. Call the guard immediately to ensure the alert is acknowledged."

var (
	// ErrGuardRequired is returned by NotifyAndAssign without a guard.
	ErrGuardRequired = errors.New("please select a guard")
	// ErrAlarmNotFound is returned for an id the registry does not hold.
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrTransitionInProgress is returned while another transition of the same alarm runs.
	ErrTransitionInProgress = errors.New("a transition of this alarm is already in progress")

	errEmptyReply      = errors.New("status service returned no alarm")
	errUnexpectedReply = errors.New("status service returned a different alarm state")
)

// NotifyError is a failed guard notification. The alarm is unchanged and no
// status call was made; the operator must reach the guard by other means.
type NotifyError struct {
	// AlarmID is the alarm the guard was dispatched to.
	AlarmID string
	// GuardID is the guard that could not be notified.
	GuardID string
	// Err is the delivery failure.
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify guard %s for alarm %s: %v", e.GuardID, e.AlarmID, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Instruction is the manual fallback for the operator.
func (e *NotifyError) Instruction() string { return NotifyFailureInstruction }

// CommitError is a failed status update. When GuardNotified is set the guard
// already received the notification while the alarm is shown PENDING again;
// the operator must retry manually.
type CommitError struct {
	// AlarmID is the alarm whose status was not committed.
	AlarmID string
	// Action is the attempted command.
	Action alarm.Action
	// GuardNotified reports that a notification was delivered before the failure.
	GuardNotified bool
	// Err is the status update failure.
	Err error
}

func (e *CommitError) Error() string {
	if e.GuardNotified {
		return fmt.Sprintf("guard notified but alarm %s status not saved, retry: %v", e.AlarmID, e.Err)
	}

	return fmt.Sprintf("%s alarm %s: %v", e.Action, e.AlarmID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
