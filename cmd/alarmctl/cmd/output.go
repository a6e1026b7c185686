package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/panoraguard/alarm-console/internal/coordinator"
	"github.com/panoraguard/alarm-console/internal/domain/alarm"
	"github.com/panoraguard/alarm-console/internal/domain/user"
)

// timeLayout renders alarm timestamps in local time.
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}

	return t.Local().Format(timeLayout)
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}

	return *s
}

// printAlarms writes alarms as a table.
func printAlarms(out io.Writer, alarms []*alarm.Alarm) {
	if len(alarms) == 0 {
		_, _ = fmt.Fprintln(out, "No alarms.")

		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTIME\tSTATUS\tLOCATION\tCAMERA\tTYPE\tCONFIDENCE")

	for _, a := range alarms {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			formatTime(a.Timestamp),
			a.Status.Display(),
			a.CameraLocation,
			a.CameraID,
			a.Type,
			strconv.FormatFloat(a.ConfidenceScore*100, 'f', 0, 64)+"%",
		)
	}

	_ = w.Flush()
}

// printAlarm writes the details of one alarm.
func printAlarm(out io.Writer, a *alarm.Alarm) {
	_, _ = fmt.Fprintf(out, "ID         : %s\n", a.ID)
	_, _ = fmt.Fprintf(out, "Time       : %s\n", formatTime(a.Timestamp))
	_, _ = fmt.Fprintf(out, "Status     : %s\n", a.Status.Display())
	_, _ = fmt.Fprintf(out, "Location   : %s\n", a.CameraLocation)
	_, _ = fmt.Fprintf(out, "Camera     : %s\n", a.CameraID)
	_, _ = fmt.Fprintf(out, "Type       : %s\n", a.Type)
	_, _ = fmt.Fprintf(out, "Confidence : %.0f%%\n", a.ConfidenceScore*100)
	_, _ = fmt.Fprintf(out, "Operator   : %s\n", orNA(a.OperatorID))
	_, _ = fmt.Fprintf(out, "Guard      : %s\n", orNA(a.GuardID))
}

// printGuards writes guards as a table.
func printGuards(out io.Writer, guards []user.User) {
	if len(guards) == 0 {
		_, _ = fmt.Fprintln(out, "No guards.")

		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL")

	for _, g := range guards {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", g.ID, g.Username, g.Email)
	}

	_ = w.Flush()
}

// printOutcome reports a completed transition.
func printOutcome(out io.Writer, outcome *coordinator.Outcome) {
	_, _ = fmt.Fprintf(out, "Alarm %s: %s -> %s by %s\n",
		outcome.Alarm.ID,
		outcome.Transition.From.Display(),
		outcome.Transition.To.Display(),
		outcome.Operator,
	)

	for _, warning := range outcome.Warnings {
		_, _ = fmt.Fprintf(out, "Warning: %v\n", warning)
	}

	_, _ = fmt.Fprintf(out, "Back to %s\n", outcome.Destination)
}

// explain adds the operator guidance carried by transition failures.
func explain(out io.Writer, err error) error {
	var (
		notifyErr *coordinator.NotifyError
		commitErr *coordinator.CommitError
	)

	switch {
	case errors.As(err, &notifyErr):
		_, _ = fmt.Fprintln(out, notifyErr.Instruction())
	case errors.As(err, &commitErr) && commitErr.GuardNotified:
		_, _ = fmt.Fprintf(out, "Guard was notified but alarm %s was not updated; retry the notify command.\n",
			commitErr.AlarmID)
	}

	return err
}
