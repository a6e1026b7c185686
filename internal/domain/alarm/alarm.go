package alarm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an alarm.
type Status string

const (
	// StatusPending is the initial state created by a detection.
	StatusPending Status = "PENDING"
	// StatusNotified means a guard was dispatched.
	StatusNotified Status = "NOTIFIED"
	// StatusResolved is terminal: the situation was handled.
	StatusResolved Status = "RESOLVED"
	// StatusIgnored is terminal: the operator dismissed the alarm.
	StatusIgnored Status = "IGNORED"
)

// ParseStatus normalizes a status string.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusNotified, StatusResolved, StatusIgnored:
		return st, true
	default:
		return "", false
	}
}

// Active reports whether the status belongs to the active partition.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusNotified
}

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusIgnored
}

// Display renders the status in sentence case ("Notified"), or "N/A" when empty.
func (s Status) Display() string {
	if s == "" {
		return "N/A"
	}

	str := string(s)

	return str[:1] + strings.ToLower(str[1:])
}

// Alarm is a detection event tracked through the status lifecycle.
type Alarm struct {
	// ID is the de-duplication key shared by the fetch and push paths.
	ID string
	// CameraID identifies the camera that raised the detection.
	CameraID string
	// CameraLocation is the human-readable camera placement.
	CameraLocation string
	// Type is the detection class (e.g. "human").
	Type string
	// ConfidenceScore is the detector confidence in [0, 1].
	ConfidenceScore float64
	// Timestamp is the event time used for ordering and date filters.
	Timestamp time.Time
	// Status is the lifecycle state.
	Status Status
	// OperatorID is set on NOTIFIED, RESOLVED and IGNORED.
	OperatorID *string
	// GuardID is set on NOTIFIED.
	GuardID *string
	// Image is the base64 snapshot when the payload carried one.
	Image string
}

// wireAlarm is the JSON shape used by the alarm service.
type wireAlarm struct {
	ID              string  `json:"id"`
	CameraID        string  `json:"camera_id"`
	CameraLocation  string  `json:"camera_location,omitempty"`
	Type            string  `json:"type"`
	ConfidenceScore float64 `json:"confidence_score"`
	Timestamp       string  `json:"timestamp"`
	Status          string  `json:"status"`
	OperatorID      *string `json:"operator_id"`
	GuardID         *string `json:"guard_id"`
	Image           string  `json:"image_base64,omitempty"`
}

// timestampLayouts are tried in order; naive timestamps are read as UTC.
//
//nolint:gochecknoglobals // Read-only table.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the ISO-8601 variants emitted by the alarm service.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// UnmarshalJSON decodes the alarm service representation.
func (a *Alarm) UnmarshalJSON(data []byte) error {
	var w wireAlarm
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	var ts time.Time
	if w.Timestamp != "" {
		parsed, err := ParseTimestamp(w.Timestamp)
		if err != nil {
			return err
		}

		ts = parsed
	}

	status, ok := ParseStatus(w.Status)
	if !ok {
		return fmt.Errorf("alarm %s: unknown status %q", w.ID, w.Status)
	}

	*a = Alarm{
		ID:              w.ID,
		CameraID:        w.CameraID,
		CameraLocation:  w.CameraLocation,
		Type:            w.Type,
		ConfidenceScore: w.ConfidenceScore,
		Timestamp:       ts,
		Status:          status,
		OperatorID:      nonEmpty(w.OperatorID),
		GuardID:         nonEmpty(w.GuardID),
		Image:           w.Image,
	}

	return nil
}

// MarshalJSON encodes the alarm in the alarm service representation.
//
//nolint:gocritic // Value receiver so both Alarm and *Alarm marshal identically.
func (a Alarm) MarshalJSON() ([]byte, error) {
	w := wireAlarm{
		ID:              a.ID,
		CameraID:        a.CameraID,
		CameraLocation:  a.CameraLocation,
		Type:            a.Type,
		ConfidenceScore: a.ConfidenceScore,
		Status:          string(a.Status),
		OperatorID:      a.OperatorID,
		GuardID:         a.GuardID,
		Image:           a.Image,
	}

	if !a.Timestamp.IsZero() {
		w.Timestamp = a.Timestamp.UTC().Format(time.RFC3339Nano)
	}

	return json.Marshal(w)
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.OperatorID = cloneString(a.OperatorID)
	cloned.GuardID = cloneString(a.GuardID)

	return &cloned
}

// cloneString copies an optional string.
func cloneString(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

// nonEmpty maps empty and "None"-like values to nil.
func nonEmpty(s *string) *string {
	if s == nil || *s == "" || *s == "N/A" {
		return nil
	}

	return s
}
