package alarm

import (
	"cmp"
	"slices"
)

// statusPriority orders the active partition: NOTIFIED above PENDING.
func statusPriority(s Status) int {
	switch s {
	case StatusNotified:
		return 0
	case StatusPending:
		return 1
	default:
		return 2
	}
}

// CompareActive orders NOTIFIED before PENDING, then newest first.
func CompareActive(a, b *Alarm) int {
	if c := cmp.Compare(statusPriority(a.Status), statusPriority(b.Status)); c != 0 {
		return c
	}

	return CompareHistorical(a, b)
}

// CompareHistorical orders newest first.
func CompareHistorical(a, b *Alarm) int {
	return b.Timestamp.Compare(a.Timestamp)
}

// SortActive sorts alarms in place in active-partition order.
func SortActive(alarms []*Alarm) {
	slices.SortStableFunc(alarms, CompareActive)
}

// SortHistorical sorts alarms in place in historical-partition order.
func SortHistorical(alarms []*Alarm) {
	slices.SortStableFunc(alarms, CompareHistorical)
}

// Split partitions alarms by status into sorted active and historical slices.
func Split(alarms []*Alarm) (active, historical []*Alarm) {
	for _, a := range alarms {
		if a == nil {
			continue
		}

		if a.Status.Active() {
			active = append(active, a)
		} else {
			historical = append(historical, a)
		}
	}

	SortActive(active)
	SortHistorical(historical)

	return active, historical
}
