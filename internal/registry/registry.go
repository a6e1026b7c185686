package registry

import (
	"sync"

	"github.com/panoraguard/alarm-console/internal/domain/alarm"
)

// entry is a stored record and the revision of its last write.
type entry struct {
	alarm    *alarm.Alarm
	revision uint64
}

// PageResult summarizes a merged page.
type PageResult struct {
	// Alarms is the page as seen after the merge, in page order. Kept local
	// records replace fetched ones; skipped alarms are listed as fetched.
	Alarms []*alarm.Alarm
	// Upserted counts records written from the page.
	Upserted int
	// Kept counts records skipped because a newer local write exists.
	Kept int
	// Evicted counts active records dropped by a page 1 refresh.
	Evicted int
	// Skipped counts unknown active alarms on a page other than 1. Page 1 is
	// the only source of new active records.
	Skipped int
}

// Registry is the alarm mirror. The zero value is not usable; call New.
type Registry struct {
	// entries maps alarm id to its single live record.
	entries map[string]*entry
	// revision is the last revision handed out.
	revision uint64
	// mu guards entries and revision.
	mu sync.RWMutex
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Revision returns the revision of the most recent write. A fetch captures it
// before calling the remote service and passes it to ApplyPage.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.revision
}

// ApplyPage merges one fetched page. since is the revision captured before the
// fetch started: local records written after it are kept. Page 1 also
// refreshes the active partition, dropping active records that are absent
// from it and were not written after since. Other pages update known records
// and add historical ones, but never add an active alarm the registry does
// not hold: the next page 1 refresh could not evict it.
func (r *Registry) ApplyPage(page int, since uint64, alarms []*alarm.Alarm) PageResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		result = PageResult{Alarms: make([]*alarm.Alarm, 0, len(alarms))}
		onPage = make(map[string]struct{}, len(alarms))
	)

	for _, a := range alarms {
		if a == nil || a.ID == "" {
			continue
		}

		if _, dup := onPage[a.ID]; dup {
			continue
		}

		onPage[a.ID] = struct{}{}

		e, known := r.entries[a.ID]
		if known && e.revision > since {
			result.Kept++
			result.Alarms = append(result.Alarms, e.alarm.Clone())

			continue
		}

		if !known && page != 1 && a.Status.Active() {
			result.Skipped++
			result.Alarms = append(result.Alarms, a.Clone())

			continue
		}

		r.putLocked(a)
		result.Upserted++
		result.Alarms = append(result.Alarms, a.Clone())
	}

	if page == 1 {
		for id, e := range r.entries {
			if _, ok := onPage[id]; ok || !e.alarm.Status.Active() || e.revision > since {
				continue
			}

			delete(r.entries, id)
			result.Evicted++
		}
	}

	return result
}

// ApplyFetched merges one alarm fetched by id. since has the same meaning as
// in ApplyPage. It returns the record as stored.
func (r *Registry) ApplyFetched(since uint64, a *alarm.Alarm) *alarm.Alarm {
	if a == nil || a.ID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[a.ID]; ok && e.revision > since {
		return e.alarm.Clone()
	}

	r.putLocked(a)

	return a.Clone()
}

// ApplyPush inserts a pushed alarm unless its id is already known, in either
// partition. It reports whether the alarm was inserted.
func (r *Registry) ApplyPush(a *alarm.Alarm) bool {
	if a == nil || a.ID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[a.ID]; ok {
		return false
	}

	r.putLocked(a)

	return true
}

// Replace writes a record unconditionally. Local transitions and their
// compensation use it.
func (r *Registry) Replace(a *alarm.Alarm) {
	if a == nil || a.ID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.putLocked(a)
}

// Get returns a copy of the record with the given id.
func (r *Registry) Get(id string) (*alarm.Alarm, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}

	return e.alarm.Clone(), true
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Active returns copies of the active partition, NOTIFIED first, newest first.
func (r *Registry) Active() []*alarm.Alarm {
	active, _ := r.partitions()

	return active
}

// Historical returns copies of the historical partition, newest first.
func (r *Registry) Historical() []*alarm.Alarm {
	_, historical := r.partitions()

	return historical
}

// HistoricalPage returns one page of the historical partition; page is 1-based.
func (r *Registry) HistoricalPage(page, size int) []*alarm.Alarm {
	historical := r.Historical()
	if page < 1 || size < 1 {
		return nil
	}

	start := (page - 1) * size
	if start >= len(historical) {
		return nil
	}

	return historical[start:min(start+size, len(historical))]
}

// partitions copies all records and splits them.
func (r *Registry) partitions() (active, historical []*alarm.Alarm) {
	r.mu.RLock()

	all := make([]*alarm.Alarm, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e.alarm.Clone())
	}

	r.mu.RUnlock()

	return alarm.Split(all)
}

// putLocked stores a copy of a under the next revision.
func (r *Registry) putLocked(a *alarm.Alarm) {
	r.revision++
	r.entries[a.ID] = &entry{
		alarm:    a.Clone(),
		revision: r.revision,
	}
}
