package window

import "time"

// Record is anything stamped with the time it happened
type Record interface {
	At() time.Time
}

// Stamp is a Record carrying nothing but its time
type Stamp time.Time

// At implements Record
func (s Stamp) At() time.Time { return time.Time(s) }

// Window keeps, per key, the records that fall within a sliding duration.
// Records for a key must be pushed in non-decreasing time order; eviction
// only ever inspects the front. It is not safe for concurrent use.
type Window[R Record] struct {
	duration time.Duration
	entries  map[string][]R
}

// New creates an empty window of the given duration
func New[R Record](d time.Duration) *Window[R] {
	return &Window[R]{
		duration: d,
		entries:  make(map[string][]R),
	}
}

// Duration returns the configured window length
func (w *Window[R]) Duration() time.Duration {
	return w.duration
}

// Push appends a record for key
func (w *Window[R]) Push(key string, r R) {
	w.entries[key] = append(w.entries[key], r)
}

// EvictOlderThan drops records from the front of key's sequence while they
// are more than d behind ref.
func (w *Window[R]) EvictOlderThan(key string, d time.Duration, ref time.Time) {
	list, ok := w.entries[key]
	if !ok {
		return
	}

	i := 0
	for i < len(list) && ref.Sub(list[i].At()) > d {
		i++
	}
	if i == 0 {
		return
	}

	// Copy down so the backing array does not grow without bound
	n := copy(list, list[i:])
	var zero R
	for j := n; j < len(list); j++ {
		list[j] = zero
	}
	w.entries[key] = list[:n]
}

// Observe pushes r, evicts relative to r's own time and returns the
// resulting size for key.
func (w *Window[R]) Observe(key string, r R) int {
	w.Push(key, r)
	w.EvictOlderThan(key, w.duration, r.At())
	return w.Size(key)
}

// Size returns the number of records currently retained for key
func (w *Window[R]) Size(key string) int {
	return len(w.entries[key])
}

// Recent returns up to n of the newest records for key, oldest first.
func (w *Window[R]) Recent(key string, n int) []R {
	list := w.entries[key]
	if n > len(list) {
		n = len(list)
	}
	if n <= 0 {
		return nil
	}
	out := make([]R, n)
	copy(out, list[len(list)-n:])
	return out
}

// Keys returns the number of keys holding state
func (w *Window[R]) Keys() int {
	return len(w.entries)
}

// Sweep forgets every key whose newest record is more than the window
// duration behind ref, and returns how many were dropped. Offline runs
// never call it; long-running followers do, to bound memory.
func (w *Window[R]) Sweep(ref time.Time) int {
	dropped := 0
	for key, list := range w.entries {
		if len(list) == 0 || ref.Sub(list[len(list)-1].At()) > w.duration {
			delete(w.entries, key)
			dropped++
		}
	}
	return dropped
}
