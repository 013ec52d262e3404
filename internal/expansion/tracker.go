package expansion

import (
	"fmt"
	"sync"
)

// Tracker is one slot's view of the completion record. Every change is
// persisted through the shared Store before the call returns.
type Tracker struct {
	store    *Store
	slot     int
	catalogs []Catalog

	mu  sync.Mutex
	set CompletionSet
}

// NewTracker loads slot's completion set from store.
func NewTracker(store *Store, slot int, catalogs []Catalog) (*Tracker, error) {
	set, err := store.Load(slot)
	if err != nil {
		return nil, fmt.Errorf("load completion state for bot %d: %w", slot+1, err)
	}
	return &Tracker{store: store, slot: slot, catalogs: catalogs, set: set}, nil
}

// Slot returns the 0-indexed slot id.
func (t *Tracker) Slot() int {
	return t.slot
}

// Catalog returns the catalog of series.
func (t *Tracker) Catalog(series Series) (Catalog, bool) {
	for _, c := range t.catalogs {
		if c.Series == series {
			return c, true
		}
	}
	return Catalog{}, false
}

// Catalogs returns all catalogs in scan order.
func (t *Tracker) Catalogs() []Catalog {
	return t.catalogs
}

// IsComplete reports whether key is recorded as exhausted.
func (t *Tracker) IsComplete(key Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set.Contains(key)
}

// MarkComplete records key as exhausted and persists it. Only key is written,
// so a reset made on disk by another process is never undone. The key stays
// marked in memory even when the save fails.
func (t *Tracker) MarkComplete(key Key) error {
	t.mu.Lock()
	if t.set.Contains(key) {
		t.mu.Unlock()
		return nil
	}
	t.set.Add(key)
	t.mu.Unlock()

	return t.store.Add(t.slot, key)
}

// Remaining returns the entries of series not yet exhausted, in catalog order.
func (t *Tracker) Remaining(series Series) []Key {
	cat, ok := t.Catalog(series)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var keys []Key
	for _, k := range cat.Keys() {
		if !t.set.Contains(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// SeriesComplete reports whether every entry of series is exhausted.
func (t *Tracker) SeriesComplete(series Series) bool {
	return len(t.Remaining(series)) == 0
}

// AllComplete reports whether every catalog is exhausted.
func (t *Tracker) AllComplete() bool {
	for _, c := range t.catalogs {
		if !t.SeriesComplete(c.Series) {
			return false
		}
	}
	return true
}

// Completed returns a copy of the current set.
func (t *Tracker) Completed() CompletionSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set.Clone()
}

// Reset clears the whole set, both series, and persists it.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	t.set = NewCompletionSet()
	t.mu.Unlock()
	return t.store.Reset(t.slot)
}

// Reload replaces the in-memory set with the persisted one, picking up a
// reset performed elsewhere.
func (t *Tracker) Reload() error {
	set, err := t.store.Load(t.slot)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.set = set
	t.mu.Unlock()
	return nil
}
