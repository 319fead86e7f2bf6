package check

import (
	"fmt"
	"sort"
	"sync"

	"checkscan/pkg/platform/sentinel"
)

// Workspace holds the records of the current session in memory. Edits mutate
// the stored record; readers always receive copies. Records checked out for
// submission stay listed but cannot be edited or checked out again until
// released.
type Workspace struct {
	mu       sync.RWMutex
	records  map[string]*Record
	inFlight map[string]bool
}

func NewWorkspace() *Workspace {
	return &Workspace{
		records:  make(map[string]*Record),
		inFlight: make(map[string]bool),
	}
}

// Replace swaps the whole record set, typically after a new discovery.
func (w *Workspace) Replace(records []*Record) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = make(map[string]*Record, len(records))
	for _, r := range records {
		w.records[r.Name] = r
	}
}

// List returns copies of every record sorted by name.
func (w *Workspace) List() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sortedCopies(func(*Record) bool { return true })
}

// Ready returns copies of the records that satisfy IsComplete and are not
// checked out, sorted by name.
func (w *Workspace) Ready() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.sortedCopies(w.ready)
}

func (w *Workspace) ready(r *Record) bool {
	return !w.inFlight[r.Name] && IsComplete(r)
}

// Checkout marks records as in flight and returns copies of them. With no
// names it takes every ready record, sorted by name; otherwise it takes the
// named records in the given order, duplicates dropped. An unknown or
// already checked out name fails the whole call and reserves nothing.
func (w *Workspace) Checkout(names []string) ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []Record
	if len(names) == 0 {
		out = w.sortedCopies(w.ready)
	} else {
		seen := make(map[string]bool, len(names))
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			r, ok := w.records[name]
			if !ok {
				return nil, fmt.Errorf("record %s: %w", name, sentinel.ErrNotFound)
			}
			if w.inFlight[name] {
				return nil, fmt.Errorf("record %s: %w", name, ErrRecordInFlight)
			}
			out = append(out, *r)
		}
	}
	for _, r := range out {
		w.inFlight[r.Name] = true
	}
	return out, nil
}

// Release ends the checkout of names.
func (w *Workspace) Release(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range names {
		delete(w.inFlight, name)
	}
}

func (w *Workspace) sortedCopies(keep func(*Record) bool) []Record {
	out := make([]Record, 0, len(w.records))
	for _, r := range w.records {
		if keep(r) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a copy of the named record.
func (w *Workspace) Get(name string) (Record, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	r, ok := w.records[name]
	if !ok {
		return Record{}, fmt.Errorf("record %s: %w", name, sentinel.ErrNotFound)
	}
	return *r, nil
}

// Update applies edit to the named record in place and returns the result.
func (w *Workspace) Update(name string, edit Edit) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.records[name]
	if !ok {
		return Record{}, fmt.Errorf("record %s: %w", name, sentinel.ErrNotFound)
	}
	if w.inFlight[name] {
		return Record{}, fmt.Errorf("record %s: %w", name, ErrRecordInFlight)
	}
	edit.Apply(r)
	return *r, nil
}

// Remove drops the named records, e.g. once a batch committed them.
func (w *Workspace) Remove(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range names {
		delete(w.records, name)
	}
}

// Len returns the number of records held.
func (w *Workspace) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.records)
}
