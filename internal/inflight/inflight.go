// Package inflight tracks which destination paths currently have a
// download in progress, rejecting duplicates before they ever reach
// git-annex.
package inflight

import (
	"fmt"
	"sync"

	"github.com/gamdam-go/gamdam/internal/model"
)

// Map is a thread-safe path -> Downloadable registry. Two Downloadables
// that target the same path race each other in git-annex's working tree,
// so the pipeline rejects the second one outright rather than letting
// git-annex silently clobber the first.
type Map struct {
	mu    sync.Mutex
	inner map[string]model.Downloadable
}

// New returns an empty Map.
func New() *Map {
	return &Map{inner: make(map[string]model.Downloadable)}
}

// Add registers d under its path, returning an error if that path is
// already in flight.
func (m *Map) Add(d model.Downloadable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := d.Path.String()
	if existing, ok := m.inner[key]; ok {
		return fmt.Errorf("inflight: %s already in flight (url %s), rejecting duplicate (url %s)", key, existing.URL, d.URL)
	}
	m.inner[key] = d
	return nil
}

// Pop removes and returns the Downloadable registered at path. It panics if
// path was never added: every call site pops a path that its own addurl
// step put in, so a missing entry means the bookkeeping elsewhere in the
// pipeline is broken and continuing silently would hide that.
func (m *Map) Pop(path string) model.Downloadable {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.inner[path]
	if !ok {
		panic(fmt.Sprintf("inflight: Pop(%q) on a path that was never Added", path))
	}
	delete(m.inner, path)
	return d
}

// Len reports how many downloads are currently in flight, for the
// --metrics-addr gauge.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inner)
}
