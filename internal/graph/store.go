package graph

import (
	"fmt"
	"sync"
	"time"
	"weak"

	"forge/internal/logging"
)

// Store interns Artifacts by (name, kind), holding them only weakly so
// that an artifact with no remaining strong referents (no rule, no input
// set, no caller-held handle) is collected and later evicted here.
// Actual and Phony names live in separate namespaces, matching the two
// weakly-held interning sets the build graph keeps.
type Store struct {
	mu sync.RWMutex

	actual      map[string]weak.Pointer[Artifact]
	phony       map[string]weak.Pointer[Artifact]
	actualOrder []string
	phonyOrder  []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		actual: make(map[string]weak.Pointer[Artifact]),
		phony:  make(map[string]weak.Pointer[Artifact]),
	}
}

func (s *Store) table(kind Kind) (map[string]weak.Pointer[Artifact], *[]string) {
	if kind == Phony {
		return s.phony, &s.phonyOrder
	}
	return s.actual, &s.actualOrder
}

// Get strong-upgrades the weak entry for (name, kind), if one is alive.
func (s *Store) Get(name string, kind Kind) *Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	table, _ := s.table(kind)
	w, ok := table[name]
	if !ok {
		return nil
	}
	return w.Value()
}

// Intern returns the live artifact named name/kind, reusing it if one
// already exists (its recorded Usage is left unchanged), or constructing
// and inserting a new one with the given usage.
// Coercion from Input to Output is only legal on an artifact with no rule
// yet (§3 invariant: a source never has a rule, an artifact with a rule is
// never a source); attempting to coerce an artifact that already has a
// rule from Output back to Input is always fine since usage itself never
// restricts reuse, but SetRule will refuse a second claim.
func (s *Store) Intern(name string, kind Kind, usage Usage) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, order := s.table(kind)
	if w, ok := table[name]; ok {
		if a := w.Value(); a != nil {
			a.mu.Lock()
			hasRule := a.rule != nil
			a.mu.Unlock()
			if usage == Output && hasRule {
				return nil, fmt.Errorf("artifact %s already has a rule, cannot reinterpret as output: %w", name, ErrIncompatibleUsage)
			}
			return a, nil
		}
	}

	a := newArtifact(name, kind)
	a.usage = usage
	if kind == Actual {
		if err := a.preflight(usage); err != nil {
			return nil, err
		}
	}

	table[name] = weak.Make(a)
	*order = append(*order, name)
	logging.GraphDebug("interned %s artifact %s", kind, name)
	return a, nil
}

// EvictExpired drops dead weak entries from both interning tables,
// preserving the relative order of survivors.
func (s *Store) EvictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actualOrder = evictTable(s.actual, s.actualOrder)
	s.phonyOrder = evictTable(s.phony, s.phonyOrder)
}

func evictTable(table map[string]weak.Pointer[Artifact], order []string) []string {
	survivors := order[:0:0]
	for _, name := range order {
		w, ok := table[name]
		if !ok {
			continue
		}
		if w.Value() == nil {
			delete(table, name)
			continue
		}
		survivors = append(survivors, name)
	}
	return survivors
}

// Goals resolves a list of phony goal names to their live artifacts, in
// the store's insertion order, skipping names that are missing or expired.
func (s *Store) Goals(names []string) []*Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]bool, len(names))
	for _, n := range names {
		byName[n] = true
	}

	var out []*Artifact
	for _, name := range s.phonyOrder {
		if !byName[name] {
			continue
		}
		if w, ok := s.phony[name]; ok {
			if a := w.Value(); a != nil {
				out = append(out, a)
			}
		}
	}
	return out
}

// UpdateSource re-stats a single Actual source artifact, adopting override
// or the fresh mtime if it advanced. Returns false if the artifact is
// unknown or is not a source.
func (s *Store) UpdateSource(name string, override *time.Time) (bool, error) {
	a := s.Get(name, Actual)
	if a == nil || !a.IsSource() {
		return false, nil
	}
	return a.UpdateTime(override)
}

// UpdateSources applies UpdateSource to a batch of (name, override) pairs,
// reporting whether any of them changed. Entries are processed
// independently; an error from one does not prevent the rest from being
// attempted, and the first error encountered is returned alongside the
// partial "any changed" result.
func (s *Store) UpdateSources(entries map[string]*time.Time) (bool, error) {
	var any bool
	var firstErr error
	for name, override := range entries {
		changed, err := s.UpdateSource(name, override)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		any = any || changed
	}
	return any, firstErr
}
