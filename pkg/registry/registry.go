// Package registry holds the authored scene entries and resolves identifiers to them.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/stagehand/pkg/domain"
)

// Registry manages the available scene entries.
// It is filled once at startup and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries []domain.SceneEntry
	index   map[string]int
}

// Problem is an advisory authoring issue reported by Validate.
type Problem struct {
	// Index is the position of the offending entry.
	Index int
	// Identifier is the identifier of the offending entry (may be empty).
	Identifier string
	// Reason describes the issue.
	Reason string
}

func (p Problem) Error() string {
	return fmt.Sprintf("entry #%d (%q): %s", p.Index, p.Identifier, p.Reason)
}

// Unwrap lets callers match every problem with domain.ErrRegistryConflict.
func (p Problem) Unwrap() error {
	return domain.ErrRegistryConflict
}

// New creates a registry from an ordered list of entries.
// On duplicate identifiers the first entry wins; Validate reports the others.
func New(entries ...domain.SceneEntry) *Registry {
	r := &Registry{index: make(map[string]int)}
	r.Add(entries...)
	return r
}

// Add appends entries. It is meant for startup only.
func (r *Registry) Add(entries ...domain.SceneEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		e.Units = append([]string(nil), e.Units...)
		r.entries = append(r.entries, e)
		if _, dup := r.index[e.Identifier]; !dup && e.Identifier != "" {
			r.index[e.Identifier] = len(r.entries) - 1
		}
	}
}

// Resolve returns the entry with the given identifier.
// It fails with domain.ErrNotFound for unknown identifiers.
func (r *Registry) Resolve(identifier string) (domain.SceneEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[identifier]
	if !ok {
		return domain.SceneEntry{}, fmt.Errorf("%w: %q", domain.ErrNotFound, identifier)
	}
	e := r.entries[i]
	e.Units = append([]string(nil), e.Units...)
	return e, nil
}

// Exists reports whether the identifier resolves.
func (r *Registry) Exists(identifier string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[identifier]
	return ok
}

// List returns the resolvable entries in authoring order.
func (r *Registry) List() []domain.SceneEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SceneEntry, 0, len(r.index))
	for i, e := range r.entries {
		if j, ok := r.index[e.Identifier]; ok && i == j {
			e.Units = append([]string(nil), e.Units...)
			out = append(out, e)
		}
	}
	return out
}

// Identifiers returns the resolvable identifiers in lexical order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.index))
	for id := range r.index {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of resolvable entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// RetainedUnits returns the set of units owned by entries flagged RetainAlways.
func (r *Registry) RetainedUnits() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{})
	for _, e := range r.entries {
		if !e.RetainAlways {
			continue
		}
		for _, u := range e.Units {
			set[u] = struct{}{}
		}
	}
	return set
}

// Validate reports authoring issues: empty or duplicate identifiers, entries without units
// and empty unit names. Problems are advisory; the registry stays usable.
func (r *Registry) Validate() []Problem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var problems []Problem
	for i, e := range r.entries {
		switch {
		case e.Identifier == "":
			problems = append(problems, Problem{Index: i, Reason: "empty identifier"})
		case r.index[e.Identifier] != i:
			problems = append(problems, Problem{
				Index:      i,
				Identifier: e.Identifier,
				Reason:     fmt.Sprintf("duplicate identifier, first defined at #%d", r.index[e.Identifier]),
			})
		}
		if len(e.Units) == 0 {
			problems = append(problems, Problem{Index: i, Identifier: e.Identifier, Reason: "no units"})
		}
		for j, u := range e.Units {
			if u == "" {
				problems = append(problems, Problem{Index: i, Identifier: e.Identifier, Reason: fmt.Sprintf("unit #%d has an empty name", j)})
			}
		}
	}
	return problems
}
