package tpattern

import (
	"slices"

	"github.com/solatis/tpattern/internal/types"
)

// Registry accumulates confirmed patterns in discovery order.
// Membership is decided by leaf sequence, so a second tree with the same
// leaves as a registered pattern is never added.
type Registry struct {
	patterns []types.Pattern
	index    map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Add registers p unless an equal type is already present.
func (r *Registry) Add(p types.Pattern) bool {
	key := p.Type.Key()
	if _, ok := r.index[key]; ok {
		return false
	}
	r.index[key] = len(r.patterns)
	r.patterns = append(r.patterns, p)
	return true
}

// Contains reports whether a pattern equal to t is registered.
func (r *Registry) Contains(t *types.EventType) bool {
	_, ok := r.index[t.Key()]
	return ok
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	return len(r.patterns)
}

// Types returns the composite types in discovery order.
func (r *Registry) Types() []*types.EventType {
	out := make([]*types.EventType, len(r.patterns))
	for i, p := range r.patterns {
		out[i] = p.Type
	}
	return out
}

// Patterns returns a copy of the registered patterns in discovery order.
func (r *Registry) Patterns() []types.Pattern {
	return slices.Clone(r.patterns)
}

func (r *Registry) update(fn func(p *types.Pattern)) {
	for i := range r.patterns {
		fn(&r.patterns[i])
	}
}
