package tools

import (
	"fmt"
	"sync"
)

// Registry holds the universe of known capabilities and tracks which subset is
// currently enabled. The known set is fixed at construction; the enabled set
// is mutable at runtime.
//
// The active subset exposed to a generation session is always
// known ∩ enabled, recomputed on each call in declaration order so that
// generated instruction text is reproducible.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	known   []*Capability // declaration order
	index   map[string]*Capability
	enabled map[string]bool
}

// NewRegistry creates a registry over the given capabilities, all enabled.
// Capability names must be unique; a duplicate panics (fail-fast, this is a
// static registration error).
func NewRegistry(caps ...*Capability) *Registry {
	r := &Registry{
		known:   make([]*Capability, 0, len(caps)),
		index:   make(map[string]*Capability, len(caps)),
		enabled: make(map[string]bool, len(caps)),
	}
	for _, c := range caps {
		if _, exists := r.index[c.Name()]; exists {
			panic(fmt.Sprintf("tools: duplicate capability name %q", c.Name()))
		}
		r.known = append(r.known, c)
		r.index[c.Name()] = c
		r.enabled[c.Name()] = true
	}
	return r
}

// Known returns all registered capabilities in declaration order.
func (r *Registry) Known() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Capability, len(r.known))
	copy(out, r.known)
	return out
}

// Lookup returns the known capability with the given name.
func (r *Registry) Lookup(name string) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.index[name]
	return c, ok
}

// IsEnabled reports whether the named capability is in the enabled set.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// Toggle flips the enabled-set membership of name. Toggling an unknown name
// mutates only the enabled set and has no effect on the active subset.
//
// Toggle never affects a session that was already created; sessions bind an
// immutable snapshot of the active subset at construction.
func (r *Registry) Toggle(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled[name] {
		delete(r.enabled, name)
	} else {
		r.enabled[name] = true
	}
}

// ActiveSubset returns known ∩ enabled in declaration order.
func (r *Registry) ActiveSubset() []*Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Capability, 0, len(r.known))
	for _, c := range r.known {
		if r.enabled[c.Name()] {
			out = append(out, c)
		}
	}
	return out
}

// ActiveNames returns the names of the active subset in declaration order.
func (r *Registry) ActiveNames() []string {
	subset := r.ActiveSubset()
	names := make([]string, len(subset))
	for i, c := range subset {
		names[i] = c.Name()
	}
	return names
}
