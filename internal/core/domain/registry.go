package domain

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps stable ids to custom mask functions and ignore predicates.
// Serialized masks refer to functions only by these ids.
type Registry struct {
	mu         sync.RWMutex
	masks      map[string]MaskFunc
	predicates map[string]IgnoreFunc
}

func NewRegistry() *Registry {
	return &Registry{
		masks:      make(map[string]MaskFunc),
		predicates: make(map[string]IgnoreFunc),
	}
}

// RegisterMask adds a mask function. Ids are unique across a registry.
func (r *Registry) RegisterMask(id string, fn MaskFunc) error {
	if id == "" || fn == nil {
		return fmt.Errorf("register mask: id and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.masks[id]; exists {
		return fmt.Errorf("register mask: id %q already registered", id)
	}
	r.masks[id] = fn
	return nil
}

// RegisterPredicate adds an ignore predicate.
func (r *Registry) RegisterPredicate(id string, fn IgnoreFunc) error {
	if id == "" || fn == nil {
		return fmt.Errorf("register predicate: id and function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.predicates[id]; exists {
		return fmt.Errorf("register predicate: id %q already registered", id)
	}
	r.predicates[id] = fn
	return nil
}

// MustRegisterMask is RegisterMask for package-level setup; it panics on error.
func (r *Registry) MustRegisterMask(id string, fn MaskFunc) *Registry {
	if err := r.RegisterMask(id, fn); err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Mask(id string) (MaskFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.masks[id]
	return fn, ok
}

func (r *Registry) Predicate(id string) (IgnoreFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.predicates[id]
	return fn, ok
}

// MaskIDs lists registered mask function ids, sorted.
func (r *Registry) MaskIDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.masks))
	for id := range r.masks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PredicateIDs lists registered predicate ids, sorted.
func (r *Registry) PredicateIDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.predicates))
	for id := range r.predicates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
