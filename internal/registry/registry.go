// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package registry implements the service registry populated during
// composition.
//
// A Registry accumulates capability bindings and named configuration blocks.
// It is append-only: bindings are never removed or replaced, and resolving a
// capability returns the most recent binding. Once [Registry.Seal] is called
// every mutation fails with [ErrSealed] and the registry may be read from any
// number of goroutines.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the accumulating set of capability bindings.
type Registry struct {
	mu       sync.RWMutex
	sealed   bool
	bindings map[Capability][]any
	configs  map[string]any
	order    []Capability
}

// New returns an empty, unsealed registry.
func New() *Registry {
	return &Registry{
		bindings: make(map[Capability][]any),
		configs:  make(map[string]any),
	}
}

// Bind appends impl to the bindings of capability.
func (r *Registry) Bind(capability Capability, impl any) error {
	if capability == "" {
		return ErrEmptyCapability
	}
	if impl == nil {
		return fmt.Errorf("bind %q: %w", capability, ErrNilImplementation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("bind %q: %w", capability, ErrSealed)
	}
	if _, ok := r.bindings[capability]; !ok {
		r.order = append(r.order, capability)
	}
	r.bindings[capability] = append(r.bindings[capability], impl)

	return nil
}

// Configure stores a named configuration block. A later block with the same
// name shadows the earlier one.
func (r *Registry) Configure(name string, value any) error {
	if name == "" {
		return ErrEmptyCapability
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("configure %q: %w", name, ErrSealed)
	}
	r.configs[name] = value

	return nil
}

// Seal makes the registry read-only. Sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Has reports whether at least one binding exists for capability.
func (r *Registry) Has(capability Capability) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings[capability]) > 0
}

// Capabilities returns the bound capability names in sorted order.
func (r *Registry) Capabilities() []Capability {
	r.mu.RLock()
	out := make([]Capability, len(r.order))
	copy(out, r.order)
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BindingOrder returns capability names in the order they were first bound.
func (r *Registry) BindingOrder() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, len(r.order))
	copy(out, r.order)
	return out
}

// ConfigNames returns the names of the configuration blocks, sorted.
func (r *Registry) ConfigNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.configs))
	for name := range r.configs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) all(capability Capability) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]any, len(r.bindings[capability]))
	copy(out, r.bindings[capability])
	return out
}

func (r *Registry) config(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.configs[name]
	return v, ok
}

// Resolve returns the most recent binding of capability that is a T.
func Resolve[T any](r *Registry, capability Capability) (T, bool) {
	impls := r.all(capability)
	for i := len(impls) - 1; i >= 0; i-- {
		if v, ok := impls[i].(T); ok {
			return v, true
		}
	}

	var zero T
	return zero, false
}

// ResolveAll returns every binding of capability that is a T, in binding
// order.
func ResolveAll[T any](r *Registry, capability Capability) []T {
	impls := r.all(capability)
	out := make([]T, 0, len(impls))
	for _, impl := range impls {
		if v, ok := impl.(T); ok {
			out = append(out, v)
		}
	}

	return out
}

// Config returns the configuration block name when it holds a T.
func Config[T any](r *Registry, name string) (T, bool) {
	v, ok := r.config(name)
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
