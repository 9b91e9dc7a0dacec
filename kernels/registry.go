// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"cmp"
	"slices"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ConflictPolicy defines when two kernels registered for the same operator and backend are rejected
// as conflicting.
type ConflictPolicy int

const (
	// ExactOverlap rejects a kernel if its versions intersect with those of a registered kernel and
	// there is at least one concrete types assignment both kernels would accept.
	// Kernels for the same versions but disjoint dtypes (e.g.: a float and an integer kernel) are accepted.
	ExactOverlap ConflictPolicy = iota

	// AnyVersionOverlap rejects a kernel if its versions intersect with those of any registered kernel,
	// regardless of their type constraints.
	AnyVersionOverlap
)

// String implements fmt.Stringer.
func (p ConflictPolicy) String() string {
	if p == AnyVersionOverlap {
		return "AnyVersionOverlap"
	}
	return "ExactOverlap"
}

// Registry holds the kernels registered for all operators and backends.
//
// It has two states: while populating it accepts Register and rejects Resolve; after Seal it accepts
// Resolve and rejects Register. Populating is expected to happen in one goroutine (typically during
// the program initialization), while Resolve can be called concurrently after the registry is sealed:
// nothing is mutated after that.
type Registry struct {
	policy       ConflictPolicy
	capabilities map[backends.Backend]backends.Capabilities
	kernels      map[Key][]*KernelDef
	numKernels   int
	sealed       atomic.Bool
}

// NewRegistry returns an empty Registry, in the populating state, with the builtin backends
// capabilities and the ExactOverlap conflict policy.
func NewRegistry() *Registry {
	r := &Registry{
		capabilities: make(map[backends.Backend]backends.Capabilities),
		kernels:      make(map[Key][]*KernelDef),
	}
	for _, backend := range backends.All() {
		r.capabilities[backend] = backends.DefaultCapabilities(backend)
	}
	return r
}

// WithConflictPolicy sets the conflict policy used by subsequent Register calls.
// It returns the registry itself, so it can be chained with NewRegistry.
//
// It panics if the registry is already sealed.
func (r *Registry) WithConflictPolicy(policy ConflictPolicy) *Registry {
	if r.sealed.Load() {
		exceptions.Panicf("kernels.Registry.WithConflictPolicy(%s) called after Seal", policy)
	}
	r.policy = policy
	return r
}

// WithCapabilities sets the capabilities of the backends, used by providers to decide on conditional
// type support and by Resolve to compute the concrete memory locations. Backends not given keep their
// current capabilities. It returns the registry itself, so it can be chained with NewRegistry.
//
// It panics if the registry is already sealed.
func (r *Registry) WithCapabilities(capabilities ...backends.Capabilities) *Registry {
	if r.sealed.Load() {
		exceptions.Panicf("kernels.Registry.WithCapabilities() called after Seal")
	}
	for _, caps := range capabilities {
		if !caps.Backend.IsValid() {
			exceptions.Panicf("kernels.Registry.WithCapabilities() given capabilities for invalid backend %s", caps.Backend)
		}
		r.capabilities[caps.Backend] = caps.Clone()
	}
	return r
}

// ConflictPolicy returns the current conflict policy.
func (r *Registry) ConflictPolicy() ConflictPolicy {
	return r.policy
}

// Capabilities returns a copy of the capabilities configured for the backend.
func (r *Registry) Capabilities(backend backends.Backend) backends.Capabilities {
	caps, found := r.capabilities[backend]
	if !found {
		return backends.Capabilities{Backend: backend}
	}
	return caps.Clone()
}

// Register adds a kernel definition to the registry.
//
// It returns a *RegistrationError if the registry is sealed, if the definition is malformed, or if it conflicts
// (see ConflictPolicy) with an already registered kernel -- in which case the RegistrationError wraps
// a *ConflictError.
func (r *Registry) Register(def *KernelDef) error {
	if def == nil {
		return &RegistrationError{Err: errors.New("nil kernel definition")}
	}
	if r.sealed.Load() {
		return &RegistrationError{Def: def, Err: ErrRegistrySealed}
	}
	if err := def.Validate(); err != nil {
		return &RegistrationError{Def: def, Err: err}
	}
	key := def.Key()
	for _, existing := range r.kernels[key] {
		if existing == def {
			return &RegistrationError{Def: def, Err: errors.New("kernel definition registered twice")}
		}
		if r.conflicts(existing, def) {
			return &RegistrationError{Def: def, Err: &ConflictError{Existing: existing, New: def, Policy: r.policy}}
		}
	}
	r.kernels[key] = append(r.kernels[key], def)
	r.numKernels++
	klog.V(2).Infof("registered kernel %s", def)
	return nil
}

// conflicts returns whether registering b while a is registered makes dispatch ambiguous, according to
// the registry policy.
func (r *Registry) conflicts(a, b *KernelDef) bool {
	if !a.Versions.Intersects(b.Versions) {
		return false
	}
	if r.policy == AnyVersionOverlap {
		return true
	}
	return jointlySatisfiable(a, b)
}

// MustRegister registers all the kernel definitions, and panics (with the *RegistrationError) on the first failure.
// Use it in init() functions: a registration failure is a bug, and the program should not start.
func (r *Registry) MustRegister(defs ...*KernelDef) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			klog.Errorf("kernel registration failed: %v", err)
			panic(err)
		}
	}
}

// Seal ends the populating phase: from now on Register fails and Resolve is enabled.
// It's safe to call Seal more than once, subsequent calls are no-ops.
func (r *Registry) Seal() {
	if r.sealed.Load() {
		return
	}
	for key, defs := range r.kernels {
		slices.SortFunc(defs, compareKernelDefs)
		r.kernels[key] = slices.Clip(defs)
	}
	// Storing the flag publishes the (now immutable) kernels to any goroutine that observes it set.
	r.sealed.Store(true)
	klog.V(1).Infof("kernel registry sealed with %d kernels for %d operator/backend pairs", r.numKernels, len(r.kernels))
}

// IsSealed returns whether Seal has been called.
func (r *Registry) IsSealed() bool {
	return r.sealed.Load()
}

// Len returns the number of registered kernels.
func (r *Registry) Len() int {
	return r.numKernels
}

// Kernels returns a copy of the list of kernels registered for the given key, sorted by versions.
func (r *Registry) Kernels(key Key) []*KernelDef {
	defs := slices.Clone(r.kernels[key])
	slices.SortFunc(defs, compareKernelDefs)
	return defs
}

// Entries returns a snapshot of all registered kernels, sorted by domain, name, backend and versions.
// Intended for diagnostics.
func (r *Registry) Entries() []*KernelDef {
	entries := make([]*KernelDef, 0, r.numKernels)
	for _, defs := range r.kernels {
		entries = append(entries, defs...)
	}
	slices.SortFunc(entries, compareKernelDefs)
	return entries
}

func compareKernelDefs(a, b *KernelDef) int {
	return cmp.Or(
		cmp.Compare(a.Domain, b.Domain),
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.Backend, b.Backend),
		cmp.Compare(a.Versions.Min, b.Versions.Min),
		cmp.Compare(a.Versions.Max, b.Versions.Max),
		cmp.Compare(a.String(), b.String()),
	)
}
