// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"k8s.io/klog/v2"
)

// Query holds the parameters of a kernel resolution, as issued by the graph loader for one node.
type Query struct {
	Domain, Name string
	Backend      backends.Backend
	Version      int
	Types        Types
}

// Key returns the registry key the query refers to.
func (q Query) Key() Key {
	return Key{Domain: q.Domain, Name: q.Name, Backend: q.Backend}
}

// String implements fmt.Stringer, e.g.: "Dropout@cuda version 12 with types (Int32, Int32, Bool)".
func (q Query) String() string {
	return fmt.Sprintf("%s version %d with types %s", q.Key(), q.Version, q.Types)
}

// ResolvedKernel is the result of a kernel resolution: the chosen kernel and the concrete memory
// placement of each of its inputs and outputs.
//
// It is immutable, and it is owned by the caller (usually the compiled graph): the registry keeps no
// references to it.
type ResolvedKernel struct {
	def             *KernelDef
	caps            backends.Capabilities
	inputs, outputs []Placement
}

// Resolve finds the unique kernel registered for the operator (domain, name) on backend, valid for the
// requested opset version and accepting the concrete types.
//
// It returns:
//
//   - ErrRegistryNotSealed if the registry is still being populated.
//   - *NoMatchingKernelError if no kernel matches.
//   - *AmbiguousKernelError if more than one kernel matches, which indicates a bug in the registration
//     conflict detection.
func (r *Registry) Resolve(domain, name string, backend backends.Backend, version int, types Types) (*ResolvedKernel, error) {
	return r.ResolveQuery(Query{Domain: domain, Name: name, Backend: backend, Version: version, Types: types})
}

// ResolveQuery is like Resolve, but takes the parameters as a Query.
func (r *Registry) ResolveQuery(query Query) (*ResolvedKernel, error) {
	if !r.sealed.Load() {
		return nil, ErrRegistryNotSealed
	}
	candidates := r.kernels[query.Key()]
	var matches []*KernelDef
	for _, def := range candidates {
		if !InRange(def, query.Version) || !Satisfies(def, query.Types) {
			continue
		}
		matches = append(matches, def)
	}
	switch len(matches) {
	case 0:
		return nil, &NoMatchingKernelError{Query: query, Candidates: slices.Clone(candidates)}
	case 1:
		resolved := newResolvedKernel(matches[0], r.capabilities[query.Backend])
		klog.V(2).Infof("resolved %s to kernel %s", query, resolved.def)
		return resolved, nil
	default:
		err := &AmbiguousKernelError{Query: query, Candidates: matches}
		klog.Errorf("kernel resolution failed: %v", err)
		return nil, err
	}
}

// MustResolve is like Resolve, but panics on errors.
func (r *Registry) MustResolve(domain, name string, backend backends.Backend, version int, types Types) *ResolvedKernel {
	resolved, err := r.Resolve(domain, name, backend, version, types)
	if err != nil {
		exceptions.Panicf("%+v", err)
	}
	return resolved
}

func newResolvedKernel(def *KernelDef, caps backends.Capabilities) *ResolvedKernel {
	rk := &ResolvedKernel{
		def:     def,
		caps:    caps.Clone(),
		inputs:  make([]Placement, len(def.Inputs)),
		outputs: make([]Placement, len(def.Outputs)),
	}
	for ii := range def.Inputs {
		rk.inputs[ii] = rk.placement(Input(ii))
	}
	for ii := range def.Outputs {
		rk.outputs[ii] = rk.placement(Output(ii))
	}
	return rk
}

func (rk *ResolvedKernel) placement(slot Slot) Placement {
	mt := rk.def.PlacementFor(slot)
	return Placement{Slot: slot, MemoryType: mt, Location: mt.LocationOn(rk.caps)}
}

// Def returns the chosen kernel definition.
func (rk *ResolvedKernel) Def() *KernelDef {
	return rk.def
}

// Kernel returns the opaque executable entry point registered with the kernel.
func (rk *ResolvedKernel) Kernel() any {
	return rk.def.Kernel
}

// Backend returns the backend the kernel runs on.
func (rk *ResolvedKernel) Backend() backends.Backend {
	return rk.def.Backend
}

// InputPlacements returns the placements of each input, in order. The returned slice is a copy.
func (rk *ResolvedKernel) InputPlacements() []Placement {
	return slices.Clone(rk.inputs)
}

// OutputPlacements returns the placements of each output, in order. The returned slice is a copy.
func (rk *ResolvedKernel) OutputPlacements() []Placement {
	return slices.Clone(rk.outputs)
}

// PlacementFor returns the placement of the slot.
// Slots the kernel doesn't have are reported with the backend default placement.
func (rk *ResolvedKernel) PlacementFor(slot Slot) Placement {
	list := rk.outputs
	if slot.IsInput {
		list = rk.inputs
	}
	if slot.Index >= 0 && slot.Index < len(list) {
		return list[slot.Index]
	}
	return rk.placement(slot)
}

// Location returns the concrete memory location of the slot.
func (rk *ResolvedKernel) Location(slot Slot) backends.Location {
	return rk.PlacementFor(slot).Location
}

// NeedsHostStaging returns whether the slot is pinned to host memory while the backend would
// ordinarily keep it in device memory: the allocator must stage such inputs into host memory
// before the kernel executes.
func (rk *ResolvedKernel) NeedsHostStaging(slot Slot) bool {
	p := rk.PlacementFor(slot)
	return p.MemoryType == HostMemory && rk.caps.DefaultLocation != backends.Host
}

// String implements fmt.Stringer.
func (rk *ResolvedKernel) String() string {
	return fmt.Sprintf("%s inputs=%v outputs=%v", rk.def, rk.inputs, rk.outputs)
}
