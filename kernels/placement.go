// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"

	"github.com/gomlx/kernelregistry/backends"
)

// MemoryType is the memory placement a kernel requires for one of its inputs or outputs.
type MemoryType int

const (
	// BackendDefault is the memory the backend ordinarily uses, e.g.: device memory for accelerators.
	BackendDefault MemoryType = iota

	// HostMemory pins the tensor to host-accessible memory, regardless of the backend.
	// Typically used for small inputs the kernel reads on the host side (e.g.: a ratio or a flag).
	HostMemory
)

// String implements fmt.Stringer.
func (mt MemoryType) String() string {
	switch mt {
	case BackendDefault:
		return "backend_default"
	case HostMemory:
		return "host"
	default:
		return fmt.Sprintf("MemoryType(%d)", int(mt))
	}
}

// IsValid returns whether mt is one of the defined memory types.
func (mt MemoryType) IsValid() bool {
	return mt == BackendDefault || mt == HostMemory
}

// LocationOn returns the concrete memory location of the memory type on a backend with the given capabilities.
func (mt MemoryType) LocationOn(caps backends.Capabilities) backends.Location {
	if mt == HostMemory {
		return backends.Host
	}
	return caps.DefaultLocation
}

// Slot identifies one input or output of a kernel, by its position.
type Slot struct {
	Index   int
	IsInput bool
}

// Input returns the Slot of the input at the given index.
func Input(index int) Slot {
	return Slot{Index: index, IsInput: true}
}

// Output returns the Slot of the output at the given index.
func Output(index int) Slot {
	return Slot{Index: index, IsInput: false}
}

// String implements fmt.Stringer, e.g.: "input #1".
func (s Slot) String() string {
	if s.IsInput {
		return fmt.Sprintf("input #%d", s.Index)
	}
	return fmt.Sprintf("output #%d", s.Index)
}

// PlacementFor returns the memory type the kernel requires for the given slot:
// the override registered for it, or BackendDefault if there is none.
func PlacementFor(def *KernelDef, index int, isInput bool) MemoryType {
	return def.PlacementFor(Slot{Index: index, IsInput: isInput})
}

// PlacementFor returns the memory type the kernel requires for the given slot.
// See the package function PlacementFor.
func (def *KernelDef) PlacementFor(slot Slot) MemoryType {
	if mt, found := def.MemoryTypes[slot]; found {
		return mt
	}
	return BackendDefault
}

// Placement is the concrete placement decision for one slot of a resolved kernel.
type Placement struct {
	Slot
	MemoryType MemoryType
	Location   backends.Location
}

// String implements fmt.Stringer.
func (p Placement) String() string {
	return fmt.Sprintf("%s: %s (%s)", p.Slot, p.MemoryType, p.Location)
}
