// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/pkg/support/sets"
	"github.com/pkg/errors"
)

// Key indexes kernels in the Registry: all kernels of an operator targeting one backend.
type Key struct {
	Domain, Name string
	Backend      backends.Backend
}

// String implements fmt.Stringer, e.g.: "com.microsoft::Gelu@cuda". The default ONNX domain is omitted.
func (k Key) String() string {
	if k.Domain == OnnxDomain {
		return fmt.Sprintf("%s@%s", k.Name, k.Backend)
	}
	return fmt.Sprintf("%s::%s@%s", k.Domain, k.Name, k.Backend)
}

// Binding associates one input or output slot with the name of the type constraint governing it.
// Slots sharing a constraint name must all have the same dtype.
type Binding struct {
	Constraint string

	// Optional slots may be absent from the concrete types given to Resolve.
	Optional bool
}

// KernelDef describes one kernel implementation. It is immutable once registered:
// build it with Def(...).Done() and don't change it afterward.
type KernelDef struct {
	// Domain is the namespace of the operator, OnnxDomain ("") for standard ONNX operators.
	Domain string

	// Name is the operator identifier, unique within the domain.
	Name string

	// Versions is the opset versions interval the kernel is valid for.
	Versions VersionRange

	// Backend the kernel is compiled for.
	Backend backends.Backend

	// Constraints maps each type constraint name to the set of dtypes it allows.
	Constraints map[string]sets.Set[dtypes.DType]

	// Inputs and Outputs bind each slot, in order, to its type constraint.
	Inputs, Outputs []Binding

	// MemoryTypes overrides the placement of specific slots. Slots not listed use BackendDefault.
	MemoryTypes map[Slot]MemoryType

	// Kernel is the executable entry point of the kernel. It's opaque to the registry, and it is
	// returned as is with the resolution, for the executor to use.
	Kernel any
}

// Key returns the registry key of the kernel.
func (def *KernelDef) Key() Key {
	return Key{Domain: def.Domain, Name: def.Name, Backend: def.Backend}
}

// Binding returns the binding of the slot, and whether the kernel has such a slot.
func (def *KernelDef) Binding(slot Slot) (Binding, bool) {
	bindings := def.Outputs
	if slot.IsInput {
		bindings = def.Inputs
	}
	if slot.Index < 0 || slot.Index >= len(bindings) {
		return Binding{}, false
	}
	return bindings[slot.Index], true
}

// ConstraintNames returns the names of the type constraints, sorted.
func (def *KernelDef) ConstraintNames() []string {
	return slices.Sorted(maps.Keys(def.Constraints))
}

// Validate checks the kernel definition is well-formed. It is called by Builder.Done and Registry.Register.
func (def *KernelDef) Validate() error {
	if def.Name == "" {
		return errors.New("kernel definition has no operator name")
	}
	if !def.Backend.IsValid() {
		return errors.Errorf("kernel %s has an invalid backend %s", def.Name, def.Backend)
	}
	if err := def.Versions.Validate(); err != nil {
		return errors.WithMessagef(err, "kernel %s", def.Key())
	}
	for name, allowed := range def.Constraints {
		if name == "" {
			return errors.Errorf("kernel %s has a type constraint with an empty name", def.Key())
		}
		if len(allowed) == 0 {
			return errors.Errorf("kernel %s type constraint %q allows no dtypes", def.Key(), name)
		}
		for dtype := range allowed {
			if !dtype.IsValid() {
				return errors.Errorf("kernel %s type constraint %q has invalid dtype %s", def.Key(), name, dtype)
			}
		}
	}
	for _, isInput := range []bool{true, false} {
		bindings := def.Outputs
		if isInput {
			bindings = def.Inputs
		}
		for ii, binding := range bindings {
			if _, found := def.Constraints[binding.Constraint]; !found {
				return errors.Errorf("kernel %s %s is bound to undeclared type constraint %q (declared constraints: %q)",
					def.Key(), Slot{Index: ii, IsInput: isInput}, binding.Constraint, def.ConstraintNames())
			}
		}
	}
	for slot, mt := range def.MemoryTypes {
		if !mt.IsValid() {
			return errors.Errorf("kernel %s %s has invalid memory type %s", def.Key(), slot, mt)
		}
		if _, found := def.Binding(slot); !found {
			return errors.Errorf("kernel %s has a memory type override for non-existent %s", def.Key(), slot)
		}
	}
	return nil
}

// String implements fmt.Stringer, e.g.: "Dropout[12, 12]@cuda(T={Float16,Float32,Float64}, T2={Bool})".
// Dtypes are listed in enum order.
func (def *KernelDef) String() string {
	name := def.Name
	if def.Domain != OnnxDomain {
		name = def.Domain + "::" + def.Name
	}
	parts := make([]string, 0, len(def.Constraints))
	for _, constraint := range def.ConstraintNames() {
		parts = append(parts, constraint+"="+formatDTypeSet(def.Constraints[constraint]))
	}
	return fmt.Sprintf("%s%s@%s(%s)", name, def.Versions, def.Backend, strings.Join(parts, ", "))
}

// formatDTypeSet lists the dtypes in enum order.
func formatDTypeSet(s sets.Set[dtypes.DType]) string {
	sorted := sets.Sorted(s)
	names := make([]string, len(sorted))
	for ii, dtype := range sorted {
		names[ii] = dtype.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

// Types is a concrete assignment of dtypes to the inputs and outputs of a node.
//
// A slot whose dtype is dtypes.InvalidDType, or beyond the length of the slice, is absent.
// Absent required inputs never match a kernel, other absent slots are simply not checked.
type Types struct {
	Inputs, Outputs []dtypes.DType
}

// InputTypes returns Types with only the inputs set.
func InputTypes(inputs ...dtypes.DType) Types {
	return Types{Inputs: inputs}
}

// TypesOf returns Types with the inputs set to the dtypes of sample values, see dtypes.FromAny.
// Slices and arrays map to their element dtype, and nil marks an absent input.
func TypesOf(inputs ...any) Types {
	types := Types{Inputs: make([]dtypes.DType, len(inputs))}
	for ii, input := range inputs {
		types.Inputs[ii] = dtypes.FromAny(input)
	}
	return types
}

// Of returns the dtype of the slot, or dtypes.InvalidDType if it is absent.
func (t Types) Of(slot Slot) dtypes.DType {
	list := t.Outputs
	if slot.IsInput {
		list = t.Inputs
	}
	if slot.Index < 0 || slot.Index >= len(list) {
		return dtypes.InvalidDType
	}
	return list[slot.Index]
}

// String implements fmt.Stringer, e.g.: "(Float32, -, Bool) -> (Float32)". Absent slots are printed as "-".
func (t Types) String() string {
	format := func(list []dtypes.DType) string {
		parts := make([]string, len(list))
		for ii, dtype := range list {
			if dtype == dtypes.InvalidDType {
				parts[ii] = "-"
			} else {
				parts[ii] = dtype.String()
			}
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	if len(t.Outputs) == 0 {
		return format(t.Inputs)
	}
	return format(t.Inputs) + " -> " + format(t.Outputs)
}
