// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/pkg/support/sets"
)

// Satisfies returns whether the concrete types can be bound to the kernel.
//
// Each present slot must have a dtype allowed by the type constraint it is bound to, and all present
// slots bound to the same constraint must have the same dtype. Absent required inputs fail the match,
// and so do present slots the kernel doesn't have. It returns on the first failing slot.
func Satisfies(def *KernelDef, types Types) bool {
	// chosen holds the dtype each constraint name was resolved to, by the first slot using it.
	chosen := make(map[string]dtypes.DType, len(def.Constraints))
	check := func(bindings []Binding, list []dtypes.DType, isInputs bool) bool {
		for ii, dtype := range list {
			if ii >= len(bindings) && dtype != dtypes.InvalidDType {
				return false
			}
		}
		for ii, binding := range bindings {
			dtype := dtypes.InvalidDType
			if ii < len(list) {
				dtype = list[ii]
			}
			if dtype == dtypes.InvalidDType {
				if isInputs && !binding.Optional {
					return false
				}
				continue
			}
			if !def.Constraints[binding.Constraint].Has(dtype) {
				return false
			}
			if previous, found := chosen[binding.Constraint]; found {
				if previous != dtype {
					return false
				}
			} else {
				chosen[binding.Constraint] = dtype
			}
		}
		return true
	}
	return check(def.Inputs, types.Inputs, true) && check(def.Outputs, types.Outputs, false)
}

// Satisfies is an alias to the package function Satisfies.
func (def *KernelDef) Satisfies(types Types) bool {
	return Satisfies(def, types)
}

// jointlySatisfiable returns whether there is at least one concrete Types assignment for which both
// Satisfies(a, ...) and Satisfies(b, ...) return true.
//
// The most permissive assignment has only the inputs that are required by either kernel: outputs and
// optional inputs can always be left absent. Slots tied by a shared constraint name, in either kernel,
// must have the same dtype, so they are grouped (union-find) and each group can only take dtypes allowed
// by every constraint touching it. The kernels overlap iff no group is left with an empty set.
func jointlySatisfiable(a, b *KernelDef) bool {
	var required []int
	for ii := range max(len(a.Inputs), len(b.Inputs)) {
		requiredByA := ii < len(a.Inputs) && !a.Inputs[ii].Optional
		requiredByB := ii < len(b.Inputs) && !b.Inputs[ii].Optional
		if !requiredByA && !requiredByB {
			continue
		}
		if ii >= len(a.Inputs) || ii >= len(b.Inputs) {
			// A present slot the other kernel doesn't have never matches.
			return false
		}
		required = append(required, ii)
	}

	// Union-find nodes are the constraint names, prefixed by the kernel they belong to.
	parent := make(map[string]string)
	var find func(node string) string
	find = func(node string) string {
		p, found := parent[node]
		if !found || p == node {
			parent[node] = node
			return node
		}
		root := find(p)
		parent[node] = root
		return root
	}
	union := func(x, y string) {
		rootX, rootY := find(x), find(y)
		if rootX != rootY {
			parent[rootX] = rootY
		}
	}
	for _, ii := range required {
		union("a:"+a.Inputs[ii].Constraint, "b:"+b.Inputs[ii].Constraint)
	}

	allowed := make(map[string]sets.Set[dtypes.DType])
	intersect := func(node string, s sets.Set[dtypes.DType]) {
		root := find(node)
		if current, found := allowed[root]; found {
			allowed[root] = current.Intersect(s)
		} else {
			allowed[root] = s.Clone()
		}
	}
	for _, ii := range required {
		intersect("a:"+a.Inputs[ii].Constraint, a.Constraints[a.Inputs[ii].Constraint])
		intersect("b:"+b.Inputs[ii].Constraint, b.Constraints[b.Inputs[ii].Constraint])
	}
	for _, s := range allowed {
		if len(s) == 0 {
			return false
		}
	}
	return true
}
