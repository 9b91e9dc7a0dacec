// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/pkg/support/sets"
	"github.com/pkg/errors"
)

// Builder configures a KernelDef. Create it with Def, and finish it with Done (or MustDone).
//
// Errors are accumulated and reported by Done: only the first one is kept.
type Builder struct {
	def *KernelDef
	err error
}

// Def starts the definition of a kernel for the operator name in the given domain.
func Def(domain, name string) *Builder {
	return &Builder{
		def: &KernelDef{
			Domain:      domain,
			Name:        name,
			Constraints: make(map[string]sets.Set[dtypes.DType]),
			MemoryTypes: make(map[Slot]MemoryType),
		},
	}
}

func (b *Builder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Versions sets the closed interval of opset versions the kernel is valid for.
// Use Unbounded as maxVersion (or SinceVersion) for open-ended kernels.
func (b *Builder) Versions(minVersion, maxVersion int) *Builder {
	b.def.Versions = Versions(minVersion, maxVersion)
	return b
}

// SinceVersion sets the kernel valid for opset versions >= minVersion.
func (b *Builder) SinceVersion(minVersion int) *Builder {
	b.def.Versions = SinceVersion(minVersion)
	return b
}

// Backend sets the backend the kernel is compiled for.
func (b *Builder) Backend(backend backends.Backend) *Builder {
	b.def.Backend = backend
	return b
}

// TypeConstraint declares the type constraint name and the dtypes it allows.
// Declaring the same name twice is an error.
func (b *Builder) TypeConstraint(name string, allowed ...dtypes.DType) *Builder {
	if _, found := b.def.Constraints[name]; found {
		b.setErr(errors.Errorf("type constraint %q declared twice", name))
		return b
	}
	if len(allowed) == 0 {
		b.setErr(errors.Errorf("type constraint %q declared with no dtypes", name))
		return b
	}
	b.def.Constraints[name] = sets.MakeWith(allowed...)
	return b
}

// Inputs appends required inputs, each bound to the given type constraint name.
func (b *Builder) Inputs(constraints ...string) *Builder {
	b.def.Inputs = appendBindings(b.def.Inputs, constraints, false)
	return b
}

// OptionalInputs appends optional inputs, each bound to the given type constraint name.
func (b *Builder) OptionalInputs(constraints ...string) *Builder {
	b.def.Inputs = appendBindings(b.def.Inputs, constraints, true)
	return b
}

// Outputs appends outputs, each bound to the given type constraint name.
func (b *Builder) Outputs(constraints ...string) *Builder {
	b.def.Outputs = appendBindings(b.def.Outputs, constraints, false)
	return b
}

// OptionalOutputs appends optional outputs, each bound to the given type constraint name.
func (b *Builder) OptionalOutputs(constraints ...string) *Builder {
	b.def.Outputs = appendBindings(b.def.Outputs, constraints, true)
	return b
}

func appendBindings(bindings []Binding, constraints []string, optional bool) []Binding {
	for _, constraint := range constraints {
		bindings = append(bindings, Binding{Constraint: constraint, Optional: optional})
	}
	return bindings
}

// InputMemoryType sets the memory type required for the inputs at the given indices.
func (b *Builder) InputMemoryType(mt MemoryType, indices ...int) *Builder {
	for _, index := range indices {
		b.def.MemoryTypes[Input(index)] = mt
	}
	return b
}

// OutputMemoryType sets the memory type required for the outputs at the given indices.
func (b *Builder) OutputMemoryType(mt MemoryType, indices ...int) *Builder {
	for _, index := range indices {
		b.def.MemoryTypes[Output(index)] = mt
	}
	return b
}

// Kernel sets the opaque executable entry point returned with the resolution.
func (b *Builder) Kernel(kernel any) *Builder {
	b.def.Kernel = kernel
	return b
}

// Done validates and returns the kernel definition.
// The Builder should not be used after Done: finishing it again returns ErrBuilderUsed.
func (b *Builder) Done() (*KernelDef, error) {
	if b.def == nil {
		return nil, &RegistrationError{Err: ErrBuilderUsed}
	}
	if b.err != nil {
		return nil, &RegistrationError{Def: b.def, Err: b.err}
	}
	if err := b.def.Validate(); err != nil {
		return nil, &RegistrationError{Def: b.def, Err: err}
	}
	def := b.def
	b.def = nil
	return def, nil
}

// MustDone is like Done, but panics on errors.
func (b *Builder) MustDone() *KernelDef {
	def, err := b.Done()
	if err != nil {
		exceptions.Panicf("%v", err)
	}
	return def
}

// Register finishes the definition with Done and registers it into r.
func (b *Builder) Register(r *Registry) error {
	def, err := b.Done()
	if err != nil {
		return err
	}
	return r.Register(def)
}
