// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nn registers the CPU kernels of neural network operators.
//
// Importing it registers RegisterKernels as a provider of kernels.Default.
package nn

import (
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/providers"
	"github.com/pkg/errors"
)

// Library is the name of the library holding the CPU entry points.
const Library = "cpu/nn"

func init() {
	kernels.RegisterProvider(Library, RegisterKernels)
}

// RegisterKernels registers all CPU kernels of this package into r.
func RegisterKernels(r *kernels.Registry) error {
	caps := r.Capabilities(backends.CPU)
	for _, builder := range append(dropoutKernels(caps), reluKernels(caps)...) {
		if err := builder.Register(r); err != nil {
			return errors.WithMessage(err, "failed to register CPU nn kernels")
		}
	}
	return nil
}

// dropoutKernels defines Dropout kernels. On CPU every tensor is in host memory already, so there
// are no memory overrides, and bfloat16 is always available (converted to float32 internally).
func dropoutKernels(caps backends.Capabilities) []*kernels.Builder {
	define := func(builder *kernels.Builder, floats []dtypes.DType, symbol string) *kernels.Builder {
		return builder.
			Backend(backends.CPU).
			TypeConstraint("T", floats...).
			TypeConstraint("T1", floats...).
			TypeConstraint("T2", dtypes.Bool).
			Inputs("T").OptionalInputs("T1", "T2").
			Outputs("T").OptionalOutputs("T2").
			Kernel(providers.Symbol{Library: Library, Name: symbol})
	}
	return []*kernels.Builder{
		define(kernels.Def(kernels.OnnxDomain, "Dropout").Versions(12, 12),
			caps.FilterDTypes(dtypes.IEEEFloats()...), "Dropout_12"),
		define(kernels.Def(kernels.OnnxDomain, "Dropout").SinceVersion(13),
			caps.FilterDTypes(dtypes.Floats()...), "Dropout_13"),
	}
}
