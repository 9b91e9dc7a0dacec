// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nn registers the CUDA kernels of neural network operators.
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

// Library is the name of the library holding the CUDA entry points.
const Library = "cuda/nn"

// BFloat16MinVersion is the CUDA version (CUDA_VERSION convention) from which bfloat16 kernels are compiled.
const BFloat16MinVersion = 11000

func init() {
	kernels.RegisterProvider(Library, RegisterKernels)
}

// RegisterKernels registers all CUDA kernels of this package into r.
//
// Type support conditional to the CUDA version is decided on r.Capabilities(backends.CUDA).
func RegisterKernels(r *kernels.Registry) error {
	caps := r.Capabilities(backends.CUDA)
	for _, builder := range dropoutKernels(caps) {
		if err := builder.Register(r); err != nil {
			return errors.WithMessage(err, "failed to register CUDA nn kernels")
		}
	}
	return nil
}

// dropoutKernels defines Dropout kernels:
//
//	inputs:  data (T), ratio (T1, optional), training_mode (T2, optional)
//	outputs: output (T), mask (T2, optional)
//
// ratio and training_mode are read by the host code launching the kernel, so they are pinned to host memory.
func dropoutKernels(caps backends.Capabilities) []*kernels.Builder {
	define := func(builder *kernels.Builder, floats []dtypes.DType, symbol string) *kernels.Builder {
		return builder.
			Backend(backends.CUDA).
			TypeConstraint("T", floats...).
			TypeConstraint("T1", floats...).
			TypeConstraint("T2", dtypes.Bool).
			Inputs("T").OptionalInputs("T1", "T2").
			Outputs("T").OptionalOutputs("T2").
			InputMemoryType(kernels.HostMemory, 1, 2).
			Kernel(providers.Symbol{Library: Library, Name: symbol})
	}

	floats13 := dtypes.IEEEFloats()
	if caps.AtLeast(BFloat16MinVersion) {
		floats13 = append(floats13, dtypes.BFloat16)
	}
	return []*kernels.Builder{
		define(kernels.Def(kernels.OnnxDomain, "Dropout").Versions(12, 12),
			caps.FilterDTypes(dtypes.IEEEFloats()...), "Dropout_12"),
		define(kernels.Def(kernels.OnnxDomain, "Dropout").SinceVersion(13),
			caps.FilterDTypes(floats13...), "Dropout_13"),
	}
}
