// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"slices"

	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/providers"
)

// reluKernels defines Relu kernels, one per change of its type constraint:
// opset 13 added bfloat16, and opset 14 added the signed integers.
func reluKernels(caps backends.Capabilities) []*kernels.Builder {
	define := func(builder *kernels.Builder, allowed []dtypes.DType, symbol string) *kernels.Builder {
		return builder.
			Backend(backends.CPU).
			TypeConstraint("T", caps.FilterDTypes(allowed...)...).
			Inputs("T").
			Outputs("T").
			Kernel(providers.Symbol{Library: Library, Name: symbol})
	}
	return []*kernels.Builder{
		define(kernels.Def(kernels.OnnxDomain, "Relu").Versions(6, 12), dtypes.IEEEFloats(), "Relu_6"),
		define(kernels.Def(kernels.OnnxDomain, "Relu").Versions(13, 13), dtypes.Floats(), "Relu_13"),
		define(kernels.Def(kernels.OnnxDomain, "Relu").SinceVersion(14),
			slices.Concat(dtypes.Floats(), dtypes.SignedInts()), "Relu_14"),
	}
}
