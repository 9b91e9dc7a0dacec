// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels implements the kernel registry and dispatch resolver: it selects, at graph-load time,
// the concrete kernel implementation (a KernelDef) for an abstract operator node identified by
// (domain, name, opset version), executed on a given backend with concrete input/output dtypes.
//
// Kernel providers describe their kernels with a Builder and register them into a Registry. A provider
// package makes itself known from its init() function with RegisterProvider, and the Default registry
// is built from all of them on first use. Once all providers are registered, the owning process
// calls Registry.Seal, and from then on the registry is read-only and Registry.Resolve can be called
// concurrently from any number of goroutines without locks.
//
// Example:
//
//	func init() {
//		kernels.RegisterProvider("cuda/nn", func(r *kernels.Registry) error {
//			return kernels.Def(kernels.OnnxDomain, "Dropout").
//				Versions(12, 12).Backend(backends.CUDA).
//				TypeConstraint("T", dtypes.IEEEFloats()...).
//				TypeConstraint("T1", dtypes.IEEEFloats()...).
//				TypeConstraint("T2", dtypes.Bool).
//				Inputs("T").OptionalInputs("T1", "T2").
//				Outputs("T").OptionalOutputs("T2").
//				InputMemoryType(kernels.HostMemory, 1, 2).
//				Register(r)
//		})
//	}
//
//	func main() {
//		resolved, err := kernels.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 12,
//			kernels.TypesOf(float32(0), float32(0.5), true))
//		...
//	}
//
// Registration errors (malformed definitions, ambiguous overlapping definitions) are reported by
// Register and are meant to be fatal at startup. Resolution errors are NoMatchingKernelError
// (actionable load-time error) and AmbiguousKernelError (internal invariant violation).
package kernels

// OnnxDomain is the name of the default ONNX operator domain, which by convention is empty.
const OnnxDomain = ""

// MSDomain is the domain of Microsoft contrib operators.
const MSDomain = "com.microsoft"
