// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"maps"

	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
)

// Capabilities holds what a backend offers to the kernels registered for it.
type Capabilities struct {
	// Backend these capabilities describe.
	Backend Backend

	// DefaultLocation is where tensors reside unless a kernel pins them elsewhere.
	DefaultLocation Location

	// Version of the backend runtime, used to gate features at registration time.
	// E.g.: for CUDA it follows the CUDA_VERSION convention (11080 for 11.8). 0 means unknown.
	Version int

	// DTypes lists the data types supported by a backend.
	// If nil all dtypes are assumed supported, otherwise dtypes not listed are not supported.
	DTypes map[dtypes.DType]bool
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	c2 := c
	if c.DTypes != nil {
		c2.DTypes = make(map[dtypes.DType]bool, len(c.DTypes))
		maps.Copy(c2.DTypes, c.DTypes)
	}
	return c2
}

// AtLeast returns whether the backend runtime version is known and >= version.
func (c Capabilities) AtLeast(version int) bool {
	return c.Version > 0 && c.Version >= version
}

// SupportsDType returns whether the backend can hold tensors of the given dtype.
func (c Capabilities) SupportsDType(dtype dtypes.DType) bool {
	if c.DTypes == nil {
		return dtype.IsValid()
	}
	return c.DTypes[dtype]
}

// FilterDTypes returns the subset of the given dtypes supported by the backend, preserving the order.
func (c Capabilities) FilterDTypes(list ...dtypes.DType) []dtypes.DType {
	filtered := make([]dtypes.DType, 0, len(list))
	for _, dtype := range list {
		if c.SupportsDType(dtype) {
			filtered = append(filtered, dtype)
		}
	}
	return filtered
}

// builtinCapabilities are the defaults used for each backend when not configured otherwise.
var builtinCapabilities = map[Backend]Capabilities{
	CPU:    {Backend: CPU, DefaultLocation: Host},
	CUDA:   {Backend: CUDA, DefaultLocation: Device, Version: 11080},
	ROCm:   {Backend: ROCm, DefaultLocation: Device},
	WebGPU: {Backend: WebGPU, DefaultLocation: Device, DTypes: webGPUDTypes},
	CoreML: {Backend: CoreML, DefaultLocation: Host},
}

// WebGPU shaders only handle 32 bits types, plus optional f16.
var webGPUDTypes = map[dtypes.DType]bool{
	dtypes.Bool:    true,
	dtypes.Int32:   true,
	dtypes.Uint32:  true,
	dtypes.Float32: true,
	dtypes.Float16: true,
}

// DefaultCapabilities returns a copy of the builtin capabilities of the backend.
// For unknown backends it returns the zero Capabilities, with an InvalidLocation.
func DefaultCapabilities(backend Backend) Capabilities {
	caps, found := builtinCapabilities[backend]
	if !found {
		return Capabilities{Backend: backend}
	}
	return caps.Clone()
}
