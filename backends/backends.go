// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends enumerates the execution backends kernels can be registered for, and describes what
// each backend offers to the kernel registry: where tensors live by default and which capability
// version (e.g.: the CUDA runtime version) is available.
//
// Kernel providers use the Capabilities to decide conditional type support at registration time,
// and the registry uses the default Location to turn memory placement decisions into concrete locations.
package backends

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Backend identifies an execution target for which kernels are compiled.
type Backend int

const (
	// InvalidBackend is the zero value, never accepted by the registry.
	InvalidBackend Backend = iota

	// CPU runs kernels on the host, using host memory for every tensor.
	CPU

	// CUDA runs kernels on NVIDIA GPUs.
	CUDA

	// ROCm runs kernels on AMD GPUs.
	ROCm

	// WebGPU runs kernels through the WebGPU API.
	WebGPU

	// CoreML runs kernels on Apple's neural engine / GPU, with unified memory.
	CoreML
)

var backendNames = []string{
	InvalidBackend: "invalid",
	CPU:            "cpu",
	CUDA:           "cuda",
	ROCm:           "rocm",
	WebGPU:         "webgpu",
	CoreML:         "coreml",
}

// String implements fmt.Stringer. It returns the short name used in configurations, e.g.: "cuda".
func (b Backend) String() string {
	if b < 0 || int(b) >= len(backendNames) {
		return "Backend(" + strconv.Itoa(int(b)) + ")"
	}
	return backendNames[b]
}

// IsValid returns whether b is one of the known backends.
func (b Backend) IsValid() bool {
	return b > InvalidBackend && int(b) < len(backendNames)
}

// All returns all valid backends, in enum order.
func All() []Backend {
	all := make([]Backend, 0, len(backendNames)-1)
	for ii := 1; ii < len(backendNames); ii++ {
		all = append(all, Backend(ii))
	}
	return all
}

// FromName returns the Backend for the given name (case-insensitive). It accepts also the
// "<Name>ExecutionProvider" form, e.g.: "CUDAExecutionProvider".
func FromName(name string) (Backend, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimSuffix(key, "executionprovider")
	for ii := 1; ii < len(backendNames); ii++ {
		if backendNames[ii] == key {
			return Backend(ii), nil
		}
	}
	return InvalidBackend, errors.Errorf("unknown backend %q, known backends are %q", name, backendNames[1:])
}

// Location is where the memory of a tensor resides.
type Location int

const (
	InvalidLocation Location = iota

	// Host is CPU-accessible memory.
	Host

	// Device is the backend's own memory space, e.g.: GPU memory.
	Device
)

// String implements fmt.Stringer.
func (l Location) String() string {
	switch l {
	case Host:
		return "host"
	case Device:
		return "device"
	default:
		return "invalid"
	}
}

// ParseLocation converts "host" or "device" (case-insensitive) to a Location.
func ParseLocation(name string) (Location, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "host", "cpu":
		return Host, nil
	case "device":
		return Device, nil
	default:
		return InvalidLocation, errors.Errorf("unknown memory location %q, valid values are \"host\" or \"device\"", name)
	}
}
