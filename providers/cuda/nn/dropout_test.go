// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"testing"

	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/providers"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, cudaVersion int) *kernels.Registry {
	caps := backends.DefaultCapabilities(backends.CUDA)
	caps.Version = cudaVersion
	r := kernels.NewRegistry().WithCapabilities(caps)
	require.NoError(t, RegisterKernels(r))
	r.Seal()
	return r
}

func TestDropoutRegistration(t *testing.T) {
	r := newRegistry(t, 11080)
	defs := r.Kernels(kernels.Key{Domain: kernels.OnnxDomain, Name: "Dropout", Backend: backends.CUDA})
	require.Len(t, defs, 2)
	assert.Equal(t, kernels.Versions(12, 12), defs[0].Versions)
	assert.Equal(t, kernels.SinceVersion(13), defs[1].Versions)
	assert.Equal(t, "Dropout[12, 12]@cuda(T={Float16,Float32,Float64}, T1={Float16,Float32,Float64}, T2={Bool})",
		defs[0].String())
	assert.Equal(t,
		"Dropout[13, ∞)@cuda(T={Float16,Float32,Float64,BFloat16}, T1={Float16,Float32,Float64,BFloat16}, T2={Bool})",
		defs[1].String())
	assert.Equal(t, providers.Symbol{Library: Library, Name: "Dropout_13"}, defs[1].Kernel)

	// Registering twice conflicts.
	r2 := kernels.NewRegistry()
	require.NoError(t, RegisterKernels(r2))
	err := RegisterKernels(r2)
	var conflictErr *kernels.ConflictError
	require.True(t, errors.As(err, &conflictErr))
}

func TestDropoutBFloat16Gating(t *testing.T) {
	for _, tc := range []struct {
		version  int
		wantBF16 bool
	}{
		{0, false},
		{10020, false},
		{11000, true},
		{12040, true},
	} {
		r := newRegistry(t, tc.version)
		_, err := r.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 13, kernels.InputTypes(dtypes.BFloat16))
		if tc.wantBF16 {
			assert.NoErrorf(t, err, "CUDA version %d", tc.version)
		} else {
			var noMatch *kernels.NoMatchingKernelError
			assert.Truef(t, errors.As(err, &noMatch), "CUDA version %d: got %v", tc.version, err)
		}

		// Opset 12 never supports bfloat16.
		_, err = r.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 12, kernels.InputTypes(dtypes.BFloat16))
		require.Error(t, err)
	}
}

func TestDropoutResolve(t *testing.T) {
	r := newRegistry(t, 11080)

	rk, err := r.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 12,
		kernels.InputTypes(dtypes.Float32, dtypes.Float32, dtypes.Bool))
	require.NoError(t, err)
	assert.Equal(t, providers.Symbol{Library: Library, Name: "Dropout_12"}, rk.Kernel())
	assert.Equal(t, backends.Device, rk.Location(kernels.Input(0)))
	assert.Equal(t, backends.Host, rk.Location(kernels.Input(1)))
	assert.Equal(t, backends.Host, rk.Location(kernels.Input(2)))
	assert.True(t, rk.NeedsHostStaging(kernels.Input(1)))
	assert.Equal(t, backends.Device, rk.Location(kernels.Output(1)))

	for _, version := range []int{13, 14, 1000} {
		rk, err = r.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, version,
			kernels.Types{
				Inputs:  []dtypes.DType{dtypes.Float16, dtypes.Float32},
				Outputs: []dtypes.DType{dtypes.Float16, dtypes.Bool},
			})
		require.NoErrorf(t, err, "opset %d", version)
		assert.Equal(t, providers.Symbol{Library: Library, Name: "Dropout_13"}, rk.Kernel())
	}

	_, err = r.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 12,
		kernels.InputTypes(dtypes.Int32, dtypes.Int32, dtypes.Bool))
	var noMatch *kernels.NoMatchingKernelError
	require.True(t, errors.As(err, &noMatch))
	assert.Len(t, noMatch.Candidates, 2)
}

func TestDefaultRegistry(t *testing.T) {
	assert.Contains(t, kernels.Providers(), Library)
	r := kernels.MustDefault()
	assert.True(t, r.IsSealed())
	defs := r.Kernels(kernels.Key{Domain: kernels.OnnxDomain, Name: "Dropout", Backend: backends.CUDA})
	assert.Len(t, defs, 2)

	rk, err := kernels.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 13,
		kernels.TypesOf([]float32{1, 2}, float32(0.5), true))
	require.NoError(t, err)
	assert.Equal(t, providers.Symbol{Library: Library, Name: "Dropout_13"}, rk.Kernel())

	// Providers can't be added once the default registry is built.
	require.Panics(t, func() { kernels.RegisterProvider("late", RegisterKernels) })
}
