// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"testing"

	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/gomlx/kernelregistry/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropout(t *testing.T) {
	r := kernels.NewRegistry()
	require.NoError(t, RegisterKernels(r))
	r.Seal()
	require.Equal(t, 5, r.Len())

	rk, err := r.Resolve(kernels.OnnxDomain, "Dropout", backends.CPU, 12,
		kernels.InputTypes(dtypes.Float64, dtypes.Float32, dtypes.Bool))
	require.NoError(t, err)
	assert.Equal(t, providers.Symbol{Library: Library, Name: "Dropout_12"}, rk.Kernel())
	assert.Equal(t, "cpu/nn:Dropout_12", rk.Kernel().(providers.Symbol).String())
	for _, p := range rk.InputPlacements() {
		assert.Equal(t, kernels.BackendDefault, p.MemoryType)
		assert.Equal(t, backends.Host, p.Location)
		assert.False(t, rk.NeedsHostStaging(p.Slot))
	}

	rk, err = r.Resolve(kernels.OnnxDomain, "Dropout", backends.CPU, 13, kernels.InputTypes(dtypes.BFloat16))
	require.NoError(t, err)
	assert.Equal(t, kernels.SinceVersion(13), rk.Def().Versions)

	_, err = r.Resolve(kernels.OnnxDomain, "Dropout", backends.CPU, 12, kernels.InputTypes(dtypes.BFloat16))
	require.Error(t, err)

	// Different backend, no kernels.
	_, err = r.Resolve(kernels.OnnxDomain, "Dropout", backends.CUDA, 13, kernels.InputTypes(dtypes.Float32))
	require.ErrorContains(t, err, "no kernels registered")
}
