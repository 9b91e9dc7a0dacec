// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testProviderName is registered once for the whole package tests, since providers are global.
const testProviderName = "test/relu"

var testProviderCapabilities []backends.Capabilities

func init() {
	RegisterProvider(testProviderName, func(r *Registry) error {
		caps := r.Capabilities(backends.CUDA)
		testProviderCapabilities = append(testProviderCapabilities, caps)
		floats := dtypes.IEEEFloats()
		if caps.AtLeast(11000) {
			floats = dtypes.Floats()
		}
		return Def(testDomain, "Relu").SinceVersion(14).Backend(backends.CUDA).
			TypeConstraint("T", floats...).Inputs("T").Outputs("T").
			Register(r)
	})
}

func TestRegisterProviders(t *testing.T) {
	assert.Contains(t, Providers(), testProviderName)
	require.Error(t, exceptions.TryCatch[error](func() {
		RegisterProvider(testProviderName, func(*Registry) error { return nil })
	}))

	caps := backends.DefaultCapabilities(backends.CUDA)
	caps.Version = 10020
	r := NewRegistry().WithCapabilities(caps)
	require.NoError(t, RegisterProviders(r))
	require.NotEmpty(t, testProviderCapabilities)
	assert.Equal(t, 10020, testProviderCapabilities[len(testProviderCapabilities)-1].Version)
	r.Seal()
	_, err := r.Resolve(testDomain, "Relu", backends.CUDA, 14, TypesOf([]float32{1}))
	require.NoError(t, err)
	_, err = r.Resolve(testDomain, "Relu", backends.CUDA, 14, InputTypes(dtypes.BFloat16))
	var noMatch *NoMatchingKernelError
	require.True(t, errors.As(err, &noMatch))

	// Provider errors are reported with the provider name.
	err = RegisterProviders(r)
	require.ErrorIs(t, err, ErrRegistrySealed)
	require.ErrorContains(t, err, `provider "test/relu"`)
}

func TestNewDefaultRegistry(t *testing.T) {
	t.Setenv(backends.KERNELS_BACKENDS, "cuda:version=12040")
	r, err := newDefaultRegistry()
	require.NoError(t, err)
	assert.True(t, r.IsSealed())
	assert.Equal(t, 12040, r.Capabilities(backends.CUDA).Version)
	_, err = r.Resolve(testDomain, "Relu", backends.CUDA, 14, InputTypes(dtypes.BFloat16))
	require.NoError(t, err)

	// A malformed configuration is an error, not a panic.
	t.Setenv(backends.KERNELS_BACKENDS, "bogus")
	require.NotPanics(t, func() {
		r, err = newDefaultRegistry()
	})
	require.ErrorContains(t, err, `unknown backend "bogus"`)
	require.ErrorContains(t, err, "failed to configure the default kernel registry")
	assert.Nil(t, r)
}
