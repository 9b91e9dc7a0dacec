// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"maps"
	"slices"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Provider registers a library of kernels into r. It should read r.Capabilities to decide on type
// support conditional to the backend version.
type Provider func(r *Registry) error

var (
	providersMu      sync.Mutex
	knownProviders   = make(map[string]Provider)
	defaultRequested bool
)

// RegisterProvider makes the provider available to the Default registry and to RegisterProviders.
// It is meant to be called from the init() function of the provider package.
//
// It panics if a provider with the same name is already registered, or if Default was already called,
// since the provider would be silently missing from it.
func RegisterProvider(name string, provider Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if defaultRequested {
		exceptions.Panicf("kernels.RegisterProvider(%q) called after kernels.Default()", name)
	}
	if _, found := knownProviders[name]; found {
		exceptions.Panicf("kernels.RegisterProvider(%q) called twice", name)
	}
	knownProviders[name] = provider
}

// Providers returns the names of the registered providers, sorted.
func Providers() []string {
	providersMu.Lock()
	defer providersMu.Unlock()
	return slices.Sorted(maps.Keys(knownProviders))
}

// RegisterProviders registers the kernels of all registered providers into r, in the order of their names.
func RegisterProviders(r *Registry) error {
	providersMu.Lock()
	names := slices.Sorted(maps.Keys(knownProviders))
	list := make([]Provider, len(names))
	for ii, name := range names {
		list[ii] = knownProviders[name]
	}
	providersMu.Unlock()

	for ii, provider := range list {
		if err := provider(r); err != nil {
			return errors.WithMessagef(err, "provider %q", names[ii])
		}
		klog.V(1).Infof("kernels provider %q registered", names[ii])
	}
	return nil
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	providersMu.Lock()
	defaultRequested = true
	providersMu.Unlock()
	return newDefaultRegistry()
})

// Default returns the process-wide registry, built and sealed on the first call with the kernels of
// all providers registered with RegisterProvider.
//
// Its backends capabilities are loaded with backends.LoadCapabilities, so they can be configured with
// the KERNELS_BACKENDS environment variable. A malformed configuration is returned as an error, and
// every later call returns the same error.
func Default() (*Registry, error) {
	return defaultRegistry()
}

// MustDefault returns Default, panicking on errors.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

func newDefaultRegistry() (*Registry, error) {
	capabilities, err := backends.LoadCapabilities()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to configure the default kernel registry")
	}
	r := NewRegistry()
	for _, backend := range backends.All() {
		r.WithCapabilities(capabilities[backend])
	}
	if err := RegisterProviders(r); err != nil {
		return nil, errors.WithMessage(err, "failed to build the default kernel registry")
	}
	r.Seal()
	return r, nil
}

// Resolve resolves a kernel from the Default registry. See Registry.Resolve.
func Resolve(domain, name string, backend backends.Backend, version int, types Types) (*ResolvedKernel, error) {
	r, err := Default()
	if err != nil {
		return nil, err
	}
	return r.Resolve(domain, name, backend, version, types)
}
