// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package providers holds what is shared by the kernel providers under it.
//
// Each provider package (e.g. providers/cuda/nn) registers itself with kernels.RegisterProvider from
// its init() function, so a program only needs to import it for its kernels to be in kernels.Default:
//
//	import (
//		_ "github.com/gomlx/kernelregistry/providers/cpu/nn"
//		_ "github.com/gomlx/kernelregistry/providers/cuda/nn"
//	)
//
// Each also exports RegisterKernels, to populate explicitly created registries (e.g. in tests), and
// kernels.RegisterProviders populates one with all imported providers.
package providers

import "fmt"

// Symbol is the kernel payload registered by the providers in this module: it names the compiled entry
// point of the kernel, which the executor links against.
type Symbol struct {
	// Library is the provider library holding the entry point, e.g. "cuda/nn".
	Library string

	// Name of the entry point, e.g. "Dropout_13".
	Name string
}

// String implements fmt.Stringer, e.g.: "cuda/nn:Dropout_13".
func (s Symbol) String() string {
	return fmt.Sprintf("%s:%s", s.Library, s.Name)
}
