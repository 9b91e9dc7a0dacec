// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package bfloat16 defines the Go type used to tag BFloat16 values, so dtypes can map it from
// reflection like any other element type.
package bfloat16

import (
	"math"
	"strconv"
)

// BFloat16 (brain floating point) is the upper half of an IEEE 754 float32: 1 sign bit,
// 8 exponent bits and 7 mantissa bits.
type BFloat16 uint16

// Float32 widens f to a float32.
func (f BFloat16) Float32() float32 {
	return math.Float32frombits(uint32(f) << 16)
}

// FromFloat32 truncates a float32 to a BFloat16.
func FromFloat32(x float32) BFloat16 {
	return BFloat16(math.Float32bits(x) >> 16)
}

// String implements fmt.Stringer.
func (f BFloat16) String() string {
	return strconv.FormatFloat(float64(f.Float32()), 'f', -1, 32)
}
