// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package dtypes includes the DType enum for the element types kernels can be registered and resolved with.
//
// The numeric values follow the PJRT buffer types (pjrt_c_api.h), the same enumeration used by GoMLX,
// so values can be exchanged with backends without translation.
//
// It also includes the groups of dtypes commonly used when declaring type constraints
// (IEEEFloats, SignedInts, ...) and converters from Go types (reflect.Type) to DType.
package dtypes

import (
	"maps"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/kernelregistry/pkg/core/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// DType is an enum represents the element type of a tensor bound to a kernel input or output.
type DType int32

const (
	// InvalidDType is the zero value, and it is used to mark an absent (e.g.: optional and not given) slot.
	InvalidDType DType = 0

	// Bool is a two-state boolean, PJRT_Buffer_Type_PRED.
	Bool DType = 1

	Int8  DType = 2
	Int16 DType = 3
	Int32 DType = 4
	Int64 DType = 5

	Uint8  DType = 6
	Uint16 DType = 7
	Uint32 DType = 8
	Uint64 DType = 9

	// Float16 is the IEEE 754 half-precision float (MLFloat16 in ONNX parlance).
	Float16 DType = 10
	Float32 DType = 11
	Float64 DType = 12

	// BFloat16 is the truncated 16 bit floating-point format: 1 bit for the sign, 8 bits for the exponent
	// and 7 bits for the mantissa.
	BFloat16 DType = 13

	// Complex64 is a pair of float32 (real, imag).
	Complex64 DType = 14

	// Complex128 is a pair of float64 (real, imag).
	Complex128 DType = 15
)

// Aliases from PJRT C API.
const (
	PRED = Bool
	S8   = Int8
	S16  = Int16
	S32  = Int32
	S64  = Int64
	U8   = Uint8
	U16  = Uint16
	U32  = Uint32
	U64  = Uint64
	F16  = Float16
	F32  = Float32
	F64  = Float64
	BF16 = BFloat16
	C64  = Complex64
	C128 = Complex128
)

var dtypeNames = map[DType]string{
	InvalidDType: "InvalidDType",
	Bool:         "Bool",
	Int8:         "Int8",
	Int16:        "Int16",
	Int32:        "Int32",
	Int64:        "Int64",
	Uint8:        "Uint8",
	Uint16:       "Uint16",
	Uint32:       "Uint32",
	Uint64:       "Uint64",
	Float16:      "Float16",
	Float32:      "Float32",
	Float64:      "Float64",
	BFloat16:     "BFloat16",
	Complex64:    "Complex64",
	Complex128:   "Complex128",
}

// MapOfNames to their dtypes. It includes also aliases to the various dtypes.
// It is also initialized to include the lower-case version of the names.
var MapOfNames = map[string]DType{
	"InvalidDType": InvalidDType,
	"INVALID":      InvalidDType,
	"Bool":         Bool,
	"PRED":         Bool,
	"Int8":         Int8,
	"S8":           Int8,
	"Int16":        Int16,
	"S16":          Int16,
	"Int32":        Int32,
	"S32":          Int32,
	"Int64":        Int64,
	"S64":          Int64,
	"Uint8":        Uint8,
	"U8":           Uint8,
	"Uint16":       Uint16,
	"U16":          Uint16,
	"Uint32":       Uint32,
	"U32":          Uint32,
	"Uint64":       Uint64,
	"U64":          Uint64,
	"Float16":      Float16,
	"F16":          Float16,
	"Half":         Float16,
	"Float32":      Float32,
	"F32":          Float32,
	"Float":        Float32,
	"Float64":      Float64,
	"F64":          Float64,
	"Double":       Float64,
	"BFloat16":     BFloat16,
	"BF16":         BFloat16,
	"Complex64":    Complex64,
	"C64":          Complex64,
	"Complex128":   Complex128,
	"C128":         Complex128,
}

func init() {
	keys := slices.Collect(maps.Keys(MapOfNames))
	for _, key := range keys {
		lowerKey := strings.ToLower(key)
		if lowerKey == key {
			continue
		}
		if _, found := MapOfNames[lowerKey]; found {
			continue
		}
		MapOfNames[lowerKey] = MapOfNames[key]
	}
}

// String implements fmt.Stringer.
func (dtype DType) String() string {
	if name, found := dtypeNames[dtype]; found {
		return name
	}
	return "DType(" + strconv.Itoa(int(dtype)) + ")"
}

// IsValid returns whether dtype is one of the known, non-invalid, dtypes.
func (dtype DType) IsValid() bool {
	_, found := dtypeNames[dtype]
	return found && dtype != InvalidDType
}

// FromName converts a dtype name (or one of its aliases, case-insensitive) to a DType.
func FromName(name string) (DType, error) {
	name = strings.TrimSpace(name)
	if dtype, found := MapOfNames[name]; found && dtype != InvalidDType {
		return dtype, nil
	}
	if dtype, found := MapOfNames[strings.ToLower(name)]; found && dtype != InvalidDType {
		return dtype, nil
	}
	return InvalidDType, errors.Errorf("unknown dtype %q", name)
}

// ParseList parses a comma-separated list of dtype names, e.g.: "float32, f16,bool".
// Empty entries are parsed as InvalidDType, which marks an absent slot.
func ParseList(list string) ([]DType, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	result := make([]DType, len(parts))
	for ii, part := range parts {
		if strings.TrimSpace(part) == "" || strings.TrimSpace(part) == "-" {
			continue
		}
		dtype, err := FromName(part)
		if err != nil {
			return nil, errors.WithMessagef(err, "parsing dtype #%d of %q", ii, list)
		}
		result[ii] = dtype
	}
	return result, nil
}

var (
	float16Type  = reflect.TypeOf(float16.Float16(0))
	bfloat16Type = reflect.TypeOf(bfloat16.BFloat16(0))
)

// FromGoType returns the DType for the given "reflect.Type".
// It returns InvalidDType for unknown types.
func FromGoType(t reflect.Type) DType {
	if t == nil {
		return InvalidDType
	}
	if t == float16Type {
		return Float16
	} else if t == bfloat16Type {
		return BFloat16
	}
	switch t.Kind() {
	case reflect.Int:
		if t.Size() == 4 {
			return Int32
		}
		return Int64
	case reflect.Int64:
		return Int64
	case reflect.Int32:
		return Int32
	case reflect.Int16:
		return Int16
	case reflect.Int8:
		return Int8
	case reflect.Uint64:
		return Uint64
	case reflect.Uint32:
		return Uint32
	case reflect.Uint16:
		return Uint16
	case reflect.Uint8:
		return Uint8
	case reflect.Bool:
		return Bool
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Complex64:
		return Complex64
	case reflect.Complex128:
		return Complex128
	default:
		return InvalidDType
	}
}

// FromAny returns the DType of the value. Slices, arrays and pointers are unwrapped to their element
// type, so a sample tensor given as a Go slice maps to its element DType.
// A nil value or an unsupported type returns InvalidDType.
func FromAny(value any) DType {
	t := reflect.TypeOf(value)
	for t != nil && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array || t.Kind() == reflect.Pointer) {
		t = t.Elem()
	}
	return FromGoType(t)
}

// IEEEFloats returns the IEEE 754 float types: Float32, Float64 and Float16.
// BFloat16 is not an IEEE type, and it's often only available on some backends.
func IEEEFloats() []DType {
	return []DType{Float32, Float64, Float16}
}

// Floats returns all real float types, including BFloat16.
func Floats() []DType {
	return []DType{Float32, Float64, Float16, BFloat16}
}

// SignedInts returns the signed integer types.
func SignedInts() []DType {
	return []DType{Int8, Int16, Int32, Int64}
}

// All returns all valid dtypes, sorted by their enum value.
func All() []DType {
	all := make([]DType, 0, len(dtypeNames)-1)
	for dtype := range dtypeNames {
		if dtype != InvalidDType {
			all = append(all, dtype)
		}
	}
	slices.Sort(all)
	return all
}
