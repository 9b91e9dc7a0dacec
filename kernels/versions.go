// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Unbounded is used as VersionRange.Max to indicate the kernel is valid for all later opset versions,
// until superseded by another registration.
const Unbounded = math.MaxInt

// VersionRange is the inclusive interval [Min, Max] of opset versions a kernel is valid for.
type VersionRange struct {
	Min, Max int
}

// Versions returns the closed interval [minVersion, maxVersion].
func Versions(minVersion, maxVersion int) VersionRange {
	return VersionRange{Min: minVersion, Max: maxVersion}
}

// SinceVersion returns the open-ended interval [minVersion, ∞).
func SinceVersion(minVersion int) VersionRange {
	return VersionRange{Min: minVersion, Max: Unbounded}
}

// IsUnbounded returns whether the range has no upper limit.
func (r VersionRange) IsUnbounded() bool {
	return r.Max == Unbounded
}

// InRange returns whether version is within the range. Both ends are included.
func (r VersionRange) InRange(version int) bool {
	return r.Min <= version && version <= r.Max
}

// Intersects returns whether there is at least one version in both ranges.
func (r VersionRange) Intersects(other VersionRange) bool {
	return r.Min <= other.Max && other.Min <= r.Max
}

// Validate returns an error if the range is empty or starts before version 1.
func (r VersionRange) Validate() error {
	if r.Min < 1 {
		return errors.Errorf("invalid version range %s: versions start at 1", r)
	}
	if r.Min > r.Max {
		return errors.Errorf("invalid version range %s: min version is larger than max version", r)
	}
	return nil
}

// String implements fmt.Stringer, e.g.: "[12, 12]" or "[13, ∞)".
func (r VersionRange) String() string {
	if r.IsUnbounded() {
		return fmt.Sprintf("[%d, ∞)", r.Min)
	}
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}

// InRange returns whether the requested opset version falls inside the kernel's validity interval.
func InRange(def *KernelDef, version int) bool {
	return def.Versions.InRange(version)
}
