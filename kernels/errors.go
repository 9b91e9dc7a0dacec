// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrRegistrySealed is returned (wrapped in a RegistrationError) when registering into a sealed Registry.
	ErrRegistrySealed = errors.New("kernel registry is sealed, no more kernels can be registered")

	// ErrRegistryNotSealed is returned when resolving from a Registry that is still being populated.
	ErrRegistryNotSealed = errors.New("kernel registry is still being populated, call Seal before resolving kernels")

	// ErrBuilderUsed is returned (wrapped in a RegistrationError) when a Builder is finished twice.
	ErrBuilderUsed = errors.New("builder already used")
)

// RegistrationError is returned by Registry.Register for malformed or conflicting kernel definitions.
// It is meant to be fatal at startup: running with an incomplete registry would only turn into
// unexplained NoMatchingKernelError later.
type RegistrationError struct {
	// Def is the kernel being registered, it may be nil.
	Def *KernelDef

	// Err is the underlying reason, it may be a *ConflictError.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Def == nil {
		return fmt.Sprintf("failed to register kernel: %v", e.Err)
	}
	return fmt.Sprintf("failed to register kernel %s: %v", e.Def, e.Err)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// ConflictError reports that two kernels for the same operator and backend would be ambiguous for
// at least one opset version and concrete types assignment.
type ConflictError struct {
	Existing, New *KernelDef
	Policy        ConflictPolicy
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	reason := "overlapping versions and type constraints"
	if e.Policy == AnyVersionOverlap {
		reason = "overlapping versions"
	}
	return fmt.Sprintf("kernel %s conflicts with already registered kernel %s: %s", e.New, e.Existing, reason)
}

// NoMatchingKernelError is returned by Registry.Resolve when no registered kernel matches the query.
type NoMatchingKernelError struct {
	Query Query

	// Candidates are the kernels registered for the operator and backend, regardless of versions and types.
	Candidates []*KernelDef
}

// Error implements the error interface.
func (e *NoMatchingKernelError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no kernel matches %s", e.Query)
	if len(e.Candidates) == 0 {
		sb.WriteString(": no kernels registered for operator on this backend")
		return sb.String()
	}
	sb.WriteString(", registered kernels:")
	for _, def := range e.Candidates {
		sb.WriteString("\n\t")
		sb.WriteString(def.String())
	}
	return sb.String()
}

// AmbiguousKernelError is returned by Registry.Resolve when more than one kernel matches a query.
// It should never happen, since conflicting registrations are rejected, and it signals a bug.
type AmbiguousKernelError struct {
	Query      Query
	Candidates []*KernelDef
}

// Error implements the error interface.
func (e *AmbiguousKernelError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d kernels match %s, kernel registry is inconsistent:", len(e.Candidates), e.Query)
	for _, def := range e.Candidates {
		sb.WriteString("\n\t")
		sb.WriteString(def.String())
	}
	return sb.String()
}
