// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"fmt"
	"strings"

	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/google/uuid"
)

// Plan is the result of loading a graph: the kernel chosen for each of its nodes.
// It owns the resolved kernels, and it is immutable.
type Plan struct {
	// ID uniquely identifies the plan, e.g. to correlate traces and executor logs.
	ID uuid.UUID

	// Graph is the name of the graph loaded.
	Graph string

	// Steps holds one entry per node, in the order of the graph nodes.
	Steps []Step
}

// Step is the resolution of one node.
type Step struct {
	Node   *Node
	Kernel *kernels.ResolvedKernel

	// Fallbacks is the number of preferred backends skipped because they had no matching kernel.
	Fallbacks int
}

// Staging is an input that the allocator must place in host memory, even though the backend of the
// kernel would ordinarily keep it in device memory.
type Staging struct {
	// Step is the index of the node in the plan.
	Step int
	Slot kernels.Slot
}

// HostStaging lists all the node inputs and outputs pinned to host memory on device backends.
func (p *Plan) HostStaging() []Staging {
	var staging []Staging
	for ii, step := range p.Steps {
		for _, placements := range [][]kernels.Placement{step.Kernel.InputPlacements(), step.Kernel.OutputPlacements()} {
			for _, placement := range placements {
				if step.Kernel.NeedsHostStaging(placement.Slot) {
					staging = append(staging, Staging{Step: ii, Slot: placement.Slot})
				}
			}
		}
	}
	return staging
}

// CountByBackend returns the number of nodes assigned to each backend.
func (p *Plan) CountByBackend() map[backends.Backend]int {
	counts := make(map[backends.Backend]int)
	for _, step := range p.Steps {
		counts[step.Kernel.Backend()]++
	}
	return counts
}

// String implements fmt.Stringer, with one line per step.
func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan %s for graph %q:", p.ID, p.Graph)
	for ii, step := range p.Steps {
		fmt.Fprintf(&sb, "\n\t#%d %s -> %s", ii, step.Node, step.Kernel)
	}
	return sb.String()
}
