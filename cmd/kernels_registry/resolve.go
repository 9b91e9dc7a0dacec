// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/loader"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newResolveCmd(cfg *viper.Viper) *cobra.Command {
	var (
		domain, inputs, outputs string
		opset                   int
		backendNames            []string
	)
	cmd := &cobra.Command{
		Use:   "resolve <operator>",
		Short: "Resolves the kernel for one operator node, and prints where its inputs and outputs are placed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRegistry(cfg)
			if err != nil {
				return err
			}
			preferred := make([]backends.Backend, 0, len(backendNames))
			for _, name := range backendNames {
				backend, err := backends.FromName(name)
				if err != nil {
					return err
				}
				preferred = append(preferred, backend)
			}
			if len(preferred) == 0 {
				return errors.New("at least one --backend is required")
			}
			node := loader.Node{Domain: domain, OpType: args[0]}
			if node.Inputs, err = dtypes.ParseList(inputs); err != nil {
				return errors.WithMessage(err, "invalid --inputs")
			}
			if node.Outputs, err = dtypes.ParseList(outputs); err != nil {
				return errors.WithMessage(err, "invalid --outputs")
			}
			graph := &loader.Graph{
				Name:   "resolve",
				Opsets: map[string]int{domain: opset},
				Nodes:  []loader.Node{node},
			}
			plan, err := loader.New(r, preferred...).WithParallelism(0).Load(cmd.Context(), graph)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeStep(plan.Steps[0]))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&domain, "domain", kernels.OnnxDomain, "Domain of the operator, empty for the standard ONNX domain")
	flags.IntVar(&opset, "opset", 0, "Opset version the graph imports for the domain")
	flags.StringSliceVar(&backendNames, "backend", []string{"cuda", "cpu"}, "Backends to try, in order of preference")
	flags.StringVar(&inputs, "inputs", "", `Comma-separated dtypes of the inputs, "-" for absent optional inputs`)
	flags.StringVar(&outputs, "outputs", "", "Comma-separated dtypes of the outputs")
	_ = cmd.MarkFlagRequired("opset")
	return cmd
}

// describeStep renders the chosen kernel and the placement of each of its slots.
// Slots that need staging into host memory are highlighted.
func describeStep(step loader.Step) string {
	rk := step.Kernel
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(rk.Def().String()))
	sb.WriteString("\n")
	if step.Fallbacks > 0 {
		fmt.Fprintf(&sb, "(%d preferred backend(s) had no matching kernel)\n", step.Fallbacks)
	}
	if rk.Kernel() != nil {
		fmt.Fprintf(&sb, "kernel: %v\n", rk.Kernel())
	}
	types := step.Node.Types()
	placements := append(rk.InputPlacements(), rk.OutputPlacements()...)
	rows := make([][]string, 0, len(placements))
	for _, placement := range placements {
		binding, _ := rk.Def().Binding(placement.Slot)
		dtype := "-"
		if d := types.Of(placement.Slot); d != dtypes.InvalidDType {
			dtype = d.String()
		}
		rows = append(rows, []string{
			placement.Slot.String(), binding.Constraint, dtype,
			placement.MemoryType.String(), placement.Location.String(),
		})
	}
	sb.WriteString(renderTable([]string{"Slot", "Constraint", "DType", "Memory Type", "Location"}, rows,
		func(row int) bool { return rk.NeedsHostStaging(placements[row].Slot) },
		lipgloss.Right, lipgloss.Left))
	return sb.String()
}
