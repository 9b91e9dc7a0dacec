// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/support/sets"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newListCmd(cfg *viper.Viper) *cobra.Command {
	var backendName, opName string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the registered kernels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := newRegistry(cfg)
			if err != nil {
				return err
			}
			backend := backends.InvalidBackend
			if backendName != "" {
				backend, err = backends.FromName(backendName)
				if err != nil {
					return err
				}
			}
			var defs []*kernels.KernelDef
			for _, def := range r.Entries() {
				if backend != backends.InvalidBackend && def.Backend != backend {
					continue
				}
				if opName != "" && !strings.EqualFold(def.Name, opName) {
					continue
				}
				defs = append(defs, def)
			}
			fmt.Fprintln(cmd.OutOrStdout(), listKernels(defs))
			fmt.Fprintln(cmd.OutOrStdout(), summary(r, defs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&backendName, "backend", "b", "", "Only list kernels of this backend")
	cmd.Flags().StringVar(&opName, "op", "", "Only list kernels of this operator")
	return cmd
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
	borderStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	headerRowStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 2).Align(lipgloss.Center)
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
	highlightStyle = cellStyle.Foreground(lipgloss.Color("9")).Bold(true)
)

// renderTable renders rows under headers, with alternating faint rows. Rows for which highlight returns
// true are rendered in bold red. Alignment is given per column, the last one is used for the remaining columns.
func renderTable(headers []string, rows [][]string, highlight func(row int) bool, alignments ...lipgloss.Position) string {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			style := cellStyle.Faint(row%2 == 1)
			if highlight(row) {
				style = highlightStyle
			}
			if len(alignments) > 0 {
				style = style.Align(alignments[min(col, len(alignments)-1)])
			}
			return style
		}).
		Render()
}

// listKernels renders one row per kernel. Kernels with host memory overrides are highlighted.
func listKernels(defs []*kernels.KernelDef) string {
	rows := make([][]string, 0, len(defs))
	for _, def := range defs {
		name := def.Name
		if def.Domain != kernels.OnnxDomain {
			name = def.Domain + "::" + def.Name
		}
		constraints := make([]string, 0, len(def.Constraints))
		for _, constraint := range def.ConstraintNames() {
			constraints = append(constraints, fmt.Sprintf("%s=%s", constraint, strings.Join(dtypeNames(def, constraint), ",")))
		}
		rows = append(rows, []string{
			name, def.Versions.String(), def.Backend.String(),
			strings.Join(constraints, " "),
			formatBindings(def.Inputs), formatBindings(def.Outputs),
			strings.Join(hostMemorySlots(def), ", "),
		})
	}
	return renderTable(
		[]string{"Operator", "Versions", "Backend", "Type Constraints", "Inputs", "Outputs", "Host Memory"}, rows,
		func(row int) bool { return len(hostMemorySlots(defs[row])) > 0 },
		lipgloss.Left)
}

func dtypeNames(def *kernels.KernelDef, constraint string) []string {
	var names []string
	for _, dtype := range sets.Sorted(def.Constraints[constraint]) {
		names = append(names, dtype.String())
	}
	return names
}

// formatBindings lists the constraint of each slot, optional slots are suffixed with "?".
func formatBindings(bindings []kernels.Binding) string {
	parts := make([]string, len(bindings))
	for ii, binding := range bindings {
		parts[ii] = binding.Constraint
		if binding.Optional {
			parts[ii] += "?"
		}
	}
	return strings.Join(parts, ", ")
}

func hostMemorySlots(def *kernels.KernelDef) []string {
	var slots []string
	for ii := range def.Inputs {
		if def.PlacementFor(kernels.Input(ii)) == kernels.HostMemory {
			slots = append(slots, kernels.Input(ii).String())
		}
	}
	for ii := range def.Outputs {
		if def.PlacementFor(kernels.Output(ii)) == kernels.HostMemory {
			slots = append(slots, kernels.Output(ii).String())
		}
	}
	return slots
}

func summary(r *kernels.Registry, listed []*kernels.KernelDef) string {
	operators := make(map[kernels.Key]bool)
	for _, def := range listed {
		operators[def.Key()] = true
	}
	return fmt.Sprintf("%s of %s kernels listed, for %s operator/backend pairs (conflict policy %s)",
		humanize.Comma(int64(len(listed))), humanize.Comma(int64(r.Len())),
		humanize.Comma(int64(len(operators))), r.ConflictPolicy())
}
