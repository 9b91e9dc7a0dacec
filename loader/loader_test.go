// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loader

import (
	"context"
	"fmt"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	cpunn "github.com/gomlx/kernelregistry/providers/cpu/nn"
	cudann "github.com/gomlx/kernelregistry/providers/cuda/nn"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// newRegistry returns a sealed registry with the CPU and CUDA nn kernels, for the given CUDA version.
func newRegistry(t *testing.T, cudaVersion int) *kernels.Registry {
	t.Helper()
	caps := backends.DefaultCapabilities(backends.CUDA)
	caps.Version = cudaVersion
	r := kernels.NewRegistry().WithCapabilities(caps)
	require.NoError(t, cudann.RegisterKernels(r))
	require.NoError(t, cpunn.RegisterKernels(r))
	r.Seal()
	return r
}

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return provider.Tracer("test-tracer"), exporter
}

func getAttributeValue(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func dropoutNode(name string, dtype dtypes.DType) Node {
	return Node{
		Name:    name,
		OpType:  "Dropout",
		Inputs:  []dtypes.DType{dtype, dtype, dtypes.Bool},
		Outputs: []dtypes.DType{dtype, dtypes.Bool},
	}
}

func dropoutGraph(opset, numNodes int, dtype dtypes.DType) *Graph {
	g := &Graph{Name: "dropouts", Opsets: map[string]int{kernels.OnnxDomain: opset}}
	for ii := range numNodes {
		g.Nodes = append(g.Nodes, dropoutNode(fmt.Sprintf("dropout_%d", ii), dtype))
	}
	return g
}

func TestLoad(t *testing.T) {
	r := newRegistry(t, 11080)
	for _, parallelism := range []int{0, 1, 4, -1} {
		t.Run(fmt.Sprintf("parallelism=%d", parallelism), func(t *testing.T) {
			l := New(r, backends.CUDA, backends.CPU).WithParallelism(parallelism)
			graph := dropoutGraph(13, 10, dtypes.Float16)
			plan, err := l.Load(context.Background(), graph)
			require.NoError(t, err)
			require.Len(t, plan.Steps, 10)
			assert.Equal(t, "dropouts", plan.Graph)
			for ii, step := range plan.Steps {
				assert.Same(t, &graph.Nodes[ii], step.Node)
				assert.Equal(t, backends.CUDA, step.Kernel.Backend())
				assert.Equal(t, kernels.SinceVersion(13), step.Kernel.Def().Versions)
				assert.Zero(t, step.Fallbacks)
			}
			assert.Equal(t, map[backends.Backend]int{backends.CUDA: 10}, plan.CountByBackend())

			// ratio and training_mode of every node.
			staging := plan.HostStaging()
			require.Len(t, staging, 20)
			assert.Equal(t, Staging{Step: 0, Slot: kernels.Input(1)}, staging[0])
			assert.Equal(t, Staging{Step: 0, Slot: kernels.Input(2)}, staging[1])

			// All nodes are the same query.
			assert.Equal(t, 1, l.CacheLen())
		})
	}
}

func TestLoadFallback(t *testing.T) {
	// No bfloat16 kernels on CUDA 10.
	r := newRegistry(t, 10020)
	l := New(r, backends.CUDA, backends.CPU)
	graph := &Graph{
		Name:   "mixed",
		Opsets: map[string]int{kernels.OnnxDomain: 13},
		Nodes:  []Node{dropoutNode("f32", dtypes.Float32), dropoutNode("bf16", dtypes.BFloat16)},
	}
	plan, err := l.Load(context.Background(), graph)
	require.NoError(t, err)
	assert.Equal(t, backends.CUDA, plan.Steps[0].Kernel.Backend())
	assert.Equal(t, backends.CPU, plan.Steps[1].Kernel.Backend())
	assert.Equal(t, 1, plan.Steps[1].Fallbacks)
	assert.Len(t, plan.HostStaging(), 2, "only the CUDA node needs host staging")
	assert.Contains(t, plan.String(), `#1 "bf16" (Dropout) -> Dropout[13, ∞)@cpu`)
}

func TestLoadSampleValues(t *testing.T) {
	r := newRegistry(t, 11080)
	l := New(r, backends.CUDA, backends.CPU)
	graph := &Graph{
		Name:   "samples",
		Opsets: map[string]int{kernels.OnnxDomain: 14},
		Nodes: []Node{
			NodeOf("dropout", "Dropout", []float32{1, 2, 3}, float32(0.1), true),
			NodeOf("relu", "Relu", [][]int16{{-1, 1}}),
		},
	}
	assert.Equal(t, []dtypes.DType{dtypes.Float32, dtypes.Float32, dtypes.Bool}, graph.Nodes[0].Inputs)
	assert.Empty(t, graph.Nodes[0].Outputs)
	plan, err := l.Load(context.Background(), graph)
	require.NoError(t, err)
	assert.Equal(t, backends.CUDA, plan.Steps[0].Kernel.Backend())
	assert.Equal(t, backends.CPU, plan.Steps[1].Kernel.Backend(), "Relu only has CPU kernels")
	assert.Equal(t, "cpu/nn:Relu_14", fmt.Sprint(plan.Steps[1].Kernel.Kernel()))

	// Unsupported sample values make an absent input, which never matches a required one.
	graph.Nodes = []Node{NodeOf("strings", "Relu", []string{"a"})}
	_, err = l.Load(context.Background(), graph)
	var noMatch *kernels.NoMatchingKernelError
	require.True(t, errors.As(err, &noMatch))
}

func TestLoadErrors(t *testing.T) {
	r := newRegistry(t, 11080)
	l := New(r, backends.CUDA, backends.CPU)

	// No kernel on any backend.
	graph := dropoutGraph(12, 3, dtypes.Float32)
	graph.Nodes[1] = dropoutNode("ints", dtypes.Int32)
	_, err := l.Load(context.Background(), graph)
	var noMatch *kernels.NoMatchingKernelError
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, backends.CPU, noMatch.Query.Backend, "error should report the last backend tried")
	assert.Contains(t, err.Error(), `node #1 "ints" (Dropout)`)

	// Missing opset.
	graph = dropoutGraph(13, 1, dtypes.Float32)
	graph.Nodes[0].Domain = kernels.MSDomain
	_, err = l.Load(context.Background(), graph)
	require.ErrorContains(t, err, `graph imports no opset for domain "com.microsoft"`)

	// Unsealed registry: no fallback.
	unsealed := kernels.NewRegistry()
	require.NoError(t, cpunn.RegisterKernels(unsealed))
	_, err = New(unsealed, backends.CPU).Load(context.Background(), dropoutGraph(13, 2, dtypes.Float32))
	require.ErrorIs(t, err, kernels.ErrRegistryNotSealed)

	// Cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, dropoutGraph(13, 2, dtypes.Float32))
	require.ErrorIs(t, err, context.Canceled)

	err = exceptions.TryCatch[error](func() { New(r) })
	require.ErrorContains(t, err, "requires at least one backend")
}

func TestLoadCacheAndTracing(t *testing.T) {
	r := newRegistry(t, 11080)
	tracer, exporter := setupTestTracer(t)
	l := New(r, backends.CUDA).WithParallelism(0).WithTracer(tracer)

	plan1, err := l.Load(context.Background(), dropoutGraph(13, 2, dtypes.Float32))
	require.NoError(t, err)
	plan2, err := l.Load(context.Background(), dropoutGraph(14, 1, dtypes.Float32))
	require.NoError(t, err)
	assert.NotEqual(t, plan1.ID, plan2.ID)
	assert.Same(t, plan1.Steps[0].Kernel, plan1.Steps[1].Kernel, "identical queries share the resolution")
	assert.NotSame(t, plan1.Steps[0].Kernel, plan2.Steps[0].Kernel, "different opset versions are different queries")
	assert.Equal(t, 2, l.CacheLen())

	var cacheHits []bool
	var loads int
	for _, span := range exporter.GetSpans() {
		switch span.Name {
		case SpanLoad:
			loads++
			assert.Equal(t, codes.Ok, span.Status.Code)
		case SpanResolveNode:
			hit, found := getAttributeValue(span, AttrCacheHit)
			require.True(t, found)
			cacheHits = append(cacheHits, hit.AsBool())
			backend, _ := getAttributeValue(span, AttrBackend)
			assert.Equal(t, "cuda", backend.AsString())
		}
	}
	assert.Equal(t, 2, loads)
	assert.Equal(t, []bool{false, true, false}, cacheHits)

	l.ResetCache()
	assert.Zero(t, l.CacheLen())

	// Failures are recorded in the spans.
	exporter.Reset()
	_, err = l.Load(context.Background(), dropoutGraph(13, 1, dtypes.Int64))
	require.Error(t, err)
	for _, span := range exporter.GetSpans() {
		assert.Equal(t, codes.Error, span.Status.Code)
		assert.NotEmpty(t, span.Events, "span %s should have the error recorded", span.Name)
	}
	assert.Zero(t, l.CacheLen(), "failures are not memoized")
}
