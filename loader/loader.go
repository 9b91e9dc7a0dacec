// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package loader resolves the kernels of every node of an operator graph at load time.
//
// It is the client side of the kernels.Registry: given a Graph (its opset imports and its nodes, with
// the concrete dtypes of their inputs and outputs), Load returns a Plan with one kernels.ResolvedKernel
// per node, on the first backend (in order of preference) that has a matching kernel.
//
// Example:
//
//	l := loader.New(kernels.MustDefault(), backends.CUDA, backends.CPU)
//	plan, err := l.Load(ctx, graph)
package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/internal/workerspool"
	"github.com/gomlx/kernelregistry/kernels"
	"github.com/gomlx/kernelregistry/pkg/core/dtypes"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/klog/v2"
)

// TracerName is the name of the OpenTelemetry tracer used by default.
const TracerName = "github.com/gomlx/kernelregistry/loader"

const (
	// DefaultCacheExpiration is how long a resolution is remembered by a Loader.
	DefaultCacheExpiration = 10 * time.Minute

	// DefaultCacheCleanupInterval is how often expired resolutions are purged.
	DefaultCacheCleanupInterval = 30 * time.Minute
)

// Span and attribute names.
const (
	SpanLoad        = "loader.Load"
	SpanResolveNode = "loader.ResolveNode"

	AttrPlanID    = "loader.plan_id"
	AttrGraph     = "loader.graph"
	AttrNumNodes  = "loader.num_nodes"
	AttrNode      = "loader.node"
	AttrOperator  = "loader.operator"
	AttrBackend   = "loader.backend"
	AttrCacheHit  = "loader.cache_hit"
	AttrKernel    = "loader.kernel"
	AttrFallbacks = "loader.fallbacks"
)

// Node is one operator node of a graph.
type Node struct {
	// Name of the node, for error messages. Optional.
	Name string

	// Domain and OpType identify the operator.
	Domain, OpType string

	// Inputs and Outputs dtypes. Absent optional slots are set to dtypes.InvalidDType.
	Inputs, Outputs []dtypes.DType
}

// NodeOf returns a node of the default domain whose input dtypes are taken from sample values,
// e.g. the initializers of an imported graph. See kernels.TypesOf.
func NodeOf(name, opType string, inputs ...any) Node {
	return Node{Name: name, OpType: opType, Inputs: kernels.TypesOf(inputs...).Inputs}
}

// Types returns the concrete types of the node.
func (n *Node) Types() kernels.Types {
	return kernels.Types{Inputs: n.Inputs, Outputs: n.Outputs}
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	name := n.OpType
	if n.Domain != kernels.OnnxDomain {
		name = n.Domain + "::" + n.OpType
	}
	if n.Name == "" {
		return name
	}
	return fmt.Sprintf("%q (%s)", n.Name, name)
}

// Graph is the part of an operator graph the loader needs.
type Graph struct {
	// Name of the graph, for tracing and error messages. Optional.
	Name string

	// Opsets maps each domain used by the nodes to the opset version the graph was exported with.
	Opsets map[string]int

	// Nodes of the graph, in any order.
	Nodes []Node
}

// Loader resolves graphs against a sealed registry. It is safe for concurrent use.
type Loader struct {
	registry *kernels.Registry
	backends []backends.Backend
	pool     *workerspool.Pool
	cache    *gocache.Cache
	tracer   trace.Tracer
}

// New returns a Loader resolving kernels from registry, trying the backends in the given order
// for each node: nodes without a kernel on the first backend fall back to the next one.
//
// It panics if no backends are given.
func New(registry *kernels.Registry, preferred ...backends.Backend) *Loader {
	if len(preferred) == 0 {
		exceptions.Panicf("loader.New() requires at least one backend")
	}
	return &Loader{
		registry: registry,
		backends: preferred,
		pool:     workerspool.New(),
		cache:    gocache.New(DefaultCacheExpiration, DefaultCacheCleanupInterval),
		tracer:   otel.Tracer(TracerName),
	}
}

// WithParallelism sets the maximum number of nodes resolved concurrently.
// 0 resolves nodes sequentially, -1 makes it unlimited.
func (l *Loader) WithParallelism(maxParallelism int) *Loader {
	l.pool.SetMaxParallelism(maxParallelism)
	return l
}

// WithCacheExpiration sets for how long resolutions are remembered.
// It resets the cache.
func (l *Loader) WithCacheExpiration(expiration time.Duration) *Loader {
	l.cache = gocache.New(expiration, max(expiration, DefaultCacheCleanupInterval))
	return l
}

// WithTracer sets the tracer used to create spans. The default is the tracer named TracerName of
// the global OpenTelemetry provider.
func (l *Loader) WithTracer(tracer trace.Tracer) *Loader {
	l.tracer = tracer
	return l
}

// Backends returns the backends tried, in order of preference.
func (l *Loader) Backends() []backends.Backend {
	return l.backends
}

// Load resolves the kernels of all nodes of the graph, concurrently.
//
// It fails with the first node that can't be resolved on any of the backends: the error wraps the
// *kernels.NoMatchingKernelError of the last backend tried, and mentions the node.
func (l *Loader) Load(ctx context.Context, graph *Graph) (*Plan, error) {
	plan := &Plan{
		ID:    uuid.New(),
		Graph: graph.Name,
		Steps: make([]Step, len(graph.Nodes)),
	}
	ctx, span := l.tracer.Start(ctx, SpanLoad, trace.WithAttributes(
		attribute.String(AttrPlanID, plan.ID.String()),
		attribute.String(AttrGraph, graph.Name),
		attribute.Int(AttrNumNodes, len(graph.Nodes)),
	))
	defer span.End()

	err := l.pool.Run(ctx, len(graph.Nodes), func(ctx context.Context, index int) error {
		node := &graph.Nodes[index]
		resolved, fallbacks, err := l.resolveNode(ctx, graph, node)
		if err != nil {
			return errors.WithMessagef(err, "failed to load graph %q, node #%d %s", graph.Name, index, node)
		}
		plan.Steps[index] = Step{Node: node, Kernel: resolved, Fallbacks: fallbacks}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	klog.V(1).Infof("loaded graph %q (plan %s): %d nodes", graph.Name, plan.ID, len(plan.Steps))
	return plan, nil
}

// resolveNode tries each backend in order. It returns the resolved kernel and the number of
// backends skipped before finding it.
func (l *Loader) resolveNode(ctx context.Context, graph *Graph, node *Node) (*kernels.ResolvedKernel, int, error) {
	ctx, span := l.tracer.Start(ctx, SpanResolveNode, trace.WithAttributes(
		attribute.String(AttrNode, node.Name),
		attribute.String(AttrOperator, node.OpType),
	))
	defer span.End()
	fail := func(err error) (*kernels.ResolvedKernel, int, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	version, found := graph.Opsets[node.Domain]
	if !found {
		return fail(errors.Errorf("graph imports no opset for domain %q", node.Domain))
	}
	var lastErr error
	for ii, backend := range l.backends {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		query := kernels.Query{
			Domain:  node.Domain,
			Name:    node.OpType,
			Backend: backend,
			Version: version,
			Types:   node.Types(),
		}
		resolved, cacheHit, err := l.resolve(query)
		if err == nil {
			span.SetAttributes(
				attribute.String(AttrBackend, backend.String()),
				attribute.String(AttrKernel, resolved.Def().String()),
				attribute.Bool(AttrCacheHit, cacheHit),
				attribute.Int(AttrFallbacks, ii),
			)
			span.SetStatus(codes.Ok, "")
			return resolved, ii, nil
		}
		var noMatch *kernels.NoMatchingKernelError
		if !errors.As(err, &noMatch) {
			// Registry not sealed or inconsistent: falling back would hide the problem.
			return fail(err)
		}
		klog.V(2).Infof("node %s has no kernel for %s, trying next backend", node, backend)
		lastErr = err
	}
	return fail(lastErr)
}

// resolve returns the memoized resolution of the query, or resolves it.
// Only successful resolutions are memoized.
func (l *Loader) resolve(query kernels.Query) (resolved *kernels.ResolvedKernel, cacheHit bool, err error) {
	key := query.String()
	if value, found := l.cache.Get(key); found {
		if resolved, ok := value.(*kernels.ResolvedKernel); ok {
			return resolved, true, nil
		}
		klog.Errorf("loader cache holds a %T for %s, resolving again", value, key)
	}
	resolved, err = l.registry.ResolveQuery(query)
	if err != nil {
		return nil, false, err
	}
	l.cache.SetDefault(key, resolved)
	return resolved, false, nil
}

// CacheLen returns the number of memoized resolutions, including expired ones not yet purged.
func (l *Loader) CacheLen() int {
	return l.cache.ItemCount()
}

// ResetCache drops all memoized resolutions.
func (l *Loader) ResetCache() {
	l.cache.Flush()
}
