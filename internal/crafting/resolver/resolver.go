package resolver

import (
	"io"
	"log/slog"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// DefaultMaxCraftAmount is the absolute ceiling of a single craft request.
const DefaultMaxCraftAmount uint32 = 9999

// DefaultMaxRecursionDepth bounds the depth of a recursion tree.
const DefaultMaxRecursionDepth = 64

// Options configures a Resolver.
type Options struct {
	// MaxCraftAmount caps ComputeMaxCraftable and every craft request.
	MaxCraftAmount uint32

	// DisableRecursion treats every recipe as a leaf: ingredients are never
	// produced by other recipes.
	DisableRecursion bool

	// MaxRecursionDepth bounds recursion tree projection.
	MaxRecursionDepth int

	// Conditions is the external recipe conditions oracle. Nil means
	// FlagConditions.
	Conditions ConditionsFunc

	Logger *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxCraftAmount:    DefaultMaxCraftAmount,
		MaxRecursionDepth: DefaultMaxRecursionDepth,
	}
}

// Resolver answers availability, ceiling, simulation and craft questions for
// one catalog. It holds no per-inventory state; a Resolver may be shared, but
// a Context must only be used by one craft at a time.
type Resolver struct {
	catalog    *Catalog
	graph      *Graph
	opts       Options
	conditions ConditionsFunc
	logger     *slog.Logger
}

// New builds the recursion graph for catalog and returns a Resolver.
func New(catalog *Catalog, opts Options) *Resolver {
	if opts.MaxCraftAmount == 0 {
		opts.MaxCraftAmount = DefaultMaxCraftAmount
	}
	if opts.MaxRecursionDepth <= 0 {
		opts.MaxRecursionDepth = DefaultMaxRecursionDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	conditions := opts.Conditions
	if conditions == nil {
		conditions = FlagConditions
	}
	return &Resolver{
		catalog:    catalog,
		graph:      NewGraph(catalog, opts.MaxRecursionDepth, logger),
		opts:       opts,
		conditions: conditions,
		logger:     logger,
	}
}

// WithConditions returns a copy of the resolver that consults fn instead of
// its configured oracle. The recursion graph is shared.
func (r *Resolver) WithConditions(fn ConditionsFunc) *Resolver {
	out := *r
	if fn != nil {
		out.conditions = fn
	}
	return &out
}

// Catalog returns the resolver's catalog.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Graph returns the recursion graph.
func (r *Resolver) Graph() *Graph {
	return r.graph
}

// Conditions returns the conditions oracle in use.
func (r *Resolver) Conditions() ConditionsFunc {
	return r.conditions
}

// IsRecursive reports whether crafts of recipe may produce intermediates.
func (r *Resolver) IsRecursive(recipe *crafting.Recipe) bool {
	return !r.opts.DisableRecursion && r.graph.HasRecursion(recipe)
}

// craftLimit is the most of recipe's result a single request may produce.
func (r *Resolver) craftLimit(recipe *crafting.Recipe) uint32 {
	return min(r.opts.MaxCraftAmount, r.catalog.MaxStack(recipe.Result.Item))
}
