// Package refresh maintains the published set of available recipes for one
// storage. A refresh evaluates against a snapshot of the environment and
// only replaces the published set once the whole pass finished.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// ErrInterrupted is returned when a refresh was cancelled before it finished.
var ErrInterrupted = errors.New("refresh interrupted")

// Published is one completed availability pass.
type Published struct {
	Revision  uint64
	Available map[*crafting.Recipe]bool
	RecipeIDs []string
}

// Has reports whether recipe was available in this pass.
func (p *Published) Has(recipe *crafting.Recipe) bool {
	return p != nil && p.Available[recipe]
}

// Refresher recomputes recipe availability for a storage. Readers always see
// the last fully completed pass.
type Refresher struct {
	resolver *resolver.Resolver
	logger   *slog.Logger

	current atomic.Pointer[Published]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Refresher with an empty published set.
func New(r *resolver.Resolver, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Refresher{resolver: r, logger: logger}
	f.current.Store(&Published{Available: map[*crafting.Recipe]bool{}})
	return f
}

// Current returns the last published pass.
func (f *Refresher) Current() *Published {
	return f.current.Load()
}

// Refresh evaluates recipes against inv and merges the result into the
// published set under revision. A nil recipes slice means the whole catalog.
// A partial pass only merges into a set published at the same revision;
// over any other set the whole catalog is evaluated instead. A pass older
// than the published set is dropped and the published set returned. On
// cancellation the previously published set is kept.
func (f *Refresher) Refresh(ctx context.Context, revision uint64, inv resolver.Inventory, recipes []*crafting.Recipe) (*Published, error) {
	return f.refresh(ctx, revision, revision, inv, recipes)
}

// refresh is Refresh for a change relative to base: a partial pass may also
// merge into a set published at base.
func (f *Refresher) refresh(ctx context.Context, base, revision uint64, inv resolver.Inventory, recipes []*crafting.Recipe) (*Published, error) {
	full := recipes == nil
	if !full && !mergeable(f.Current(), base, revision) {
		f.logger.Debug("partial refresh over a stale set, refreshing everything", "revision", revision, "published", f.Current().Revision)
		full = true
	}
	if full {
		recipes = f.resolver.Catalog().Recipes()
	}

	r := f.resolver.WithConditions(resolver.SnapshotConditions(f.resolver.Conditions(), inv.Environment()))
	results := make(map[*crafting.Recipe]bool, len(recipes))
	for _, recipe := range recipes {
		if err := ctx.Err(); err != nil {
			f.logger.Debug("refresh interrupted", "revision", revision, "checked", len(results), "total", len(recipes))
			return f.Current(), fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		results[recipe] = r.IsAvailable(recipe, inv, recipe.Result.Item)
	}

	for {
		prev := f.Current()
		if prev.Revision > revision {
			f.logger.Debug("refresh superseded", "revision", revision, "published", prev.Revision)
			return prev, nil
		}
		if !full && !mergeable(prev, base, revision) {
			// Another pass moved the set while this one was evaluating.
			return f.refresh(ctx, revision, revision, inv, nil)
		}

		next := &Published{Revision: revision, Available: make(map[*crafting.Recipe]bool, len(prev.Available)+len(results))}
		if !full {
			for recipe, ok := range prev.Available {
				next.Available[recipe] = ok
			}
		}
		for recipe, ok := range results {
			next.Available[recipe] = ok
		}
		for _, recipe := range f.resolver.Catalog().Recipes() {
			if next.Available[recipe] {
				next.RecipeIDs = append(next.RecipeIDs, recipe.ID)
			}
		}

		if f.current.CompareAndSwap(prev, next) {
			f.logger.Debug("refresh published", "revision", revision, "checked", len(results), "available", len(next.RecipeIDs))
			return next, nil
		}
	}
}

func mergeable(prev *Published, base, revision uint64) bool {
	return prev.Revision == base || prev.Revision == revision
}

// ItemsChanged refreshes, at revision, the recipes consuming any of items
// plus everything whose recursion tree contains them. base is the revision
// the change was made against.
func (f *Refresher) ItemsChanged(ctx context.Context, base, revision uint64, inv resolver.Inventory, items []crafting.ItemID) (*Published, error) {
	g := f.resolver.Graph()
	var direct []*crafting.Recipe
	for _, item := range items {
		direct = append(direct, g.RecipesUsingItem(item)...)
	}
	return f.refresh(ctx, base, revision, inv, nonNil(g.Expand(direct)))
}

// StationsChanged refreshes the recipes requiring any of stations plus their
// dependents. base is the revision the change was made against.
func (f *Refresher) StationsChanged(ctx context.Context, base, revision uint64, inv resolver.Inventory, stations []crafting.TileID) (*Published, error) {
	g := f.resolver.Graph()
	var direct []*crafting.Recipe
	for _, t := range stations {
		direct = append(direct, g.RecipesUsingStation(t)...)
	}
	return f.refresh(ctx, base, revision, inv, nonNil(g.Expand(direct)))
}

// nonNil keeps an empty partial refresh from being read as a full one.
func nonNil(recipes []*crafting.Recipe) []*crafting.Recipe {
	if recipes == nil {
		return []*crafting.Recipe{}
	}
	return recipes
}

// Schedule starts a full refresh in the background, cancelling the one in
// flight. The returned channel is closed when the new pass ends.
func (f *Refresher) Schedule(ctx context.Context, revision uint64, inv resolver.Inventory) <-chan struct{} {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	prevDone := f.done
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.cancel, f.done = cancel, done
	f.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		if prevDone != nil {
			<-prevDone
		}
		if _, err := f.Refresh(ctx, revision, inv, nil); err != nil && !errors.Is(err, ErrInterrupted) {
			f.logger.Warn("background refresh failed", "revision", revision, "error", err)
		}
	}()
	return done
}

// Stop cancels any scheduled refresh and waits for it to end.
func (f *Refresher) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
