package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rsned/crafting-resolver/internal/crafting/refresh"
	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// MaxCraftable executes the max_craftable tool logic.
func (e *Engine) MaxCraftable(ctx context.Context, req crafting.MaxCraftableRequest) (resp *crafting.MaxCraftableResponse, err error) {
	defer e.observe("max_craftable", time.Now(), &err)

	r := e.Resolver()
	recipe, err := e.recipe(r, req.RecipeID)
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx, req.StorageID)
	if err != nil {
		return nil, err
	}

	e.keepFresh(snap)

	resp = &crafting.MaxCraftableResponse{RecipeID: recipe.ID, StorageID: snap.StorageID, Revision: snap.Revision}
	key := stamp(recipe, snap, 0, req.Blocked)
	if n, ok := e.maxCraftable.Get(key); ok {
		resp.Amount = n
		return resp, nil
	}

	resp.Amount = r.ComputeMaxCraftable(recipe, resolver.InventoryFromSnapshot(*snap, req.Blocked))
	e.maxCraftable.Add(key, resp.Amount)
	return resp, nil
}

// CheckAvailability executes the recipe_available tool logic.
func (e *Engine) CheckAvailability(ctx context.Context, req crafting.AvailabilityRequest) (resp *crafting.AvailabilityResponse, err error) {
	defer e.observe("recipe_available", time.Now(), &err)

	r := e.Resolver()
	recipe, err := e.recipe(r, req.RecipeID)
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx, req.StorageID)
	if err != nil {
		return nil, err
	}
	e.keepFresh(snap)

	return &crafting.AvailabilityResponse{
		RecipeID:    recipe.ID,
		Available:   r.IsAvailable(recipe, resolver.InventoryFromSnapshot(*snap, req.Blocked), req.IgnoreItem),
		PassesBlock: r.PassesReservationFilter(recipe, *snap, req.Blocked, 1),
		Recursive:   r.IsRecursive(recipe),
	}, nil
}

// Simulate executes the simulate_craft tool logic.
func (e *Engine) Simulate(ctx context.Context, req crafting.SimulateRequest) (sim *crafting.SimulationResult, err error) {
	defer e.observe("simulate_craft", time.Now(), &err)

	r := e.Resolver()
	recipe, err := e.recipe(r, req.RecipeID)
	if err != nil {
		return nil, err
	}
	snap, err := e.snapshot(ctx, req.StorageID)
	if err != nil {
		return nil, err
	}
	e.keepFresh(snap)

	quantity := req.Quantity
	if quantity == 0 {
		quantity = recipe.Result.Quantity
	}

	key := stamp(recipe, snap, quantity, req.Blocked)
	if cached, ok := e.simulations.Get(key); ok {
		return &cached, nil
	}
	res := r.Simulate(recipe, quantity, resolver.InventoryFromSnapshot(*snap, req.Blocked))
	e.simulations.Add(key, res)
	return &res, nil
}

// AvailableRecipes executes the available_recipes tool logic. Without a block
// list the published set for the storage is reused while its revision is
// current, and brought up to date under the storage's session lock
// otherwise. A block list is evaluated directly and never published.
func (e *Engine) AvailableRecipes(ctx context.Context, req crafting.AvailableRecipesRequest) (resp *crafting.AvailableRecipesResponse, err error) {
	defer e.observe("available_recipes", time.Now(), &err)

	r := e.Resolver()
	var subset []*crafting.Recipe
	for _, id := range req.RecipeIDs {
		recipe, err := e.recipe(r, id)
		if err != nil {
			return nil, err
		}
		subset = append(subset, recipe)
	}

	if len(req.Blocked) > 0 {
		snap, err := e.snapshot(ctx, req.StorageID)
		if err != nil {
			return nil, err
		}
		inv := resolver.InventoryFromSnapshot(*snap, req.Blocked)
		pub, err := refresh.New(r, e.logger).Refresh(ctx, snap.Revision, inv, subset)
		if err != nil {
			return nil, err
		}
		return &crafting.AvailableRecipesResponse{
			StorageID: snap.StorageID,
			Revision:  snap.Revision,
			RecipeIDs: only(pub.RecipeIDs, subset),
			Refreshed: len(pub.Available),
		}, nil
	}

	if req.StorageID == "" {
		return nil, errors.New("storage_id is required")
	}
	s := e.session(req.StorageID)
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := e.snapshot(ctx, req.StorageID)
	if err != nil {
		return nil, err
	}
	resp = &crafting.AvailableRecipesResponse{StorageID: snap.StorageID}
	inv := resolver.InventoryFromSnapshot(*snap, nil)

	f := s.refresher
	pub := f.Current()
	switch {
	case pub.Revision < snap.Revision:
		select {
		case <-s.schedule(e.bg, snap.Revision, inv):
		case <-ctx.Done():
			err = fmt.Errorf("%w: %w", refresh.ErrInterrupted, ctx.Err())
		}
		if err == nil {
			if pub = f.Current(); pub.Revision < snap.Revision {
				pub, err = f.Refresh(ctx, snap.Revision, inv, nil)
			}
		}
		resp.Refreshed = r.Catalog().Len()
	case pub.Revision == snap.Revision && subset != nil:
		expanded := r.Graph().Expand(subset)
		pub, err = f.Refresh(ctx, snap.Revision, inv, expanded)
		resp.Refreshed = len(expanded)
	}
	if err != nil {
		if errors.Is(err, refresh.ErrInterrupted) {
			e.metrics.Refresh.WithLabelValues("interrupted").Inc()
		}
		return nil, err
	}
	if resp.Refreshed > 0 {
		e.metrics.Refresh.WithLabelValues("ok").Inc()
	}
	e.metrics.Available.WithLabelValues(snap.StorageID).Set(float64(len(pub.RecipeIDs)))

	resp.Revision = pub.Revision
	resp.RecipeIDs = only(pub.RecipeIDs, subset)
	return resp, nil
}

// only narrows ids to the requested subset, keeping catalog order. A nil
// subset keeps everything.
func only(ids []string, subset []*crafting.Recipe) []string {
	if subset == nil {
		return ids
	}
	want := make(map[string]struct{}, len(subset))
	for _, r := range subset {
		want[r.ID] = struct{}{}
	}
	var out []string
	for _, id := range ids {
		if _, ok := want[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
