package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Craft executes the craft tool logic. Unless DryRun is set, a craft that
// changed anything is applied to the stored storage atomically and the
// storage's published availability is refreshed for the touched items.
func (e *Engine) Craft(ctx context.Context, req crafting.CraftRequest) (resp *crafting.CraftResponse, err error) {
	defer e.observe("craft", time.Now(), &err)

	r := e.Resolver()
	recipe, err := e.recipe(r, req.RecipeID)
	if err != nil {
		return nil, err
	}
	s := e.session(req.StorageID)
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := e.snapshot(ctx, req.StorageID)
	if err != nil {
		return nil, err
	}

	var units int
	cctx := resolver.NewContext(r.Catalog(), recipe, *snap, req.Blocked,
		resolver.WithCraftHook(func(*crafting.Recipe, crafting.ItemStack, []crafting.ItemStack) { units++ }))
	res := r.Craft(recipe, req.Quantity, cctx)

	resp = &crafting.CraftResponse{CraftResult: res, Revision: snap.Revision}
	if res.Diagnostic != "" {
		e.metrics.Mismatch.Inc()
		e.logger.Warn("craft stopped early", "recipe", recipe.ID, "storage", snap.StorageID, "diagnostic", res.Diagnostic)
	}
	if req.DryRun || res.Empty() {
		return resp, nil
	}

	rev, err := e.storages.ApplyCraft(ctx, snap.StorageID, snap.Revision, &res, r.Catalog().MaxStack)
	if err != nil {
		return nil, fmt.Errorf("applying craft: %w", err)
	}
	resp.Applied, resp.Revision = true, rev
	e.metrics.Crafted.Add(float64(res.Crafted))
	e.logger.Info("craft applied",
		"recipe", recipe.ID,
		"storage", snap.StorageID,
		"crafted", humanize.Comma(int64(res.Crafted)),
		"units", units,
		"revision", rev)

	e.refreshTouched(ctx, s, snap.StorageID, snap.Revision, rev, &res)
	return resp, nil
}

// refreshTouched republishes availability for the recipes affected by res,
// applied over base and stored as applied. Only a set published at base can
// be patched; any other published set gets a full background pass. Failures
// leave the published set stale, which the next query repairs.
func (e *Engine) refreshTouched(ctx context.Context, s *session, storageID string, base, applied uint64, res *crafting.CraftResult) {
	cur := s.refresher.Current().Revision
	if cur == 0 {
		return
	}
	snap, err := e.snapshot(ctx, storageID)
	if err != nil {
		e.logger.Warn("reloading storage after craft", "storage", storageID, "error", err)
		return
	}
	inv := resolver.InventoryFromSnapshot(*snap, nil)
	if cur != base || snap.Revision != applied {
		e.logger.Debug("published set behind craft, refreshing everything",
			"storage", storageID, "published", cur, "base", base, "revision", snap.Revision)
		s.schedule(e.bg, snap.Revision, inv)
		return
	}

	seen := make(map[crafting.ItemID]struct{})
	var items []crafting.ItemID
	for _, list := range [][]crafting.ItemStack{res.ItemsToWithdraw, res.ModuleItemsConsumed, res.ItemsProduced} {
		for _, st := range list {
			if _, ok := seen[st.Item]; !ok {
				seen[st.Item] = struct{}{}
				items = append(items, st.Item)
			}
		}
	}
	if _, err := s.refresher.ItemsChanged(ctx, base, snap.Revision, inv, items); err != nil {
		e.logger.Warn("refresh after craft", "storage", storageID, "error", err)
	}
}
