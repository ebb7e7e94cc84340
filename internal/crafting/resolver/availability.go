package resolver

import "github.com/rsned/crafting-resolver/pkg/crafting"

// ConditionsFunc is the recipe conditions oracle. It must not mutate the
// recipe or depend on anything but its arguments.
type ConditionsFunc func(recipe *crafting.Recipe, env Environment) bool

// FlagConditions requires every recipe condition to be set as an
// environment flag.
func FlagConditions(recipe *crafting.Recipe, env Environment) bool {
	for _, c := range recipe.Conditions {
		if !env.HasFlag(c) {
			return false
		}
	}
	return true
}

// SnapshotConditions memoizes fn for one environment so a catalog-wide pass
// evaluates each recipe's conditions exactly once. The returned func ignores
// its env argument and is not safe for concurrent use.
func SnapshotConditions(fn ConditionsFunc, env Environment) ConditionsFunc {
	memo := make(map[*crafting.Recipe]bool)
	return func(recipe *crafting.Recipe, _ Environment) bool {
		if met, ok := memo[recipe]; ok {
			return met
		}
		met := fn(recipe, env)
		memo[recipe] = met
		return met
	}
}

// usable reports whether recipe's stations are reachable and its conditions
// hold in env.
func (r *Resolver) usable(recipe *crafting.Recipe, env Environment) bool {
	for _, t := range recipe.RequiredStations {
		if !env.HasStation(t) {
			return false
		}
	}
	return r.conditions(recipe, env)
}

// IsAvailable reports whether at least one craft of recipe is possible from
// inv. Stock of the recipe's own result type never counts; when ignore is
// set that item type is left out as well.
func (r *Resolver) IsAvailable(recipe *crafting.Recipe, inv Inventory, ignore crafting.ItemID) bool {
	if recipe == nil {
		return false
	}
	for _, t := range recipe.RequiredStations {
		if !inv.env.HasStation(t) {
			return false
		}
	}
	inv = inv.Without(recipe.Result.Item).Without(ignore)

	if r.IsRecursive(recipe) {
		return r.Simulate(recipe, recipe.Result.Quantity, inv).AmountCrafted > 0
	}

	for _, ing := range recipe.RequiredItems {
		if inv.matchingCount(r.catalog, recipe, ing.Item) < ing.Quantity {
			return false
		}
	}
	return r.conditions(recipe, inv.env)
}

// ComputeMaxCraftable returns how many of recipe's result items inv can
// produce, counting intermediates when the recipe is recursive. The value is
// capped by the result's max stack and the configured craft ceiling.
func (r *Resolver) ComputeMaxCraftable(recipe *crafting.Recipe, inv Inventory) uint32 {
	if recipe == nil || !r.usable(recipe, inv.env) {
		return 0
	}
	limit := r.craftLimit(recipe)

	if r.IsRecursive(recipe) {
		return min(limit, r.Simulate(recipe, limit, inv).AmountCrafted)
	}

	inv = inv.Without(recipe.Result.Item)
	crafts := uint32(maxCount)
	for _, ing := range recipe.RequiredItems {
		crafts = min(crafts, inv.matchingCount(r.catalog, recipe, ing.Item)/ing.Quantity)
	}
	return min(limit, mulSat(crafts, recipe.Result.Quantity))
}

// PassesReservationFilter reports whether recipe can still be crafted once the
// excluded stacks are taken out of consideration. Leaf recipes need one
// craft's worth of ingredients; recursive recipes need the raw materials a
// simulation of quantity would draw.
func (r *Resolver) PassesReservationFilter(recipe *crafting.Recipe, snap crafting.StorageSnapshot, excluded []crafting.StackKey, quantity uint32) bool {
	if recipe == nil {
		return false
	}
	unblocked := InventoryFromSnapshot(snap, excluded).Without(recipe.Result.Item)

	if r.IsRecursive(recipe) {
		sim := r.Simulate(recipe, max(quantity, 1), InventoryFromSnapshot(snap, nil))
		for _, m := range sim.RequiredMaterials {
			if unblocked.Count(m.Item) < m.Quantity {
				return false
			}
		}
		return true
	}

	for _, ing := range recipe.RequiredItems {
		if unblocked.matchingCount(r.catalog, recipe, ing.Item) < ing.Quantity {
			return false
		}
	}
	return true
}
