package resolver

import (
	"fmt"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Craft produces up to quantity of recipe's result item from ctx and returns
// the withdraw/deposit instruction set. Requests above the craftable ceiling
// are clamped; a zero ceiling or quantity returns an aborted, empty result.
// A recursive replay that cannot consume what its dry run predicted stops at
// the last committed unit and reports the mismatch in Diagnostic.
func (r *Resolver) Craft(recipe *crafting.Recipe, quantity uint32, ctx *Context) crafting.CraftResult {
	res := crafting.CraftResult{Requested: quantity, State: crafting.StateIdle}
	if recipe == nil || ctx == nil {
		res.State = crafting.StateAborted
		return res
	}
	res.RecipeID = recipe.ID
	if quantity == 0 {
		res.State = crafting.StateAborted
		return res
	}

	res.State = crafting.StateComputingCeiling
	ceiling := r.ComputeMaxCraftable(recipe, ctx.Inventory())
	target := min(quantity, ceiling)
	res.Target = target
	if target == 0 {
		r.logger.Debug("nothing craftable", "recipe", recipe.ID, "requested", quantity)
		res.State = crafting.StateAborted
		return res
	}
	if target < quantity {
		r.logger.Debug("craft amount reduced", "recipe", recipe.ID, "requested", quantity, "target", target)
	}

	var failure error
	if r.IsRecursive(recipe) {
		res.State = crafting.StateRecursiveCrafting
		res.Crafted, failure = r.craftRecursive(recipe, target, ctx)
	} else {
		res.State = crafting.StateBatchCrafting
		res.Crafted = r.craftBatch(recipe, target, ctx)
	}

	ctx.settle()
	if res.Crafted == 0 && len(ctx.touches) == 0 && failure == nil {
		res.State = crafting.StateAborted
		return res
	}

	res.State = crafting.StateCompacting
	maxStack := r.catalog.MaxStack
	res.ItemsToWithdraw = Compact(ctx.withdrawn(TierInventory), maxStack)
	res.ModuleItemsConsumed = Compact(ctx.withdrawn(TierModule), maxStack)
	res.ItemsProduced = Compact(ctx.produced(), maxStack)

	switch {
	case failure != nil:
		res.Diagnostic = failure.Error()
		res.State = crafting.StateAborted
	case res.Crafted < target:
		res.State = crafting.StateAborted
	default:
		res.State = crafting.StateDone
	}
	return res
}

// craftBatch runs the leaf path: batches first, then single runs once a batch
// finds no k ≥ 1.
func (r *Resolver) craftBatch(recipe *crafting.Recipe, target uint32, ctx *Context) uint32 {
	yield := recipe.Result.Quantity
	var crafted uint32
	for crafted < target {
		wanted := ceilDiv(target-crafted, yield)
		if k := ctx.batch(recipe, wanted); k > 0 {
			crafted = addSat(crafted, mulSat(k, yield))
			continue
		}

		r.logger.Debug("batch craft failed, crafting single results", "recipe", recipe.ID, "remaining", target-crafted)
		for crafted < target && ctx.single(recipe) {
			crafted = addSat(crafted, yield)
		}
		break
	}
	return crafted
}

// craftRecursive replays the dry run's steps one unit at a time so every
// intermediate is produced before the step that consumes it.
func (r *Resolver) craftRecursive(recipe *crafting.Recipe, target uint32, ctx *Context) (uint32, error) {
	sim := r.Simulate(recipe, target, ctx.Inventory())
	if sim.AmountCrafted == 0 {
		r.logger.Debug("crafting simulation resulted in zero crafts", "recipe", recipe.ID)
		return 0, nil
	}
	return r.replay(recipe, sim, ctx)
}

// replay executes sim against ctx. It returns the target items produced.
func (r *Resolver) replay(recipe *crafting.Recipe, sim crafting.SimulationResult, ctx *Context) (uint32, error) {
	// The raw materials must all still be in storage before the first unit runs.
	live := ctx.Inventory()
	for _, m := range sim.RequiredMaterials {
		if have := live.Count(m.Item); have < m.Quantity {
			return 0, &MismatchError{RecipeID: recipe.ID, Item: m.Item, Wanted: m.Quantity, Got: have}
		}
	}

	var crafted uint32
	for _, step := range sim.Steps {
		sub, ok := r.catalog.Recipe(step.RecipeID)
		if !ok {
			return crafted, fmt.Errorf("%w: %s", ErrRecipeNotFound, step.RecipeID)
		}
		for u := uint32(0); u < step.Crafts; u++ {
			if err := r.replayUnit(sub, ctx); err != nil {
				r.logger.Warn("recursive craft aborted", "recipe", recipe.ID, "step", sub.ID, "error", err)
				return crafted, err
			}
			if sub == recipe {
				crafted = addSat(crafted, sub.Result.Quantity)
			}
		}
	}
	return crafted, nil
}

// replayUnit consumes one run of recipe's ingredients and produces its result,
// or changes nothing.
func (r *Resolver) replayUnit(recipe *crafting.Recipe, ctx *Context) error {
	g := ctx.guard()
	defer g.release()

	var consumed []crafting.ItemStack
	for _, ing := range recipe.RequiredItems {
		got, taken, ok := ctx.reserveCandidates(recipe, r.catalog.candidates(recipe, ing.Item), ing.Quantity)
		if !ok {
			return &MismatchError{RecipeID: recipe.ID, Item: ing.Item, Wanted: ing.Quantity, Got: taken}
		}
		consumed = append(consumed, got...)
	}
	ctx.produce(recipe.Result)
	g.commit()

	if ctx.onCraft != nil {
		ctx.onCraft(recipe, recipe.Result, consumed)
	}
	return nil
}
