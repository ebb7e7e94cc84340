package resolver

import "github.com/rsned/crafting-resolver/pkg/crafting"

// staticRuns is the most runs of recipe the context's stock could cover if
// no ingredient competed with another.
func (c *Context) staticRuns(recipe *crafting.Recipe) uint32 {
	runs := uint32(maxCount)
	for _, ing := range recipe.RequiredItems {
		var have uint32
		for t := TierResults; t < tierCount; t++ {
			for _, s := range c.tiers[t] {
				if s.Quantity > 0 && c.catalog.Matches(recipe, s.Item, ing.Item) {
					have = addSat(have, s.Quantity)
				}
			}
		}
		runs = min(runs, have/ing.Quantity)
	}
	return runs
}

// batch crafts the largest k ≤ wanted runs of a leaf recipe in one
// consumption pass. It returns the runs crafted, which is zero when no k ≥ 1
// fits and nothing was consumed.
func (c *Context) batch(recipe *crafting.Recipe, wanted uint32) uint32 {
	for k := min(wanted, c.staticRuns(recipe)); k > 0; k-- {
		if units, ok := c.tryRuns(recipe, k); ok {
			c.emit(recipe, k, units)
			return k
		}
	}
	return 0
}

// single crafts one run of recipe, consuming each ingredient once.
func (c *Context) single(recipe *crafting.Recipe) bool {
	units, ok := c.tryRuns(recipe, 1)
	if ok {
		c.emit(recipe, 1, units)
	}
	return ok
}

// tryRuns reserves k runs of every ingredient, or nothing. On success it
// returns the consumed stacks split per run.
func (c *Context) tryRuns(recipe *crafting.Recipe, k uint32) ([][]crafting.ItemStack, bool) {
	g := c.guard()
	defer g.release()

	units := make([][]crafting.ItemStack, k)
	for _, ing := range recipe.RequiredItems {
		consumed, ok := c.Reserve(recipe, ing.Item, mulSat(ing.Quantity, k), true)
		if !ok {
			return nil, false
		}
		for u, part := range splitRuns(consumed, ing.Quantity, k) {
			units[u] = append(units[u], part...)
		}
	}
	g.commit()
	return units, true
}

// emit adds k result stacks and fires the craft hook per run.
func (c *Context) emit(recipe *crafting.Recipe, k uint32, units [][]crafting.ItemStack) {
	for u := uint32(0); u < k; u++ {
		c.produce(recipe.Result)
		if c.onCraft != nil {
			c.onCraft(recipe, recipe.Result, units[u])
		}
	}
}

// splitRuns cuts consumed, which holds k*per items, into k slices of per
// items each, preserving order.
func splitRuns(consumed []crafting.ItemStack, per, k uint32) [][]crafting.ItemStack {
	out := make([][]crafting.ItemStack, k)
	u, room := uint32(0), per
	for _, s := range consumed {
		left := s.Quantity
		for left > 0 && u < k {
			n := min(left, room)
			out[u] = append(out[u], crafting.ItemStack{Item: s.Item, Quantity: n, Variant: s.Variant})
			left -= n
			room -= n
			if room == 0 {
				u++
				room = per
			}
		}
	}
	return out
}
