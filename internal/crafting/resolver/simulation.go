package resolver

import "github.com/rsned/crafting-resolver/pkg/crafting"

// simulation is one dry run over private copies of the stock. Draws come from
// produced intermediates first, then raw stock; only raw draws count as
// required materials.
type simulation struct {
	r   *Resolver
	env Environment

	stock    map[crafting.ItemID]uint32
	produced map[crafting.ItemID]uint32

	drawn     map[crafting.ItemID]uint32
	drawOrder []crafting.ItemID
	madeOrder []crafting.ItemID
	steps     []crafting.RecipeUsage

	usableMemo map[*crafting.Recipe]bool
}

func (r *Resolver) newSimulation(target *crafting.Recipe, inv Inventory, memo map[*crafting.Recipe]bool) *simulation {
	stock := inv.clone()
	// The target's own result type is never an ingredient of the target craft.
	delete(stock, target.Result.Item)
	return &simulation{
		r:          r,
		env:        inv.env,
		stock:      stock,
		produced:   make(map[crafting.ItemID]uint32),
		drawn:      make(map[crafting.ItemID]uint32),
		usableMemo: memo,
	}
}

func (s *simulation) usable(recipe *crafting.Recipe) bool {
	if ok, seen := s.usableMemo[recipe]; seen {
		return ok
	}
	ok := s.r.usable(recipe, s.env)
	s.usableMemo[recipe] = ok
	return ok
}

// craft performs crafts runs of n's recipe. A false return leaves the
// simulation in an undefined state; callers discard it.
func (s *simulation) craft(n *Node, crafts uint32) bool {
	if crafts == 0 {
		return true
	}
	c := s.r.catalog
	for _, ing := range n.Ingredients {
		need := mulSat(ing.Stack.Quantity, crafts)
		cands := c.candidates(n.Recipe, ing.Stack.Item)

		if have := s.available(cands); have < need && ing.Producer != nil && s.usable(ing.Producer.Recipe) {
			p := ing.Producer.Recipe
			runs := ceilDiv(need-have, p.Result.Quantity)
			if !s.craft(ing.Producer, runs) {
				return false
			}
			s.addProduced(p.Result.Item, mulSat(runs, p.Result.Quantity))
		}

		if !s.take(cands, need) {
			return false
		}
	}
	s.steps = append(s.steps, crafting.RecipeUsage{RecipeID: n.Recipe.ID, Crafts: crafts})
	return true
}

func (s *simulation) available(cands []crafting.ItemID) uint32 {
	var total uint32
	for _, item := range cands {
		total = addSat(total, addSat(s.produced[item], s.stock[item]))
	}
	return total
}

func (s *simulation) addProduced(item crafting.ItemID, n uint32) {
	if _, ok := s.produced[item]; !ok {
		s.madeOrder = append(s.madeOrder, item)
	}
	s.produced[item] = addSat(s.produced[item], n)
}

// take draws need units from cands in order, intermediates before stock.
func (s *simulation) take(cands []crafting.ItemID, need uint32) bool {
	for _, item := range cands {
		if need == 0 {
			return true
		}
		if got := min(need, s.produced[item]); got > 0 {
			s.produced[item] -= got
			need -= got
		}
		if need == 0 {
			return true
		}
		if got := min(need, s.stock[item]); got > 0 {
			s.stock[item] -= got
			need -= got
			if _, ok := s.drawn[item]; !ok {
				s.drawOrder = append(s.drawOrder, item)
			}
			s.drawn[item] += got
		}
	}
	return need == 0
}

// Simulate dry-runs desired items of recipe against inv and reports the
// largest craftable amount with the sub-recipes and raw materials it needs.
// It never mutates inv. Craft counts are whole runs, so AmountCrafted can
// exceed desired by less than one yield.
func (r *Resolver) Simulate(recipe *crafting.Recipe, desired uint32, inv Inventory) crafting.SimulationResult {
	res := crafting.SimulationResult{Requested: desired}
	if recipe == nil {
		return res
	}
	res.RecipeID = recipe.ID
	if desired == 0 {
		return res
	}

	tree := r.graph.Tree(recipe)
	if tree == nil || r.opts.DisableRecursion {
		tree = leafNode(recipe)
	}

	memo := make(map[*crafting.Recipe]bool)
	if !r.usable(recipe, inv.env) {
		return res
	}
	memo[recipe] = true

	try := func(runs uint32) (*simulation, bool) {
		s := r.newSimulation(recipe, inv, memo)
		return s, s.craft(tree, runs)
	}

	upper := ceilDiv(desired, recipe.Result.Quantity)
	best, ok := try(upper)
	runs := upper
	if !ok {
		best, runs = r.searchRuns(upper-1, try)
		if best == nil {
			r.logger.Debug("simulation found no feasible craft", "recipe", recipe.ID, "desired", desired)
			return res
		}
		r.logger.Debug("simulation clamped", "recipe", recipe.ID, "desired_runs", upper, "runs", runs)
	}

	res.AmountCrafted = mulSat(runs, recipe.Result.Quantity)
	res.Steps = best.steps
	res.UsedRecipes = usedRecipes(best.steps)
	for _, item := range best.drawOrder {
		res.RequiredMaterials = append(res.RequiredMaterials, crafting.MaterialRequirement{Item: item, Quantity: best.drawn[item]})
	}
	for _, item := range best.madeOrder {
		if n := best.produced[item]; n > 0 {
			res.ExcessResults = append(res.ExcessResults, crafting.ItemStack{Item: item, Quantity: n})
		}
	}
	return res
}

// scanRuns is the largest run count searched one count at a time.
const scanRuns = 64

// searchRuns finds the largest feasible run count in [1, hi]. The greedy
// draw order does not make feasibility monotone: a producer with a rounding
// yield can cover one ingredient at k runs while at fewer runs that
// ingredient takes stock a sibling needed. Small ranges are therefore
// scanned downwards. Above scanRuns the binary search assumes monotonicity
// and may settle on a smaller count than the best one.
func (r *Resolver) searchRuns(hi uint32, try func(uint32) (*simulation, bool)) (*simulation, uint32) {
	if hi <= scanRuns {
		for k := hi; k > 0; k-- {
			if s, ok := try(k); ok {
				return s, k
			}
		}
		return nil, 0
	}

	var best *simulation
	var runs uint32
	lo := uint32(1)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if s, ok := try(mid); ok {
			best, runs = s, mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best, runs
}

// usedRecipes folds craft steps into one entry per recipe at its first
// position. Steps are appended after their producers, so the order is
// leaf-to-root with the target last.
func usedRecipes(steps []crafting.RecipeUsage) []crafting.RecipeUsage {
	index := make(map[string]int, len(steps))
	var out []crafting.RecipeUsage
	for _, st := range steps {
		if i, ok := index[st.RecipeID]; ok {
			out[i].Crafts = addSat(out[i].Crafts, st.Crafts)
			continue
		}
		index[st.RecipeID] = len(out)
		out = append(out, st)
	}
	return out
}

func leafNode(recipe *crafting.Recipe) *Node {
	n := &Node{Recipe: recipe, Ingredients: make([]Ingredient, len(recipe.RequiredItems))}
	for i, st := range recipe.RequiredItems {
		n.Ingredients[i].Stack = st
	}
	return n
}
