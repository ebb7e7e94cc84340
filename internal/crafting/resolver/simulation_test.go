package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func TestSimulateInsufficient(t *testing.T) {
	r := woodworking(t)
	table := mustRecipe(t, r.Catalog(), "table")

	sim := r.Simulate(table, 1, counts("log", 1))
	assert.Equal(t, "table", sim.RecipeID)
	assert.Zero(t, sim.AmountCrafted)
	assert.Empty(t, sim.UsedRecipes)
	assert.Empty(t, sim.RequiredMaterials)
}

func TestSimulateChain(t *testing.T) {
	r := woodworking(t)
	table := mustRecipe(t, r.Catalog(), "table")
	inv := counts("log", 2)

	sim := r.Simulate(table, 1, inv)
	assert.Equal(t, uint32(1), sim.AmountCrafted)
	assert.Equal(t, []crafting.RecipeUsage{{RecipeID: "plank", Crafts: 2}, {RecipeID: "table", Crafts: 1}}, sim.UsedRecipes)
	assert.Equal(t, []crafting.MaterialRequirement{{Item: "log", Quantity: 2}}, sim.RequiredMaterials)
	assert.Empty(t, sim.ExcessResults)
	assert.Equal(t, uint32(2), inv.Count("log"), "simulation must not touch the inventory")
}

func TestSimulateClampsToStock(t *testing.T) {
	r := woodworking(t)
	table := mustRecipe(t, r.Catalog(), "table")

	sim := r.Simulate(table, 10, counts("log", 7))
	assert.Equal(t, uint32(10), sim.Requested)
	assert.Equal(t, uint32(3), sim.AmountCrafted)
	assert.Equal(t, []crafting.MaterialRequirement{{Item: "log", Quantity: 6}}, sim.RequiredMaterials)
}

func TestSimulatePrefersStockedIntermediates(t *testing.T) {
	r := woodworking(t)
	table := mustRecipe(t, r.Catalog(), "table")

	sim := r.Simulate(table, 1, counts("log", 5, "plank", 1))
	assert.Equal(t, uint32(1), sim.AmountCrafted)
	assert.Equal(t, []crafting.RecipeUsage{{RecipeID: "plank", Crafts: 1}, {RecipeID: "table", Crafts: 1}}, sim.UsedRecipes)
	assert.Equal(t, []crafting.MaterialRequirement{{Item: "log", Quantity: 1}, {Item: "plank", Quantity: 1}}, sim.RequiredMaterials)
}

func TestSimulateExcess(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{
		recipe("plank", stack("plank", 4), stack("log", 1)),
		recipe("table", stack("table", 1), stack("plank", 2)),
	}, nil, nil)
	r := New(c, DefaultOptions())

	sim := r.Simulate(mustRecipe(t, c, "table"), 1, counts("log", 1))
	assert.Equal(t, uint32(1), sim.AmountCrafted)
	assert.Equal(t, []crafting.ItemStack{stack("plank", 2)}, sim.ExcessResults)
}

func TestSimulateCycleTerminates(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{
		recipe("a", stack("a", 1), stack("b", 1)),
		recipe("b", stack("b", 1), stack("a", 1)),
	}, nil, nil)
	r := New(c, DefaultOptions())
	a := mustRecipe(t, c, "a")

	assert.Zero(t, r.Simulate(a, 1, counts("a", 5)).AmountCrafted)

	sim := r.Simulate(a, 3, counts("b", 2))
	assert.Equal(t, uint32(2), sim.AmountCrafted)
	assert.Equal(t, []crafting.RecipeUsage{{RecipeID: "a", Crafts: 2}}, sim.UsedRecipes)
}

func TestSimulateSharedIntermediate(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{
		recipe("stick", stack("stick", 1), stack("log", 1)),
		recipe("left", stack("left", 1), stack("stick", 1)),
		recipe("right", stack("right", 1), stack("stick", 1)),
		recipe("top", stack("top", 1), stack("left", 1), stack("right", 1)),
	}, nil, nil)
	r := New(c, DefaultOptions())

	sim := r.Simulate(mustRecipe(t, c, "top"), 1, counts("log", 2))
	assert.Equal(t, uint32(1), sim.AmountCrafted)
	assert.Equal(t, []crafting.RecipeUsage{
		{RecipeID: "stick", Crafts: 2},
		{RecipeID: "left", Crafts: 1},
		{RecipeID: "right", Crafts: 1},
		{RecipeID: "top", Crafts: 1},
	}, sim.UsedRecipes)
	assert.Len(t, sim.Steps, 5)
	assert.Equal(t, []crafting.MaterialRequirement{{Item: "log", Quantity: 2}}, sim.RequiredMaterials)
}

func TestSimulateDisabledRecursion(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{
		recipe("plank", stack("plank", 1), stack("log", 1)),
		recipe("table", stack("table", 1), stack("plank", 2)),
	}, nil, nil)
	opts := DefaultOptions()
	opts.DisableRecursion = true
	r := New(c, opts)
	table := mustRecipe(t, c, "table")

	assert.False(t, r.IsRecursive(table))
	assert.Zero(t, r.Simulate(table, 1, counts("log", 2)).AmountCrafted)
	assert.Equal(t, uint32(1), r.Simulate(table, 1, counts("plank", 2)).AmountCrafted)
}

func TestUsedRecipesFolds(t *testing.T) {
	got := usedRecipes([]crafting.RecipeUsage{
		{RecipeID: "x", Crafts: 1},
		{RecipeID: "y", Crafts: 2},
		{RecipeID: "x", Crafts: 3},
	})
	assert.Equal(t, []crafting.RecipeUsage{{RecipeID: "x", Crafts: 4}, {RecipeID: "y", Crafts: 2}}, got)
}

// overlappingGroups is Crate <- 2 oak_plank + 1 pine_plank, accepting
// [oak_plank birch_plank] and [birch_plank pine_plank]. Only oak_plank has a
// producer, yielding 10 per log. With four birch planks in stock, two crates
// starve the pine slot while three or four crates do not.
func overlappingGroups(t *testing.T) (*Resolver, *crafting.Recipe) {
	t.Helper()
	crate := recipe("crate", stack("crate", 1), stack("oak_plank", 2), stack("pine_plank", 1))
	crate.AcceptedGroups = []crafting.GroupID{"hardwood", "softwood"}
	c := mustCatalog(t, []crafting.Recipe{
		recipe("oak_plank", stack("oak_plank", 10), stack("log", 1)),
		crate,
	}, []crafting.SubstitutionGroup{
		{ID: "hardwood", Members: []crafting.ItemID{"oak_plank", "birch_plank"}},
		{ID: "softwood", Members: []crafting.ItemID{"birch_plank", "pine_plank"}},
	}, nil)
	return New(c, DefaultOptions()), mustRecipe(t, c, "crate")
}

func TestSimulateRunsNotMonotone(t *testing.T) {
	r, crate := overlappingGroups(t)
	inv := counts("birch_plank", 4, "log", 1)

	tests := []struct {
		desired uint32
		want    uint32
	}{
		{desired: 1, want: 1},
		{desired: 2, want: 1},
		{desired: 3, want: 3},
		{desired: 4, want: 4},
		{desired: 5, want: 4},
		{desired: 20, want: 4},
	}
	for _, tt := range tests {
		sim := r.Simulate(crate, tt.desired, inv)
		assert.Equal(t, tt.want, sim.AmountCrafted, "desired %d", tt.desired)
	}

	sim := r.Simulate(crate, 4, inv)
	assert.Equal(t, []crafting.RecipeUsage{{RecipeID: "oak_plank", Crafts: 1}, {RecipeID: "crate", Crafts: 4}}, sim.UsedRecipes)
	assert.Equal(t, []crafting.MaterialRequirement{{Item: "log", Quantity: 1}, {Item: "birch_plank", Quantity: 4}}, sim.RequiredMaterials)
	assert.Equal(t, []crafting.ItemStack{stack("oak_plank", 2)}, sim.ExcessResults)
}
