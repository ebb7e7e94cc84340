package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func TestIsAvailableStations(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{{
		ID: "bar", Result: stack("bar", 1), RequiredItems: []crafting.ItemStack{stack("ore", 1)},
		RequiredStations: []crafting.TileID{"furnace"},
	}}, nil, nil)
	r := New(c, DefaultOptions())
	bar := mustRecipe(t, c, "bar")
	ore := map[crafting.ItemID]uint32{"ore": 1}

	assert.False(t, r.IsAvailable(bar, NewInventory(NewEnvironment(nil, nil), ore), ""))
	assert.True(t, r.IsAvailable(bar, NewInventory(NewEnvironment([]crafting.TileID{"furnace"}, nil), ore), ""))
	assert.Zero(t, r.ComputeMaxCraftable(bar, NewInventory(NewEnvironment(nil, nil), ore)))
}

func TestIsAvailableSubstitution(t *testing.T) {
	c := woodCatalog(t)
	r := New(c, DefaultOptions())
	chair := mustRecipe(t, c, "chair")
	door := mustRecipe(t, c, "oak_door")

	inv := counts("birch", 6)
	assert.True(t, r.IsAvailable(chair, inv, ""), "birch stands in for oak")
	assert.False(t, r.IsAvailable(door, inv, ""), "door accepts no substitutes")

	mixed := counts("oak", 2, "pine", 2)
	assert.True(t, r.IsAvailable(chair, mixed, ""), "group members pool together")
	assert.Equal(t, uint32(1), r.ComputeMaxCraftable(chair, mixed))
}

func TestIsAvailableIgnore(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{
		recipe("compress", stack("dirt_block", 1), stack("dirt", 9)),
	}, nil, nil)
	r := New(c, DefaultOptions())
	compress := mustRecipe(t, c, "compress")

	inv := counts("dirt", 9)
	assert.True(t, r.IsAvailable(compress, inv, ""))
	assert.False(t, r.IsAvailable(compress, inv, "dirt"))
	assert.Equal(t, uint32(9), inv.Count("dirt"), "ignore must not touch the inventory")
}

func TestIsAvailableConditions(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{{
		ID: "mud", Result: stack("mud", 1), RequiredItems: []crafting.ItemStack{stack("dirt", 1)},
		Conditions: []string{"raining"},
	}}, nil, nil)
	r := New(c, DefaultOptions())
	mud := mustRecipe(t, c, "mud")
	dirt := map[crafting.ItemID]uint32{"dirt": 1}

	assert.False(t, r.IsAvailable(mud, NewInventory(NewEnvironment(nil, nil), dirt), ""))
	assert.True(t, r.IsAvailable(mud, NewInventory(NewEnvironment(nil, []string{"raining"}), dirt), ""))

	always := r.WithConditions(func(*crafting.Recipe, Environment) bool { return true })
	assert.True(t, always.IsAvailable(mud, NewInventory(NewEnvironment(nil, nil), dirt), ""))
	assert.False(t, r.IsAvailable(mud, NewInventory(NewEnvironment(nil, nil), dirt), ""), "original resolver keeps its oracle")
}

func TestSnapshotConditionsEvaluatesOnce(t *testing.T) {
	r := smelting(t)
	bar := mustRecipe(t, r.Catalog(), "bar")

	calls := 0
	oracle := func(*crafting.Recipe, Environment) bool {
		calls++
		return true
	}
	snap := SnapshotConditions(oracle, NewEnvironment(nil, nil))
	pass := r.WithConditions(snap)

	inv := counts("ore", 10)
	for i := 0; i < 3; i++ {
		assert.True(t, pass.IsAvailable(bar, inv, ""))
		assert.Equal(t, uint32(15), pass.ComputeMaxCraftable(bar, inv))
	}
	assert.Equal(t, 1, calls)
}

func TestComputeMaxCraftable(t *testing.T) {
	r := smelting(t)
	bar := mustRecipe(t, r.Catalog(), "bar")
	inv := counts("ore", 10)

	assert.Equal(t, uint32(15), r.ComputeMaxCraftable(bar, inv))
	assert.Equal(t, uint32(15), r.ComputeMaxCraftable(bar, inv), "repeated calls agree")
	assert.Zero(t, r.ComputeMaxCraftable(bar, counts("ore", 1)))
	assert.Equal(t, uint32(10), inv.Count("ore"))
}

func TestComputeMaxCraftableCaps(t *testing.T) {
	t.Run("max stack", func(t *testing.T) {
		r := smelting(t, crafting.ItemInfo{ID: "bar", MaxStack: 8})
		bar := mustRecipe(t, r.Catalog(), "bar")
		assert.Equal(t, uint32(8), r.ComputeMaxCraftable(bar, counts("ore", 10)))
	})

	t.Run("craft amount", func(t *testing.T) {
		c := mustCatalog(t, []crafting.Recipe{recipe("bar", stack("bar", 3), stack("ore", 2))}, nil, nil)
		opts := DefaultOptions()
		opts.MaxCraftAmount = 6
		r := New(c, opts)
		assert.Equal(t, uint32(6), r.ComputeMaxCraftable(mustRecipe(t, c, "bar"), counts("ore", 100)))
	})

	t.Run("own result excluded", func(t *testing.T) {
		c := mustCatalog(t, []crafting.Recipe{recipe("dye", stack("dye", 2), stack("dye", 1))}, nil, nil)
		r := New(c, DefaultOptions())
		assert.Zero(t, r.ComputeMaxCraftable(mustRecipe(t, c, "dye"), counts("dye", 50)))
	})
}

func TestComputeMaxCraftableRecursive(t *testing.T) {
	r := woodworking(t)
	table := mustRecipe(t, r.Catalog(), "table")

	assert.Equal(t, uint32(3), r.ComputeMaxCraftable(table, counts("log", 7)))
	assert.Equal(t, uint32(4), r.ComputeMaxCraftable(table, counts("log", 5, "plank", 3)))
	assert.True(t, r.IsAvailable(table, counts("log", 2), ""))
	assert.False(t, r.IsAvailable(table, counts("log", 1), ""))
}

func TestPassesReservationFilter(t *testing.T) {
	t.Run("leaf", func(t *testing.T) {
		r := smelting(t)
		bar := mustRecipe(t, r.Catalog(), "bar")
		snap := snapshot(
			crafting.ItemStack{Item: "ore", Quantity: 1, Variant: "red"},
			crafting.ItemStack{Item: "ore", Quantity: 1, Variant: "blue"},
		)

		assert.True(t, r.PassesReservationFilter(bar, snap, nil, 1))
		assert.False(t, r.PassesReservationFilter(bar, snap, []crafting.StackKey{{Item: "ore", Variant: "red"}}, 1))
	})

	t.Run("recursive", func(t *testing.T) {
		r := woodworking(t)
		table := mustRecipe(t, r.Catalog(), "table")
		snap := snapshot(
			crafting.ItemStack{Item: "log", Quantity: 2, Variant: "oak"},
			crafting.ItemStack{Item: "log", Quantity: 2, Variant: "birch"},
		)

		assert.True(t, r.PassesReservationFilter(table, snap, []crafting.StackKey{{Item: "log", Variant: "oak"}}, 1))
		assert.False(t, r.PassesReservationFilter(table, snap, []crafting.StackKey{{Item: "log", Variant: "oak"}}, 2))
		assert.True(t, r.PassesReservationFilter(table, snap, nil, 2))
	})
}

func TestIsAvailableSkipsOwnResult(t *testing.T) {
	c := mustCatalog(t, []crafting.Recipe{
		recipe("upgrade", stack("sword", 1), stack("sword", 1), stack("gem", 1)),
	}, nil, nil)
	r := New(c, DefaultOptions())
	upgrade := mustRecipe(t, c, "upgrade")
	snap := snapshot(stack("sword", 1), stack("gem", 1))
	inv := InventoryFromSnapshot(snap, nil)

	assert.False(t, r.IsAvailable(upgrade, inv, ""))
	assert.False(t, r.IsAvailable(upgrade, inv, "gem"))
	assert.Zero(t, r.ComputeMaxCraftable(upgrade, inv))
	assert.False(t, r.PassesReservationFilter(upgrade, snap, nil, 1))

	res := r.Craft(upgrade, 1, NewContext(c, upgrade, snap, nil))
	assert.Equal(t, crafting.StateAborted, res.State)
	assert.Zero(t, res.Crafted)
}
