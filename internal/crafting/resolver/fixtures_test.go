package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func stack(item crafting.ItemID, n uint32) crafting.ItemStack {
	return crafting.ItemStack{Item: item, Quantity: n}
}

func recipe(id string, result crafting.ItemStack, ingredients ...crafting.ItemStack) crafting.Recipe {
	return crafting.Recipe{ID: id, Result: result, RequiredItems: ingredients}
}

func mustCatalog(t *testing.T, recipes []crafting.Recipe, groups []crafting.SubstitutionGroup, items []crafting.ItemInfo) *Catalog {
	t.Helper()
	c, err := NewCatalog(recipes, groups, items)
	require.NoError(t, err)
	return c
}

func mustRecipe(t *testing.T, c *Catalog, id string) *crafting.Recipe {
	t.Helper()
	r, ok := c.Recipe(id)
	require.True(t, ok, "recipe %s", id)
	return r
}

func counts(kv ...any) Inventory {
	m := make(map[crafting.ItemID]uint32)
	for i := 0; i+1 < len(kv); i += 2 {
		m[crafting.ItemID(kv[i].(string))] = uint32(kv[i+1].(int))
	}
	return NewInventory(NewEnvironment(nil, nil), m)
}

func snapshot(items ...crafting.ItemStack) crafting.StorageSnapshot {
	return crafting.StorageSnapshot{StorageID: "test", Items: items}
}

// woodworking is Table <- 2 Plank <- 1 Log each.
func woodworking(t *testing.T) *Resolver {
	t.Helper()
	c := mustCatalog(t, []crafting.Recipe{
		recipe("plank", stack("plank", 1), stack("log", 1)),
		recipe("table", stack("table", 1), stack("plank", 2)),
	}, nil, nil)
	return New(c, DefaultOptions())
}

// smelting is Bar[yield=3] <- 2 Ore.
func smelting(t *testing.T, items ...crafting.ItemInfo) *Resolver {
	t.Helper()
	c := mustCatalog(t, []crafting.Recipe{
		recipe("bar", stack("bar", 3), stack("ore", 2)),
	}, nil, items)
	return New(c, DefaultOptions())
}
