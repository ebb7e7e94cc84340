package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func TestNewCatalogRejectsBrokenRecipes(t *testing.T) {
	groups := []crafting.SubstitutionGroup{{ID: "wood", Members: []crafting.ItemID{"oak", "pine"}}}

	tests := []struct {
		name    string
		recipes []crafting.Recipe
		err     error
	}{
		{
			name:    "no ingredients",
			recipes: []crafting.Recipe{{ID: "a", Result: stack("a", 1)}},
			err:     ErrInvalidRecipe,
		},
		{
			name:    "zero yield",
			recipes: []crafting.Recipe{recipe("a", stack("a", 0), stack("b", 1))},
			err:     ErrInvalidRecipe,
		},
		{
			name:    "zero ingredient quantity",
			recipes: []crafting.Recipe{recipe("a", stack("a", 1), stack("b", 0))},
			err:     ErrInvalidRecipe,
		},
		{
			name: "duplicate id",
			recipes: []crafting.Recipe{
				recipe("a", stack("a", 1), stack("b", 1)),
				recipe("a", stack("c", 1), stack("b", 1)),
			},
			err: ErrInvalidRecipe,
		},
		{
			name: "unknown group",
			recipes: []crafting.Recipe{{
				ID: "a", Result: stack("a", 1), RequiredItems: []crafting.ItemStack{stack("oak", 1)},
				AcceptedGroups: []crafting.GroupID{"metal"},
			}},
			err: ErrInvalidRecipe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.recipes, groups, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewCatalogStationOnly(t *testing.T) {
	c, err := NewCatalog([]crafting.Recipe{{
		ID: "torch", Result: stack("torch", 1), StationOnly: true,
		RequiredStations: []crafting.TileID{"campfire"},
	}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestNewCatalogRejectsEmptyGroup(t *testing.T) {
	_, err := NewCatalog(nil, []crafting.SubstitutionGroup{{ID: "empty"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidGroup)
}

func TestCatalogCopiesInput(t *testing.T) {
	in := []crafting.Recipe{recipe("a", stack("a", 1), stack("b", 1))}
	c := mustCatalog(t, in, nil, nil)
	in[0].RequiredItems[0].Quantity = 50

	r := mustRecipe(t, c, "a")
	assert.Equal(t, uint32(1), r.RequiredItems[0].Quantity)
}

func TestCatalogMaxStack(t *testing.T) {
	c, err := NewCatalog(nil, nil, []crafting.ItemInfo{{ID: "sword", MaxStack: 1}}, WithDefaultMaxStack(250))
	require.NoError(t, err)

	assert.Equal(t, uint32(1), c.MaxStack("sword"))
	assert.Equal(t, uint32(250), c.MaxStack("dirt"))
}
