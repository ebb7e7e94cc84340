package sync

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/crafting-resolver/internal/crafting/db"
	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func newSyncer(t *testing.T) (*Syncer, *db.DB) {
	t.Helper()
	database, err := db.OpenAndInit(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewSyncer(database, nil), database
}

func TestTransformRecipeFieldVariants(t *testing.T) {
	tests := []struct {
		name string
		imp  RecipeImport
		want crafting.Recipe
	}{
		{
			name: "result object",
			imp: RecipeImport{
				ID:            "plank",
				Result:        &StackImport{Item: "plank", Quantity: 4},
				RequiredItems: []StackImport{{Item: "log", Quantity: 1}},
			},
			want: crafting.Recipe{
				ID: "plank", Result: crafting.ItemStack{Item: "plank", Quantity: 4},
				RequiredItems: []crafting.ItemStack{{Item: "log", Quantity: 1}},
			},
		},
		{
			name: "output fields and ingredient aliases",
			imp: RecipeImport{
				ID:           "bar",
				OutputItemID: "bar",
				Ingredients:  []StackImport{{ItemID: "ore", Count: 2}, {Quantity: 3}},
				Stations:     []string{"furnace"},
			},
			want: crafting.Recipe{
				ID: "bar", Result: crafting.ItemStack{Item: "bar", Quantity: 1},
				RequiredItems:    []crafting.ItemStack{{Item: "ore", Quantity: 2}},
				RequiredStations: []crafting.TileID{"furnace"},
			},
		},
		{
			name: "output object by id",
			imp: RecipeImport{
				ID:             "torch",
				Output:         &StackImport{ID: "torch", Quantity: 4},
				RequiredItems:  []StackImport{{ID: "stick", Quantity: 1}, {ID: "coal", Quantity: 1}},
				AcceptedGroups: []string{"fuel"},
			},
			want: crafting.Recipe{
				ID: "torch", Result: crafting.ItemStack{Item: "torch", Quantity: 4},
				RequiredItems:  []crafting.ItemStack{{Item: "stick", Quantity: 1}, {Item: "coal", Quantity: 1}},
				AcceptedGroups: []crafting.GroupID{"fuel"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transformRecipe(tt.imp))
		})
	}
}

func TestImportCatalog(t *testing.T) {
	s, database := newSyncer(t)
	ctx := context.Background()

	n, err := s.ImportGroups(ctx, strings.NewReader(`[{"id": "wood", "items": ["oak", "pine"]}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.ImportItems(ctx, strings.NewReader(`[{"id": "sword", "max_stack": 1}, {"id": "oak"}]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.ImportRecipes(ctx, strings.NewReader(`[
		{"id": "plank", "result": {"item": "plank", "quantity": 4}, "required_items": [{"item": "oak", "quantity": 1}], "accepted_groups": ["wood"]},
		{"id": "stick", "output_item_id": "stick", "output_quantity": 4, "ingredients": [{"item_id": "plank", "quantity": 2}]}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := database.GetSyncMetadata(ctx, "recipes_count")
	require.NoError(t, err)
	assert.Equal(t, "2", count)

	snap, err := db.LoadCatalog(ctx, database)
	require.NoError(t, err)
	c, err := resolver.NewCatalog(snap.Recipes, snap.Groups, snap.Items)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint32(1), c.MaxStack("sword"))
	assert.Equal(t, resolver.DefaultMaxStack, c.MaxStack("oak"))
	assert.Equal(t, []crafting.ItemID{"oak", "pine"}, c.GroupMembers("wood"))
}

func TestImportRecipesRejectsInvalidBatch(t *testing.T) {
	s, database := newSyncer(t)
	ctx := context.Background()

	_, err := s.ImportRecipes(ctx, strings.NewReader(`[
		{"id": "good", "result": {"item": "a"}, "required_items": [{"item": "b", "quantity": 1}]},
		{"id": "bad", "result": {"item": "c"}, "accepted_groups": ["nowhere"], "required_items": [{"item": "b", "quantity": 1}]}
	]`))
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrInvalidRecipe)

	n, err := db.NewRecipeStore(database).CountRecipes(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing from a rejected batch is written")

	_, err = s.ImportRecipes(ctx, strings.NewReader(`{not json`))
	assert.Error(t, err)
}

func TestImportStorageFromFile(t *testing.T) {
	s, database := newSyncer(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "chest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"id": "chest-1",
		"stations": ["furnace"],
		"items": [{"item": "ore", "count": 10}, {"item": "dirt", "quantity": 0}],
		"module_items": [{"item_id": "coal", "quantity": 2}]
	}`), 0o600))

	rev, err := s.ImportStorageFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)

	snap, err := db.NewStorageStore(database).LoadSnapshot(ctx, "chest-1")
	require.NoError(t, err)
	assert.Equal(t, []crafting.TileID{"furnace"}, snap.Stations)
	assert.Equal(t, []crafting.ItemStack{{Item: "ore", Quantity: 10}}, snap.Items)
	assert.Equal(t, []crafting.ItemStack{{Item: "coal", Quantity: 2}}, snap.ModuleItems)

	_, err = s.ImportStorage(ctx, strings.NewReader(`{"items": []}`))
	assert.Error(t, err)
}
