package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func maxStack(limit uint32) func(crafting.ItemID) uint32 {
	return func(crafting.ItemID) uint32 { return limit }
}

func seedStorage(t *testing.T, store *StorageStore) uint64 {
	t.Helper()
	rev, err := store.ReplaceStorage(context.Background(), crafting.StorageSnapshot{
		StorageID: "chest-1",
		Name:      "Chest",
		Stations:  []crafting.TileID{"furnace", "anvil"},
		Flags:     []string{"raining"},
		Items: []crafting.ItemStack{
			{Item: "ore", Quantity: 6},
			{Item: "bar", Quantity: 8},
			{Item: "ore", Quantity: 5},
			{Item: "dirt", Quantity: 0},
		},
		ModuleItems: []crafting.ItemStack{{Item: "coal", Quantity: 3}},
	})
	require.NoError(t, err)
	return rev
}

func TestReplaceAndLoadSnapshot(t *testing.T) {
	store := NewStorageStore(openTestDB(t))
	ctx := context.Background()

	rev := seedStorage(t, store)
	assert.Equal(t, uint64(1), rev)

	snap, err := store.LoadSnapshot(ctx, "chest-1")
	require.NoError(t, err)
	assert.Equal(t, "Chest", snap.Name)
	assert.Equal(t, uint64(1), snap.Revision)
	assert.Equal(t, []crafting.TileID{"anvil", "furnace"}, snap.Stations)
	assert.Equal(t, []string{"raining"}, snap.Flags)
	assert.Equal(t, []crafting.ItemStack{{Item: "ore", Quantity: 6}, {Item: "bar", Quantity: 8}, {Item: "ore", Quantity: 5}}, snap.Items)
	assert.Equal(t, []crafting.ItemStack{{Item: "coal", Quantity: 3}}, snap.ModuleItems)

	assert.Equal(t, uint64(2), seedStorage(t, store))

	list, err := store.ListStorages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StorageInfo{{ID: "chest-1", Name: "Chest", Revision: 2, Stacks: 4}}, list)

	_, err = store.LoadSnapshot(ctx, "nope")
	assert.ErrorIs(t, err, ErrStorageNotFound)
}

func TestApplyCraft(t *testing.T) {
	store := NewStorageStore(openTestDB(t))
	ctx := context.Background()
	rev := seedStorage(t, store)

	res := &crafting.CraftResult{
		ItemsToWithdraw:     []crafting.ItemStack{{Item: "ore", Quantity: 8}},
		ModuleItemsConsumed: []crafting.ItemStack{{Item: "coal", Quantity: 3}},
		ItemsProduced:       []crafting.ItemStack{{Item: "bar", Quantity: 4}},
	}
	next, err := store.ApplyCraft(ctx, "chest-1", rev, res, maxStack(10))
	require.NoError(t, err)
	assert.Equal(t, rev+1, next)

	snap, err := store.LoadSnapshot(ctx, "chest-1")
	require.NoError(t, err)
	assert.Equal(t, next, snap.Revision)
	assert.Equal(t, []crafting.ItemStack{
		{Item: "bar", Quantity: 10},
		{Item: "ore", Quantity: 3},
		{Item: "bar", Quantity: 2},
	}, snap.Items)
	assert.Empty(t, snap.ModuleItems)
}

func TestApplyCraftRejects(t *testing.T) {
	store := NewStorageStore(openTestDB(t))
	ctx := context.Background()
	rev := seedStorage(t, store)

	t.Run("stale revision", func(t *testing.T) {
		_, err := store.ApplyCraft(ctx, "chest-1", rev-1, &crafting.CraftResult{}, maxStack(10))
		assert.ErrorIs(t, err, ErrRevisionConflict)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		res := &crafting.CraftResult{
			ItemsToWithdraw: []crafting.ItemStack{{Item: "ore", Quantity: 2}, {Item: "gold", Quantity: 1}},
			ItemsProduced:   []crafting.ItemStack{{Item: "bar", Quantity: 1}},
		}
		_, err := store.ApplyCraft(ctx, "chest-1", rev, res, maxStack(10))
		assert.ErrorIs(t, err, ErrInsufficientStock)
	})

	t.Run("unknown storage", func(t *testing.T) {
		_, err := store.ApplyCraft(ctx, "chest-9", 1, &crafting.CraftResult{}, maxStack(10))
		assert.ErrorIs(t, err, ErrStorageNotFound)
	})

	snap, err := store.LoadSnapshot(ctx, "chest-1")
	require.NoError(t, err)
	assert.Equal(t, rev, snap.Revision)
	assert.Equal(t, uint32(6), snap.Items[0].Quantity)

	require.NoError(t, store.DeleteStorage(ctx, "chest-1"))
	assert.ErrorIs(t, store.DeleteStorage(ctx, "chest-1"), ErrStorageNotFound)
}

func TestDeposit(t *testing.T) {
	stacks := []crafting.ItemStack{
		{Item: "bar", Quantity: 9},
		{Item: "bar", Quantity: 4, Variant: "gold"},
	}
	got := deposit(stacks, crafting.ItemStack{Item: "bar", Quantity: 25}, 10)
	assert.Equal(t, []crafting.ItemStack{
		{Item: "bar", Quantity: 10},
		{Item: "bar", Quantity: 4, Variant: "gold"},
		{Item: "bar", Quantity: 10},
		{Item: "bar", Quantity: 10},
		{Item: "bar", Quantity: 4},
	}, got)
}
