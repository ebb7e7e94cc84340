package refresh

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

func testResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	c, err := resolver.NewCatalog([]crafting.Recipe{
		{ID: "plank", Result: crafting.ItemStack{Item: "plank", Quantity: 1}, RequiredItems: []crafting.ItemStack{{Item: "log", Quantity: 1}}},
		{ID: "table", Result: crafting.ItemStack{Item: "table", Quantity: 1}, RequiredItems: []crafting.ItemStack{{Item: "plank", Quantity: 2}}},
		{
			ID: "bar", Result: crafting.ItemStack{Item: "bar", Quantity: 1}, RequiredItems: []crafting.ItemStack{{Item: "ore", Quantity: 1}},
			RequiredStations: []crafting.TileID{"furnace"},
		},
	}, nil, nil)
	require.NoError(t, err)
	return resolver.New(c, resolver.DefaultOptions())
}

func inventory(stations []crafting.TileID, kv map[crafting.ItemID]uint32) resolver.Inventory {
	return resolver.NewInventory(resolver.NewEnvironment(stations, nil), kv)
}

func TestRefreshFull(t *testing.T) {
	f := New(testResolver(t), nil)
	assert.Empty(t, f.Current().RecipeIDs)

	pub, err := f.Refresh(context.Background(), 1, inventory(nil, map[crafting.ItemID]uint32{"log": 2, "ore": 1}), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), pub.Revision)
	assert.Equal(t, []string{"plank", "table"}, pub.RecipeIDs)
	assert.Same(t, pub, f.Current())
}

func TestRefreshInterruptedKeepsPrevious(t *testing.T) {
	f := New(testResolver(t), nil)
	first, err := f.Refresh(context.Background(), 1, inventory(nil, map[crafting.ItemID]uint32{"log": 1}), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := f.Refresh(ctx, 2, inventory(nil, map[crafting.ItemID]uint32{"log": 10}), nil)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Same(t, first, got)
	assert.Equal(t, uint64(1), f.Current().Revision)
}

func TestStationsChangedExpandsDependents(t *testing.T) {
	r := testResolver(t)
	f := New(r, nil)
	inv := inventory(nil, map[crafting.ItemID]uint32{"log": 2, "ore": 1})
	_, err := f.Refresh(context.Background(), 1, inv, nil)
	require.NoError(t, err)

	withFurnace := inventory([]crafting.TileID{"furnace"}, map[crafting.ItemID]uint32{"log": 2, "ore": 1})
	pub, err := f.StationsChanged(context.Background(), 1, 2, withFurnace, []crafting.TileID{"furnace"})
	require.NoError(t, err)
	assert.Equal(t, []string{"plank", "table", "bar"}, pub.RecipeIDs)
}

func TestItemsChangedExpandsDependents(t *testing.T) {
	r := testResolver(t)
	f := New(r, nil)
	_, err := f.Refresh(context.Background(), 1, inventory(nil, map[crafting.ItemID]uint32{"log": 2}), nil)
	require.NoError(t, err)

	pub, err := f.ItemsChanged(context.Background(), 1, 2, inventory(nil, map[crafting.ItemID]uint32{"log": 1}), []crafting.ItemID{"log"})
	require.NoError(t, err)
	table, _ := r.Catalog().Recipe("table")
	assert.False(t, pub.Has(table), "table depends on log through plank")
	assert.Equal(t, []string{"plank"}, pub.RecipeIDs)

	pub, err = f.ItemsChanged(context.Background(), 2, 3, inventory(nil, map[crafting.ItemID]uint32{"log": 1}), []crafting.ItemID{"unused"})
	require.NoError(t, err)
	assert.Equal(t, []string{"plank"}, pub.RecipeIDs, "empty partial refresh keeps the set")
}

func TestSchedule(t *testing.T) {
	f := New(testResolver(t), nil)
	<-f.Schedule(context.Background(), 1, inventory(nil, map[crafting.ItemID]uint32{"log": 1}))
	done := f.Schedule(context.Background(), 2, inventory(nil, map[crafting.ItemID]uint32{"log": 4}))
	<-done
	f.Stop()

	assert.Equal(t, uint64(2), f.Current().Revision)
	assert.Equal(t, []string{"plank", "table"}, f.Current().RecipeIDs)
}

func TestPartialRefreshOverStaleSetRunsFull(t *testing.T) {
	f := New(testResolver(t), nil)
	_, err := f.Refresh(context.Background(), 1, inventory(nil, map[crafting.ItemID]uint32{"log": 2}), nil)
	require.NoError(t, err)

	// Revision 2 added ore and a furnace without a refresh; the change at 3
	// only touched logs.
	inv := inventory([]crafting.TileID{"furnace"}, map[crafting.ItemID]uint32{"log": 1, "ore": 1})
	pub, err := f.ItemsChanged(context.Background(), 2, 3, inv, []crafting.ItemID{"log"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), pub.Revision)
	assert.Equal(t, []string{"plank", "bar"}, pub.RecipeIDs)
	assert.Len(t, pub.Available, 3)
}

func TestRefreshDropsOlderRevision(t *testing.T) {
	f := New(testResolver(t), nil)
	newer, err := f.Refresh(context.Background(), 5, inventory(nil, map[crafting.ItemID]uint32{"log": 2}), nil)
	require.NoError(t, err)

	got, err := f.Refresh(context.Background(), 4, inventory(nil, map[crafting.ItemID]uint32{}), nil)
	require.NoError(t, err)
	assert.Same(t, newer, got)
	assert.Same(t, newer, f.Current())

	plank, _ := f.resolver.Catalog().Recipe("plank")
	got, err = f.Refresh(context.Background(), 4, inventory(nil, map[crafting.ItemID]uint32{}), []*crafting.Recipe{plank})
	require.NoError(t, err)
	assert.Same(t, newer, got)
	assert.Equal(t, []string{"plank", "table"}, f.Current().RecipeIDs)
}

func TestConcurrentRefreshKeepsNewest(t *testing.T) {
	f := New(testResolver(t), nil)
	var wg sync.WaitGroup
	for rev := uint64(1); rev <= 20; rev++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Refresh(context.Background(), rev, inventory(nil, map[crafting.ItemID]uint32{"log": uint32(rev)}), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(20), f.Current().Revision)
}
