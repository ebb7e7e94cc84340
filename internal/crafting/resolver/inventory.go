package resolver

import (
	"sort"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Environment is the immutable set of crafting stations and environment
// flags a check runs against.
type Environment struct {
	stations map[crafting.TileID]struct{}
	flags    map[string]struct{}
}

// NewEnvironment builds an Environment from station and flag lists.
func NewEnvironment(stations []crafting.TileID, flags []string) Environment {
	env := Environment{
		stations: make(map[crafting.TileID]struct{}, len(stations)),
		flags:    make(map[string]struct{}, len(flags)),
	}
	for _, s := range stations {
		env.stations[s] = struct{}{}
	}
	for _, f := range flags {
		env.flags[f] = struct{}{}
	}
	return env
}

// HasStation reports whether the station is reachable.
func (e Environment) HasStation(t crafting.TileID) bool {
	_, ok := e.stations[t]
	return ok
}

// HasFlag reports whether the environment flag is set.
func (e Environment) HasFlag(f string) bool {
	_, ok := e.flags[f]
	return ok
}

// Stations returns the reachable stations, sorted.
func (e Environment) Stations() []crafting.TileID {
	out := make([]crafting.TileID, 0, len(e.stations))
	for s := range e.stations {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Inventory is a read-only count view of the stock available to a
// resolution. Operations that model consumption work on clones.
type Inventory struct {
	env    Environment
	counts map[crafting.ItemID]uint32
}

// NewInventory copies counts into a new Inventory.
func NewInventory(env Environment, counts map[crafting.ItemID]uint32) Inventory {
	inv := Inventory{env: env, counts: make(map[crafting.ItemID]uint32, len(counts))}
	for item, n := range counts {
		if n > 0 {
			inv.counts[item] = n
		}
	}
	return inv
}

// InventoryFromSnapshot sums a storage snapshot's primary and module stacks
// by item type, skipping blocked stacks.
func InventoryFromSnapshot(snap crafting.StorageSnapshot, blocked []crafting.StackKey) Inventory {
	skip := blockSet(blocked)
	counts := make(map[crafting.ItemID]uint32)
	for _, tier := range [][]crafting.ItemStack{snap.Items, snap.ModuleItems} {
		for _, s := range tier {
			if s.IsAir() {
				continue
			}
			if _, ok := skip[s.Key()]; ok {
				continue
			}
			counts[s.Item] = addSat(counts[s.Item], s.Quantity)
		}
	}
	return Inventory{env: NewEnvironment(snap.Stations, snap.Flags), counts: counts}
}

func blockSet(keys []crafting.StackKey) map[crafting.StackKey]struct{} {
	set := make(map[crafting.StackKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Environment returns the stations and flags of the inventory.
func (inv Inventory) Environment() Environment {
	return inv.env
}

// Count returns the stock of one item type.
func (inv Inventory) Count(item crafting.ItemID) uint32 {
	return inv.counts[item]
}

// Without returns a copy of the inventory with one item type removed.
func (inv Inventory) Without(item crafting.ItemID) Inventory {
	if item == "" {
		return inv
	}
	if _, ok := inv.counts[item]; !ok {
		return inv
	}
	out := Inventory{env: inv.env, counts: inv.clone()}
	delete(out.counts, item)
	return out
}

// matchingCount sums the stock that satisfies want for recipe.
func (inv Inventory) matchingCount(c *Catalog, recipe *crafting.Recipe, want crafting.ItemID) uint32 {
	var total uint32
	for _, item := range c.candidates(recipe, want) {
		total = addSat(total, inv.counts[item])
	}
	return total
}

func (inv Inventory) clone() map[crafting.ItemID]uint32 {
	out := make(map[crafting.ItemID]uint32, len(inv.counts))
	for k, v := range inv.counts {
		out[k] = v
	}
	return out
}
