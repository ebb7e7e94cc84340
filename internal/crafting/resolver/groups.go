package resolver

import "github.com/rsned/crafting-resolver/pkg/crafting"

// Matches reports whether have satisfies a requirement for want under the
// recipe's accepted substitution groups.
func (c *Catalog) Matches(recipe *crafting.Recipe, have, want crafting.ItemID) bool {
	if have == want {
		return true
	}
	for _, g := range recipe.AcceptedGroups {
		members := c.groups[g]
		if _, ok := members[have]; !ok {
			continue
		}
		if _, ok := members[want]; ok {
			return true
		}
	}
	return false
}

// GroupMembers returns the members of a group in declaration order.
func (c *Catalog) GroupMembers(id crafting.GroupID) []crafting.ItemID {
	return c.groupMembers[id]
}

// candidates lists every item type that satisfies want for recipe: want itself
// first, then co-members of each accepted group containing want, in group and
// member declaration order. Consumption walks this order so the dry run and
// the live replay draw the same concrete types.
func (c *Catalog) candidates(recipe *crafting.Recipe, want crafting.ItemID) []crafting.ItemID {
	out := []crafting.ItemID{want}
	seen := map[crafting.ItemID]struct{}{want: {}}
	for _, g := range recipe.AcceptedGroups {
		if _, ok := c.groups[g][want]; !ok {
			continue
		}
		for _, m := range c.groupMembers[g] {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}
