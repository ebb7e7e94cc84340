package resolver

import "github.com/rsned/crafting-resolver/pkg/crafting"

// Compact merges stacks with the same item and variant into as few stacks as
// maxStack allows, keeping first-seen order. Air is dropped.
func Compact(stacks []crafting.ItemStack, maxStack func(crafting.ItemID) uint32) []crafting.ItemStack {
	var out []crafting.ItemStack
	open := make(map[crafting.StackKey][]int)

	for _, s := range stacks {
		if s.IsAir() {
			continue
		}
		limit := max(maxStack(s.Item), 1)
		key := s.Key()
		remaining := s.Quantity

		idx := open[key]
		for len(idx) > 0 && remaining > 0 {
			dst := &out[idx[0]]
			room := limit - min(dst.Quantity, limit)
			moved := min(room, remaining)
			dst.Quantity += moved
			remaining -= moved
			if dst.Quantity >= limit {
				idx = idx[1:]
			}
		}

		for remaining > 0 {
			n := min(remaining, limit)
			out = append(out, crafting.ItemStack{Item: s.Item, Quantity: n, Variant: s.Variant})
			remaining -= n
			if n < limit {
				idx = append(idx, len(out)-1)
			}
		}
		open[key] = idx
	}
	return out
}
