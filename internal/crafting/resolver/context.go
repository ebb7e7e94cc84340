package resolver

import "github.com/rsned/crafting-resolver/pkg/crafting"

// Tier is a consumption source. Tiers are consulted in ascending order.
type Tier int

const (
	// TierResults holds items produced earlier in the same craft run.
	TierResults Tier = iota
	// TierInventory is the primary storage.
	TierInventory
	// TierModule is auxiliary storage, used only after the others run dry.
	TierModule

	tierCount
)

func (t Tier) String() string {
	switch t {
	case TierResults:
		return "results"
	case TierInventory:
		return "inventory"
	case TierModule:
		return "module"
	default:
		return "unknown"
	}
}

// Touch reports the total consumed from one storage stack during a craft.
// Index is the stack's position in the snapshot tier it came from.
type Touch struct {
	Tier     Tier
	Index    int
	Stack    crafting.ItemStack
	Quantity uint32
}

// Observer receives one Touch per storage stack a craft consumed from.
type Observer func(Touch)

// CraftHook is called once per produced unit, after that unit's ingredients
// were consumed and before compaction.
type CraftHook func(recipe *crafting.Recipe, result crafting.ItemStack, consumed []crafting.ItemStack)

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithObserver registers the stack bookkeeping observer.
func WithObserver(fn Observer) ContextOption {
	return func(c *Context) { c.observer = fn }
}

// WithCraftHook registers the per-unit craft hook.
func WithCraftHook(fn CraftHook) ContextOption {
	return func(c *Context) { c.onCraft = fn }
}

type undo struct {
	tier  Tier
	index int
	prev  uint32
	taken uint32
}

type touchKey struct {
	tier  Tier
	index int
}

// Context owns the three consumption tiers of one craft invocation. Each tier
// is a fixed arena: consumption zeroes quantities in place and never removes
// entries, so indices stay valid for bookkeeping. A Context is used by one
// craft and then discarded.
type Context struct {
	catalog *Catalog
	target  *crafting.Recipe
	env     Environment

	tiers [tierCount][]crafting.ItemStack

	log     []undo
	touched map[touchKey]uint32
	touches []touchKey

	observer Observer
	onCraft  CraftHook
}

// NewContext copies snap's stacks into a fresh Context for crafting target.
// Blocked stacks and stacks of the target's own result type are kept as
// empty placeholders so every index still lines up with snap.
func NewContext(catalog *Catalog, target *crafting.Recipe, snap crafting.StorageSnapshot, blocked []crafting.StackKey, opts ...ContextOption) *Context {
	c := &Context{
		catalog: catalog,
		target:  target,
		env:     NewEnvironment(snap.Stations, snap.Flags),
		touched: make(map[touchKey]uint32),
	}
	skip := blockSet(blocked)
	load := func(src []crafting.ItemStack) []crafting.ItemStack {
		out := make([]crafting.ItemStack, len(src))
		for i, s := range src {
			out[i] = s
			if _, ok := skip[s.Key()]; ok || s.IsAir() || (target != nil && s.Item == target.Result.Item) {
				out[i].Quantity = 0
			}
		}
		return out
	}
	c.tiers[TierInventory] = load(snap.Items)
	c.tiers[TierModule] = load(snap.ModuleItems)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Inventory returns the count view of the storage tiers as they stand now.
func (c *Context) Inventory() Inventory {
	counts := make(map[crafting.ItemID]uint32)
	for _, tier := range []Tier{TierInventory, TierModule} {
		for _, s := range c.tiers[tier] {
			if s.Quantity > 0 {
				counts[s.Item] = addSat(counts[s.Item], s.Quantity)
			}
		}
	}
	return Inventory{env: c.env, counts: counts}
}

// Stacks returns the live stacks of a tier. Callers must not modify them.
func (c *Context) Stacks(t Tier) []crafting.ItemStack {
	return c.tiers[t]
}

// consume draws up to qty of want from the tiers in priority order and
// returns the concrete stacks taken. With allowGroup any item the target
// recipe accepts in place of want is eligible.
func (c *Context) consume(recipe *crafting.Recipe, want crafting.ItemID, qty uint32, allowGroup bool) (uint32, []crafting.ItemStack) {
	var taken uint32
	var out []crafting.ItemStack
	for t := TierResults; t < tierCount && taken < qty; t++ {
		stacks := c.tiers[t]
		for i := range stacks {
			if taken == qty {
				break
			}
			s := &stacks[i]
			if s.Quantity == 0 {
				continue
			}
			if s.Item != want && !(allowGroup && c.catalog.Matches(recipe, s.Item, want)) {
				continue
			}
			got := min(qty-taken, s.Quantity)
			c.take(t, i, got)
			taken += got
			out = append(out, crafting.ItemStack{Item: s.Item, Quantity: got, Variant: s.Variant})
		}
	}
	return taken, out
}

func (c *Context) take(t Tier, i int, n uint32) {
	s := &c.tiers[t][i]
	c.log = append(c.log, undo{tier: t, index: i, prev: s.Quantity, taken: n})
	s.Quantity -= n
}

// produce appends a result stack to the results tier.
func (c *Context) produce(s crafting.ItemStack) {
	c.tiers[TierResults] = append(c.tiers[TierResults], s)
}

// guard is a scoped mutation token over a Context. Every mutation made after
// the guard was taken is undone by release unless commit ran first.
type guard struct {
	c         *Context
	logLen    int
	resultLen int
	done      bool
}

func (c *Context) guard() *guard {
	return &guard{c: c, logLen: len(c.log), resultLen: len(c.tiers[TierResults])}
}

// commit keeps the guarded mutations.
func (g *guard) commit() {
	g.done = true
}

// release rolls back unless commit ran. It is meant to be deferred.
func (g *guard) release() {
	if g.done {
		return
	}
	g.done = true
	c := g.c
	for i := len(c.log) - 1; i >= g.logLen; i-- {
		u := c.log[i]
		c.tiers[u.tier][u.index].Quantity = u.prev
	}
	c.log = c.log[:g.logLen]
	c.tiers[TierResults] = c.tiers[TierResults][:g.resultLen]
}

// Reserve consumes qty of want all-or-nothing: if the tiers cannot cover the
// full amount nothing is consumed and ok is false.
func (c *Context) Reserve(recipe *crafting.Recipe, want crafting.ItemID, qty uint32, allowGroup bool) (consumed []crafting.ItemStack, ok bool) {
	g := c.guard()
	defer g.release()

	taken, consumed := c.consume(recipe, want, qty, allowGroup)
	if taken < qty {
		return nil, false
	}
	g.commit()
	return consumed, true
}

// reserveCandidates is Reserve over an explicit ordered list of acceptable
// types. Each type is exhausted across all tiers before the next is tried.
func (c *Context) reserveCandidates(recipe *crafting.Recipe, cands []crafting.ItemID, qty uint32) (consumed []crafting.ItemStack, taken uint32, ok bool) {
	g := c.guard()
	defer g.release()

	for _, item := range cands {
		if taken == qty {
			break
		}
		n, got := c.consume(recipe, item, qty-taken, false)
		taken += n
		consumed = append(consumed, got...)
	}
	if taken < qty {
		return nil, taken, false
	}
	g.commit()
	return consumed, taken, true
}

// settle folds the committed undo log into per-stack touch totals and
// notifies the observer once per touched storage stack.
func (c *Context) settle() {
	for _, u := range c.log {
		if u.tier == TierResults {
			continue
		}
		k := touchKey{tier: u.tier, index: u.index}
		if _, ok := c.touched[k]; !ok {
			c.touches = append(c.touches, k)
		}
		c.touched[k] = addSat(c.touched[k], u.taken)
	}
	c.log = c.log[:0]

	if c.observer == nil {
		return
	}
	for _, k := range c.touches {
		s := c.tiers[k.tier][k.index]
		s.Quantity = c.touched[k]
		c.observer(Touch{Tier: k.tier, Index: k.index, Stack: s, Quantity: c.touched[k]})
	}
}

// withdrawn returns the stacks taken from tier t, one per touched stack.
func (c *Context) withdrawn(t Tier) []crafting.ItemStack {
	var out []crafting.ItemStack
	for _, k := range c.touches {
		if k.tier != t {
			continue
		}
		s := c.tiers[t][k.index]
		s.Quantity = c.touched[k]
		out = append(out, s)
	}
	return out
}

// produced returns the non-empty result stacks.
func (c *Context) produced() []crafting.ItemStack {
	var out []crafting.ItemStack
	for _, s := range c.tiers[TierResults] {
		if s.Quantity > 0 {
			out = append(out, s)
		}
	}
	return out
}
