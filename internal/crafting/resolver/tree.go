package resolver

import (
	"log/slog"
	"sort"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Graph indexes which recipes can produce each recipe's ingredients and
// projects one recursion tree per recipe. It is built once per catalog and is
// read-only afterwards.
type Graph struct {
	catalog *Catalog

	// producers[r][i] lists recipes whose result satisfies ingredient i of r,
	// in declaration order.
	producers map[*crafting.Recipe][][]*crafting.Recipe
	consumers map[*crafting.Recipe][]*crafting.Recipe

	usesItem    map[crafting.ItemID][]*crafting.Recipe
	usesStation map[crafting.TileID][]*crafting.Recipe

	trees      map[*crafting.Recipe]*Node
	dependents map[*crafting.Recipe][]*crafting.Recipe
}

// Node is one recipe inside a recursion tree.
type Node struct {
	Recipe      *crafting.Recipe
	Ingredients []Ingredient
}

// Ingredient is one requirement of a Node. A nil Producer makes it a leaf
// that can only be drawn from stock.
type Ingredient struct {
	Stack    crafting.ItemStack
	Producer *Node

	// Cyclic is set when every producer was already on the ancestor path.
	Cyclic bool
}

// NewGraph indexes catalog and projects its recursion trees.
func NewGraph(catalog *Catalog, maxDepth int, logger *slog.Logger) *Graph {
	g := &Graph{
		catalog:     catalog,
		producers:   make(map[*crafting.Recipe][][]*crafting.Recipe, catalog.Len()),
		consumers:   make(map[*crafting.Recipe][]*crafting.Recipe),
		usesItem:    make(map[crafting.ItemID][]*crafting.Recipe),
		usesStation: make(map[crafting.TileID][]*crafting.Recipe),
		trees:       make(map[*crafting.Recipe]*Node, catalog.Len()),
		dependents:  make(map[*crafting.Recipe][]*crafting.Recipe),
	}

	byResult := make(map[crafting.ItemID][]*crafting.Recipe)
	for _, r := range catalog.Recipes() {
		byResult[r.Result.Item] = append(byResult[r.Result.Item], r)
	}

	for _, r := range catalog.Recipes() {
		perIngredient := make([][]*crafting.Recipe, len(r.RequiredItems))
		direct := make(map[*crafting.Recipe]struct{})
		for i, ing := range r.RequiredItems {
			seen := make(map[*crafting.Recipe]struct{})
			var list []*crafting.Recipe
			for _, item := range catalog.candidates(r, ing.Item) {
				g.usesItem[item] = appendUnique(g.usesItem[item], r)
				for _, p := range byResult[item] {
					if _, dup := seen[p]; dup {
						continue
					}
					seen[p] = struct{}{}
					list = append(list, p)
				}
			}
			sort.SliceStable(list, func(a, b int) bool {
				return catalog.position(list[a]) < catalog.position(list[b])
			})
			perIngredient[i] = list
			for _, p := range list {
				if _, dup := direct[p]; !dup && p != r {
					direct[p] = struct{}{}
					g.consumers[p] = append(g.consumers[p], r)
				}
			}
		}
		g.producers[r] = perIngredient
		for _, t := range r.RequiredStations {
			g.usesStation[t] = appendUnique(g.usesStation[t], r)
		}
	}

	for _, r := range catalog.Recipes() {
		b := treeBuilder{graph: g, maxDepth: maxDepth, path: make(map[*crafting.Recipe]bool), logger: logger}
		root := b.build(r, 0)
		g.trees[r] = root
		for member := range b.members {
			if member != r {
				g.dependents[member] = append(g.dependents[member], r)
			}
		}
	}

	return g
}

func appendUnique(list []*crafting.Recipe, r *crafting.Recipe) []*crafting.Recipe {
	if n := len(list); n > 0 && list[n-1] == r {
		return list
	}
	return append(list, r)
}

type treeBuilder struct {
	graph    *Graph
	maxDepth int
	path     map[*crafting.Recipe]bool
	members  map[*crafting.Recipe]struct{}
	logger   *slog.Logger
}

// build projects the tree rooted at r. A producer already on the current
// ancestor path is never entered; the first producer in declaration order
// that is not on the path wins.
func (b *treeBuilder) build(r *crafting.Recipe, depth int) *Node {
	if b.members == nil {
		b.members = make(map[*crafting.Recipe]struct{})
	}
	b.members[r] = struct{}{}
	b.path[r] = true
	defer delete(b.path, r)

	n := &Node{Recipe: r, Ingredients: make([]Ingredient, len(r.RequiredItems))}
	for i, stack := range r.RequiredItems {
		n.Ingredients[i].Stack = stack
		producers := b.graph.producers[r][i]
		if len(producers) == 0 {
			continue
		}
		if depth+1 >= b.maxDepth {
			b.logger.Debug("recursion depth limit reached", "recipe", r.ID, "ingredient", stack.Item, "depth", depth)
			continue
		}
		var chosen *crafting.Recipe
		for _, p := range producers {
			if !b.path[p] {
				chosen = p
				break
			}
		}
		if chosen == nil {
			n.Ingredients[i].Cyclic = true
			b.logger.Debug("cycle broken", "recipe", r.ID, "ingredient", stack.Item)
			continue
		}
		n.Ingredients[i].Producer = b.build(chosen, depth+1)
	}
	return n
}

// Tree returns the recursion tree projected for recipe.
func (g *Graph) Tree(recipe *crafting.Recipe) *Node {
	return g.trees[recipe]
}

// HasRecursion reports whether any ingredient of recipe can be produced by
// another recipe within its tree.
func (g *Graph) HasRecursion(recipe *crafting.Recipe) bool {
	n := g.trees[recipe]
	if n == nil {
		return false
	}
	for _, ing := range n.Ingredients {
		if ing.Producer != nil {
			return true
		}
	}
	return false
}

// Producers returns the recipes able to produce ingredient i of recipe, in
// declaration order.
func (g *Graph) Producers(recipe *crafting.Recipe, i int) []*crafting.Recipe {
	list := g.producers[recipe]
	if i < 0 || i >= len(list) {
		return nil
	}
	return list[i]
}

// Consumers returns the recipes with an ingredient recipe can produce.
func (g *Graph) Consumers(recipe *crafting.Recipe) []*crafting.Recipe {
	return g.consumers[recipe]
}

// Dependents returns every recipe whose recursion tree contains recipe, in
// declaration order. These are the recipes to re-check when recipe's
// availability changes.
func (g *Graph) Dependents(recipe *crafting.Recipe) []*crafting.Recipe {
	return g.dependents[recipe]
}

// RecipesUsingItem returns recipes that accept item for some ingredient.
func (g *Graph) RecipesUsingItem(item crafting.ItemID) []*crafting.Recipe {
	return g.usesItem[item]
}

// RecipesUsingStation returns recipes that require station.
func (g *Graph) RecipesUsingStation(t crafting.TileID) []*crafting.Recipe {
	return g.usesStation[t]
}

// Expand returns recipes plus all of their dependents, deduplicated, in
// declaration order.
func (g *Graph) Expand(recipes []*crafting.Recipe) []*crafting.Recipe {
	set := make(map[*crafting.Recipe]struct{}, len(recipes))
	for _, r := range recipes {
		set[r] = struct{}{}
		for _, d := range g.dependents[r] {
			set[d] = struct{}{}
		}
	}
	out := make([]*crafting.Recipe, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.catalog.position(out[i]) < g.catalog.position(out[j])
	})
	return out
}

// View converts a tree into its wire form.
func (n *Node) View() *crafting.TreeNode {
	if n == nil {
		return nil
	}
	out := &crafting.TreeNode{
		RecipeID:    n.Recipe.ID,
		Result:      n.Recipe.Result,
		Ingredients: make([]crafting.TreeIngredient, len(n.Ingredients)),
	}
	for i, ing := range n.Ingredients {
		out.Ingredients[i] = crafting.TreeIngredient{
			Item:     ing.Stack.Item,
			Quantity: ing.Stack.Quantity,
			Producer: ing.Producer.View(),
			Cyclic:   ing.Cyclic,
		}
	}
	return out
}
