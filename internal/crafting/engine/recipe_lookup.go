package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// RecipeTree executes the recipe_tree tool logic.
func (e *Engine) RecipeTree(ctx context.Context, req crafting.RecipeTreeRequest) (tree *crafting.TreeNode, err error) {
	defer e.observe("recipe_tree", time.Now(), &err)

	r := e.Resolver()
	recipe, err := e.recipe(r, req.RecipeID)
	if err != nil {
		return nil, err
	}
	return r.Graph().Tree(recipe).View(), nil
}

// RecipesUsingItem executes the recipes_using_item tool logic. Direct lists
// recipes accepting the item for an ingredient, substitutes included;
// Dependents lists the recipes that reach it through an intermediate.
func (e *Engine) RecipesUsingItem(ctx context.Context, req crafting.RecipesUsingItemRequest) (resp *crafting.RecipesUsingItemResponse, err error) {
	defer e.observe("recipes_using_item", time.Now(), &err)

	if req.ItemID == "" {
		return nil, errors.New("item_id is required")
	}
	g := e.Resolver().Graph()
	direct := g.RecipesUsingItem(req.ItemID)

	resp = &crafting.RecipesUsingItemResponse{ItemID: req.ItemID, Direct: []string{}}
	isDirect := make(map[*crafting.Recipe]struct{}, len(direct))
	for _, r := range direct {
		isDirect[r] = struct{}{}
		resp.Direct = append(resp.Direct, r.ID)
	}
	for _, r := range g.Expand(direct) {
		if _, ok := isDirect[r]; !ok {
			resp.Dependents = append(resp.Dependents, r.ID)
		}
	}
	return resp, nil
}
