package mcp

import (
	"context"
	"encoding/json"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// ToolDefinition describes an MCP tool.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema JSONSchema `json:"inputSchema"`
}

// JSONSchema is a simplified JSON Schema representation.
type JSONSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a schema property.
type Property struct {
	Type        string              `json:"type,omitempty"`
	Description string              `json:"description,omitempty"`
	Default     any                 `json:"default,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// GetToolDefinitions returns all tool definitions.
func GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		maxCraftableTool(),
		recipeAvailableTool(),
		simulateCraftTool(),
		craftTool(),
		availableRecipesTool(),
		recipeTreeTool(),
		recipesUsingItemTool(),
	}
}

var (
	recipeIDProp  = Property{Type: "string", Description: "Recipe ID"}
	storageIDProp = Property{Type: "string", Description: "Storage to craft from"}

	blockedProp = Property{
		Type:        "array",
		Description: "Stacks reserved by other jobs; matching item and variant stacks are never consumed",
		Items: &Property{
			Type: "object",
			Properties: map[string]Property{
				"item":    {Type: "string", Description: "Item ID"},
				"variant": {Type: "string", Description: "Variant tag, empty for plain stacks"},
			},
			Required: []string{"item"},
		},
	}
)

func quantityProp(desc string) Property {
	minQty := 1.0
	return Property{Type: "integer", Description: desc, Minimum: &minQty}
}

func maxCraftableTool() ToolDefinition {
	return ToolDefinition{
		Name:        "max_craftable",
		Description: "Compute how many of a recipe's result can be crafted from a storage, counting craftable intermediates. Capped by the result's max stack and the server's craft ceiling.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"recipe_id":  recipeIDProp,
				"storage_id": storageIDProp,
				"blocked":    blockedProp,
			},
			Required: []string{"recipe_id", "storage_id"},
		},
	}
}

func recipeAvailableTool() ToolDefinition {
	return ToolDefinition{
		Name:        "recipe_available",
		Description: "Check whether at least one craft of a recipe is possible right now, and whether it still is once the blocked stacks are excluded.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"recipe_id":   recipeIDProp,
				"storage_id":  storageIDProp,
				"ignore_item": {Type: "string", Description: "Item type to leave out of the inventory"},
				"blocked":     blockedProp,
			},
			Required: []string{"recipe_id", "storage_id"},
		},
	}
}

func simulateCraftTool() ToolDefinition {
	return ToolDefinition{
		Name:        "simulate_craft",
		Description: "Dry-run a recursive craft. Returns the amount craftable, the sub-recipes and craft counts used, the raw materials drawn from storage and any excess intermediates.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"recipe_id":  recipeIDProp,
				"storage_id": storageIDProp,
				"quantity":   quantityProp("Items wanted; defaults to one craft's yield"),
				"blocked":    blockedProp,
			},
			Required: []string{"recipe_id", "storage_id"},
		},
	}
}

func craftTool() ToolDefinition {
	return ToolDefinition{
		Name:        "craft",
		Description: "Craft a recipe from a storage and apply the withdraw/deposit instructions. Requests above the craftable amount are clamped. Set dry_run to get the instructions without changing the storage.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"recipe_id":  recipeIDProp,
				"storage_id": storageIDProp,
				"quantity":   quantityProp("Items wanted"),
				"blocked":    blockedProp,
				"dry_run": {
					Type:        "boolean",
					Description: "Compute the result without applying it",
					Default:     false,
				},
			},
			Required: []string{"recipe_id", "storage_id", "quantity"},
		},
	}
}

func availableRecipesTool() ToolDefinition {
	return ToolDefinition{
		Name:        "available_recipes",
		Description: "List the recipes craftable at a storage, in catalog order. The list is cached per storage revision; passing recipe_ids refreshes those recipes and everything depending on them.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"storage_id": storageIDProp,
				"recipe_ids": {
					Type:        "array",
					Description: "Restrict the answer to these recipes",
					Items:       &Property{Type: "string"},
				},
				"blocked": blockedProp,
			},
			Required: []string{"storage_id"},
		},
	}
}

func recipeTreeTool() ToolDefinition {
	return ToolDefinition{
		Name:        "recipe_tree",
		Description: "Show the recursion tree of a recipe: each ingredient with the recipe chosen to produce it, or a cycle marker.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"recipe_id": recipeIDProp,
			},
			Required: []string{"recipe_id"},
		},
	}
}

func recipesUsingItemTool() ToolDefinition {
	return ToolDefinition{
		Name:        "recipes_using_item",
		Description: "Find the recipes that accept an item as an ingredient, directly or through an intermediate.",
		InputSchema: JSONSchema{
			Type: "object",
			Properties: map[string]Property{
				"item_id": {Type: "string", Description: "Item to look up uses for"},
			},
			Required: []string{"item_id"},
		},
	}
}

// Tool handlers

func (s *Server) toolMaxCraftable(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.MaxCraftableRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.MaxCraftable(ctx, req)
}

func (s *Server) toolRecipeAvailable(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.AvailabilityRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.CheckAvailability(ctx, req)
}

func (s *Server) toolSimulateCraft(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.SimulateRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.Simulate(ctx, req)
}

func (s *Server) toolCraft(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.CraftRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.Craft(ctx, req)
}

func (s *Server) toolAvailableRecipes(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.AvailableRecipesRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.AvailableRecipes(ctx, req)
}

func (s *Server) toolRecipeTree(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.RecipeTreeRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.RecipeTree(ctx, req)
}

func (s *Server) toolRecipesUsingItem(ctx context.Context, args json.RawMessage) (any, error) {
	var req crafting.RecipesUsingItemRequest
	if err := decode(s, args, &req); err != nil {
		return nil, err
	}
	return s.engine.RecipesUsingItem(ctx, req)
}
