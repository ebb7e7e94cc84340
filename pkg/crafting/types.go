// Package crafting contains the core types for the crafting resolver.
package crafting

// ============================================
// ITEM TYPES
// ============================================

// ItemID identifies an item type.
type ItemID string

// TileID identifies a crafting station.
type TileID string

// GroupID identifies a substitution group.
type GroupID string

// ItemStack is a quantity of a single item type with an optional variant.
// A stack with quantity 0 is air and is never stored.
type ItemStack struct {
	Item     ItemID `json:"item" validate:"required"`
	Quantity uint32 `json:"quantity" validate:"gte=1"`
	Variant  string `json:"variant,omitempty"`
}

// IsAir reports whether the stack holds nothing.
func (s ItemStack) IsAir() bool {
	return s.Item == "" || s.Quantity == 0
}

// Key returns the merge key of the stack.
func (s ItemStack) Key() StackKey {
	return StackKey{Item: s.Item, Variant: s.Variant}
}

// StackKey identifies stacks that may be merged together.
type StackKey struct {
	Item    ItemID `json:"item" validate:"required"`
	Variant string `json:"variant,omitempty"`
}

// ItemInfo carries per-type metadata.
type ItemInfo struct {
	ID       ItemID `json:"id" validate:"required"`
	Name     string `json:"name,omitempty"`
	MaxStack uint32 `json:"max_stack" validate:"gte=1"`
}

// SubstitutionGroup is a named set of interchangeable item types.
type SubstitutionGroup struct {
	ID      GroupID  `json:"id" validate:"required"`
	Name    string   `json:"name,omitempty"`
	Members []ItemID `json:"members" validate:"min=1,dive,required"`
}

// ============================================
// RECIPE TYPES
// ============================================

// Recipe consumes its required items (plus station and environment conditions)
// to yield its result. Result.Quantity is the yield per craft.
type Recipe struct {
	ID               string      `json:"id" validate:"required"`
	Name             string      `json:"name,omitempty"`
	RequiredItems    []ItemStack `json:"required_items" validate:"dive"`
	Result           ItemStack   `json:"result"`
	RequiredStations []TileID    `json:"required_stations,omitempty" validate:"dive,required"`
	AcceptedGroups   []GroupID   `json:"accepted_groups,omitempty" validate:"dive,required"`
	Conditions       []string    `json:"conditions,omitempty" validate:"dive,required"`
	StationOnly      bool        `json:"station_only,omitempty"`
}

// ============================================
// STORAGE TYPES
// ============================================

// StorageSnapshot is an in-memory copy of one storage endpoint: its reachable
// stations, environment flags, primary stacks and module stacks.
type StorageSnapshot struct {
	StorageID   string      `json:"storage_id"`
	Name        string      `json:"name,omitempty"`
	Revision    uint64      `json:"revision"`
	Stations    []TileID    `json:"stations,omitempty"`
	Flags       []string    `json:"flags,omitempty"`
	Items       []ItemStack `json:"items"`
	ModuleItems []ItemStack `json:"module_items,omitempty"`
}

// ============================================
// RESULT TYPES
// ============================================

// MaterialRequirement is the net amount of one item type a resolution draws
// from stock.
type MaterialRequirement struct {
	Item     ItemID `json:"item"`
	Quantity uint32 `json:"quantity"`
}

// RecipeUsage is a recipe used by a resolution and how many times it runs.
type RecipeUsage struct {
	RecipeID string `json:"recipe_id"`
	Crafts   uint32 `json:"crafts"`
}

// SimulationResult is the outcome of a recursive dry run.
type SimulationResult struct {
	RecipeID      string `json:"recipe_id"`
	Requested     uint32 `json:"requested"`
	AmountCrafted uint32 `json:"amount_crafted"`

	// UsedRecipes is in dependency order with the target last.
	UsedRecipes []RecipeUsage `json:"used_recipes"`

	// Steps is the exact craft order of the dry run; replay follows it.
	Steps []RecipeUsage `json:"steps"`

	RequiredMaterials []MaterialRequirement `json:"required_materials"`
	ExcessResults     []ItemStack           `json:"excess_results"`
}

// CraftState is a state of the craft orchestrator.
type CraftState string

const (
	StateIdle              CraftState = "idle"
	StateComputingCeiling  CraftState = "computing_ceiling"
	StateBatchCrafting     CraftState = "batch_crafting"
	StateRecursiveCrafting CraftState = "recursive_crafting"
	StateCompacting        CraftState = "compacting"
	StateDone              CraftState = "done"
	StateAborted           CraftState = "aborted"
)

// CraftResult is the withdraw/deposit instruction set of one craft.
type CraftResult struct {
	RecipeID  string     `json:"recipe_id"`
	Requested uint32     `json:"requested"`
	Target    uint32     `json:"target"`
	Crafted   uint32     `json:"crafted"`
	State     CraftState `json:"state"`

	ItemsToWithdraw     []ItemStack `json:"items_to_withdraw"`
	ModuleItemsConsumed []ItemStack `json:"module_items_consumed,omitempty"`
	ItemsProduced       []ItemStack `json:"items_produced"`

	Diagnostic string `json:"diagnostic,omitempty"`
}

// Empty reports whether the craft changed nothing.
func (r *CraftResult) Empty() bool {
	return len(r.ItemsToWithdraw) == 0 && len(r.ModuleItemsConsumed) == 0 && len(r.ItemsProduced) == 0
}

// ============================================
// REQUEST/RESPONSE TYPES
// ============================================

// MaxCraftableRequest asks for the craft ceiling of a recipe.
type MaxCraftableRequest struct {
	RecipeID  string     `json:"recipe_id" validate:"required"`
	StorageID string     `json:"storage_id" validate:"required"`
	Blocked   []StackKey `json:"blocked,omitempty" validate:"dive"`
}

// MaxCraftableResponse is the response for max_craftable.
type MaxCraftableResponse struct {
	RecipeID  string `json:"recipe_id"`
	StorageID string `json:"storage_id"`
	Revision  uint64 `json:"revision"`
	Amount    uint32 `json:"amount"`
}

// AvailabilityRequest asks whether a recipe can be crafted right now.
type AvailabilityRequest struct {
	RecipeID   string     `json:"recipe_id" validate:"required"`
	StorageID  string     `json:"storage_id" validate:"required"`
	IgnoreItem ItemID     `json:"ignore_item,omitempty"`
	Blocked    []StackKey `json:"blocked,omitempty" validate:"dive"`
}

// AvailabilityResponse is the response for recipe_available.
type AvailabilityResponse struct {
	RecipeID    string `json:"recipe_id"`
	Available   bool   `json:"available"`
	PassesBlock bool   `json:"passes_block"`
	Recursive   bool   `json:"recursive"`
}

// SimulateRequest asks for a recursive dry run.
type SimulateRequest struct {
	RecipeID  string     `json:"recipe_id" validate:"required"`
	StorageID string     `json:"storage_id" validate:"required"`
	Quantity  uint32     `json:"quantity"`
	Blocked   []StackKey `json:"blocked,omitempty" validate:"dive"`
}

// CraftRequest is the relayed craft request.
type CraftRequest struct {
	RecipeID  string     `json:"recipe_id" validate:"required"`
	StorageID string     `json:"storage_id" validate:"required"`
	Quantity  uint32     `json:"quantity"`
	Blocked   []StackKey `json:"blocked,omitempty" validate:"dive"`
	DryRun    bool       `json:"dry_run,omitempty"`
}

// CraftResponse is the response for craft.
type CraftResponse struct {
	CraftResult
	Applied  bool   `json:"applied"`
	Revision uint64 `json:"revision"`
}

// AvailableRecipesRequest asks for the recipes currently craftable at a storage.
type AvailableRecipesRequest struct {
	StorageID string     `json:"storage_id" validate:"required"`
	RecipeIDs []string   `json:"recipe_ids,omitempty" validate:"dive,required"`
	Blocked   []StackKey `json:"blocked,omitempty" validate:"dive"`
}

// AvailableRecipesResponse is the response for available_recipes.
type AvailableRecipesResponse struct {
	StorageID string   `json:"storage_id"`
	Revision  uint64   `json:"revision"`
	RecipeIDs []string `json:"recipe_ids"`
	Refreshed int      `json:"refreshed"`
}

// RecipesUsingItemRequest asks which recipes accept an item as an ingredient.
type RecipesUsingItemRequest struct {
	ItemID ItemID `json:"item_id" validate:"required"`
}

// RecipesUsingItemResponse is the response for recipes_using_item.
type RecipesUsingItemResponse struct {
	ItemID     ItemID   `json:"item_id"`
	Direct     []string `json:"direct"`
	Dependents []string `json:"dependents,omitempty"`
}

// RecipeTreeRequest asks for the recursion tree of a recipe.
type RecipeTreeRequest struct {
	RecipeID string `json:"recipe_id" validate:"required"`
}

// TreeNode is one recipe in a recursion tree projection.
type TreeNode struct {
	RecipeID    string           `json:"recipe_id"`
	Result      ItemStack        `json:"result"`
	Ingredients []TreeIngredient `json:"ingredients"`
}

// TreeIngredient is one requirement of a TreeNode. Producer is nil for leaves.
type TreeIngredient struct {
	Item     ItemID    `json:"item"`
	Quantity uint32    `json:"quantity"`
	Producer *TreeNode `json:"producer,omitempty"`
	Cyclic   bool      `json:"cyclic,omitempty"`
}
