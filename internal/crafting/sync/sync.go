// Package sync imports catalog and storage data from JSON exports.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rsned/crafting-resolver/internal/crafting/db"
	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Syncer loads exported data into the database.
type Syncer struct {
	db     *db.DB
	logger *slog.Logger
}

// NewSyncer creates a new Syncer.
func NewSyncer(database *db.DB, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: database, logger: logger}
}

// StackImport accepts the stack shapes seen in exports.
type StackImport struct {
	Item     string `json:"item,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	ID       string `json:"id,omitempty"`
	Quantity uint32 `json:"quantity,omitempty"`
	Count    uint32 `json:"count,omitempty"`
	Variant  string `json:"variant,omitempty"`
}

func (s StackImport) stack() crafting.ItemStack {
	item := s.Item
	if item == "" {
		item = s.ItemID
	}
	if item == "" {
		item = s.ID
	}
	qty := s.Quantity
	if qty == 0 {
		qty = s.Count
	}
	return crafting.ItemStack{Item: crafting.ItemID(item), Quantity: qty, Variant: s.Variant}
}

// RecipeImport represents a recipe as exported.
type RecipeImport struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`

	// Ingredients may be in various formats
	RequiredItems []StackImport `json:"required_items,omitempty"`
	Ingredients   []StackImport `json:"ingredients,omitempty"`

	// Result
	Result         *StackImport `json:"result,omitempty"`
	Output         *StackImport `json:"output,omitempty"`
	OutputItemID   string       `json:"output_item_id,omitempty"`
	OutputQuantity uint32       `json:"output_quantity,omitempty"`

	RequiredStations []string `json:"required_stations,omitempty"`
	Stations         []string `json:"stations,omitempty"`
	AcceptedGroups   []string `json:"accepted_groups,omitempty"`
	Conditions       []string `json:"conditions,omitempty"`
	StationOnly      bool     `json:"station_only,omitempty"`
}

// GroupImport represents a substitution group as exported.
type GroupImport struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members,omitempty"`
	Items   []string `json:"items,omitempty"`
}

// ItemImport represents item metadata as exported.
type ItemImport struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	MaxStack uint32 `json:"max_stack,omitempty"`
}

// StorageImport represents one storage endpoint as exported.
type StorageImport struct {
	StorageID   string        `json:"storage_id,omitempty"`
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name,omitempty"`
	Stations    []string      `json:"stations,omitempty"`
	Flags       []string      `json:"flags,omitempty"`
	Items       []StackImport `json:"items,omitempty"`
	ModuleItems []StackImport `json:"module_items,omitempty"`
}

// ImportRecipesFromFile imports recipes from a JSON file.
func (s *Syncer) ImportRecipesFromFile(ctx context.Context, path string) (int, error) {
	return fromFile(path, func(r io.Reader) (int, error) { return s.ImportRecipes(ctx, r) })
}

// ImportRecipes imports a JSON array of recipes. The batch is validated
// together with the stored groups before anything is written.
func (s *Syncer) ImportRecipes(ctx context.Context, r io.Reader) (int, error) {
	var imports []RecipeImport
	if err := json.NewDecoder(r).Decode(&imports); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	recipes := make([]crafting.Recipe, 0, len(imports))
	for _, imp := range imports {
		recipes = append(recipes, transformRecipe(imp))
	}

	groups, err := db.NewCatalogStore(s.db).GetAllGroups(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := resolver.NewCatalog(recipes, groups, nil); err != nil {
		return 0, fmt.Errorf("validating recipes: %w", err)
	}

	if err := db.NewRecipeStore(s.db).BulkInsertRecipes(ctx, recipes); err != nil {
		return 0, fmt.Errorf("inserting recipes: %w", err)
	}
	if err := s.stamp(ctx, "recipes", len(recipes)); err != nil {
		return 0, err
	}
	return len(recipes), nil
}

// ImportGroupsFromFile imports substitution groups from a JSON file.
func (s *Syncer) ImportGroupsFromFile(ctx context.Context, path string) (int, error) {
	return fromFile(path, func(r io.Reader) (int, error) { return s.ImportGroups(ctx, r) })
}

// ImportGroups imports a JSON array of substitution groups.
func (s *Syncer) ImportGroups(ctx context.Context, r io.Reader) (int, error) {
	var imports []GroupImport
	if err := json.NewDecoder(r).Decode(&imports); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	groups := make([]crafting.SubstitutionGroup, 0, len(imports))
	for _, imp := range imports {
		members := imp.Members
		if len(members) == 0 {
			members = imp.Items
		}
		g := crafting.SubstitutionGroup{ID: crafting.GroupID(imp.ID), Name: imp.Name}
		for _, m := range members {
			g.Members = append(g.Members, crafting.ItemID(m))
		}
		groups = append(groups, g)
	}
	if _, err := resolver.NewCatalog(nil, groups, nil); err != nil {
		return 0, fmt.Errorf("validating groups: %w", err)
	}

	if err := db.NewCatalogStore(s.db).BulkInsertGroups(ctx, groups); err != nil {
		return 0, fmt.Errorf("inserting groups: %w", err)
	}
	if err := s.stamp(ctx, "groups", len(groups)); err != nil {
		return 0, err
	}
	return len(groups), nil
}

// ImportItemsFromFile imports item metadata from a JSON file.
func (s *Syncer) ImportItemsFromFile(ctx context.Context, path string) (int, error) {
	return fromFile(path, func(r io.Reader) (int, error) { return s.ImportItems(ctx, r) })
}

// ImportItems imports a JSON array of item metadata. A missing max stack
// means the resolver default.
func (s *Syncer) ImportItems(ctx context.Context, r io.Reader) (int, error) {
	var imports []ItemImport
	if err := json.NewDecoder(r).Decode(&imports); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	items := make([]crafting.ItemInfo, 0, len(imports))
	for _, imp := range imports {
		info := crafting.ItemInfo{ID: crafting.ItemID(imp.ID), Name: imp.Name, MaxStack: imp.MaxStack}
		if info.MaxStack == 0 {
			info.MaxStack = resolver.DefaultMaxStack
		}
		items = append(items, info)
	}
	if _, err := resolver.NewCatalog(nil, nil, items); err != nil {
		return 0, fmt.Errorf("validating items: %w", err)
	}

	if err := db.NewCatalogStore(s.db).BulkInsertItems(ctx, items); err != nil {
		return 0, fmt.Errorf("inserting items: %w", err)
	}
	if err := s.stamp(ctx, "items", len(items)); err != nil {
		return 0, err
	}
	return len(items), nil
}

// ImportStorageFromFile replaces one storage from a JSON file.
func (s *Syncer) ImportStorageFromFile(ctx context.Context, path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return s.ImportStorage(ctx, f)
}

// ImportStorage replaces one storage from a JSON object and returns its new
// revision.
func (s *Syncer) ImportStorage(ctx context.Context, r io.Reader) (uint64, error) {
	var imp StorageImport
	if err := json.NewDecoder(r).Decode(&imp); err != nil {
		return 0, fmt.Errorf("parsing JSON: %w", err)
	}

	snap := transformStorage(imp)
	if snap.StorageID == "" {
		return 0, fmt.Errorf("storage export has no id")
	}
	rev, err := db.NewStorageStore(s.db).ReplaceStorage(ctx, snap)
	if err != nil {
		return 0, fmt.Errorf("replacing storage: %w", err)
	}
	s.logger.Info("storage imported",
		"storage", snap.StorageID,
		"revision", rev,
		"stacks", humanize.Comma(int64(len(snap.Items)+len(snap.ModuleItems))))
	return rev, nil
}

// ClearAll removes all recipe data from the database.
func (s *Syncer) ClearAll(ctx context.Context) error {
	return db.NewRecipeStore(s.db).ClearRecipes(ctx)
}

func (s *Syncer) stamp(ctx context.Context, kind string, n int) error {
	if err := s.db.SetSyncMetadata(ctx, kind+"_last_sync", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := s.db.SetSyncMetadata(ctx, kind+"_count", strconv.Itoa(n)); err != nil {
		return err
	}
	s.logger.Info("import complete", "kind", kind, "count", humanize.Comma(int64(n)))
	return nil
}

func fromFile(path string, fn func(io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}

// transformRecipe converts import format to domain format.
func transformRecipe(imp RecipeImport) crafting.Recipe {
	recipe := crafting.Recipe{
		ID:          imp.ID,
		Name:        imp.Name,
		Conditions:  imp.Conditions,
		StationOnly: imp.StationOnly,
	}

	// Handle result - try multiple field names
	switch {
	case imp.Result != nil:
		recipe.Result = imp.Result.stack()
	case imp.Output != nil:
		recipe.Result = imp.Output.stack()
	case imp.OutputItemID != "":
		recipe.Result = crafting.ItemStack{Item: crafting.ItemID(imp.OutputItemID), Quantity: imp.OutputQuantity}
	}
	if recipe.Result.Quantity == 0 {
		recipe.Result.Quantity = 1
	}

	ingredients := imp.RequiredItems
	if len(ingredients) == 0 {
		ingredients = imp.Ingredients
	}
	for _, ing := range ingredients {
		st := ing.stack()
		if st.Item == "" {
			continue
		}
		recipe.RequiredItems = append(recipe.RequiredItems, st)
	}

	stations := imp.RequiredStations
	if len(stations) == 0 {
		stations = imp.Stations
	}
	for _, st := range stations {
		recipe.RequiredStations = append(recipe.RequiredStations, crafting.TileID(st))
	}
	for _, g := range imp.AcceptedGroups {
		recipe.AcceptedGroups = append(recipe.AcceptedGroups, crafting.GroupID(g))
	}

	return recipe
}

// transformStorage converts import format to domain format.
func transformStorage(imp StorageImport) crafting.StorageSnapshot {
	snap := crafting.StorageSnapshot{StorageID: imp.StorageID, Name: imp.Name, Flags: imp.Flags}
	if snap.StorageID == "" {
		snap.StorageID = imp.ID
	}
	for _, st := range imp.Stations {
		snap.Stations = append(snap.Stations, crafting.TileID(st))
	}
	for _, it := range imp.Items {
		if st := it.stack(); !st.IsAir() {
			snap.Items = append(snap.Items, st)
		}
	}
	for _, it := range imp.ModuleItems {
		if st := it.stack(); !st.IsAir() {
			snap.ModuleItems = append(snap.ModuleItems, st)
		}
	}
	return snap
}
