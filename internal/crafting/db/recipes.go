package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// RecipeStore handles recipe data access.
type RecipeStore struct {
	db *DB
}

// NewRecipeStore creates a new RecipeStore.
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// GetRecipe retrieves a single recipe by ID with its ingredients, stations,
// groups and conditions. It returns nil when the recipe does not exist.
func (s *RecipeStore) GetRecipe(ctx context.Context, id string) (*crafting.Recipe, error) {
	recipe := &crafting.Recipe{ID: id}

	var stationOnly int
	err := s.db.QueryRowContext(ctx, `
		SELECT name, result_item, result_quantity, result_variant, station_only
		FROM recipes WHERE id = ?
	`, id).Scan(
		&recipe.Name,
		&recipe.Result.Item,
		&recipe.Result.Quantity,
		&recipe.Result.Variant,
		&stationOnly,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying recipe: %w", err)
	}
	recipe.StationOnly = stationOnly != 0

	if err := s.loadDetails(ctx, recipe); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (s *RecipeStore) loadDetails(ctx context.Context, r *crafting.Recipe) error {
	ingredients, err := s.getIngredients(ctx, r.ID)
	if err != nil {
		return err
	}
	r.RequiredItems = ingredients

	if r.RequiredStations, err = queryStrings[crafting.TileID](ctx, s.db, `
		SELECT station FROM recipe_stations WHERE recipe_id = ? ORDER BY station
	`, r.ID); err != nil {
		return fmt.Errorf("querying recipe stations: %w", err)
	}
	if r.AcceptedGroups, err = queryStrings[crafting.GroupID](ctx, s.db, `
		SELECT group_id FROM recipe_groups WHERE recipe_id = ? ORDER BY position
	`, r.ID); err != nil {
		return fmt.Errorf("querying recipe groups: %w", err)
	}
	if r.Conditions, err = queryStrings[string](ctx, s.db, `
		SELECT condition FROM recipe_conditions WHERE recipe_id = ? ORDER BY condition
	`, r.ID); err != nil {
		return fmt.Errorf("querying recipe conditions: %w", err)
	}
	return nil
}

// getIngredients retrieves the ingredients of a recipe in declaration order.
func (s *RecipeStore) getIngredients(ctx context.Context, recipeID string) ([]crafting.ItemStack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, quantity, variant
		FROM recipe_ingredients
		WHERE recipe_id = ?
		ORDER BY position
	`, recipeID)
	if err != nil {
		return nil, fmt.Errorf("querying recipe ingredients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ingredients []crafting.ItemStack
	for rows.Next() {
		var st crafting.ItemStack
		if err := rows.Scan(&st.Item, &st.Quantity, &st.Variant); err != nil {
			return nil, fmt.Errorf("scanning ingredient: %w", err)
		}
		ingredients = append(ingredients, st)
	}

	return ingredients, rows.Err()
}

// queryStrings runs a single-column query and converts each value to T.
func queryStrings[T ~string](ctx context.Context, db *DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, T(v))
	}
	return out, rows.Err()
}

// FindRecipesByOutput finds recipes that produce a given item, in
// declaration order.
func (s *RecipeStore) FindRecipesByOutput(ctx context.Context, item crafting.ItemID) ([]string, error) {
	ids, err := queryStrings[string](ctx, s.db, `
		SELECT id FROM recipes WHERE result_item = ? ORDER BY position
	`, string(item))
	if err != nil {
		return nil, fmt.Errorf("finding recipes by output: %w", err)
	}
	return ids, nil
}

// GetRecipesUsingItem finds recipes that list item as a literal ingredient.
// Substitution groups are resolved in memory, not here.
func (s *RecipeStore) GetRecipesUsingItem(ctx context.Context, item crafting.ItemID) ([]string, error) {
	ids, err := queryStrings[string](ctx, s.db, `
		SELECT DISTINCT r.id
		FROM recipes r
		JOIN recipe_ingredients ri ON ri.recipe_id = r.id
		WHERE ri.item_id = ?
		ORDER BY r.position
	`, string(item))
	if err != nil {
		return nil, fmt.Errorf("finding recipes using item: %w", err)
	}
	return ids, nil
}

// CountRecipes returns the total number of recipes.
func (s *RecipeStore) CountRecipes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting recipes: %w", err)
	}
	return count, nil
}

// GetAllRecipes retrieves every recipe in declaration order.
func (s *RecipeStore) GetAllRecipes(ctx context.Context) ([]crafting.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, result_item, result_quantity, result_variant, station_only
		FROM recipes
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all recipes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recipes []crafting.Recipe
	for rows.Next() {
		var r crafting.Recipe
		var stationOnly int
		if err := rows.Scan(
			&r.ID,
			&r.Name,
			&r.Result.Item,
			&r.Result.Quantity,
			&r.Result.Variant,
			&stationOnly,
		); err != nil {
			return nil, fmt.Errorf("scanning recipe: %w", err)
		}
		r.StationOnly = stationOnly != 0
		recipes = append(recipes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Close before the detail queries; in-memory databases have one connection.
	_ = rows.Close()

	for i := range recipes {
		if err := s.loadDetails(ctx, &recipes[i]); err != nil {
			return nil, fmt.Errorf("loading details for %s: %w", recipes[i].ID, err)
		}
	}

	return recipes, nil
}

// BulkInsertRecipes inserts or replaces recipes in a transaction. New recipes
// are appended after the existing ones in declaration order; a replaced
// recipe keeps its position.
func (s *RecipeStore) BulkInsertRecipes(ctx context.Context, recipes []crafting.Recipe) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM recipes`).Scan(&next); err != nil {
			return fmt.Errorf("reading recipe position: %w", err)
		}

		recipeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recipes (id, name, position, result_item, result_quantity, result_variant, station_only)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				result_item = excluded.result_item,
				result_quantity = excluded.result_quantity,
				result_variant = excluded.result_variant,
				station_only = excluded.station_only
		`)
		if err != nil {
			return fmt.Errorf("preparing recipe statement: %w", err)
		}
		defer func() { _ = recipeStmt.Close() }()

		ingStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, position, item_id, quantity, variant)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing ingredient statement: %w", err)
		}
		defer func() { _ = ingStmt.Close() }()

		for _, r := range recipes {
			if _, err := recipeStmt.ExecContext(ctx,
				r.ID, r.Name, next, string(r.Result.Item), r.Result.Quantity, r.Result.Variant, boolInt(r.StationOnly),
			); err != nil {
				return fmt.Errorf("inserting recipe %s: %w", r.ID, err)
			}
			next++

			for _, table := range []string{"recipe_ingredients", "recipe_stations", "recipe_groups", "recipe_conditions"} {
				if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE recipe_id = ?`, r.ID); err != nil {
					return fmt.Errorf("clearing %s for %s: %w", table, r.ID, err)
				}
			}

			for i, ing := range r.RequiredItems {
				if _, err := ingStmt.ExecContext(ctx, r.ID, i, string(ing.Item), ing.Quantity, ing.Variant); err != nil {
					return fmt.Errorf("inserting ingredient for %s: %w", r.ID, err)
				}
			}
			for _, st := range r.RequiredStations {
				if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO recipe_stations (recipe_id, station) VALUES (?, ?)`, r.ID, string(st)); err != nil {
					return fmt.Errorf("inserting station for %s: %w", r.ID, err)
				}
			}
			for i, g := range r.AcceptedGroups {
				if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO recipe_groups (recipe_id, group_id, position) VALUES (?, ?, ?)`, r.ID, string(g), i); err != nil {
					return fmt.Errorf("inserting group for %s: %w", r.ID, err)
				}
			}
			for _, c := range r.Conditions {
				if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO recipe_conditions (recipe_id, condition) VALUES (?, ?)`, r.ID, c); err != nil {
					return fmt.Errorf("inserting condition for %s: %w", r.ID, err)
				}
			}
		}

		return nil
	})
}

// ClearRecipes removes all recipe data (for re-sync).
func (s *RecipeStore) ClearRecipes(ctx context.Context) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		// Foreign keys cascade to the detail tables.
		_, err := tx.ExecContext(ctx, `DELETE FROM recipes`)
		return err
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
