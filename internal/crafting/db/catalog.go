package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// CatalogStore handles substitution groups and item metadata.
type CatalogStore struct {
	db *DB
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db *DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// BulkInsertGroups inserts or replaces substitution groups. Member order is
// kept as given.
func (s *CatalogStore) BulkInsertGroups(ctx context.Context, groups []crafting.SubstitutionGroup) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM groups`).Scan(&next); err != nil {
			return fmt.Errorf("reading group position: %w", err)
		}

		for _, g := range groups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO groups (id, name, position) VALUES (?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET name = excluded.name
			`, string(g.ID), g.Name, next); err != nil {
				return fmt.Errorf("inserting group %s: %w", g.ID, err)
			}
			next++

			if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, string(g.ID)); err != nil {
				return fmt.Errorf("clearing members of %s: %w", g.ID, err)
			}
			for i, m := range g.Members {
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO group_members (group_id, item_id, position) VALUES (?, ?, ?)
				`, string(g.ID), string(m), i); err != nil {
					return fmt.Errorf("inserting member of %s: %w", g.ID, err)
				}
			}
		}
		return nil
	})
}

// GetAllGroups returns every group with its members, in declaration order.
func (s *CatalogStore) GetAllGroups(ctx context.Context) ([]crafting.SubstitutionGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.id, g.name, m.item_id
		FROM groups g
		LEFT JOIN group_members m ON m.group_id = g.id
		ORDER BY g.position, m.position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []crafting.SubstitutionGroup
	for rows.Next() {
		var id, name string
		var member sql.NullString
		if err := rows.Scan(&id, &name, &member); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		if n := len(groups); n == 0 || groups[n-1].ID != crafting.GroupID(id) {
			groups = append(groups, crafting.SubstitutionGroup{ID: crafting.GroupID(id), Name: name})
		}
		if member.Valid {
			g := &groups[len(groups)-1]
			g.Members = append(g.Members, crafting.ItemID(member.String))
		}
	}

	return groups, rows.Err()
}

// BulkInsertItems inserts or replaces item metadata.
func (s *CatalogStore) BulkInsertItems(ctx context.Context, items []crafting.ItemInfo) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO items (id, name, max_stack) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, max_stack = excluded.max_stack
		`)
		if err != nil {
			return fmt.Errorf("preparing item statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, it := range items {
			if _, err := stmt.ExecContext(ctx, string(it.ID), it.Name, it.MaxStack); err != nil {
				return fmt.Errorf("inserting item %s: %w", it.ID, err)
			}
		}
		return nil
	})
}

// GetAllItems returns all item metadata ordered by id.
func (s *CatalogStore) GetAllItems(ctx context.Context) ([]crafting.ItemInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, max_stack FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []crafting.ItemInfo
	for rows.Next() {
		var it crafting.ItemInfo
		if err := rows.Scan(&it.ID, &it.Name, &it.MaxStack); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

// Snapshot is the full catalog as stored.
type Snapshot struct {
	Recipes []crafting.Recipe
	Groups  []crafting.SubstitutionGroup
	Items   []crafting.ItemInfo
}

// LoadCatalog reads recipes, groups and items in declaration order.
func LoadCatalog(ctx context.Context, db *DB) (*Snapshot, error) {
	recipes, err := NewRecipeStore(db).GetAllRecipes(ctx)
	if err != nil {
		return nil, err
	}
	cs := NewCatalogStore(db)
	groups, err := cs.GetAllGroups(ctx)
	if err != nil {
		return nil, err
	}
	items, err := cs.GetAllItems(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Recipes: recipes, Groups: groups, Items: items}, nil
}
