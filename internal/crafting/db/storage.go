package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rsned/crafting-resolver/pkg/crafting"
)

var (
	// ErrStorageNotFound is returned for an unknown storage id.
	ErrStorageNotFound = errors.New("storage not found")

	// ErrRevisionConflict is returned when a storage changed since the
	// snapshot a craft was computed from.
	ErrRevisionConflict = errors.New("storage revision conflict")

	// ErrInsufficientStock is returned when a withdraw exceeds what a storage
	// holds.
	ErrInsufficientStock = errors.New("insufficient stock")
)

const (
	tierStorage = "storage"
	tierModule  = "module"
)

// StorageInfo summarizes one stored storage.
type StorageInfo struct {
	ID       string `json:"storage_id"`
	Name     string `json:"name,omitempty"`
	Revision uint64 `json:"revision"`
	Stacks   int    `json:"stacks"`
}

// StorageStore handles storage snapshots.
type StorageStore struct {
	db *DB
}

// NewStorageStore creates a new StorageStore.
func NewStorageStore(db *DB) *StorageStore {
	return &StorageStore{db: db}
}

// ListStorages returns every storage ordered by id.
func (s *StorageStore) ListStorages(ctx context.Context) ([]StorageInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.revision, COUNT(st.position)
		FROM storages s
		LEFT JOIN storage_stacks st ON st.storage_id = s.id
		GROUP BY s.id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing storages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StorageInfo
	for rows.Next() {
		var info StorageInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Revision, &info.Stacks); err != nil {
			return nil, fmt.Errorf("scanning storage: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// LoadSnapshot reads one storage with its stacks, stations and flags.
func (s *StorageStore) LoadSnapshot(ctx context.Context, id string) (*crafting.StorageSnapshot, error) {
	var snap *crafting.StorageSnapshot
	err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		snap, err = loadSnapshot(ctx, tx, id)
		return err
	})
	return snap, err
}

func loadSnapshot(ctx context.Context, tx *sql.Tx, id string) (*crafting.StorageSnapshot, error) {
	snap := &crafting.StorageSnapshot{StorageID: id}
	err := tx.QueryRowContext(ctx, `SELECT name, revision FROM storages WHERE id = ?`, id).Scan(&snap.Name, &snap.Revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStorageNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying storage: %w", err)
	}

	if snap.Items, err = readStacks(ctx, tx, id, tierStorage); err != nil {
		return nil, err
	}
	if snap.ModuleItems, err = readStacks(ctx, tx, id, tierModule); err != nil {
		return nil, err
	}

	stations, err := txStrings(ctx, tx, `SELECT station FROM storage_stations WHERE storage_id = ? ORDER BY station`, id)
	if err != nil {
		return nil, fmt.Errorf("querying storage stations: %w", err)
	}
	for _, st := range stations {
		snap.Stations = append(snap.Stations, crafting.TileID(st))
	}
	if snap.Flags, err = txStrings(ctx, tx, `SELECT flag FROM storage_flags WHERE storage_id = ? ORDER BY flag`, id); err != nil {
		return nil, fmt.Errorf("querying storage flags: %w", err)
	}
	return snap, nil
}

// ReplaceStorage stores snap as the full contents of its storage and returns
// the new revision. Air stacks are dropped.
func (s *StorageStore) ReplaceStorage(ctx context.Context, snap crafting.StorageSnapshot) (uint64, error) {
	if snap.StorageID == "" {
		return 0, errors.New("storage id is required")
	}

	var revision uint64
	err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO storages (id, name, revision, updated_at) VALUES (?, ?, 1, datetime('now'))
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				revision = storages.revision + 1,
				updated_at = excluded.updated_at
		`, snap.StorageID, snap.Name); err != nil {
			return fmt.Errorf("upserting storage: %w", err)
		}
		if err := tx.QueryRowContext(ctx, `SELECT revision FROM storages WHERE id = ?`, snap.StorageID).Scan(&revision); err != nil {
			return fmt.Errorf("reading revision: %w", err)
		}

		for _, table := range []string{"storage_stations", "storage_flags"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE storage_id = ?`, snap.StorageID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		for _, st := range snap.Stations {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO storage_stations (storage_id, station) VALUES (?, ?)`, snap.StorageID, string(st)); err != nil {
				return fmt.Errorf("inserting station: %w", err)
			}
		}
		for _, f := range snap.Flags {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO storage_flags (storage_id, flag) VALUES (?, ?)`, snap.StorageID, f); err != nil {
				return fmt.Errorf("inserting flag: %w", err)
			}
		}

		if err := writeStacks(ctx, tx, snap.StorageID, tierStorage, snap.Items); err != nil {
			return err
		}
		return writeStacks(ctx, tx, snap.StorageID, tierModule, snap.ModuleItems)
	})
	return revision, err
}

// ApplyCraft withdraws and deposits the stacks of a craft result in one
// transaction and returns the new revision. It fails with
// ErrRevisionConflict when the storage moved past revision, and with
// ErrInsufficientStock when a withdraw cannot be covered; in both cases the
// storage is left unchanged.
func (s *StorageStore) ApplyCraft(ctx context.Context, id string, revision uint64, res *crafting.CraftResult, maxStack func(crafting.ItemID) uint32) (uint64, error) {
	var next uint64
	err := s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		snap, err := loadSnapshot(ctx, tx, id)
		if err != nil {
			return err
		}
		if snap.Revision != revision {
			return fmt.Errorf("%w: %s is at %d, craft computed at %d", ErrRevisionConflict, id, snap.Revision, revision)
		}

		items, modules := snap.Items, snap.ModuleItems
		for _, w := range res.ItemsToWithdraw {
			if items, err = withdraw(items, w); err != nil {
				return err
			}
		}
		for _, w := range res.ModuleItemsConsumed {
			if modules, err = withdraw(modules, w); err != nil {
				return err
			}
		}
		for _, p := range res.ItemsProduced {
			items = deposit(items, p, maxStack(p.Item))
		}

		if err := writeStacks(ctx, tx, id, tierStorage, items); err != nil {
			return err
		}
		if err := writeStacks(ctx, tx, id, tierModule, modules); err != nil {
			return err
		}

		next = revision + 1
		if _, err := tx.ExecContext(ctx, `
			UPDATE storages SET revision = ?, updated_at = datetime('now') WHERE id = ?
		`, next, id); err != nil {
			return fmt.Errorf("bumping revision: %w", err)
		}
		return nil
	})
	return next, err
}

// DeleteStorage removes a storage and everything in it.
func (s *StorageStore) DeleteStorage(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM storages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting storage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrStorageNotFound, id)
	}
	return nil
}

func readStacks(ctx context.Context, tx *sql.Tx, id, tier string) ([]crafting.ItemStack, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT item_id, quantity, variant
		FROM storage_stacks
		WHERE storage_id = ? AND tier = ?
		ORDER BY position
	`, id, tier)
	if err != nil {
		return nil, fmt.Errorf("querying %s stacks: %w", tier, err)
	}
	defer func() { _ = rows.Close() }()

	var stacks []crafting.ItemStack
	for rows.Next() {
		var st crafting.ItemStack
		if err := rows.Scan(&st.Item, &st.Quantity, &st.Variant); err != nil {
			return nil, fmt.Errorf("scanning stack: %w", err)
		}
		stacks = append(stacks, st)
	}
	return stacks, rows.Err()
}

func writeStacks(ctx context.Context, tx *sql.Tx, id, tier string, stacks []crafting.ItemStack) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM storage_stacks WHERE storage_id = ? AND tier = ?`, id, tier); err != nil {
		return fmt.Errorf("clearing %s stacks: %w", tier, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO storage_stacks (storage_id, tier, position, item_id, quantity, variant)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing stack statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	pos := 0
	for _, st := range stacks {
		if st.IsAir() {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id, tier, pos, string(st.Item), st.Quantity, st.Variant); err != nil {
			return fmt.Errorf("inserting stack: %w", err)
		}
		pos++
	}
	return nil
}

func txStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// withdraw takes w from the stacks with the same item and variant, first
// stack first.
func withdraw(stacks []crafting.ItemStack, w crafting.ItemStack) ([]crafting.ItemStack, error) {
	var have uint32
	for _, st := range stacks {
		if st.Key() == w.Key() {
			have += st.Quantity
		}
	}
	if have < w.Quantity {
		return nil, fmt.Errorf("%w: need %d of %s, have %d", ErrInsufficientStock, w.Quantity, w.Item, have)
	}

	out := make([]crafting.ItemStack, len(stacks))
	copy(out, stacks)
	left := w.Quantity
	for i := range out {
		if left == 0 {
			break
		}
		if out[i].Key() != w.Key() {
			continue
		}
		n := min(left, out[i].Quantity)
		out[i].Quantity -= n
		left -= n
	}
	return out, nil
}

// deposit adds p to stacks, topping up partial stacks of the same kind before
// opening new ones of at most limit items.
func deposit(stacks []crafting.ItemStack, p crafting.ItemStack, limit uint32) []crafting.ItemStack {
	limit = max(limit, 1)
	left := p.Quantity
	for i := range stacks {
		if left == 0 {
			return stacks
		}
		if stacks[i].Key() != p.Key() || stacks[i].Quantity >= limit {
			continue
		}
		n := min(left, limit-stacks[i].Quantity)
		stacks[i].Quantity += n
		left -= n
	}
	for left > 0 {
		n := min(left, limit)
		stacks = append(stacks, crafting.ItemStack{Item: p.Item, Quantity: n, Variant: p.Variant})
		left -= n
	}
	return stacks
}
