// Package engine serves crafting queries against stored catalogs and storage
// snapshots.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rsned/crafting-resolver/internal/crafting/db"
	"github.com/rsned/crafting-resolver/internal/crafting/metrics"
	"github.com/rsned/crafting-resolver/internal/crafting/refresh"
	"github.com/rsned/crafting-resolver/internal/crafting/resolver"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Options configures an Engine.
type Options struct {
	Resolver        resolver.Options
	DefaultMaxStack uint32
	CacheSize       int
	CacheTTL        time.Duration
	Metrics         *metrics.Collector
	Logger          *slog.Logger

	// Prewarm publishes availability for every stored storage in the
	// background after each catalog load.
	Prewarm bool
}

// DefaultOptions returns the options used by tests and embedded engines.
func DefaultOptions() Options {
	return Options{
		Resolver:        resolver.DefaultOptions(),
		DefaultMaxStack: resolver.DefaultMaxStack,
		CacheSize:       1024,
		CacheTTL:        5 * time.Minute,
	}
}

// Engine is the query engine for crafting operations. It is safe for
// concurrent use; crafts against the same storage are serialized.
type Engine struct {
	db       *db.DB
	storages *db.StorageStore
	opts     Options
	metrics  *metrics.Collector
	logger   *slog.Logger

	resolver atomic.Pointer[resolver.Resolver]

	bg     context.Context
	stopBG context.CancelFunc

	maxCraftable *Cache[uint32]
	simulations  *Cache[crafting.SimulationResult]

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the per-storage state. mu serializes crafts and published set
// refreshes against the same storage.
type session struct {
	mu        sync.Mutex
	refresher *refresh.Refresher

	schedMu   sync.Mutex
	schedRev  uint64
	schedDone <-chan struct{}
}

// schedule starts a background full pass at revision unless one at the same
// or a newer revision was already started.
func (s *session) schedule(ctx context.Context, revision uint64, inv resolver.Inventory) <-chan struct{} {
	s.schedMu.Lock()
	defer s.schedMu.Unlock()
	if s.schedDone != nil && s.schedRev >= revision {
		return s.schedDone
	}
	s.schedRev, s.schedDone = revision, s.refresher.Schedule(ctx, revision, inv)
	return s.schedDone
}

// New creates an Engine and loads the catalog from database.
func New(ctx context.Context, database *db.DB, opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	opts.Resolver.Logger = opts.Logger

	e := &Engine{
		db:           database,
		storages:     db.NewStorageStore(database),
		opts:         opts,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		maxCraftable: NewCache[uint32]("max_craftable", opts.CacheSize, opts.CacheTTL, opts.Metrics),
		simulations:  NewCache[crafting.SimulationResult]("simulation", opts.CacheSize, opts.CacheTTL, opts.Metrics),
		sessions:     make(map[string]*session),
	}
	e.bg, e.stopBG = context.WithCancel(context.Background())
	if err := e.Reload(ctx); err != nil {
		e.stopBG()
		return nil, err
	}
	return e, nil
}

// Reload rebuilds the catalog from the database. Cached answers and
// published availability sets of the old catalog are dropped.
func (e *Engine) Reload(ctx context.Context) error {
	snap, err := db.LoadCatalog(ctx, e.db)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	catalog, err := resolver.NewCatalog(snap.Recipes, snap.Groups, snap.Items, resolver.WithDefaultMaxStack(e.opts.DefaultMaxStack))
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}
	e.resolver.Store(resolver.New(catalog, e.opts.Resolver))

	e.mu.Lock()
	old := e.sessions
	e.sessions = make(map[string]*session)
	e.mu.Unlock()
	for _, s := range old {
		s.refresher.Stop()
	}
	e.maxCraftable.Purge()
	e.simulations.Purge()

	e.logger.Info("catalog loaded",
		"recipes", humanize.Comma(int64(catalog.Len())),
		"groups", humanize.Comma(int64(len(snap.Groups))),
		"items", humanize.Comma(int64(len(snap.Items))))

	if e.opts.Prewarm {
		e.prewarm(ctx)
	}
	return nil
}

// prewarm schedules a full pass for every stored storage.
func (e *Engine) prewarm(ctx context.Context) {
	list, err := e.storages.ListStorages(ctx)
	if err != nil {
		e.logger.Warn("listing storages for prewarm", "error", err)
		return
	}
	for _, info := range list {
		snap, err := e.storages.LoadSnapshot(ctx, info.ID)
		if err != nil {
			e.logger.Warn("loading storage for prewarm", "storage", info.ID, "error", err)
			continue
		}
		e.session(info.ID).schedule(e.bg, snap.Revision, resolver.InventoryFromSnapshot(*snap, nil))
	}
	e.logger.Debug("prewarm scheduled", "storages", len(list))
}

// keepFresh schedules a background pass when storage changed since its
// published set. Storages never published stay unpublished.
func (e *Engine) keepFresh(snap *crafting.StorageSnapshot) {
	s := e.session(snap.StorageID)
	if cur := s.refresher.Current().Revision; cur == 0 || cur >= snap.Revision {
		return
	}
	s.schedule(e.bg, snap.Revision, resolver.InventoryFromSnapshot(*snap, nil))
}

// Close stops background refreshes.
func (e *Engine) Close() {
	e.stopBG()
	e.mu.Lock()
	sessions := e.sessions
	e.sessions = make(map[string]*session)
	e.mu.Unlock()
	for _, s := range sessions {
		s.refresher.Stop()
	}
}

// Resolver returns the resolver of the current catalog.
func (e *Engine) Resolver() *resolver.Resolver {
	return e.resolver.Load()
}

func (e *Engine) session(storageID string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[storageID]
	if !ok {
		s = &session{refresher: refresh.New(e.Resolver(), e.logger.With("storage", storageID))}
		e.sessions[storageID] = s
	}
	return s
}

// recipe resolves id in the catalog of r. Callers load r once so the recipe
// and the resolver come from the same catalog across a Reload.
func (e *Engine) recipe(r *resolver.Resolver, id string) (*crafting.Recipe, error) {
	if id == "" {
		return nil, errors.New("recipe_id is required")
	}
	recipe, ok := r.Catalog().Recipe(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", resolver.ErrRecipeNotFound, id)
	}
	return recipe, nil
}

func (e *Engine) snapshot(ctx context.Context, storageID string) (*crafting.StorageSnapshot, error) {
	if storageID == "" {
		return nil, errors.New("storage_id is required")
	}
	return e.storages.LoadSnapshot(ctx, storageID)
}

// observe records an operation's latency and outcome. Use it deferred with a
// named error result.
func (e *Engine) observe(operation string, start time.Time, err *error) {
	e.metrics.Observe(operation, time.Since(start).Seconds(), *err)
}
