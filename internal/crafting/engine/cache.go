package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rsned/crafting-resolver/internal/crafting/metrics"
	"github.com/rsned/crafting-resolver/pkg/crafting"
)

// Stamp keys a cached resolver answer. Recipes are compared by identity, so
// reloading the catalog invalidates every entry; a storage write bumps
// Revision and does the same for that storage.
type Stamp struct {
	Recipe   *crafting.Recipe
	Storage  string
	Revision uint64
	Quantity uint32
	Blocked  string
}

func stamp(recipe *crafting.Recipe, snap *crafting.StorageSnapshot, quantity uint32, blocked []crafting.StackKey) Stamp {
	return Stamp{
		Recipe:   recipe,
		Storage:  snap.StorageID,
		Revision: snap.Revision,
		Quantity: quantity,
		Blocked:  blockedKey(blocked),
	}
}

// blockedKey is an order-independent encoding of a block list.
func blockedKey(blocked []crafting.StackKey) string {
	if len(blocked) == 0 {
		return ""
	}
	parts := make([]string, len(blocked))
	for i, k := range blocked {
		parts[i] = string(k.Item) + "#" + k.Variant
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Cache is a bounded, expiring map of resolver answers.
type Cache[V any] struct {
	name    string
	lru     *expirable.LRU[Stamp, V]
	metrics *metrics.Collector
}

// NewCache creates a cache holding at most size entries for ttl.
func NewCache[V any](name string, size int, ttl time.Duration, m *metrics.Collector) *Cache[V] {
	return &Cache[V]{
		name:    name,
		lru:     expirable.NewLRU[Stamp, V](size, nil, ttl),
		metrics: m,
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key Stamp) (V, bool) {
	v, ok := c.lru.Get(key)
	c.metrics.CacheLookup(c.name, ok)
	return v, ok
}

// Add stores value under key.
func (c *Cache[V]) Add(key Stamp, value V) {
	c.lru.Add(key, value)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}
