package gateway

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// promptVersionCacheCapacity is fixed at 500 per §4.7.
const promptVersionCacheCapacity = 500

// PromptVersionCache is a bounded LRU cache of resolved PromptVersions keyed
// by prompt id (C7). It holds non-authoritative copies: reads fall back to
// the store on miss and re-insert. Insert and Invalidate update an entry
// explicitly; the store's prompt CRUD (mysql.Store) does not call them, so a
// version written there is seen by Get only once its cached entry is
// evicted or invalidated.
type PromptVersionCache struct {
	cache *lru.Cache[string, *PromptVersion]
	store PromptStore
}

// PromptStore is the outbound contract C2/C7 depend on (§6).
type PromptStore interface {
	GetCurrentVersion(promptID string) (*PromptVersion, error)
}

// NewPromptVersionCache builds a cache backed by store, with the capacity
// fixed by §4.7 (do not make this configurable — an unbounded cache is
// explicitly disallowed by the §9 design note).
func NewPromptVersionCache(store PromptStore) *PromptVersionCache {
	c, _ := lru.New[string, *PromptVersion](promptVersionCacheCapacity)

	return &PromptVersionCache{cache: c, store: store}
}

// Get returns the cached PromptVersion for promptID, loading and caching it
// from the store on a miss. The load runs outside any lock: concurrent misses
// on one key each read the store, and an Invalidate that lands between a
// miss's store read and its Add is overwritten by the value that miss read.
func (c *PromptVersionCache) Get(promptID string) (*PromptVersion, error) {
	if v, ok := c.cache.Get(promptID); ok {
		return v, nil
	}

	v, err := c.store.GetCurrentVersion(promptID)
	if err != nil {
		return nil, err
	}

	c.cache.Add(promptID, v)

	return v, nil
}

// Insert caches v directly, for use by the prompt CRUD layer right after a
// create/update so the next Get is guaranteed fresh without a store round
// trip.
func (c *PromptVersionCache) Insert(promptID string, v *PromptVersion) {
	c.cache.Add(promptID, v)
}

// Invalidate removes promptID from the cache, for use by the prompt CRUD
// layer on update/delete.
func (c *PromptVersionCache) Invalidate(promptID string) {
	c.cache.Remove(promptID)
}
