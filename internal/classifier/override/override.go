// Package override caches the per-domain_config_id DB override map used by
// cascade step 1 (spec §4.8), grounded on the teacher's
// interfaces.KeyValueStorage caching pattern (resolve once, keep a
// process-local copy keyed by id).
package override

import (
	"sync"

	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/storage/badger"
)

// Cache lazily loads and memoizes DomainOverride records by domain_config_id.
type Cache struct {
	storage *badger.DomainOverrideStorage
	mu      sync.RWMutex
	byID    map[string]map[string]models.Cookie
}

func NewCache(storage *badger.DomainOverrideStorage) *Cache {
	return &Cache{storage: storage, byID: make(map[string]map[string]models.Cookie)}
}

// Lookup returns the override template for cookieName under domainConfigID,
// loading and caching the whole map on first access for that id.
func (c *Cache) Lookup(domainConfigID, cookieName string) (models.Cookie, bool) {
	c.mu.RLock()
	overrides, ok := c.byID[domainConfigID]
	c.mu.RUnlock()
	if !ok {
		overrides = c.load(domainConfigID)
	}
	tmpl, found := overrides[cookieName]
	return tmpl, found
}

func (c *Cache) load(domainConfigID string) map[string]models.Cookie {
	record, err := c.storage.Get(domainConfigID)
	overrides := map[string]models.Cookie{}
	if err == nil && record != nil {
		overrides = record.Overrides
	}
	c.mu.Lock()
	c.byID[domainConfigID] = overrides
	c.mu.Unlock()
	return overrides
}

// Invalidate drops the cached map for domainConfigID so the next Lookup
// reloads it from storage.
func (c *Cache) Invalidate(domainConfigID string) {
	c.mu.Lock()
	delete(c.byID, domainConfigID)
	c.mu.Unlock()
}
