package records

import (
	"encoding/json"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultCacheSize is 10 MB, plenty for per-user record lists.
	DefaultCacheSize = 10 * 1024 * 1024

	cacheExpireSeconds = 5 * 60
)

// Cache is a small read-through cache for per-user record lists. The
// ledger service invalidates a user's slot after any committed write
// that can move records.
type Cache struct {
	cache *freecache.Cache
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		cache: freecache.NewCache(size),
	}
}

func (c *Cache) GetRecords(userID string) ([]PersonalRecord, bool) {
	cached, err := c.cache.Get([]byte(userID))
	if err != nil {
		// freecache returns an error on plain miss too
		return nil, false
	}

	var records []PersonalRecord
	if err := json.Unmarshal(cached, &records); err != nil {
		log.Errorf("unmarshal cached records for user [%s]: %s", userID, err)
		return nil, false
	}
	return records, true
}

func (c *Cache) SetRecords(userID string, records []PersonalRecord) {
	recordsJson, err := json.Marshal(records)
	if err != nil {
		log.Errorf("marshal records for cache, user [%s]: %s", userID, err)
		return
	}
	if err := c.cache.Set([]byte(userID), recordsJson, cacheExpireSeconds); err != nil {
		log.Errorf("cache records for user [%s]: %s", userID, err)
	}
}

func (c *Cache) Invalidate(userID string) {
	c.cache.Del([]byte(userID))
}
