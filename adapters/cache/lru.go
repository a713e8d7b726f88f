package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/golang/groupcache/lru"
)

// LRU is a bounded, mutex-guarded prompt cache. Prompts are stored under
// their SHA-256 digest so long prompts don't sit in memory twice.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewLRU(maxEntries int) *LRU {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &LRU{cache: lru.New(maxEntries)}
}

func (c *LRU) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.cache.Get(digest(key))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *LRU) Add(key, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(digest(key), reply)
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}

func digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(string) (string, bool) { return "", false }
func (Nop) Add(string, string)        {}
func (Nop) Len() int                  { return 0 }
