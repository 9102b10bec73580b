package ssi

import "sync"

// Cache keeps identities in memory per wallet to map a verkey to the KMS key
// ID without asking it from the KMS.
type Cache struct {
	cache mapType
	sync.RWMutex
}

type mapType map[string]*Identity

// Add is for the cases when identity is ready.
func (c *Cache) Add(id *Identity) {
	c.LazyAdd(id.VerKey, id)
}

// LazyAdd adds the identity by the name if the existing one doesn't have a
// key ID already.
func (c *Cache) LazyAdd(s string, id *Identity) {
	c.Lock()
	defer c.Unlock()

	if c.cache == nil {
		c.cache = make(mapType)
	}
	old, found := c.cache[s]
	if found && old.KID != "" {
		return
	}
	c.cache[s] = id
}

// Get returns the identity by the verkey or nil.
func (c *Cache) Get(s string) *Identity {
	c.RLock()
	defer c.RUnlock()

	return c.cache[s]
}

func (c *Cache) Clone() *Cache {
	c.RLock()
	defer c.RUnlock()

	nc := make(mapType, len(c.cache))
	cloneMap(nc, c.cache)

	return &Cache{
		cache: nc,
	}
}

func cloneMap(tgt, src mapType) {
	for k, v := range src {
		tgt[k] = v
	}
}
