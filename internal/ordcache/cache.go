// Package ordcache is the hash-keyed, directory-versioned in-memory cache of
// processed ORD documents and derived configuration described in spec.md
// §4.3. It is a pure in-memory store, deliberately without TTL or eviction:
// entries live until the fingerprint they are keyed by is invalidated by a
// directory-hash change.
package ordcache

import (
	"sync"
)

// FqnEntry is one location a given ordId appears in, per spec.md §3's
// fqnOf mapping.
type FqnEntry struct {
	FileName string
	FilePath string
}

// Cache stores, per directory fingerprint H: docByPath[H], pathsOf[H],
// configOf[H], fqnOf[H], and the last-known fingerprint per directory used
// for change detection.
type Cache struct {
	mu *sync.RWMutex

	docByPath map[string]map[string]map[string]any
	pathsOf   map[string][]string
	configOf  map[string]any
	fqnOf     map[string]map[string][]FqnEntry

	lastKnownHashForDir map[string]string
}

func New() *Cache {
	return &Cache{
		mu:                  &sync.RWMutex{},
		docByPath:           make(map[string]map[string]map[string]any),
		pathsOf:             make(map[string][]string),
		configOf:            make(map[string]any),
		fqnOf:               make(map[string]map[string][]FqnEntry),
		lastKnownHashForDir: make(map[string]string),
	}
}

// HasDirectoryHashChanged implements spec.md §4.3: the first call for a
// directory returns false and remembers H; a subsequent call with a
// different H returns true, invalidates every entry keyed by the remembered
// fingerprint, and remembers the new one.
func (c *Cache) HasDirectoryHashChanged(dir, hash string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	previous, known := c.lastKnownHashForDir[dir]
	c.lastKnownHashForDir[dir] = hash
	if !known {
		return false
	}
	if previous == hash {
		return false
	}
	c.invalidateLocked(previous)
	return true
}

// CacheDocument stores doc under path for fingerprint H, appending path to
// pathsOf[H] if it is not already present.
func (c *Cache) CacheDocument(hash, path string, doc map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byPath, ok := c.docByPath[hash]
	if !ok {
		byPath = make(map[string]map[string]any)
		c.docByPath[hash] = byPath
	}
	byPath[path] = doc

	for _, existing := range c.pathsOf[hash] {
		if existing == path {
			return
		}
	}
	c.pathsOf[hash] = append(c.pathsOf[hash], path)
}

// GetDocumentFromCache returns the cached document, or nil if not present.
func (c *Cache) GetDocumentFromCache(hash, path string) map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byPath, ok := c.docByPath[hash]
	if !ok {
		return nil
	}
	return byPath[path]
}

func (c *Cache) SetCachedOrdConfig(hash string, config any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configOf[hash] = config
}

func (c *Cache) GetCachedOrdConfig(hash string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	config, ok := c.configOf[hash]
	return config, ok
}

func (c *Cache) SetCachedFqnMap(hash string, fqn map[string][]FqnEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fqnOf[hash] = fqn
}

func (c *Cache) GetCachedFqnMap(hash string) (map[string][]FqnEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fqn, ok := c.fqnOf[hash]
	return fqn, ok
}

func (c *Cache) SetCachedDirectoryDocumentPaths(hash string, paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pathsOf[hash] = paths
}

func (c *Cache) GetCachedDirectoryDocumentPaths(hash string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	paths, ok := c.pathsOf[hash]
	return paths, ok
}

// InvalidateCacheForDirectory purges every entry keyed by hash and drops any
// lastKnownHashForDir entries pointing at it.
func (c *Cache) InvalidateCacheForDirectory(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(hash)
}

func (c *Cache) invalidateLocked(hash string) {
	delete(c.docByPath, hash)
	delete(c.pathsOf, hash)
	delete(c.configOf, hash)
	delete(c.fqnOf, hash)
	for dir, h := range c.lastKnownHashForDir {
		if h == hash {
			delete(c.lastKnownHashForDir, dir)
		}
	}
}

// ClearCache drops every entry, as if the process had just started.
func (c *Cache) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docByPath = make(map[string]map[string]map[string]any)
	c.pathsOf = make(map[string][]string)
	c.configOf = make(map[string]any)
	c.fqnOf = make(map[string]map[string][]FqnEntry)
	c.lastKnownHashForDir = make(map[string]string)
}

// IsWarm reports whether configOf[H] is present, which per spec.md §3's
// warmup-atomicity invariant implies pathsOf[H] and fqnOf[H] are too.
func (c *Cache) IsWarm(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.configOf[hash]
	return ok
}
