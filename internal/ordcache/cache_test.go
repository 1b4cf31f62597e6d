package ordcache_test

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/ordcache"
	"github.com/sap/ord-directory-server/internal/orddoc"
)

func TestHasDirectoryHashChanged_FirstCallFalse(t *testing.T) {
	c := ordcache.New()
	assert.False(t, c.HasDirectoryHashChanged("/data/current", "h1"))
}

func TestHasDirectoryHashChanged_SameHashFalse(t *testing.T) {
	c := ordcache.New()
	assert.False(t, c.HasDirectoryHashChanged("/data/current", "h1"))
	assert.False(t, c.HasDirectoryHashChanged("/data/current", "h1"))
}

func TestHasDirectoryHashChanged_DifferentHashInvalidates(t *testing.T) {
	c := ordcache.New()
	assert.False(t, c.HasDirectoryHashChanged("/data/current", "h1"))

	c.CacheDocument("h1", "doc1.json", orddoc.Document{"ordId": "a"})
	c.SetCachedOrdConfig("h1", "config-h1")

	assert.True(t, c.HasDirectoryHashChanged("/data/current", "h2"))

	assert.Zero(t, c.GetDocumentFromCache("h1", "doc1.json"))
	_, ok := c.GetCachedOrdConfig("h1")
	assert.False(t, ok)
}

func TestCacheDocumentAndGet(t *testing.T) {
	c := ordcache.New()
	doc := orddoc.Document{"ordId": "example"}
	c.CacheDocument("h1", "doc1.json", doc)

	got := c.GetDocumentFromCache("h1", "doc1.json")
	assert.Equal(t, "example", got["ordId"])

	assert.Zero(t, c.GetDocumentFromCache("h1", "missing.json"))
	assert.Zero(t, c.GetDocumentFromCache("other-hash", "doc1.json"))
}

func TestCacheDocument_PathsOfDeduplicated(t *testing.T) {
	c := ordcache.New()
	c.CacheDocument("h1", "doc1.json", orddoc.Document{})
	c.CacheDocument("h1", "doc1.json", orddoc.Document{"ordId": "updated"})
	c.CacheDocument("h1", "doc2.json", orddoc.Document{})

	paths, ok := c.GetCachedDirectoryDocumentPaths("h1")
	assert.True(t, ok)
	assert.Equal(t, 2, len(paths))
}

func TestConfigFqnPathsRoundTrip(t *testing.T) {
	c := ordcache.New()
	c.SetCachedOrdConfig("h1", map[string]any{"documents": []any{}})
	c.SetCachedFqnMap("h1", map[string][]ordcache.FqnEntry{
		"sap.xref:example": {{FileName: "doc1.json", FilePath: "doc1.json"}},
	})
	c.SetCachedDirectoryDocumentPaths("h1", []string{"doc1.json"})

	config, ok := c.GetCachedOrdConfig("h1")
	assert.True(t, ok)
	assert.NotZero(t, config)

	fqn, ok := c.GetCachedFqnMap("h1")
	assert.True(t, ok)
	assert.Equal(t, 1, len(fqn["sap.xref:example"]))

	paths, ok := c.GetCachedDirectoryDocumentPaths("h1")
	assert.True(t, ok)
	assert.Equal(t, []string{"doc1.json"}, paths)
}

func TestInvalidateCacheForDirectory(t *testing.T) {
	c := ordcache.New()
	c.HasDirectoryHashChanged("/data/current", "h1")
	c.CacheDocument("h1", "doc1.json", orddoc.Document{})
	c.SetCachedOrdConfig("h1", "config")

	c.InvalidateCacheForDirectory("h1")

	assert.Zero(t, c.GetDocumentFromCache("h1", "doc1.json"))
	_, ok := c.GetCachedOrdConfig("h1")
	assert.False(t, ok)

	// The directory's remembered hash is gone too, so the next observation
	// of h1 is treated as novel rather than unchanged.
	assert.False(t, c.HasDirectoryHashChanged("/data/current", "h1"))
}

func TestClearCache(t *testing.T) {
	c := ordcache.New()
	c.HasDirectoryHashChanged("/data/current", "h1")
	c.CacheDocument("h1", "doc1.json", orddoc.Document{})
	c.SetCachedOrdConfig("h1", "config")

	c.ClearCache()

	assert.Zero(t, c.GetDocumentFromCache("h1", "doc1.json"))
	assert.False(t, c.IsWarm("h1"))
	assert.False(t, c.HasDirectoryHashChanged("/data/current", "h1"))
}

func TestIsWarm(t *testing.T) {
	c := ordcache.New()
	assert.False(t, c.IsWarm("h1"))
	c.SetCachedOrdConfig("h1", "config")
	assert.True(t, c.IsWarm("h1"))
}
