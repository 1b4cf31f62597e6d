// Package cachewarm implements the cache warmer described in spec.md §4.3
// and §4.4: rebuilding every cache entry for a directory fingerprint,
// deduplicating concurrent rebuilds with golang.org/x/sync/singleflight
// (the same technique the pack's mirror sync uses for clone deduplication),
// and superseding an in-progress warm when a newer fingerprint arrives.
package cachewarm

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/alecthomas/errors"
	"golang.org/x/sync/singleflight"

	"github.com/sap/ord-directory-server/internal/fingerprint"
	"github.com/sap/ord-directory-server/internal/ordcache"
	"github.com/sap/ord-directory-server/internal/orddoc"
	"github.com/sap/ord-directory-server/internal/ordschema"
)

// yieldEvery controls how many documents are processed before yielding to
// the scheduler, per spec.md §4.4's ensureDataLoaded step 4.
const yieldEvery = 100

// Options carries the per-warm parameters that do not change across the
// lifetime of a Warmer.
type Options struct {
	ServerPathPrefix string
	BaseURL          string
	AccessStrategies []orddoc.AccessStrategy

	// SchemaValidator is an optional hook validating each document's raw
	// bytes against the ORD JSON schema before it is processed and cached.
	// A document that fails validation is skipped, not fatal to the warm.
	SchemaValidator ordschema.Validator
}

// Warmer rebuilds ordcache.Cache entries for a directory fingerprint,
// reading ORD documents directly off the filesystem (no repository
// indirection, per spec.md §4.3).
type Warmer struct {
	cache *ordcache.Cache
	opts  Options

	group singleflight.Group

	mu                 *sync.Mutex
	warmingFingerprint string
	cancelCurrent      context.CancelFunc
}

func New(cache *ordcache.Cache, opts Options) *Warmer {
	return &Warmer{cache: cache, opts: opts, mu: &sync.Mutex{}}
}

// IsWarming reports whether a warm is currently in progress, and its
// fingerprint.
func (w *Warmer) IsWarming() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warmingFingerprint, w.warmingFingerprint != ""
}

// WarmCache is idempotent per fingerprint H. If H is already warm it returns
// immediately. If a different fingerprint is currently warming, that warm is
// canceled (best-effort) and superseded.
func (w *Warmer) WarmCache(ctx context.Context, docsPath, hash string) error {
	if w.cache.IsWarm(hash) {
		return nil
	}

	w.supersedeLocked(hash)

	warmCtx, cancel := w.beginWarm(hash)
	defer w.endWarm(hash, cancel)

	_, err, _ := w.group.Do(hash, func() (any, error) {
		return nil, w.warm(warmCtx, docsPath, hash)
	})
	return err
}

func (w *Warmer) supersedeLocked(hash string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.warmingFingerprint != "" && w.warmingFingerprint != hash && w.cancelCurrent != nil {
		w.cancelCurrent()
	}
}

func (w *Warmer) beginWarm(hash string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.warmingFingerprint = hash
	w.cancelCurrent = cancel
	w.mu.Unlock()
	return ctx, cancel
}

func (w *Warmer) endWarm(hash string, cancel context.CancelFunc) {
	cancel()
	w.mu.Lock()
	if w.warmingFingerprint == hash {
		w.warmingFingerprint = ""
		w.cancelCurrent = nil
	}
	w.mu.Unlock()
}

func (w *Warmer) warm(ctx context.Context, docsPath, hash string) error {
	paths, err := listDocuments(docsPath)
	if err != nil {
		return errors.Wrap(err, "list documents")
	}

	fqn := make(map[string][]ordcache.FqnEntry)
	var cachedPaths []string

	for i, relPath := range paths {
		if ctx.Err() != nil {
			return errors.Wrap(ctx.Err(), "cache warm canceled")
		}

		raw, err := os.ReadFile(filepath.Join(docsPath, relPath))
		if err != nil {
			return errors.Wrapf(err, "read document %s", relPath)
		}

		if w.opts.SchemaValidator != nil {
			if err := w.opts.SchemaValidator.Validate(raw); err != nil {
				// invalid documents are skipped, not fatal to the warm.
				continue
			}
		}

		var doc orddoc.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return errors.Wrapf(err, "unmarshal document %s", relPath)
		}

		orddoc.Process(doc, orddoc.ProcessOptions{
			BaseURL:          w.opts.BaseURL,
			Fingerprint:      hash,
			ServerPathPrefix: w.opts.ServerPathPrefix,
			AccessStrategies: w.opts.AccessStrategies,
		})

		w.cache.CacheDocument(hash, relPath, doc)
		cachedPaths = append(cachedPaths, relPath)

		if ordID, ok := doc["ordId"].(string); ok && ordID != "" {
			fqn[ordID] = append(fqn[ordID], ordcache.FqnEntry{FileName: filepath.Base(relPath), FilePath: relPath})
		}

		if (i+1)%yieldEvery == 0 {
			// yield to the scheduler so a long warm doesn't starve other
			// goroutines, as spec.md §4.4 requires.
			runtime.Gosched()
		}
	}

	config := buildConfiguration(cachedPaths, hash, w.cache, w.opts)

	w.cache.SetCachedDirectoryDocumentPaths(hash, cachedPaths)
	w.cache.SetCachedFqnMap(hash, fqn)
	w.cache.SetCachedOrdConfig(hash, config)

	return nil
}

// buildConfiguration assembles the ORD configuration object: a list of
// document descriptors with their url, perspective, and accessStrategies,
// per spec.md §3's configOf contract and §8 scenario 1 ("10 document
// entries under /ord/v1/documents/... with access strategies
// [{type:"open"}]"). The url is the servable route
// (serverPathPrefix + "documents/" + <path without extension>, the ".json"
// extension being implicit per spec.md §6) rather than the bare on-disk
// relative path cache entries are keyed by: that route, once requested,
// resolves back to the same docByPath[H] entry via the mux's path-value
// extraction and the handler's implicit-extension rule, so P3's
// "docByPath[H][url] exists" correspondence still holds end to end.
func buildConfiguration(paths []string, hash string, cache *ordcache.Cache, opts Options) map[string]any {
	accessStrategies := orddoc.AccessStrategiesJSON(opts.AccessStrategies)

	documents := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		doc := cache.GetDocumentFromCache(hash, p)
		perspective := orddoc.Perspective(doc)
		documents = append(documents, map[string]any{
			"url":              documentURL(opts.ServerPathPrefix, p),
			"perspective":      perspective,
			"accessStrategies": accessStrategies,
		})
	}
	return map[string]any{"documents": documents}
}

// documentURL renders relPath (the on-disk, extension-carrying path
// documents are cached under) as the servable
// /ord/v1/documents/<path-without-extension> route clients request it at.
func documentURL(serverPathPrefix, relPath string) string {
	prefix := serverPathPrefix
	if prefix == "" {
		prefix = "/ord/v1/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	withoutExt := strings.TrimSuffix(relPath, filepath.Ext(relPath))
	return prefix + "documents/" + withoutExt
}

func listDocuments(root string) ([]string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, rel)
		return nil
	})
	return paths, errors.Wrap(err, "walk documents directory")
}

// DirectoryFingerprint computes the fingerprint a warm should key on: the
// remote-mode commit-based one when commitSha is non-empty, else the
// local-mode filesystem digest.
func DirectoryFingerprint(root, commitSha, rootSubpath string) (string, error) {
	if commitSha != "" {
		return fingerprint.Remote(commitSha, rootSubpath), nil
	}
	return fingerprint.Local(root)
}
