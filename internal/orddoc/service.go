package orddoc

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sap/ord-directory-server/internal/apierror"
	"github.com/sap/ord-directory-server/internal/ordcache"
	"github.com/sap/ord-directory-server/internal/ordschema"
)

func unmarshalDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FingerprintFunc computes the current directory fingerprint. In remote mode
// this is a cheap read of the last-swapped commit metadata; in local mode it
// walks the filesystem, so it is injected rather than hardcoded.
type FingerprintFunc func() (string, error)

// Warmer is the subset of cachewarm.Warmer the document service depends on.
type Warmer interface {
	WarmCache(ctx context.Context, docsPath, hash string) error
	IsWarming() (string, bool)
}

// SharesPrefixFunc reports whether two fingerprints are "close enough" to be
// considered the same warm, per spec.md §4.4 step 2. Injected rather than
// hardcoded; callers pass the fingerprint package's SharesPrefix.
type SharesPrefixFunc func(a, b string) bool

// Service implements the document service / cache warmer operations of
// spec.md §4.4: getProcessedDocument, getOrdConfiguration, getFqnMap, and
// getFileContent. GetOrdConfiguration and GetFqnMap go through
// ensureDataLoaded; GetProcessedDocument and GetFileContent read single files
// without warming the whole cache.
type Service struct {
	cache        *ordcache.Cache
	warmer       Warmer
	fingerprint  FingerprintFunc
	sharesPrefix SharesPrefixFunc
	docsPath     string

	// schemaValidator is an optional hook validating a single document's raw
	// bytes against the ORD JSON schema on the cache-miss load path. Set via
	// SetSchemaValidator; nil means documents are trusted as-is.
	schemaValidator ordschema.Validator

	mu       *sync.Mutex
	inFlight map[string]*inlineLoad
}

// SetSchemaValidator installs the schema validator used on the single-file,
// cache-miss load path of GetProcessedDocument.
func (s *Service) SetSchemaValidator(v ordschema.Validator) {
	s.schemaValidator = v
}

type inlineLoad struct {
	done chan struct{}
	err  error
}

func NewService(cache *ordcache.Cache, warmer Warmer, docsPath string, fp FingerprintFunc, sharesPrefix SharesPrefixFunc) *Service {
	return &Service{
		cache:        cache,
		warmer:       warmer,
		fingerprint:  fp,
		sharesPrefix: sharesPrefix,
		docsPath:     docsPath,
		mu:           &sync.Mutex{},
		inFlight:     make(map[string]*inlineLoad),
	}
}

// ensureDataLoaded implements spec.md §4.4's four-step algorithm.
func (s *Service) ensureDataLoaded(ctx context.Context, hash string) error {
	for {
		if s.cache.IsWarm(hash) {
			return nil
		}

		if warmingHash, warming := s.warmer.IsWarming(); warming && s.sharesPrefix(warmingHash, hash) {
			if err := s.warmer.WarmCache(ctx, s.docsPath, warmingHash); err != nil {
				return err
			}
			continue
		}

		load, started := s.startOrJoinInlineLoad(hash)
		if !started {
			<-load.done
			if load.err != nil {
				return load.err
			}
			continue
		}

		load.err = s.warmer.WarmCache(ctx, s.docsPath, hash)
		close(load.done)
		s.finishInlineLoad(hash)
		return load.err
	}
}

func (s *Service) startOrJoinInlineLoad(hash string) (*inlineLoad, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.inFlight[hash]; ok {
		return existing, false
	}
	load := &inlineLoad{done: make(chan struct{})}
	s.inFlight[hash] = load
	return load, true
}

func (s *Service) finishInlineLoad(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, hash)
}

// GetProcessedDocument computes the current fingerprint, serves from cache,
// and on miss loads the single file, processes and caches it.
func (s *Service) GetProcessedDocument(ctx context.Context, path string, opts ProcessOptions) (Document, error) {
	hash, err := s.fingerprint()
	if err != nil {
		return nil, apierror.Internal("failed to compute directory fingerprint", err)
	}

	if doc := s.cache.GetDocumentFromCache(hash, path); doc != nil {
		return doc, nil
	}

	fullPath := filepath.Join(s.docsPath, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, apierror.NotFound("document not found: " + path)
	}

	if s.schemaValidator != nil {
		if err := s.schemaValidator.Validate(data); err != nil {
			return nil, apierror.Validation("document failed schema validation: " + err.Error())
		}
	}

	doc, err := unmarshalDocument(data)
	if err != nil {
		return nil, apierror.Internal("failed to parse document", err)
	}

	opts.Fingerprint = hash
	Process(doc, opts)
	s.cache.CacheDocument(hash, path, doc)
	return doc, nil
}

// GetOrdConfiguration computes the fingerprint, ensures the cache is warm,
// and returns the cached configuration, optionally filtered by perspective.
func (s *Service) GetOrdConfiguration(ctx context.Context, perspective string) (any, error) {
	hash, err := s.fingerprint()
	if err != nil {
		return nil, apierror.Internal("failed to compute directory fingerprint", err)
	}
	if err := s.ensureDataLoaded(ctx, hash); err != nil {
		return nil, err
	}
	config, ok := s.cache.GetCachedOrdConfig(hash)
	if !ok {
		return nil, apierror.Internal("ord configuration missing after warm", nil)
	}
	if perspective == "" {
		return config, nil
	}
	return filterByPerspective(config, perspective), nil
}

// GetFqnMap computes the fingerprint, ensures the cache is warm, and returns
// the cached FQN map.
func (s *Service) GetFqnMap(ctx context.Context) (map[string][]ordcache.FqnEntry, error) {
	hash, err := s.fingerprint()
	if err != nil {
		return nil, apierror.Internal("failed to compute directory fingerprint", err)
	}
	if err := s.ensureDataLoaded(ctx, hash); err != nil {
		return nil, err
	}
	fqn, ok := s.cache.GetCachedFqnMap(hash)
	if !ok {
		return nil, apierror.Internal("fqn map missing after warm", nil)
	}
	return fqn, nil
}

// GetFileContent is a raw passthrough for referenced resource definitions.
func (s *Service) GetFileContent(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.docsPath, path))
	if err != nil {
		return nil, apierror.NotFound("file not found: " + path)
	}
	return data, nil
}

func filterByPerspective(config any, perspective string) any {
	cfg, ok := config.(map[string]any)
	if !ok {
		return config
	}
	documents, ok := cfg["documents"].([]map[string]any)
	if !ok {
		return config
	}
	filtered := make([]map[string]any, 0, len(documents))
	for _, d := range documents {
		if d["perspective"] == perspective {
			filtered = append(filtered, d)
		}
	}
	return map[string]any{"documents": filtered}
}
