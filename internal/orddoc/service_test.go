package orddoc_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/cachewarm"
	"github.com/sap/ord-directory-server/internal/fingerprint"
	"github.com/sap/ord-directory-server/internal/ordcache"
	"github.com/sap/ord-directory-server/internal/orddoc"
)

func writeDoc(t *testing.T, dir, name, ordID string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{"ordId":"`+ordID+`"}`), 0o600))
}

func newTestService(t *testing.T, dir string) (*orddoc.Service, string) {
	t.Helper()
	cache := ordcache.New()
	warmer := cachewarm.New(cache, cachewarm.Options{ServerPathPrefix: "/ord/v1/"})
	hash, err := fingerprint.Local(dir)
	assert.NoError(t, err)

	svc := orddoc.NewService(cache, warmer, dir, func() (string, error) { return fingerprint.Local(dir) }, fingerprint.SharesPrefix)
	return svc, hash
}

func TestGetOrdConfiguration_WarmsCacheOnFirstAccess(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc1.json", "sap.xref:example1")

	svc, _ := newTestService(t, dir)
	config, err := svc.GetOrdConfiguration(context.Background(), "")
	assert.NoError(t, err)
	assert.NotZero(t, config)
}

func TestGetFqnMap(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc1.json", "sap.xref:example1")

	svc, _ := newTestService(t, dir)
	fqn, err := svc.GetFqnMap(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(fqn["sap.xref:example1"]))
}

func TestGetProcessedDocument_CachesOnMiss(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc1.json", "sap.xref:example1")

	svc, _ := newTestService(t, dir)
	doc, err := svc.GetProcessedDocument(context.Background(), "doc1.json", orddoc.ProcessOptions{BaseURL: "https://example.com"})
	assert.NoError(t, err)
	assert.Equal(t, "sap.xref:example1", doc["ordId"])
}

func TestGetProcessedDocument_NotFound(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(t, dir)

	_, err := svc.GetProcessedDocument(context.Background(), "missing.json", orddoc.ProcessOptions{})
	assert.Error(t, err)
}

func TestGetFileContent(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "spec.yaml"), []byte("openapi: 3.0.0"), 0o600))
	svc, _ := newTestService(t, dir)

	data, err := svc.GetFileContent("spec.yaml")
	assert.NoError(t, err)
	assert.Equal(t, "openapi: 3.0.0", string(data))
}

func TestGetFileContent_NotFound(t *testing.T) {
	dir := t.TempDir()
	svc, _ := newTestService(t, dir)

	_, err := svc.GetFileContent("missing.yaml")
	assert.Error(t, err)
}
