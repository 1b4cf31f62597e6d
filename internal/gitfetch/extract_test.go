package gitfetch //nolint:testpackage // white-box testing required for unexported helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestExtractSubpath(t *testing.T) {
	targetDir := t.TempDir()
	stagingDir := filepath.Join(t.TempDir(), "staging")

	assert.NoError(t, os.MkdirAll(filepath.Join(targetDir, ".git"), 0o750))
	assert.NoError(t, os.WriteFile(filepath.Join(targetDir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o600))

	docsDir := filepath.Join(targetDir, "docs", "ord")
	assert.NoError(t, os.MkdirAll(docsDir, 0o750))
	assert.NoError(t, os.WriteFile(filepath.Join(docsDir, "document.json"), []byte(`{"openResourceDiscovery":"1.9"}`), 0o600))
	assert.NoError(t, os.WriteFile(filepath.Join(targetDir, "README.md"), []byte("unrelated"), 0o600))

	assert.NoError(t, extractSubpath(targetDir, stagingDir, "docs/ord"))

	_, err := os.Stat(stagingDir)
	assert.True(t, os.IsNotExist(err), "staging directory should be removed after extraction")

	content, err := os.ReadFile(filepath.Join(targetDir, "document.json"))
	assert.NoError(t, err)
	assert.Equal(t, `{"openResourceDiscovery":"1.9"}`, string(content))

	_, err = os.Stat(filepath.Join(targetDir, "README.md"))
	assert.True(t, os.IsNotExist(err), "README.md outside the subpath should have been removed")

	_, err = os.Stat(filepath.Join(targetDir, ".git", "HEAD"))
	assert.NoError(t, err, ".git must survive extraction")
}

func TestExtractSubpath_MissingSource(t *testing.T) {
	targetDir := t.TempDir()
	stagingDir := filepath.Join(t.TempDir(), "staging")
	assert.Error(t, extractSubpath(targetDir, stagingDir, "does-not-exist"))
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "dst")

	assert.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o750))
	assert.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o600))
	assert.NoError(t, os.WriteFile(filepath.Join(src, "nested", "b.txt"), []byte("b"), 0o600))

	assert.NoError(t, copyTree(src, dst))

	a, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "a", string(a))

	b, err := os.ReadFile(filepath.Join(dst, "nested", "b.txt"))
	assert.NoError(t, err)
	assert.Equal(t, "b", string(b))
}

func TestCountFiles(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o750))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("x"), 0o600))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "one.json"), []byte("{}"), 0o600))
	assert.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o750))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "two.json"), []byte("{}"), 0o600))

	n, err := countFiles(dir)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}
