package fingerprint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/sap/ord-directory-server/internal/fingerprint"
)

func TestRemote(t *testing.T) {
	assert.Equal(t, "abc123:docs/ord", fingerprint.Remote("abc123", "docs/ord"))
	assert.Equal(t, "abc123:.", fingerprint.Remote("abc123", ""))
}

func TestLocal_StableForUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o600))

	first, err := fingerprint.Local(dir)
	assert.NoError(t, err)
	second, err := fingerprint.Local(dir)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLocal_ChangesOnMtimeUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	assert.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	before, err := fingerprint.Local(dir)
	assert.NoError(t, err)

	later := time.Now().Add(time.Hour)
	assert.NoError(t, os.Chtimes(path, later, later))

	after, err := fingerprint.Local(dir)
	assert.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestLocal_IgnoresGitDirectory(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("{}"), 0o600))

	withoutGit, err := fingerprint.Local(dir)
	assert.NoError(t, err)

	assert.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o750))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o600))

	withGit, err := fingerprint.Local(dir)
	assert.NoError(t, err)
	assert.Equal(t, withoutGit, withGit)
}

func TestSharesPrefix(t *testing.T) {
	assert.True(t, fingerprint.SharesPrefix("abc1234", "abc1234"))
	assert.True(t, fingerprint.SharesPrefix("abc1234xyz", "abc1234abc"))
	assert.False(t, fingerprint.SharesPrefix("abc1234", "abcdeff"))
	assert.False(t, fingerprint.SharesPrefix("abc", "abcdeff"))
}
