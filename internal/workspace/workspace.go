// Package workspace manages the three sibling directories a content fetch
// cycles through: current/ (the only one request-serving code ever reads),
// temp/ (destination of in-progress fetches), and staging/ (scratch space
// used when extracting a configured sub-path). It performs the atomic
// rename-based swap that makes a new fetch visible and persists the content
// metadata sidecar alongside current/.
package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/alecthomas/errors"

	"github.com/sap/ord-directory-server/internal/gitfetch"
	"github.com/sap/ord-directory-server/internal/logging"
)

const metadataFileName = ".metadata.json"

// Workspace owns a root directory containing current/, temp/, staging/ and
// backup/ (the latter only transiently present during a swap).
type Workspace struct {
	root string
	mu   *sync.Mutex
}

func New(root string) *Workspace {
	return &Workspace{root: root, mu: &sync.Mutex{}}
}

func (w *Workspace) CurrentDir() string { return filepath.Join(w.root, "current") }
func (w *Workspace) TempDir() string    { return filepath.Join(w.root, "temp") }
func (w *Workspace) StagingDir() string { return filepath.Join(w.root, "staging") }
func (w *Workspace) backupDir() string  { return filepath.Join(w.root, "backup") }

// Init ensures the root and current/ directories exist and removes any
// leftover backup/ or staging/ from a prior crash, per spec.md's Design
// Notes: those are recoverable garbage, never meaningful state.
func (w *Workspace) Init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.CurrentDir(), 0o750); err != nil {
		return errors.Wrap(err, "create current directory")
	}
	if err := os.RemoveAll(w.backupDir()); err != nil {
		return errors.Wrap(err, "remove leftover backup directory")
	}
	if err := os.RemoveAll(w.StagingDir()); err != nil {
		return errors.Wrap(err, "remove leftover staging directory")
	}

	logging.FromContext(ctx).InfoContext(ctx, "workspace initialized", "root", w.root)
	return nil
}

// PrepareTempDirectory ensures temp/ exists and is empty, for a clean clone.
func (w *Workspace) PrepareTempDirectory() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prepareTempDirectoryLocked(false)
}

// PrepareTempDirectoryWithGit ensures temp/ exists, carrying current/.git
// into it when present so a pull (rather than a full clone) can proceed.
func (w *Workspace) PrepareTempDirectoryWithGit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prepareTempDirectoryLocked(true)
}

func (w *Workspace) prepareTempDirectoryLocked(carryGit bool) error {
	if err := os.RemoveAll(w.TempDir()); err != nil {
		return errors.Wrap(err, "clear temp directory")
	}
	if err := os.MkdirAll(w.TempDir(), 0o750); err != nil {
		return errors.Wrap(err, "create temp directory")
	}

	if !carryGit {
		return nil
	}

	currentGitDir := filepath.Join(w.CurrentDir(), ".git")
	if _, err := os.Stat(currentGitDir); err != nil {
		return nil //nolint:nilerr // no existing .git to carry over is not an error
	}
	if err := copyTree(currentGitDir, filepath.Join(w.TempDir(), ".git")); err != nil {
		return errors.Wrap(err, "carry .git into temp directory")
	}
	return nil
}

// SwapDirectories performs the atomic rename exchange described in
// spec.md §4.2: current -> backup, temp -> current, then delete backup. If
// the rename of temp into current fails, backup is restored to current so
// readers never observe a missing current/.
func (w *Workspace) SwapDirectories(ctx context.Context) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hasCurrent := true
	if _, statErr := os.Stat(w.CurrentDir()); os.IsNotExist(statErr) {
		hasCurrent = false
	}

	if hasCurrent {
		if err := os.Rename(w.CurrentDir(), w.backupDir()); err != nil {
			return errors.Wrap(err, "move current to backup")
		}
	}

	if err := renameOrCopy(w.TempDir(), w.CurrentDir()); err != nil {
		if hasCurrent {
			if restoreErr := os.Rename(w.backupDir(), w.CurrentDir()); restoreErr != nil {
				logging.FromContext(ctx).ErrorContext(ctx, "failed to restore backup after failed swap", "error", restoreErr)
				return errors.Wrap(restoreErr, "restore backup after failed swap")
			}
		}
		return errors.Wrap(err, "move temp to current")
	}

	if hasCurrent {
		if err := os.RemoveAll(w.backupDir()); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "failed to remove backup directory after swap", "error", err)
		}
	}

	logging.FromContext(ctx).InfoContext(ctx, "swapped workspace directories")
	return nil
}

// renameOrCopy performs a plain rename on every platform except Windows; on
// Windows it always removes dst, copies src into it recursively, and then
// deletes src. A failed rename is not retried with the copy path.
func renameOrCopy(src, dst string) error {
	if runtime.GOOS != "windows" {
		return os.Rename(src, dst)
	}
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrap(err, "remove destination before copy fallback")
	}
	if err := copyTree(src, dst); err != nil {
		return errors.Wrap(err, "copy tree fallback")
	}
	return errors.Wrap(os.RemoveAll(src), "remove source after copy fallback")
}

// CleanupTempDirectory recursively deletes temp/ and any leftover staging/.
func (w *Workspace) CleanupTempDirectory() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.RemoveAll(w.TempDir()); err != nil {
		return errors.Wrap(err, "remove temp directory")
	}
	return errors.Wrap(os.RemoveAll(w.StagingDir()), "remove staging directory")
}

// SaveMetadata writes the content metadata sidecar atomically: write to a
// temp file in the same directory, then rename over the target.
func (w *Workspace) SaveMetadata(m gitfetch.Metadata) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}

	target := filepath.Join(w.CurrentDir(), metadataFileName)
	tmp, err := os.CreateTemp(w.CurrentDir(), metadataFileName+".*")
	if err != nil {
		return errors.Wrap(err, "create metadata temp file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup, rename already succeeded or failed below

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write metadata temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close metadata temp file")
	}
	return errors.Wrap(os.Rename(tmpPath, target), "rename metadata into place")
}

// GetMetadata reads the content metadata sidecar from current/. A missing
// sidecar is reported as os.ErrNotExist via errors.Is.
func (w *Workspace) GetMetadata() (gitfetch.Metadata, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(w.CurrentDir(), metadataFileName))
	if err != nil {
		return gitfetch.Metadata{}, errors.Wrap(err, "read metadata")
	}
	var m gitfetch.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return gitfetch.Metadata{}, errors.Wrap(err, "unmarshal metadata")
	}
	return m, nil
}

// GetCurrentVersion reports the commit hash of the content currently
// visible to readers, or "" if none has been fetched yet.
func (w *Workspace) GetCurrentVersion() string {
	m, err := w.GetMetadata()
	if err != nil {
		return ""
	}
	return m.CommitHash
}
