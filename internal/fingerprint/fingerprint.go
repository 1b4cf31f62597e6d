// Package fingerprint produces a stable content fingerprint for a working
// directory: a remote-mode string keyed on commit hash and sub-path when the
// content came from a git fetch, or a SHA-256 digest over file paths and
// modification times when operating directly on a local directory.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/alecthomas/errors"
)

// Remote builds the remote-mode fingerprint: "<commitSha>:<rootSubpath>".
func Remote(commitSha, rootSubpath string) string {
	if rootSubpath == "" {
		rootSubpath = "."
	}
	return commitSha + ":" + rootSubpath
}

// Local computes the local-mode fingerprint: a SHA-256 digest over the
// ordered sequence of (absolute file path, mtime-ms) pairs for every
// non-directory entry under root; the .git/ directory is skipped. Two
// snapshots with identical content and mtimes produce the same fingerprint; any mutation changes it (best-effort, since mtimes
// can be forged or coarse on some filesystems).
func Local(root string) (string, error) {
	type entry struct {
		path    string
		mtimeMs int64
	}
	var entries []entry

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "resolve absolute root")
	}

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		entries = append(entries, entry{path: path, mtimeMs: info.ModTime().UnixMilli()})
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "walk directory")
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%d\n", e.path, e.mtimeMs)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SharesPrefix reports whether two fingerprints are "close enough" per the
// cache warmer's overlap check: equal, or sharing a 7-hex-character prefix
// (the git short-SHA convention).
func SharesPrefix(a, b string) bool {
	if a == b {
		return true
	}
	const n = 7
	if len(a) < n || len(b) < n {
		return false
	}
	return a[:n] == b[:n]
}
