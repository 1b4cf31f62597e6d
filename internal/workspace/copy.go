package workspace

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/errors"
)

// copyTree recursively copies src into dst, preserving file modes. Used for
// carrying .git/ into temp/ before a pull, and as the Windows swap fallback
// where cross-directory rename semantics differ from POSIX.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return errors.Wrap(err, "compute relative path")
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(err, "read file")
		}
		info, err := d.Info()
		if err != nil {
			return errors.Wrap(err, "stat entry")
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return errors.Wrap(err, "create parent directory")
		}
		return errors.Wrap(os.WriteFile(target, data, info.Mode().Perm()), "write file")
	})
}
