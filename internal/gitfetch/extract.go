package gitfetch

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/alecthomas/errors"
)

// extractSubpath implements spec.md §4.1 step 2: copy targetDir/subpath into
// stagingDir, remove everything in targetDir except .git/, move staging's
// children back next to .git/, then delete stagingDir. On any failure the
// staging directory is removed and the error propagated; targetDir is left
// however it was at the point of failure, which C2 treats as broken and
// cleans up on the next prepare.
func extractSubpath(targetDir, stagingDir, subpath string) (err error) {
	defer func() {
		if removeErr := os.RemoveAll(stagingDir); removeErr != nil && err == nil {
			err = errors.Wrap(removeErr, "remove staging directory")
		}
	}()

	if err := os.RemoveAll(stagingDir); err != nil {
		return errors.Wrap(err, "clear staging directory")
	}
	if err := os.MkdirAll(stagingDir, 0o750); err != nil {
		return errors.Wrap(err, "create staging directory")
	}

	srcDir := filepath.Join(targetDir, subpath)
	if err := copyTree(srcDir, stagingDir); err != nil {
		return errors.Wrap(err, "copy subpath into staging")
	}

	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return errors.Wrap(err, "read target directory")
	}
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(targetDir, entry.Name())); err != nil {
			return errors.Wrapf(err, "remove %s", entry.Name())
		}
	}

	stagedEntries, err := os.ReadDir(stagingDir)
	if err != nil {
		return errors.Wrap(err, "read staging directory")
	}
	for _, entry := range stagedEntries {
		src := filepath.Join(stagingDir, entry.Name())
		dst := filepath.Join(targetDir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return errors.Wrapf(err, "move %s back from staging", entry.Name())
		}
	}

	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "stat source")
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}

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
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, "read file")
	}
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(err, "stat file")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.Wrap(err, "create parent directory")
	}
	return errors.Wrap(os.WriteFile(dst, data, info.Mode().Perm()), "write file")
}

// countFiles walks dir skipping .git/, counting regular files. Used as the
// fallback file-count strategy when the git tree listing is unavailable
// (e.g. local working trees without object access for some subpath).
func countFiles(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return fs.SkipDir
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count, errors.Wrap(err, "walk directory")
}
