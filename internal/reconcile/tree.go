package reconcile

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// walkExt calls fn for every file below dir with the given extension.
// Missing directories are skipped.
func walkExt(dir, ext string, fn func(path string, d fs.DirEntry) error) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		return fn(p, d)
	})
}

// DeleteZombies removes every olean below dirs whose source is gone and
// returns the removed paths.
func DeleteZombies(dirs ...string) ([]string, error) {
	var removed []string
	for _, dir := range dirs {
		err := walkExt(dir, OleanExt, func(p string, _ fs.DirEntry) error {
			if _, err := os.Stat(SourceFor(p)); err == nil {
				return nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			slog.Info("deleting zombie", "path", p)
			if err := os.Remove(p); err != nil {
				return err
			}
			removed = append(removed, p)
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Clean removes every olean below dirs.
func Clean(dirs ...string) ([]string, error) {
	var removed []string
	for _, dir := range dirs {
		slog.Info("cleaning", "dir", dir)
		err := walkExt(dir, OleanExt, func(p string, _ fs.DirEntry) error {
			if err := os.Remove(p); err != nil {
				return err
			}
			removed = append(removed, p)
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// TouchOleans sets the modification time of every olean below dir to now.
func TouchOleans(dir string) (int, error) {
	now := time.Now()
	count := 0
	err := walkExt(dir, OleanExt, func(p string, _ fs.DirEntry) error {
		count++
		return os.Chtimes(p, now, now)
	})
	return count, err
}

// CheckTimestamps reports whether every source below dir has an olean
// written after it. A missing olean or directory counts as out of date.
func CheckTimestamps(dir string) (bool, error) {
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	ok := true
	err := walkExt(dir, LeanExt, func(p string, d fs.DirEntry) error {
		srcInfo, err := d.Info()
		if err != nil {
			return err
		}
		oleanInfo, err := os.Stat(OleanFor(p))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Debug("missing olean", "source", p)
				ok = false
				return filepath.SkipAll
			}
			return err
		}
		if !srcInfo.ModTime().Before(oleanInfo.ModTime()) {
			slog.Debug("olean older than source", "source", p)
			ok = false
			return filepath.SkipAll
		}
		return nil
	})
	return ok, err
}

// CheckCoreTimestamps checks the core library of an installed toolchain.
func CheckCoreTimestamps(toolchainDir string) bool {
	ok, err := CheckTimestamps(toolchainDir)
	if err != nil {
		slog.Debug("cannot check core library", "dir", toolchainDir, "error", err)
		return false
	}
	return ok
}
