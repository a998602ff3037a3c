package fileutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/ignore"
)

// LeanFiles returns the slash-separated paths, relative to root, of every
// .lean file below root that matcher does not exclude. A nil matcher uses
// the default rules.
func LeanFiles(root string, matcher *ignore.Matcher) ([]string, error) {
	if matcher == nil {
		matcher = ignore.NewMatcher(nil)
	}

	files := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		if matcher.ShouldIgnore(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ".lean") {
			return nil
		}
		files = append(files, filepath.ToSlash(relPath))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
