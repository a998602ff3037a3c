package fileutil

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/leanprover-community/mathlib-tools/internal/ignore"
)

func TestLeanFilesSkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"src/data/nat.lean",
		"src/all.lean",
		"src/notes.md",
		"_target/deps/mathlib/src/logic.lean",
		"scratch/tmp.lean",
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("-- x\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := LeanFiles(root, ignore.NewMatcher([]string{"scratch/"}))
	if err != nil {
		t.Fatalf("LeanFiles: %v", err)
	}
	want := []string{"src/all.lean", "src/data/nat.lean"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestWriteIfChangedTracked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "all.lean")

	changed, err := WriteIfChangedTracked(path, []byte("import a\n"))
	if err != nil || !changed {
		t.Fatalf("expected first write to happen, got changed=%v err=%v", changed, err)
	}
	changed, err = WriteIfChangedTracked(path, []byte("import a\n"))
	if err != nil || changed {
		t.Fatalf("expected identical write to be skipped, got changed=%v err=%v", changed, err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected no temporary files, got %d entries", len(entries))
	}
}

func TestSortedUnique(t *testing.T) {
	got := SortedUnique([]string{"b", "a", "b", "c", "a"})
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got := EnsureTrailingNewline("x"); got != "x\n" {
		t.Fatalf("unexpected %q", got)
	}
}
