package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanprover-community/mathlib-tools/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRunner = &runner.Exec{Env: []string{
	"GIT_AUTHOR_NAME=leanproject",
	"GIT_AUTHOR_EMAIL=leanproject@example.org",
	"GIT_COMMITTER_NAME=leanproject",
	"GIT_COMMITTER_EMAIL=leanproject@example.org",
	"GIT_CONFIG_NOSYSTEM=1",
}}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := testRunner.Run(context.Background(), dir, "git", args...)
	require.NoError(t, err, "git %s", strings.Join(args, " "))
	return strings.TrimSpace(out)
}

// historyRepo builds the commit graph documented on VisitAncestors and
// returns the commit hash of each letter.
func historyRepo(t *testing.T) (*Repo, map[string]string) {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	repo, err := Init(context.Background(), testRunner, dir)
	require.NoError(t, err)

	tree := mustGit(t, dir, "write-tree")
	shas := make(map[string]string)
	commit := func(name string, parents ...string) {
		args := []string{"commit-tree", tree, "-m", name}
		for _, p := range parents {
			args = append(args, "-p", shas[p])
		}
		shas[name] = mustGit(t, dir, args...)
	}
	commit("A")
	commit("B", "A")
	commit("C", "B")
	commit("D", "C")
	commit("E", "B")
	commit("F", "C")
	commit("G", "D")
	commit("I", "E", "F")
	commit("H", "F", "G")
	commit("J", "I", "H")
	commit("K", "G")
	commit("L", "J")
	return repo, shas
}

func TestVisitAncestorsPrunes(t *testing.T) {
	repo, shas := historyRepo(t)
	names := make(map[string]string, len(shas))
	for name, sha := range shas {
		names[sha] = name
	}

	tests := []struct {
		match       string
		wantFound   string
		wantVisited string
	}{
		{"L", "L", ""},
		{"BFG", "GF", "LJHIE"},
		{"K", "", "LJHGDIFCEBA"},
	}
	for _, tt := range tests {
		t.Run(tt.match, func(t *testing.T) {
			var found, visited strings.Builder
			err := repo.VisitAncestors(context.Background(), shas["L"], 0, func(sha string) (bool, error) {
				name := names[sha]
				if strings.Contains(tt.match, name) {
					found.WriteString(name)
					return true, nil
				}
				visited.WriteString(name)
				return false, nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found.String())
			assert.Equal(t, tt.wantVisited, visited.String())
		})
	}
}

func TestVisitAncestorsLimitAndStop(t *testing.T) {
	repo, shas := historyRepo(t)

	count := 0
	err := repo.VisitAncestors(context.Background(), shas["L"], 4, func(sha string) (bool, error) {
		count++
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count = 0
	err = repo.VisitAncestors(context.Background(), shas["L"], 0, func(sha string) (bool, error) {
		count++
		if count == 2 {
			return false, ErrStopWalk
		}
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOpenOutsideRepository(t *testing.T) {
	requireGit(t)
	_, err := Open(context.Background(), testRunner, t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestRepoStateQueries(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := Init(ctx, testRunner, dir)
	require.NoError(t, err)

	_, err = repo.Head(ctx)
	assert.ErrorIs(t, err, ErrNoCommits)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.lean"), []byte("-- a\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "b.lean"), []byte("-- b\n"), 0644))
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-q", "-m", "first")
	mustGit(t, dir, "branch", "-M", "master")

	first, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 40)

	short, err := repo.ShortSHA(ctx, first)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first, short))

	resolved, err := repo.RevParse(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, first, resolved)

	branch, err := repo.ActiveBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	dirty, err := repo.IsDirty(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.lean"), []byte("-- changed\n"), 0644))
	require.NoError(t, os.Remove(filepath.Join(dir, "src", "b.lean")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "c.lean"), []byte("-- new\n"), 0644))

	dirty, err = repo.IsDirty(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)

	changed, err := repo.ChangedFiles(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.lean", "src/b.lean", "src/c.lean"}, changed)

	require.NoError(t, repo.ResetHard(ctx))
	require.NoError(t, repo.CleanUntracked(ctx))
	changed, err = repo.ChangedFiles(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, changed)

	require.NoError(t, repo.CheckoutNewBranch(ctx, "feature", ""))
	has, err := repo.HasBranch(ctx, "feature")
	require.NoError(t, err)
	assert.True(t, has)

	mustGit(t, dir, "remote", "add", "origin", "https://github.com/leanprover-community/mathlib.git")
	name, ok, err := repo.RemoteMatching(ctx, "leanprover")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "origin", name)
}

func TestChangedFilesKeepsNonASCIINames(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := Init(ctx, testRunner, dir)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "café.lean"), []byte("-- c\n"), 0644))
	mustGit(t, dir, "add", ".")
	mustGit(t, dir, "commit", "-q", "-m", "first")
	first, err := repo.Head(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "café.lean"), []byte("-- changed\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "naïve lemma.lean"), []byte("-- new\n"), 0644))

	changed, err := repo.ChangedFiles(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/café.lean", "src/naïve lemma.lean"}, changed)
}
