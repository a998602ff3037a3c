// Package git drives the git command line for the handful of repository
// operations leanproject needs.
package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/runner"
)

var (
	// ErrNotRepository is returned when a path is outside any git work tree.
	ErrNotRepository = errors.New("not inside a git repository")

	// ErrBareRepository is returned for repositories without a work tree.
	ErrBareRepository = errors.New("git repository is not initialized")

	// ErrNoCommits is returned when HEAD does not point to a commit yet.
	ErrNoCommits = errors.New("repository has no commits")

	// ErrDetachedHead is returned by ActiveBranch when HEAD is detached.
	ErrDetachedHead = errors.New("HEAD is detached")
)

// Repo is a git work tree.
type Repo struct {
	Root   string
	GitDir string
	run    runner.Runner
}

// Open finds the repository containing path.
func Open(ctx context.Context, r runner.Runner, path string) (*Repo, error) {
	if r == nil {
		r = runner.Default
	}
	bare, err := r.Run(ctx, path, "git", "rev-parse", "--is-bare-repository")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	if strings.TrimSpace(bare) == "true" {
		return nil, ErrBareRepository
	}

	rootOut, err := r.Run(ctx, path, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	gitDirOut, err := r.Run(ctx, path, "git", "rev-parse", "--git-dir")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve git directory: %w", err)
	}

	root := strings.TrimSpace(rootOut)
	gitDir := strings.TrimSpace(gitDirOut)
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(path, gitDir)
	}
	return &Repo{Root: root, GitDir: filepath.Clean(gitDir), run: r}, nil
}

// Init creates a repository in dir and opens it.
func Init(ctx context.Context, r runner.Runner, dir string) (*Repo, error) {
	if r == nil {
		r = runner.Default
	}
	if _, err := r.Run(ctx, dir, "git", "init", "--quiet"); err != nil {
		return nil, err
	}
	return Open(ctx, r, dir)
}

// Clone clones url into target and opens the result.
func Clone(ctx context.Context, r runner.Runner, url, target string) (*Repo, error) {
	if r == nil {
		r = runner.Default
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return nil, err
	}
	if err := r.RunEcho(ctx, filepath.Dir(target), "git", "clone", url, target); err != nil {
		return nil, err
	}
	return Open(ctx, r, target)
}

func (g *Repo) git(ctx context.Context, args ...string) (string, error) {
	return g.run.Run(ctx, g.Root, "git", args...)
}

func (g *Repo) gitTrimmed(ctx context.Context, args ...string) (string, error) {
	out, err := g.git(ctx, args...)
	return strings.TrimSpace(out), err
}

// Head returns the full hash of HEAD.
func (g *Repo) Head(ctx context.Context) (string, error) {
	out, err := g.gitTrimmed(ctx, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil || out == "" {
		return "", ErrNoCommits
	}
	return out, nil
}

// RevParse resolves rev to a full commit hash.
func (g *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := g.gitTrimmed(ctx, "rev-parse", "--verify", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("unknown revision %q: %w", rev, err)
	}
	return out, nil
}

// ShortSHA abbreviates sha without ambiguity.
func (g *Repo) ShortSHA(ctx context.Context, sha string) (string, error) {
	return g.gitTrimmed(ctx, "rev-parse", "--short", sha)
}

// IsDirty reports uncommitted changes to tracked files.
func (g *Repo) IsDirty(ctx context.Context) (bool, error) {
	out, err := g.gitTrimmed(ctx, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// ActiveBranch returns the checked out branch name.
func (g *Repo) ActiveBranch(ctx context.Context) (string, error) {
	out, err := g.gitTrimmed(ctx, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil || out == "" {
		return "", ErrDetachedHead
	}
	return out, nil
}

// Branches lists local branch names.
func (g *Repo) Branches(ctx context.Context) ([]string, error) {
	out, err := g.gitTrimmed(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// HasBranch reports whether a local branch called name exists.
func (g *Repo) HasBranch(ctx context.Context, name string) (bool, error) {
	branches, err := g.Branches(ctx)
	if err != nil {
		return false, err
	}
	for _, branch := range branches {
		if branch == name {
			return true, nil
		}
	}
	return false, nil
}

// Remotes maps remote names to their fetch and push URLs.
func (g *Repo) Remotes(ctx context.Context) (map[string][]string, error) {
	out, err := g.gitTrimmed(ctx, "remote", "-v")
	if err != nil {
		return nil, err
	}
	remotes := make(map[string][]string)
	for _, line := range splitLines(out) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name, url := fields[0], fields[1]
		if !containsString(remotes[name], url) {
			remotes[name] = append(remotes[name], url)
		}
	}
	return remotes, nil
}

// RemoteMatching returns the first remote (by name) with a URL containing
// substr.
func (g *Repo) RemoteMatching(ctx context.Context, substr string) (string, bool, error) {
	remotes, err := g.Remotes(ctx)
	if err != nil {
		return "", false, err
	}
	names := make([]string, 0, len(remotes))
	for name := range remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, url := range remotes[name] {
			if strings.Contains(url, substr) {
				return name, true, nil
			}
		}
	}
	return "", false, nil
}

func (g *Repo) Checkout(ctx context.Context, ref string) error {
	_, err := g.git(ctx, "checkout", ref)
	return err
}

// CheckoutNewBranch creates name at start and checks it out.
func (g *Repo) CheckoutNewBranch(ctx context.Context, name, start string) error {
	args := []string{"checkout", "-b", name}
	if start != "" {
		args = append(args, start)
	}
	_, err := g.git(ctx, args...)
	return err
}

func (g *Repo) Fetch(ctx context.Context, remote, ref string) error {
	args := []string{"fetch", remote}
	if ref != "" {
		args = append(args, ref)
	}
	_, err := g.git(ctx, args...)
	return err
}

func (g *Repo) Pull(ctx context.Context, remote, branch string) error {
	_, err := g.git(ctx, "pull", remote, branch)
	return err
}

func (g *Repo) Rebase(ctx context.Context, onto string) error {
	_, err := g.git(ctx, "rebase", onto)
	return err
}

// ResetHard resets the index and work tree to HEAD.
func (g *Repo) ResetHard(ctx context.Context) error {
	_, err := g.git(ctx, "reset", "--hard", "--quiet")
	return err
}

// CleanUntracked removes untracked files and directories, keeping ignored
// ones (compiled oleans live there).
func (g *Repo) CleanUntracked(ctx context.Context) error {
	_, err := g.git(ctx, "clean", "-fd")
	return err
}

// ChangedFiles lists work tree paths (slash separated, relative to Root)
// whose content differs from rev: tracked modifications, additions and
// deletions since rev plus untracked files.
func (g *Repo) ChangedFiles(ctx context.Context, rev string) ([]string, error) {
	diff, err := g.git(ctx, "diff", "-z", "--name-only", "--no-renames", rev, "--")
	if err != nil {
		return nil, fmt.Errorf("failed to diff against %s: %w", rev, err)
	}
	untracked, err := g.git(ctx, "ls-files", "-z", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("failed to list untracked files: %w", err)
	}
	seen := make(map[string]bool)
	out := make([]string, 0)
	// -z keeps non-ASCII paths unquoted
	for _, path := range append(splitNUL(diff), splitNUL(untracked)...) {
		if seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func splitNUL(s string) []string {
	out := make([]string, 0)
	for _, path := range strings.Split(s, "\x00") {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

func splitLines(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
