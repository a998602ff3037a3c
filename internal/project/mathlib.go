package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/archive"
	"github.com/leanprover-community/mathlib-tools/internal/cache"
	"github.com/leanprover-community/mathlib-tools/internal/git"
	"github.com/leanprover-community/mathlib-tools/internal/leanpkg"
	"github.com/leanprover-community/mathlib-tools/internal/reconcile"
)

// MathlibLeanVersion fetches the Lean version mathlib master builds with.
func MathlibLeanVersion(ctx context.Context, env *Env) (leanpkg.Version, error) {
	url := env.Config.MathlibManifestURL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return leanpkg.Version{}, err
	}
	client := env.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return leanpkg.Version{}, fmt.Errorf("failed to fetch mathlib manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return leanpkg.Version{}, fmt.Errorf("failed to fetch mathlib manifest %s: %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return leanpkg.Version{}, err
	}
	manifest, err := leanpkg.Parse(data)
	if err != nil {
		return leanpkg.Version{}, err
	}
	return manifest.LeanVersion()
}

// archiveCache returns the shared mathlib archive cache.
func (p *LeanProject) archiveCache() (*cache.Cache, error) {
	store, err := cache.NewStore(p.env.Config.CacheDir)
	if err != nil {
		return nil, err
	}
	c := cache.New(store, cache.NewRemote(p.CacheURL,
		cache.WithClient(p.env.Client),
		cache.WithHeader("User-Agent", "leanproject"),
	))
	c.Progress = p.env.Progress
	return c, nil
}

// mathlibRepo returns the git repository holding mathlib's sources, or nil
// when there is none.
func (p *LeanProject) mathlibRepo(ctx context.Context) *git.Repo {
	if p.IsMathlib() {
		return p.Repo
	}
	if !exists(p.MathlibFolder()) {
		return nil
	}
	repo, err := git.Open(ctx, p.env.Git, p.MathlibFolder())
	if err != nil {
		slog.Debug("mathlib dependency is not a git checkout", "dir", p.MathlibFolder(), "error", err)
		return nil
	}
	// a plain directory inside the project's own repository
	if resolvePath(repo.Root) != resolvePath(p.MathlibFolder()) {
		slog.Debug("mathlib dependency is not a git checkout", "dir", p.MathlibFolder(), "repo", repo.Root)
		return nil
	}
	return repo
}

// GetMathlibOlean fetches precompiled mathlib oleans for this project,
// at rev when given, and merges them into the mathlib folder.
func (p *LeanProject) GetMathlibOlean(ctx context.Context, rev string) (*reconcile.Report, error) {
	if p.IsMathlib() && rev != "" {
		if err := p.requireRepo(); err != nil {
			return nil, err
		}
		resolved, err := p.Repo.RevParse(ctx, rev)
		if err != nil {
			return nil, err
		}
		rev = resolved
	}
	if !exists(filepath.Join(p.Dir, leanpkg.PathFile)) {
		if _, err := p.run(ctx, "leanpkg", "configure"); err != nil {
			return nil, err
		}
	}
	if rev == "" {
		mathlibRev, err := p.MathlibRev()
		if err != nil {
			return nil, err
		}
		if mathlibRev == "" {
			return nil, ErrNoCommit
		}
		rev = mathlibRev
	}

	c, err := p.archiveCache()
	if err != nil {
		return nil, err
	}
	repo := p.mathlibRepo(ctx)

	cacheRev := rev
	switch {
	case p.opts.Fallback && repo == nil:
		slog.Info("mathlib history is unavailable, looking for the exact revision only", "rev", rev)
	case p.opts.Fallback:
		locator := &cache.Locator{Cache: c, MaxDepth: p.env.Config.MaxFallbackDepth}
		match, err := locator.Find(ctx, repo, rev)
		if err != nil {
			return nil, err
		}
		logMatch(ctx, repo, rev, match)
		cacheRev = match.Rev
	}

	path, entries, err := fetchValidArchive(ctx, c, cacheRev, p.opts.ForceDownload)
	if err != nil {
		if cache.IsNotFound(err) && !p.opts.Fallback {
			slog.Info("no olean archive for this revision, --fallback tries its ancestors", "rev", rev)
		}
		return nil, err
	}

	if err := p.CleanMathlib(ctx, false); err != nil {
		return nil, err
	}
	folder := p.MathlibFolder()
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, err
	}

	var changed []string
	if repo != nil && (p.IsMathlib() || cacheRev != rev) {
		changed, err = changedSince(ctx, repo, cacheRev, folder)
		if err != nil {
			return nil, err
		}
	}

	plan := reconcile.NewPlan(entries, folder, changed)
	report, err := reconcile.Apply(ctx, path, plan)
	if err != nil {
		return report, err
	}
	zombies, err := reconcile.DeleteZombies(sourceDirs(folder, "src")...)
	report.Zombies = zombies
	if err != nil {
		return report, err
	}
	_, err = reconcile.TouchOleans(folder)
	return report, err
}

// logMatch reports an archive found for an ancestor of rev.
func logMatch(ctx context.Context, repo *git.Repo, rev string, match cache.Match) {
	if match.Exact() {
		return
	}
	short, err := repo.ShortSHA(ctx, match.Rev)
	if err != nil {
		short = match.Rev
	}
	slog.Info("using olean archive of an ancestor", "rev", short, "requested", rev, "depth", match.Depth)
}

// fetchValidArchive gets the archive for rev and lists it, downloading
// it again once if the copy turns out to be corrupt.
func fetchValidArchive(ctx context.Context, c *cache.Cache, rev string, force bool) (string, []archive.Entry, error) {
	path, err := c.Get(ctx, rev, force)
	if err != nil {
		return "", nil, err
	}
	entries, err := archive.List(path)
	if err == nil {
		return path, entries, nil
	}
	if !errors.Is(err, archive.ErrCorrupt) {
		return "", nil, err
	}

	slog.Warn("something is wrong with the olean archive, downloading it again", "rev", rev, "error", err)
	path, err = c.Get(ctx, rev, true)
	if err != nil {
		return "", nil, err
	}
	entries, err = archive.List(path)
	if err != nil {
		return "", nil, err
	}
	return path, entries, nil
}

// changedSince lists the files of repo that differ from rev, relative to
// dir. Files outside dir are dropped.
func changedSince(ctx context.Context, repo *git.Repo, rev, dir string) ([]string, error) {
	files, err := repo.ChangedFiles(ctx, rev)
	if err != nil {
		return nil, err
	}
	root := resolvePath(repo.Root)
	dir = resolvePath(dir)

	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(dir, filepath.Join(root, filepath.FromSlash(f)))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out, nil
}

func resolvePath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// CleanMathlib restores the mathlib checkout to its committed state. For
// mathlib itself this only happens when the repository is clean or force
// is set.
func (p *LeanProject) CleanMathlib(ctx context.Context, force bool) error {
	if p.IsMathlib() {
		if p.IsDirty && !force {
			return nil
		}
		if err := p.requireRepo(); err != nil {
			return err
		}
		return p.Repo.ResetHard(ctx)
	}
	if !exists(p.MathlibFolder()) {
		return p.runEcho(ctx, "leanpkg", "configure")
	}
	repo := p.mathlibRepo(ctx)
	if repo == nil {
		slog.Info("mathlib dependency is not a git checkout, leaving it as is", "dir", p.MathlibFolder())
		return nil
	}
	if err := repo.ResetHard(ctx); err != nil {
		return err
	}
	return repo.CleanUntracked(ctx)
}

// UpgradeMathlib moves the project to the latest mathlib and fetches its
// oleans. Inside mathlib it pulls the current branch from the upstream
// remote instead.
func (p *LeanProject) UpgradeMathlib(ctx context.Context) (*reconcile.Report, error) {
	if p.IsMathlib() {
		if err := p.requireRepo(); err != nil {
			return nil, err
		}
		if pulled := p.pullUpstream(ctx); !pulled {
			return nil, nil
		}
		rev, err := p.Repo.Head(ctx)
		if err != nil {
			return nil, err
		}
		p.Rev = rev
	} else {
		if err := p.CleanMathlib(ctx, false); err != nil {
			return nil, err
		}
		if !p.opts.NoLeanUpgrade {
			if err := p.upgradeLeanVersion(ctx, false); err != nil {
				return nil, err
			}
		}
		if err := p.runEcho(ctx, "leanpkg", "upgrade"); err != nil {
			return nil, err
		}
		if err := p.ReadConfig(); err != nil {
			return nil, err
		}
	}
	return p.GetMathlibOlean(ctx, "")
}

func (p *LeanProject) pullUpstream(ctx context.Context) bool {
	remote, ok, err := p.Repo.RemoteMatching(ctx, "leanprover")
	if err == nil && ok {
		var branch string
		branch, err = p.Repo.ActiveBranch(ctx)
		if err == nil {
			slog.Info("pulling", "remote", remote, "branch", branch)
			err = p.Repo.Pull(ctx, remote, branch)
			if err == nil {
				return true
			}
		}
	}
	slog.Info("couldn't pull from a relevant git remote; you may try to git pull manually and then run `leanproject get-cache`", "error", err)
	return false
}

// upgradeLeanVersion sets the project's Lean version to mathlib's, only
// moving forward unless always is set, and saves the manifest.
func (p *LeanProject) upgradeLeanVersion(ctx context.Context, always bool) error {
	target, err := MathlibLeanVersion(ctx, p.env)
	if err != nil {
		return err
	}
	current, err := p.LeanVersion()
	if err != nil && !errors.Is(err, leanpkg.ErrInvalidVersion) {
		return err
	}
	if always || err != nil || current.Less(target) {
		slog.Info("setting Lean version", "version", target.String())
		p.SetLeanVersion(target)
		return p.WriteConfig()
	}
	return nil
}

// AddMathlib adds mathlib as a dependency and fetches its oleans.
func (p *LeanProject) AddMathlib(ctx context.Context) (*reconcile.Report, error) {
	if p.HasMathlib() {
		slog.Info("this project already depends on mathlib")
		return nil, nil
	}
	slog.Info("adding mathlib")
	if p.opts.NoLeanUpgrade {
		if err := p.WriteConfig(); err != nil {
			return nil, err
		}
	} else if err := p.upgradeLeanVersion(ctx, true); err != nil {
		return nil, err
	}
	if err := p.runEcho(ctx, "leanpkg", "add", p.env.Config.MathlibGitURL); err != nil {
		return nil, err
	}
	if err := p.ReadConfig(); err != nil {
		return nil, err
	}
	return p.GetMathlibOlean(ctx, "")
}
