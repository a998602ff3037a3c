package project

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leanprover-community/mathlib-tools/internal/archive"
	"github.com/leanprover-community/mathlib-tools/internal/cache"
	"github.com/leanprover-community/mathlib-tools/internal/leanpkg"
	"github.com/leanprover-community/mathlib-tools/internal/reconcile"
)

// localStore is where MkCache puts archives: the shared cache for mathlib,
// the project's _cache directory otherwise.
func (p *LeanProject) localStore() (*cache.Store, error) {
	if p.IsMathlib() {
		return cache.NewStore(p.env.Config.CacheDir)
	}
	return cache.NewStore(filepath.Join(p.Dir, CacheDir))
}

// MkCache packs the project's compiled sources into an archive named after
// the current commit and returns its path. An existing archive is kept
// unless force is set.
func (p *LeanProject) MkCache(ctx context.Context, force bool) (string, error) {
	if p.IsDirty && !force {
		return "", ErrDirtyRepo
	}
	if p.Rev == "" {
		return "", ErrNoCommit
	}
	store, err := p.localStore()
	if err != nil {
		return "", err
	}
	target := store.Path(p.Rev)
	if store.Has(p.Rev) && !force {
		slog.Info("cache for revision already exists", "rev", p.Rev, "path", target)
		return target, nil
	}

	if atRoot(p.Manifest.Package.Path) {
		return "", fmt.Errorf("%w: set path in %s to the source directory", ErrRootSources, leanpkg.ManifestFile)
	}
	srcs := sourceDirs(p.Dir, p.Manifest.Package.Path)
	if len(srcs) == 0 {
		return "", fmt.Errorf("%w: directory %s does not exist", ErrInvalidProject, p.SrcDirectory())
	}
	if err := archive.Pack(ctx, p.Dir, srcs, target); err != nil {
		return "", err
	}
	if _, err := store.RecordFile(p.Rev, ""); err != nil {
		return "", err
	}
	slog.Info("created olean cache", "rev", p.Rev, "path", target)
	return target, nil
}

// GetCache restores oleans for rev, or the current commit when rev is
// empty. Mathlib goes through GetMathlibOlean; other projects read their
// own _cache directory.
func (p *LeanProject) GetCache(ctx context.Context, rev string, force bool) (*reconcile.Report, error) {
	if err := p.requireRepo(); err != nil {
		return nil, err
	}
	if p.IsDirty && !force {
		return nil, fmt.Errorf("%w: cannot get cache for a dirty repository", ErrDirtyRepo)
	}
	if p.IsMathlib() {
		return p.GetMathlibOlean(ctx, rev)
	}

	if rev == "" {
		rev = p.Rev
	} else {
		resolved, err := p.Repo.RevParse(ctx, rev)
		if err != nil {
			return nil, err
		}
		rev = resolved
	}
	if rev == "" {
		return nil, ErrNoCommit
	}

	store, err := p.localStore()
	if err != nil {
		return nil, err
	}
	cacheRev := rev
	if p.opts.Fallback {
		locator := &cache.Locator{Cache: cache.New(store, nil), MaxDepth: p.env.Config.MaxFallbackDepth}
		match, err := locator.Find(ctx, p.Repo, rev)
		if err != nil {
			return nil, err
		}
		logMatch(ctx, p.Repo, rev, match)
		cacheRev = match.Rev
	}
	if err := store.Verify(cacheRev); err != nil {
		return nil, err
	}

	changed, err := changedSince(ctx, p.Repo, cacheRev, p.Dir)
	if err != nil {
		return nil, err
	}
	return reconcile.Reconcile(ctx, store.Path(cacheRev), p.Dir, reconcile.Options{
		Changed:    changed,
		ZombieDirs: sourceDirs(p.Dir, p.Manifest.Package.Path),
	})
}
