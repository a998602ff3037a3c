package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/git"
	"github.com/leanprover-community/mathlib-tools/internal/reconcile"
)

// ErrExists is returned by New when the target directory already exists.
var ErrExists = errors.New("directory already exists")

// New creates a Lean project at path (the current directory when path is
// empty or "."), pins it to mathlib's Lean version and adds mathlib.
func New(ctx context.Context, env *Env, path string, opts Options) (*LeanProject, error) {
	if path == "" || path == "." {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if _, err := env.Tools.Run(ctx, cwd, "leanpkg", "init", filepath.Base(cwd)); err != nil {
			return nil, err
		}
		path = cwd
	} else {
		if exists(path) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		if _, err := env.Tools.Run(ctx, "", "leanpkg", "new", path); err != nil {
			return nil, err
		}
	}

	p, err := FromPath(ctx, env, path, opts)
	if err != nil {
		return nil, err
	}
	version, err := MathlibLeanVersion(ctx, env)
	if err != nil {
		return nil, err
	}
	p.SetLeanVersion(version)
	if err := p.WriteConfig(); err != nil {
		return nil, err
	}
	if _, err := p.AddMathlib(ctx); err != nil {
		return nil, err
	}
	if err := p.requireRepo(); err != nil {
		return nil, err
	}
	if branch, err := p.Repo.ActiveBranch(ctx); err != nil || branch != "master" {
		if err := p.Repo.CheckoutNewBranch(ctx, "master", ""); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// CloneTarget returns the directory a clone of url lands in by default.
func CloneTarget(url string) string {
	base := url
	if i := strings.LastIndexAny(base, "/:"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return base
}

// FromGitURL clones url into target (derived from url when empty),
// optionally checking out or creating branch, configures the project and
// fetches mathlib oleans when mathlib is involved. A clone whose branch
// cannot be set up is removed again.
func FromGitURL(ctx context.Context, env *Env, url, target, branch string, createBranch bool, opts Options) (*LeanProject, error) {
	slog.Info("cloning", "url", url)
	if target == "" {
		target = CloneTarget(url)
	}
	repo, err := git.Clone(ctx, env.Git, url, target)
	if err != nil {
		return nil, err
	}

	if branch != "" {
		var branchErr error
		if createBranch {
			branchErr = repo.CheckoutNewBranch(ctx, branch, "HEAD")
		} else if branchErr = repo.Fetch(ctx, "origin", branch); branchErr == nil {
			branchErr = repo.Checkout(ctx, branch)
		}
		if branchErr != nil {
			if createBranch {
				slog.Error("cannot create new git branch", "branch", branch)
			} else {
				slog.Error("invalid git branch", "branch", branch)
			}
			_ = os.RemoveAll(repo.Root)
			return nil, branchErr
		}
	}

	p, err := FromPath(ctx, env, repo.Root, opts)
	if err != nil {
		return nil, err
	}
	if err := p.runEcho(ctx, "leanpkg", "configure"); err != nil {
		return nil, err
	}
	if p.HasMathlib() || p.IsMathlib() {
		if _, err := p.GetMathlibOlean(ctx, ""); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Build restores mathlib and runs leanpkg build.
func (p *LeanProject) Build(ctx context.Context) error {
	slog.Info("building project", "name", p.Name())
	if err := p.CleanMathlib(ctx, false); err != nil {
		return err
	}
	return p.runEcho(ctx, "leanpkg", "build")
}

func (p *LeanProject) requireSrcDirectory() error {
	if !exists(p.SrcDirectory()) {
		return fmt.Errorf("%w: directory %s specified by 'path' does not exist", ErrInvalidProject, p.SrcDirectory())
	}
	return nil
}

// Clean deletes every olean of the project's sources and tests.
func (p *LeanProject) Clean() ([]string, error) {
	if err := p.requireSrcDirectory(); err != nil {
		return nil, err
	}
	return reconcile.Clean(p.projectDirs()...)
}

// DeleteZombies deletes oleans of the project whose sources are gone.
func (p *LeanProject) DeleteZombies() ([]string, error) {
	if err := p.requireSrcDirectory(); err != nil {
		return nil, err
	}
	return reconcile.DeleteZombies(p.projectDirs()...)
}

func (p *LeanProject) projectDirs() []string {
	dirs := []string{p.SrcDirectory()}
	if test := filepath.Join(p.Dir, TestDir); exists(test) && test != p.SrcDirectory() {
		dirs = append(dirs, test)
	}
	return dirs
}

// Timestamps is the result of CheckTimestamps.
type Timestamps struct {
	CoreOK    bool `json:"core_ok"`
	MathlibOK bool `json:"mathlib_ok"`
}

// CheckTimestamps checks that the oleans of the Lean core library and of
// mathlib are newer than their sources.
func (p *LeanProject) CheckTimestamps() (Timestamps, error) {
	var ts Timestamps
	mathlibOK, err := reconcile.CheckTimestamps(filepath.Join(p.MathlibFolder(), "src"))
	if err != nil {
		return ts, err
	}
	ts.MathlibOK = mathlibOK

	toolchain, err := p.Toolchain()
	if err != nil {
		return ts, err
	}
	ts.CoreOK = reconcile.CheckCoreTimestamps(filepath.Join(p.env.Home, ".elan", "toolchains", toolchain))
	return ts, nil
}

func (p *LeanProject) requireMathlibRepo(force bool) error {
	if p.IsDirty && !force {
		return ErrDirtyRepo
	}
	if !p.IsMathlib() {
		return ErrMathlibOnly
	}
	return p.requireRepo()
}

// PR prepares a new branch for a mathlib pull request, starting from an
// up to date master.
func (p *LeanProject) PR(ctx context.Context, branch string, force bool) error {
	if err := p.requireMathlibRepo(force); err != nil {
		return err
	}
	has, err := p.Repo.HasBranch(ctx, branch)
	if err != nil {
		return err
	}
	if has {
		return fmt.Errorf("the branch %s already exists, please choose another name", branch)
	}
	slog.Info("checking out master")
	if err := p.Repo.Checkout(ctx, "master"); err != nil {
		return err
	}
	if _, err := p.UpgradeMathlib(ctx); err != nil {
		return err
	}
	slog.Info("checking out new branch", "branch", branch)
	return p.Repo.CheckoutNewBranch(ctx, branch, "")
}

// Rebase updates master with its oleans and rebases the current branch on
// it.
func (p *LeanProject) Rebase(ctx context.Context, force bool) error {
	if err := p.requireMathlibRepo(force); err != nil {
		return err
	}
	branch, err := p.Repo.ActiveBranch(ctx)
	if err != nil {
		return err
	}
	if branch == "master" {
		return errors.New("this does not make sense now since you are on master")
	}
	slog.Info("checking out master")
	if err := p.Repo.Checkout(ctx, "master"); err != nil {
		return err
	}
	if _, err := p.UpgradeMathlib(ctx); err != nil {
		return err
	}
	slog.Info("checking out branch", "branch", branch)
	if err := p.Repo.Checkout(ctx, branch); err != nil {
		return err
	}
	slog.Info("rebasing")
	return p.Repo.Rebase(ctx, "master")
}
