// Package project drives the lifecycle of a Lean project that is, or
// depends on, mathlib.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/leanprover-community/mathlib-tools/internal/cache"
	"github.com/leanprover-community/mathlib-tools/internal/config"
	"github.com/leanprover-community/mathlib-tools/internal/git"
	"github.com/leanprover-community/mathlib-tools/internal/leanpkg"
	"github.com/leanprover-community/mathlib-tools/internal/runner"
)

const (
	MathlibName     = "mathlib"
	UserProjectName = "_user_local_packages"
	TestDir         = "test"
	CacheDir        = "_cache"
)

var (
	// ErrInvalidProject is returned when a directory is not a usable Lean
	// project.
	ErrInvalidProject = errors.New("invalid Lean project")

	// ErrNotMathlibProject is returned when an operation needs a mathlib
	// dependency pinned to a git commit.
	ErrNotMathlibProject = errors.New("project does not depend on a mathlib git revision")

	// ErrDirtyRepo is returned when the work tree has uncommitted changes
	// and the operation was not forced.
	ErrDirtyRepo = errors.New("repository is dirty")

	// ErrNoRepository is returned when an operation needs git but the
	// project is not inside a repository.
	ErrNoRepository = errors.New("project has no git repository")

	// ErrNoCommit is returned when the repository has no commit yet.
	ErrNoCommit = errors.New("project has no git commit")

	// ErrMathlibOnly is returned by operations that only make sense inside
	// mathlib itself.
	ErrMathlibOnly = errors.New("this operation is for mathlib only")

	// ErrRootSources is returned by MkCache when the manifest puts the
	// sources at the project root.
	ErrRootSources = errors.New("cannot cache sources at the project root")
)

// Env carries the collaborators shared by every project.
type Env struct {
	Config *config.Config
	// Tools runs leanpkg and lean.
	Tools runner.Runner
	// Git runs git.
	Git    runner.Runner
	Client *http.Client
	// Home is the user's home directory, holding ~/.lean and ~/.elan.
	Home string
	// Progress receives archive download progress.
	Progress cache.ProgressFunc
}

// NewEnv builds an Env around cfg using the real process runner.
func NewEnv(cfg *config.Config) (*Env, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return &Env{
		Config: cfg,
		Tools:  runner.Default,
		Git:    runner.Default,
		Client: &http.Client{Timeout: cfg.HTTPTimeout},
		Home:   home,
	}, nil
}

// Options are per-invocation switches.
type Options struct {
	// CacheURL overrides the configured download URL.
	CacheURL      string
	ForceDownload bool
	// NoLeanUpgrade keeps the project's Lean version when adding or
	// upgrading mathlib.
	NoLeanUpgrade bool
	// Fallback allows using the archive of an ancestor commit when none
	// exists for the requested one.
	Fallback bool
}

// LeanProject is a Lean project directory with its manifest and, if any,
// its git repository.
type LeanProject struct {
	env  *Env
	opts Options

	Repo     *git.Repo
	IsDirty  bool
	Rev      string
	Dir      string
	Manifest *leanpkg.Manifest
	CacheURL string
}

// FromPath opens the project containing path.
func FromPath(ctx context.Context, env *Env, path string, opts Options) (*LeanProject, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	p := &LeanProject{env: env, opts: opts}
	repo, err := git.Open(ctx, env.Git, abs)
	switch {
	case err == nil:
		p.Repo = repo
		if p.IsDirty, err = repo.IsDirty(ctx); err != nil {
			return nil, err
		}
		rev, err := repo.Head(ctx)
		if err != nil && !errors.Is(err, git.ErrNoCommits) {
			return nil, err
		}
		p.Rev = rev
	case errors.Is(err, git.ErrBareRepository):
		return nil, fmt.Errorf("%w: git repository is not initialized", ErrInvalidProject)
	case errors.Is(err, git.ErrNotRepository):
		slog.Debug("project is not in a git repository", "path", abs)
	default:
		return nil, err
	}

	root, err := leanpkg.FindRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProject, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	p.Dir = root
	if err := p.ReadConfig(); err != nil {
		return nil, err
	}
	p.CacheURL = p.resolveCacheURL()
	return p, nil
}

// UserWide returns the project living in ~/.lean, creating it with the Lean
// version mathlib currently uses when it does not exist.
func UserWide(ctx context.Context, env *Env, opts Options) (*LeanProject, error) {
	dir := filepath.Join(env.Home, ".lean")
	p := &LeanProject{env: env, opts: opts, Dir: dir}
	p.CacheURL = p.resolveCacheURL()

	manifest, err := leanpkg.Load(dir)
	switch {
	case err == nil:
		p.Manifest = manifest
		return p, nil
	case !errors.Is(err, leanpkg.ErrNoManifest):
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	version, err := MathlibLeanVersion(ctx, env)
	if err != nil {
		return nil, err
	}
	p.Manifest = &leanpkg.Manifest{
		Package: leanpkg.Package{
			Name:        UserProjectName,
			Version:     "1",
			LeanVersion: leanpkg.LeanVersionTOML(version),
		},
		Dependencies: make(map[string]leanpkg.Dependency),
	}
	if err := p.WriteConfig(); err != nil {
		return nil, err
	}
	slog.Info("created user-wide project", "dir", dir, "lean", version.String())
	return p, nil
}

func (p *LeanProject) resolveCacheURL() string {
	if p.opts.CacheURL != "" {
		return config.NormalizeURL(p.opts.CacheURL)
	}
	return p.env.Config.DownloadURL
}

// Name returns the package name.
func (p *LeanProject) Name() string {
	return p.Manifest.Package.Name
}

// IsMathlib reports whether the project is mathlib itself.
func (p *LeanProject) IsMathlib() bool {
	return p.Name() == MathlibName
}

// LeanVersion parses the manifest's lean_version.
func (p *LeanProject) LeanVersion() (leanpkg.Version, error) {
	return p.Manifest.LeanVersion()
}

// SetLeanVersion updates lean_version in memory; call WriteConfig to save.
func (p *LeanProject) SetLeanVersion(v leanpkg.Version) {
	p.Manifest.SetLeanVersion(v)
}

// Toolchain returns the elan toolchain name for the project's Lean version.
func (p *LeanProject) Toolchain() (string, error) {
	v, err := p.LeanVersion()
	if err != nil {
		return "", err
	}
	return leanpkg.Toolchain(v), nil
}

// MathlibRev returns the mathlib commit the project uses.
func (p *LeanProject) MathlibRev() (string, error) {
	if p.IsMathlib() {
		return p.Rev, nil
	}
	dep, ok := p.Manifest.Dependencies[MathlibName]
	if !ok {
		return "", fmt.Errorf("%w: no mathlib dependency", ErrNotMathlibProject)
	}
	if dep.Rev == "" {
		return "", fmt.Errorf("%w: project refers to a local copy of mathlib instead of a git repository", ErrNotMathlibProject)
	}
	return dep.Rev, nil
}

// HasMathlib reports whether mathlib is a declared dependency.
func (p *LeanProject) HasMathlib() bool {
	_, ok := p.Manifest.Dependencies[MathlibName]
	return ok
}

// MathlibFolder is where mathlib's sources and oleans live for this project.
func (p *LeanProject) MathlibFolder() string {
	if p.IsMathlib() {
		return p.Dir
	}
	return filepath.Join(p.Dir, "_target", "deps", MathlibName)
}

// SrcDirectory is the directory named by the manifest's path key.
func (p *LeanProject) SrcDirectory() string {
	return filepath.Join(p.Dir, p.Manifest.Package.Path)
}

// ReadConfig reloads leanpkg.toml.
func (p *LeanProject) ReadConfig() error {
	manifest, err := leanpkg.Load(p.Dir)
	if err != nil {
		if errors.Is(err, leanpkg.ErrNoManifest) {
			return fmt.Errorf("%w: missing %s", ErrInvalidProject, leanpkg.ManifestFile)
		}
		return err
	}
	p.Manifest = manifest
	return nil
}

// WriteConfig saves leanpkg.toml.
func (p *LeanProject) WriteConfig() error {
	return p.Manifest.Save(p.Dir)
}

func (p *LeanProject) run(ctx context.Context, name string, args ...string) (string, error) {
	return p.env.Tools.Run(ctx, p.Dir, name, args...)
}

func (p *LeanProject) runEcho(ctx context.Context, name string, args ...string) error {
	return p.env.Tools.RunEcho(ctx, p.Dir, name, args...)
}

func (p *LeanProject) requireRepo() error {
	if p.Repo == nil {
		return ErrNoRepository
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// sourceDirs returns the source and test directories that exist below root,
// using the manifest path for the sources. A project whose sources sit at
// its root only contributes its test directory.
func sourceDirs(root, srcPath string) []string {
	candidates := []string{filepath.Join(root, TestDir)}
	if !atRoot(srcPath) {
		candidates = append([]string{filepath.Join(root, filepath.Clean(srcPath))}, candidates...)
	}
	var dirs []string
	for _, d := range candidates {
		if exists(d) && !containsString(dirs, d) {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func atRoot(srcPath string) bool {
	return srcPath == "" || filepath.Clean(srcPath) == "."
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
