package project

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leanprover-community/mathlib-tools/internal/decls"
	"github.com/leanprover-community/mathlib-tools/internal/fileutil"
	"github.com/leanprover-community/mathlib-tools/internal/ignore"
)

const (
	AllFile       = "all.lean"
	listDeclsFile = "list_decls.lean"
	DeclsDump     = "decls.yaml"
)

// declsProgram is appended to the imports of all.lean; running it makes
// Lean write every declaration it sees to decls.yaml.
//
//go:embed decls.lean
var declsProgram string

// sourceFiles lists the .lean files of the source directory, relative to
// it, honoring the project's ignore file.
func (p *LeanProject) sourceFiles() ([]string, error) {
	matcher, err := ignore.Load(p.Dir)
	if err != nil {
		return nil, err
	}
	return fileutil.LeanFiles(p.SrcDirectory(), matcher)
}

// MakeAll writes all.lean into the source directory, importing every
// module of the project.
func (p *LeanProject) MakeAll() (string, error) {
	if err := p.requireSrcDirectory(); err != nil {
		return "", err
	}
	files, err := p.sourceFiles()
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.SrcDirectory(), AllFile)
	if err := fileutil.WriteIfChanged(path, decls.MakeAll(files)); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", AllFile, err)
	}
	return path, nil
}

// ListDecls runs Lean on a program importing the whole project and returns
// every declaration it can see. all.lean is removed again unless it was
// already there.
func (p *LeanProject) ListDecls(ctx context.Context) (map[string]decls.DeclInfo, error) {
	allPath := filepath.Join(p.SrcDirectory(), AllFile)
	allExisted := exists(allPath)
	listPath := filepath.Join(p.SrcDirectory(), listDeclsFile)
	if err := os.Remove(listPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	slog.Info("gathering imports")
	if _, err := p.MakeAll(); err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(listPath)
		if !allExisted {
			_ = os.Remove(allPath)
		}
	}()

	imports, err := os.ReadFile(allPath)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(listPath, append(imports, declsProgram...), 0644); err != nil {
		return nil, err
	}

	slog.Info("collecting declarations")
	if err := p.runEcho(ctx, "lean", "--run", listPath); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, DeclsDump))
	if err != nil {
		return nil, fmt.Errorf("lean did not write %s: %w", DeclsDump, err)
	}
	return decls.ParseYAML(data, decls.Layout{
		Name:   p.Name(),
		Dir:    p.Dir,
		SrcDir: p.SrcDirectory(),
	})
}
