package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/fileutil"
)

const (
	HookStart = "# >>> leanproject cache hook >>>"
	HookEnd   = "# <<< leanproject cache hook <<<"
)

// Hook is a git hook managed by leanproject.
type Hook struct {
	Name    string
	Command string
}

// Hooks lists the hooks SetupGitHooks installs: caching oleans after each
// commit and restoring them after each checkout.
var Hooks = []Hook{
	{Name: "post-commit", Command: "leanproject mk-cache"},
	{Name: "post-checkout", Command: "leanproject get-cache"},
}

// HookDir returns the repository's hooks directory.
func (p *LeanProject) HookDir() (string, error) {
	if err := p.requireRepo(); err != nil {
		return "", err
	}
	return filepath.Join(p.Repo.GitDir, "hooks"), nil
}

// SetupGitHooks writes the managed block of every hook in Hooks, keeping any
// other content of existing hook scripts. It returns the hook paths.
func (p *LeanProject) SetupGitHooks() ([]string, error) {
	dir, err := p.HookDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create hook directory: %w", err)
	}

	var written []string
	for _, hook := range Hooks {
		hookPath := filepath.Join(dir, hook.Name)
		existing := ""
		if data, err := os.ReadFile(hookPath); err == nil {
			existing = string(data)
		} else if !os.IsNotExist(err) {
			return written, fmt.Errorf("failed to read existing %s hook: %w", hook.Name, err)
		}

		updated := UpsertHookBlock(existing, hook)
		if err := fileutil.WriteIfChanged(hookPath, []byte(updated)); err != nil {
			return written, fmt.Errorf("failed to write %s hook: %w", hook.Name, err)
		}
		if err := os.Chmod(hookPath, 0755); err != nil {
			return written, err
		}
		written = append(written, hookPath)
	}
	return written, nil
}

// UpsertHookBlock replaces the managed block of existingHook, or appends one.
func UpsertHookBlock(existingHook string, hook Hook) string {
	block := BuildHookBlock(hook)

	if existingHook == "" {
		return "#!/bin/sh\n\n" + block + "\n"
	}

	start := strings.Index(existingHook, HookStart)
	end := strings.Index(existingHook, HookEnd)
	if start >= 0 && end >= start {
		end += len(HookEnd)
		updated := existingHook[:start] + block + existingHook[end:]
		return fileutil.EnsureTrailingNewline(updated)
	}

	base := fileutil.EnsureTrailingNewline(existingHook)
	if !strings.HasPrefix(base, "#!") {
		base = "#!/bin/sh\n" + base
	}
	return base + "\n" + block + "\n"
}

// BuildHookBlock renders the managed block running hook.Command when
// leanproject is installed.
func BuildHookBlock(hook Hook) string {
	return fmt.Sprintf(
		"%s\nif command -v leanproject >/dev/null 2>&1; then\n  %s || true\nfi\n%s",
		HookStart,
		hook.Command,
		HookEnd,
	)
}
