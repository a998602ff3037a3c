package cli

import (
	"errors"
	"fmt"

	"github.com/leanprover-community/mathlib-tools/internal/archive"
	"github.com/leanprover-community/mathlib-tools/internal/cache"
	"github.com/leanprover-community/mathlib-tools/internal/git"
	"github.com/leanprover-community/mathlib-tools/internal/graph"
	"github.com/leanprover-community/mathlib-tools/internal/leanpkg"
	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/leanprover-community/mathlib-tools/internal/runner"
)

var errorHints = []struct {
	target error
	hint   string
}{
	{project.ErrDirtyRepo, "commit or stash your changes, or use --force"},
	{project.ErrInvalidProject, "run this command inside a Lean project, or create one with `leanproject new`"},
	{leanpkg.ErrNoManifest, "run this command inside a Lean project, or create one with `leanproject new`"},
	{project.ErrNoRepository, "this command needs the project to be a git repository"},
	{git.ErrNotRepository, "this command needs the project to be a git repository"},
	{project.ErrNoCommit, "commit something first"},
	{project.ErrMathlibOnly, "run this command inside a mathlib clone"},
	{project.ErrRootSources, "move the sources to a subdirectory such as src"},
	{project.ErrNotMathlibProject, "add mathlib with `leanproject add-mathlib`"},
	{project.ErrExists, "choose another directory"},
	{cache.ErrNotFound, "no cache is available; try --fallback or build the project yourself"},
	{cache.ErrDownload, "check your network connection or the url set with `leanproject set-url`"},
	{cache.ErrDigestMismatch, "rerun with --force-download"},
	{archive.ErrCorrupt, "rerun with --force-download"},
	{graph.ErrUnknownNode, "pass a module name such as data.nat.basic"},
}

// ErrorMessage renders err for the terminal, adding a hint for the errors
// users can act on.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) {
		return fmt.Sprintf("error: %v", cmdErr)
	}
	for _, h := range errorHints {
		if errors.Is(err, h.target) {
			return fmt.Sprintf("error: %v\nhint: %s", err, h.hint)
		}
	}
	return fmt.Sprintf("error: %v", err)
}
