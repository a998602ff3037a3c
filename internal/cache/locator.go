package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leanprover-community/mathlib-tools/internal/git"
)

// History walks commit ancestry. *git.Repo implements it.
type History interface {
	VisitAncestors(ctx context.Context, rev string, limit int, visit git.VisitFunc) error
}

// Match is the commit whose archive a lookup settled on.
type Match struct {
	Rev string
	// Depth is the number of commits walked past the requested one; zero
	// for an exact match.
	Depth int
}

// Exact reports whether the archive belongs to the requested commit.
func (m Match) Exact() bool {
	return m.Depth == 0
}

// Locator finds the nearest commit with a published archive.
type Locator struct {
	Cache *Cache
	// MaxDepth bounds how many ancestors are tried after the requested
	// commit. Zero disables the fallback.
	MaxDepth int
}

// Find returns rev itself when an archive exists for it. Otherwise it walks
// the ancestors of rev, children before parents, and returns the first one
// with an archive, trying at most MaxDepth of them.
func (l *Locator) Find(ctx context.Context, history History, rev string) (Match, error) {
	ok, err := l.Cache.Available(ctx, rev)
	if err != nil {
		return Match{}, err
	}
	if ok {
		return Match{Rev: rev}, nil
	}
	if l.MaxDepth <= 0 || history == nil {
		return Match{}, fmt.Errorf("%w: %s", ErrNotFound, rev)
	}

	var match Match
	depth := -1
	// the walk starts at rev itself, already checked above
	err = history.VisitAncestors(ctx, rev, l.MaxDepth+1, func(sha string) (bool, error) {
		depth++
		if depth == 0 {
			return false, nil
		}
		ok, err := l.Cache.Available(ctx, sha)
		if err != nil {
			return false, err
		}
		if !ok {
			slog.Debug("no olean archive for ancestor", "rev", sha, "depth", depth)
			return false, nil
		}
		match = Match{Rev: sha, Depth: depth}
		return true, git.ErrStopWalk
	})
	if err != nil {
		return Match{}, err
	}
	if match.Rev == "" {
		return Match{}, fmt.Errorf("%w: %s or its %d nearest ancestors", ErrNotFound, rev, l.MaxDepth)
	}
	slog.Debug("found olean archive of an ancestor", "rev", match.Rev, "requested", rev, "depth", match.Depth)
	return match, nil
}

// IsNotFound reports whether err means no archive could be located.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
