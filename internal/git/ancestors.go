package git

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrStopWalk ends VisitAncestors early without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// VisitFunc is called once per visited commit. Returning prune=true skips
// every ancestor of sha for the rest of the walk.
type VisitFunc func(sha string) (prune bool, err error)

// VisitAncestors walks the history of rev in topological order, children
// before parents, optionally pruning all ancestors of a visited commit.
//
// In the graph below, where K and L are branch tips,
//
//	A -- B -- E -- I -- J -- L
//	      \       /    /
//	       C --- F -- H
//	        \        /
//	         D ---- G --- K
//
// walking from L and pruning at B, F and G stops at G and F and never
// reaches D, C, B or A.
//
// A pruned walk restarts `git rev-list` with the pruned commits excluded,
// skipping the commits already visited. limit bounds the total number of
// visits; zero means unbounded.
func (g *Repo) VisitAncestors(ctx context.Context, rev string, limit int, visit VisitFunc) error {
	var pruned []string
	skip := 0
	visited := 0

	for {
		args := []string{"rev-list", "--topo-order", "--skip=" + strconv.Itoa(skip)}
		if limit > 0 {
			remaining := limit - visited
			if remaining <= 0 {
				return nil
			}
			args = append(args, "--max-count="+strconv.Itoa(remaining))
		}
		args = append(args, rev)
		if len(pruned) > 0 {
			args = append(args, "--not")
			args = append(args, pruned...)
		}

		out, err := g.git(ctx, args...)
		if err != nil {
			return fmt.Errorf("failed to list ancestors of %s: %w", rev, err)
		}

		restarted := false
		for _, sha := range splitLines(out) {
			if err := ctx.Err(); err != nil {
				return err
			}
			visited++
			prune, err := visit(sha)
			if err != nil {
				if errors.Is(err, ErrStopWalk) {
					return nil
				}
				return err
			}
			if prune {
				pruned = append(pruned, sha)
				restarted = true
				break
			}
			skip++
		}
		if !restarted {
			return nil
		}
	}
}
