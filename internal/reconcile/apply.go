package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leanprover-community/mathlib-tools/internal/archive"
)

// Report summarises one reconciliation.
type Report struct {
	Archive      string              `json:"archive"`
	Dir          string              `json:"dir"`
	Extracted    []string            `json:"extracted"`
	Skipped      map[Reason][]string `json:"skipped,omitempty"`
	RemovedStale []string            `json:"removed_stale,omitempty"`
	Zombies      []string            `json:"zombies,omitempty"`
}

// Options tunes Reconcile.
type Options struct {
	// Changed lists paths relative to the target directory that differ
	// from the archive's commit.
	Changed []string
	// ZombieDirs are swept for oleans without sources after extraction.
	ZombieDirs []string
}

// Reconcile lists the archive, plans the merge into dir and applies it.
func Reconcile(ctx context.Context, archivePath, dir string, opts Options) (*Report, error) {
	entries, err := archive.List(archivePath)
	if err != nil {
		return nil, err
	}
	plan := NewPlan(entries, dir, opts.Changed)
	report, err := Apply(ctx, archivePath, plan)
	if err != nil {
		return report, err
	}
	if len(opts.ZombieDirs) > 0 {
		zombies, err := DeleteZombies(opts.ZombieDirs...)
		report.Zombies = zombies
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// Apply extracts the planned entries, removes stale local oleans and stamps
// every extracted olean with the current time so it is newer than its
// source.
func Apply(ctx context.Context, archivePath string, plan *Plan) (*Report, error) {
	report := &Report{
		Archive: archivePath,
		Dir:     plan.Dir,
		Skipped: plan.Skipped,
	}

	for _, rel := range plan.Stale {
		p := filepath.Join(plan.Dir, filepath.FromSlash(rel))
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return report, err
		}
		slog.Info("removed stale olean", "path", rel)
		report.RemovedStale = append(report.RemovedStale, rel)
	}

	written, err := archive.Extract(ctx, archivePath, plan.Dir, plan.Accept)
	report.Extracted = written
	if err != nil {
		return report, err
	}

	now := time.Now()
	for _, rel := range written {
		p := filepath.Join(plan.Dir, filepath.FromSlash(rel))
		if err := os.Chtimes(p, now, now); err != nil {
			return report, fmt.Errorf("failed to touch %s: %w", rel, err)
		}
	}

	slog.Info("unpacked olean archive",
		"archive", filepath.Base(archivePath),
		"extracted", len(written),
		"skipped", plan.SkippedCount(),
	)
	return report, nil
}
