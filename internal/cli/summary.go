package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/leanprover-community/mathlib-tools/internal/fileutil"
	"github.com/leanprover-community/mathlib-tools/internal/project"
	"github.com/leanprover-community/mathlib-tools/internal/reconcile"
)

// FileListSummary is printed by commands that delete or write files.
type FileListSummary struct {
	Mode  string   `json:"mode"`
	Dir   string   `json:"dir"`
	Count int      `json:"count"`
	Files []string `json:"files,omitempty"`
}

// CacheSummary is printed by mk-cache.
type CacheSummary struct {
	Mode    string `json:"mode"`
	Rev     string `json:"rev"`
	Archive string `json:"archive"`
	Size    int64  `json:"size"`
}

// CheckSummary is printed by check.
type CheckSummary struct {
	Mode string `json:"mode"`
	project.Timestamps
	Healthy     bool     `json:"healthy"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func PrintReport(mode string, report *reconcile.Report, asJSON bool) error {
	if report == nil {
		return nil
	}
	if asJSON {
		return fileutil.PrintJSON(struct {
			Mode string `json:"mode"`
			*reconcile.Report
		}{Mode: mode, Report: report})
	}

	fmt.Printf("%s: extracted=%d from %s\n", mode, len(report.Extracted), filepath.Base(report.Archive))
	for _, reason := range reconcile.Reasons {
		skipped := report.Skipped[reason]
		if len(skipped) == 0 {
			continue
		}
		fmt.Printf("skipped %s (%d): %s\n", reason, len(skipped), SummarizePaths(skipped, 8))
	}
	if len(report.RemovedStale) > 0 {
		fmt.Printf("removed stale oleans (%d): %s\n", len(report.RemovedStale), SummarizePaths(report.RemovedStale, 8))
	}
	if len(report.Zombies) > 0 {
		fmt.Printf("deleted zombies (%d): %s\n", len(report.Zombies), SummarizePaths(report.Zombies, 8))
	}
	return nil
}

func PrintFileList(summary FileListSummary, asJSON bool) error {
	summary.Count = len(summary.Files)
	if asJSON {
		return fileutil.PrintJSON(summary)
	}
	fmt.Printf("%s: %d files in %s\n", summary.Mode, summary.Count, summary.Dir)
	if summary.Count > 0 {
		fmt.Printf("files: %s\n", SummarizePaths(relativePaths(summary.Dir, summary.Files), 8))
	}
	return nil
}

func PrintCacheSummary(summary CacheSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(summary)
	}
	fmt.Printf("%s: rev=%s archive=%s (%s)\n", summary.Mode, summary.Rev, summary.Archive, humanize.Bytes(uint64(summary.Size)))
	return nil
}

func PrintCheckSummary(summary CheckSummary, asJSON bool) error {
	if asJSON {
		return fileutil.PrintJSON(summary)
	}
	fmt.Printf("core oleans: %s\n", okLabel(summary.CoreOK))
	fmt.Printf("mathlib oleans: %s\n", okLabel(summary.MathlibOK))
	for _, suggestion := range summary.Suggestions {
		fmt.Printf("  - %s\n", suggestion)
	}
	return nil
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "outdated"
}

func relativePaths(dir string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = filepath.ToSlash(rel)
		}
		out = append(out, p)
	}
	return fileutil.SortedUnique(out)
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
