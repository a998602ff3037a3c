// Package reconcile merges an olean archive into a working tree without
// trusting artifacts whose sources changed locally.
package reconcile

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leanprover-community/mathlib-tools/internal/archive"
)

const (
	OleanExt = ".olean"
	LeanExt  = ".lean"
)

// Reason explains why an archive entry was not extracted.
type Reason string

const (
	// SkipModified marks an olean whose source differs from the commit the
	// archive was built at.
	SkipModified Reason = "modified"
	// SkipZombie marks an olean whose source no longer exists locally.
	SkipZombie Reason = "zombie"
	// SkipSource marks any entry that is not a compiled artifact.
	SkipSource Reason = "source"
)

// Reasons lists every skip reason in report order.
var Reasons = []Reason{SkipModified, SkipZombie, SkipSource}

// Plan is the per-entry decision for merging one archive into Dir.
type Plan struct {
	Dir     string
	Extract []string
	Skipped map[Reason][]string
	// Stale holds local oleans, relative to Dir, that are older than their
	// locally changed source.
	Stale []string

	accept map[string]bool
}

// SourceFor returns the source file an olean was compiled from.
func SourceFor(olean string) string {
	return strings.TrimSuffix(olean, OleanExt) + LeanExt
}

// OleanFor returns the artifact compiled from a source file.
func OleanFor(source string) string {
	return strings.TrimSuffix(source, LeanExt) + OleanExt
}

// NewPlan decides, for every regular entry of an archive manifest, whether
// it may be written into dir. changed lists the slash-separated paths,
// relative to dir, whose content differs from the commit the archive was
// built at.
func NewPlan(entries []archive.Entry, dir string, changed []string) *Plan {
	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[path.Clean(filepath.ToSlash(c))] = true
	}

	p := &Plan{
		Dir:     dir,
		Skipped: make(map[Reason][]string),
		accept:  make(map[string]bool),
	}
	for _, entry := range entries {
		if !entry.IsRegular() {
			continue
		}
		name := entry.Name
		if !strings.HasSuffix(name, OleanExt) {
			p.skip(SkipSource, name)
			continue
		}
		src := SourceFor(name)
		if changedSet[src] {
			p.skip(SkipModified, name)
			continue
		}
		if !fileExists(filepath.Join(dir, filepath.FromSlash(src))) {
			p.skip(SkipZombie, name)
			continue
		}
		p.Extract = append(p.Extract, name)
		p.accept[name] = true
	}

	for c := range changedSet {
		if !strings.HasSuffix(c, LeanExt) {
			continue
		}
		if olderThanSource(dir, c) {
			p.Stale = append(p.Stale, OleanFor(c))
		}
	}

	sort.Strings(p.Extract)
	sort.Strings(p.Stale)
	for reason := range p.Skipped {
		sort.Strings(p.Skipped[reason])
	}
	return p
}

// Accept is an archive.Filter admitting exactly the planned entries.
func (p *Plan) Accept(entry archive.Entry) bool {
	return p.accept[entry.Name]
}

// SkippedCount returns the number of skipped entries across all reasons.
func (p *Plan) SkippedCount() int {
	n := 0
	for _, names := range p.Skipped {
		n += len(names)
	}
	return n
}

func (p *Plan) skip(reason Reason, name string) {
	p.Skipped[reason] = append(p.Skipped[reason], name)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// olderThanSource reports whether the local olean of source exists and was
// last written before source.
func olderThanSource(dir, source string) bool {
	srcInfo, err := os.Stat(filepath.Join(dir, filepath.FromSlash(source)))
	if err != nil {
		return false
	}
	oleanInfo, err := os.Stat(filepath.Join(dir, filepath.FromSlash(OleanFor(source))))
	if err != nil {
		return false
	}
	return oleanInfo.ModTime().Before(srcInfo.ModTime())
}
