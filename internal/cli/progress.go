package cli

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// downloadProgress draws a one-line progress indicator on stderr while an
// archive downloads. It stays silent when stderr is not a terminal.
type downloadProgress struct {
	mu      sync.Mutex
	enabled bool
	label   string
	start   time.Time
	last    time.Time
	spinner int
	lastLen int
}

func newDownloadProgress(label string, asJSON bool) *downloadProgress {
	fd := os.Stderr.Fd()
	enabled := (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && !asJSON
	return &downloadProgress{
		enabled: enabled,
		label:   label,
		start:   time.Now(),
	}
}

// Update is a cache.ProgressFunc.
func (r *downloadProgress) Update(written, total int64) {
	if !r.enabled {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	done := total > 0 && written >= total
	if !done && time.Since(r.last) < 100*time.Millisecond {
		return
	}
	r.last = time.Now()
	r.printStatus(formatProgress(r.label, r.spinner, written, total))
	r.spinner++
	if done {
		elapsed := time.Since(r.start).Round(time.Millisecond)
		r.printStatus(fmt.Sprintf("%s complete (%s in %s)", r.label, humanize.Bytes(uint64(written)), elapsed))
		fmt.Fprintln(os.Stderr)
	}
}

func formatProgress(label string, spinner int, written, total int64) string {
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[spinner%len(frames)]
	if total <= 0 {
		return fmt.Sprintf("%s %s %s", frame, label, humanize.Bytes(uint64(written)))
	}
	percent := float64(written) * 100 / float64(total)
	return fmt.Sprintf("%s %s %s/%s (%.0f%%)", frame, label,
		humanize.Bytes(uint64(written)), humanize.Bytes(uint64(total)), percent)
}

func (r *downloadProgress) printStatus(status string) {
	if r.lastLen > len(status) {
		status = status + strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(os.Stderr, "\r%s", status)
}
