package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/skelly-dev/codegraph/internal/manager"
)

type indexProgressReporter struct {
	out     io.Writer
	enabled bool
	label   string
	start   time.Time
	spinner int
	lastLen int
}

func newIndexProgressReporter(out io.Writer, label string, quiet bool) *indexProgressReporter {
	enabled := false
	if f, ok := out.(*os.File); ok && !quiet {
		stat, err := f.Stat()
		enabled = err == nil && (stat.Mode()&os.ModeCharDevice) != 0
	}
	return &indexProgressReporter{
		out:     out,
		enabled: enabled,
		label:   label,
		start:   time.Now(),
	}
}

// Follow polls status until ctx is done.
func (r *indexProgressReporter) Follow(ctx context.Context, status func() manager.Status) {
	if !r.enabled {
		return
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := status()
			if s.Phase == manager.PhaseInitializing {
				r.Update(s)
			}
		}
	}
}

func (r *indexProgressReporter) Update(s manager.Status) {
	if !r.enabled {
		return
	}
	frames := [4]string{"-", "\\", "|", "/"}
	frame := frames[r.spinner%len(frames)]
	r.spinner++
	file := strings.TrimSpace(s.CurrentFile)
	if len(file) > 88 {
		file = "..." + file[len(file)-85:]
	}

	status := fmt.Sprintf("%s %s %d parsing %s", frame, r.label, s.FilesProcessed, file)
	if s.TotalFiles > 0 {
		status = fmt.Sprintf("%s %s %d/%d parsing %s", frame, r.label, s.FilesProcessed, s.TotalFiles, file)
	}
	r.printStatus(status)
}

func (r *indexProgressReporter) Done(count int) {
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	r.printStatus(fmt.Sprintf("%s complete (%d files in %s)", r.label, count, elapsed))
	fmt.Fprintln(r.out)
}

func (r *indexProgressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status += strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.out, "\r%s", status)
}
