package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/bamsammich/arc7/internal/stats"
)

const plainProgressInterval = 5 * time.Second

// plainPresenter prints each Text line to stdout, warnings to stderr, and a
// progress line to stderr at most every few seconds.
type plainPresenter struct {
	w          io.Writer
	errW       io.Writer
	stats      *stats.Collector
	warn       *color.Color
	noProgress bool

	now          func() time.Time
	lastProgress time.Time
	printedDone  bool
}

func newPlainPresenter(w, errW io.Writer, c *stats.Collector, warn *color.Color, noProgress bool) *plainPresenter {
	return &plainPresenter{
		w:          w,
		errW:       errW,
		stats:      c,
		warn:       warn,
		noProgress: noProgress,
		now:        time.Now,
	}
}

func (p *plainPresenter) Text(msg string) {
	if rest, ok := SplitWarning(msg); ok {
		printWarning(p.errW, p.warn, rest)
		return
	}
	fmt.Fprintln(p.w, msg)
}

func (p *plainPresenter) Progress(pct float64, status string) {
	if p.noProgress || p.printedDone {
		return
	}
	now := p.now()
	if pct < 100 && now.Sub(p.lastProgress) < plainProgressInterval {
		return
	}
	p.lastProgress = now
	p.printedDone = pct >= 100
	p.printProgress(pct, status)
}

func (p *plainPresenter) printProgress(pct float64, status string) {
	snap := p.stats.Snapshot()
	line := fmt.Sprintf("progress: %.0f%%", pct)
	if snap.FilesTotal > 0 {
		line += fmt.Sprintf(" %s/%s files", FormatCount(snap.FilesDone), FormatCount(snap.FilesTotal))
	}
	if snap.BytesTotal > 0 {
		line += " of " + FormatBytes(snap.BytesTotal)
	}
	if status != "" {
		line += " (" + status + ")"
	}
	fmt.Fprintln(p.errW, line)
}

func (p *plainPresenter) Close() {}

func (p *plainPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}
