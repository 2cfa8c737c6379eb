package ui

import (
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/bamsammich/arc7/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim       = "\033[2m"
	ansiReset     = "\033[0m"
	ansiClearLine = "\r\033[2K"
)

const (
	progressBarWidth = 20
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

// fileVerbs prefix the per-entry Text lines sent while files are processed.
var fileVerbs = []string{"Compressing ", "Extracting file "}

// SplitFileLine splits a per-entry Text line into its verb and entry name.
func SplitFileLine(msg string) (verb, name string, ok bool) {
	for _, v := range fileVerbs {
		if rest, found := strings.CutPrefix(msg, v); found && rest != "" {
			return strings.TrimSpace(v), rest, true
		}
	}
	return "", "", false
}

// hudPresenter scrolls Text lines above a single status line that is
// redrawn in place on a TTY.
type hudPresenter struct {
	w     io.Writer
	stats *stats.Collector
	warn  *color.Color
	width int
	now   func() time.Time

	pct      float64
	status   string
	current  string
	drawn    bool
	lastDraw time.Time
	lastTick time.Time
}

func (p *hudPresenter) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *hudPresenter) Text(msg string) {
	p.clearHUD()
	if rest, ok := SplitWarning(msg); ok {
		printWarning(p.w, p.warn, rest)
	} else if verb, name, ok := SplitFileLine(msg); ok {
		p.current = name
		fmt.Fprintf(p.w, "%s  %s\n", verb, p.styledName(name))
	} else {
		fmt.Fprintln(p.w, msg)
	}
	p.drawHUD()
}

func (p *hudPresenter) Progress(pct float64, status string) {
	p.pct = pct
	if status != "" {
		p.status = status
	}
	now := p.clock()
	if now.Sub(p.lastTick) >= time.Second {
		p.stats.Tick()
		p.lastTick = now
	}
	if pct < 100 && now.Sub(p.lastDraw) < hudMinInterval {
		return
	}
	p.clearHUD()
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()
	line := fmt.Sprintf(" %3.0f%%  %s", p.pct, ProgressBar(p.pct, progressBarWidth))
	if snap.FilesTotal > 0 {
		line += fmt.Sprintf("   %s / %s files", FormatCount(snap.FilesDone), FormatCount(snap.FilesTotal))
	}
	if snap.BytesTotal > 0 {
		line += "   " + FormatBytes(snap.BytesTotal)
	}
	line += "   eta " + FormatETA(percentETA(snap.Elapsed, p.pct))

	label := p.current
	if p.status != "" {
		label = p.status
	}
	if room := p.width - 1 - len([]rune(line)) - 3; label != "" && room > 8 {
		line += "   " + Truncate(label, room)
	}

	fmt.Fprint(p.w, line)
	p.drawn = true
	p.lastDraw = p.clock()
}

func (p *hudPresenter) clearHUD() {
	if !p.drawn {
		return
	}
	fmt.Fprint(p.w, ansiClearLine)
	p.drawn = false
}

func (p *hudPresenter) Close() {
	p.clearHUD()
}

func (p *hudPresenter) Summary() string {
	return CompletionSummary(p.stats.Snapshot())
}

// styledName dims the directory part of an entry name so the file name stands out.
func (p *hudPresenter) styledName(name string) string {
	name = Truncate(name, max(p.width-20, 16))
	dir, base := path.Split(name)
	if dir == "" {
		return base
	}
	return ansiDim + dir + ansiReset + base
}

// percentETA extrapolates the remaining time from elapsed time and percent done.
func percentETA(elapsed time.Duration, pct float64) time.Duration {
	if pct <= 0 || pct >= 100 {
		return 0
	}
	return time.Duration(float64(elapsed) * (100 - pct) / pct)
}
