package tui

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bamsammich/arc7/internal/ui"
)

type lineKind int

const (
	lineInfo lineKind = iota
	lineFile
)

type feedLine struct {
	kind lineKind
	verb string // lineFile
	text string // entry name for lineFile, message otherwise
}

type warningEntry struct {
	msg  string
	time time.Time
}

// feedView holds the operation's Text messages: a scrollable activity log
// and a pinned list of warnings.
type feedView struct {
	lines        []feedLine     // unbounded history
	warnings     []warningEntry // never evicted
	files        int
	scrollOffset int  // viewport offset into lines
	autoScroll   bool // follow new entries
}

func newFeedView() feedView {
	return feedView{autoScroll: true}
}

func (f *feedView) addText(msg string, at time.Time) {
	if rest, ok := ui.SplitWarning(msg); ok {
		f.warnings = append(f.warnings, warningEntry{msg: rest, time: at})
		return
	}
	if verb, name, ok := ui.SplitFileLine(msg); ok {
		f.files++
		f.lines = append(f.lines, feedLine{kind: lineFile, verb: verb, text: name})
		return
	}
	f.lines = append(f.lines, feedLine{kind: lineInfo, text: msg})
}

// current returns the most recent entry name, or "" before the first one.
func (f *feedView) current() string {
	for i := len(f.lines) - 1; i >= 0; i-- {
		if f.lines[i].kind == lineFile {
			return f.lines[i].text
		}
	}
	return ""
}

// scrollDown moves the viewport down one line and disables autoScroll.
func (f *feedView) scrollDown() {
	f.autoScroll = false
	f.scrollOffset++
}

// scrollUp moves the viewport up one line and disables autoScroll.
func (f *feedView) scrollUp() {
	f.autoScroll = false
	if f.scrollOffset > 0 {
		f.scrollOffset--
	}
}

func (f *feedView) scrollToTop() {
	f.autoScroll = false
	f.scrollOffset = 0
}

// scrollToBottom jumps to the newest line and re-enables autoScroll.
func (f *feedView) scrollToBottom() {
	f.autoScroll = true
}

func (f *feedView) view(width, height int) string {
	width = max(width, 20)

	warnCount := min(len(f.warnings), 5)
	dividers := 0
	if warnCount > 0 {
		dividers++
	}
	if len(f.lines) > 0 {
		dividers++
	}
	logHeight := max(height-warnCount-dividers, 1)

	maxOffset := max(len(f.lines)-logHeight, 0)
	if f.autoScroll {
		f.scrollOffset = maxOffset
	}
	f.scrollOffset = max(min(f.scrollOffset, maxOffset), 0)

	var b strings.Builder
	if len(f.lines) > 0 {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ activity (%d files)", f.files)))
		b.WriteByte('\n')
		end := min(f.scrollOffset+logHeight, len(f.lines))
		for _, l := range f.lines[f.scrollOffset:end] {
			b.WriteString(f.renderLine(l, width))
			b.WriteByte('\n')
		}
	}
	if warnCount > 0 {
		b.WriteString(styleDivider.Render(fmt.Sprintf("─ warnings (%d)", len(f.warnings))))
		b.WriteByte('\n')
		for _, w := range f.warnings[len(f.warnings)-warnCount:] {
			b.WriteString("  " + styleIconFailed.Render("!") + "  " + styleWarning.Render(ui.Truncate(w.msg, width-6)))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (f *feedView) renderLine(l feedLine, width int) string {
	if l.kind == lineInfo {
		return "  " + styleInfo.Render(ui.Truncate(l.text, width-4))
	}
	name := ui.Truncate(l.text, max(width-len(l.verb)-8, 8))
	return "  " + styleIconDone.Render("›") + "  " + styleVerb.Render(l.verb) + "  " + styledPath(name)
}

// styledPath dims the directory part of an entry name.
func styledPath(name string) string {
	dir, base := path.Split(name)
	if dir == "" {
		return styleFilePath.Render(base)
	}
	return styleFileDir.Render(dir) + styleFilePath.Render(base)
}
