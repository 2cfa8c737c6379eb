package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/arc7/internal/stats"
)

func newTestHUD(out *bytes.Buffer, collector *stats.Collector) *hudPresenter {
	return &hudPresenter{w: out, stats: collector, warn: plainWarn(), width: 100}
}

func TestHudPresenterFileLine(t *testing.T) {
	var out bytes.Buffer
	p := newTestHUD(&out, stats.NewCollector())

	p.Text("Extracting file docs/readme.md")

	s := out.String()
	assert.Contains(t, s, "Extracting file  "+ansiDim+"docs/"+ansiReset+"readme.md\n")
	assert.Equal(t, "docs/readme.md", p.current)
	assert.True(t, p.drawn, "HUD redrawn after feed line")
}

func TestHudPresenterPlainAndWarningLines(t *testing.T) {
	var out bytes.Buffer
	p := newTestHUD(&out, stats.NewCollector())

	p.Text("Extracting archive /tmp/a.zip")
	p.Text("warning: skipping ../x: outside the destination")

	s := out.String()
	assert.Contains(t, s, "Extracting archive /tmp/a.zip\n")
	assert.Contains(t, s, "warning: skipping ../x: outside the destination\n")
}

func TestHudClearsBeforeEachLine(t *testing.T) {
	var out bytes.Buffer
	p := newTestHUD(&out, stats.NewCollector())

	p.Text("first")
	p.Text("second")

	s := out.String()
	idx := strings.Index(s, "second")
	assert.Greater(t, idx, 0)
	assert.True(t, strings.HasSuffix(s[:idx], ansiClearLine), "HUD cleared before the second line")
}

func TestHudProgressRateLimited(t *testing.T) {
	var out bytes.Buffer
	collector := stats.NewCollector()
	collector.SetTotals(4, 4096)
	p := newTestHUD(&out, collector)
	now := time.Unix(1000, 0)
	p.now = func() time.Time { return now }

	p.Progress(10, "")
	first := out.Len()
	p.Progress(11, "")
	assert.Equal(t, first, out.Len(), "redraw within the minimum interval")

	now = now.Add(hudMinInterval)
	p.Progress(55, "")
	assert.Contains(t, out.String(), " 55%  ▪▪▪▪▪▪▪▪▪▪▪□□□□□□□□□   0 / 4 files   4.0 KiB")

	p.Progress(100, "Finished")
	assert.Contains(t, out.String(), "100%")
	assert.Contains(t, out.String(), "Finished")
}

func TestHudCloseClears(t *testing.T) {
	var out bytes.Buffer
	p := newTestHUD(&out, stats.NewCollector())
	p.Progress(30, "")
	p.Close()
	assert.True(t, strings.HasSuffix(out.String(), ansiClearLine))
	assert.False(t, p.drawn)

	out.Reset()
	p.Close()
	assert.Empty(t, out.String())
}

func TestSplitFileLine(t *testing.T) {
	verb, name, ok := SplitFileLine("Compressing sub/a.txt")
	assert.True(t, ok)
	assert.Equal(t, "Compressing", verb)
	assert.Equal(t, "sub/a.txt", name)

	_, _, ok = SplitFileLine("Extracting archive x.zip")
	assert.False(t, ok)
	_, _, ok = SplitFileLine("Compression finished")
	assert.False(t, ok)
}

func TestPercentETA(t *testing.T) {
	assert.Equal(t, time.Duration(0), percentETA(10*time.Second, 0))
	assert.Equal(t, 30*time.Second, percentETA(10*time.Second, 25))
	assert.Equal(t, time.Duration(0), percentETA(10*time.Second, 100))
}
