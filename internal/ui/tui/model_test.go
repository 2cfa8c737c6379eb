package tui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/event"
	"github.com/bamsammich/arc7/internal/stats"
)

func newTestModel() (Model, *int) {
	ch := make(chan event.Event, 10)
	c := stats.NewCollector()
	c.SetTotals(10, 4096)
	cancels := 0
	return NewModel(ch, c, "extract", func() { cancels++ }), &cancels
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	model, ok := updated.(Model)
	require.True(t, ok)
	return model, cmd
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModel_Init(t *testing.T) {
	m, _ := newTestModel()
	assert.NotNil(t, m.Init())
}

func TestModel_QuitCancelsRunningOperation(t *testing.T) {
	m, cancels := newTestModel()
	m, cmd := update(t, m, key('q'))
	assert.True(t, m.quitting)
	assert.True(t, m.Cancelled())
	assert.ErrorIs(t, m.Err(), bridge.ErrCancelled)
	assert.Equal(t, 1, *cancels)
	assert.NotNil(t, cmd) // tea.Quit
}

func TestModel_QuitAfterDoneDoesNotCancel(t *testing.T) {
	m, cancels := newTestModel()
	m, _ = update(t, m, engineEventMsg(event.NewCompleted()))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.True(t, m.quitting)
	assert.False(t, m.Cancelled())
	assert.NoError(t, m.Err())
	assert.Equal(t, 0, *cancels)
}

func TestModel_TextAndProgress(t *testing.T) {
	m, _ := newTestModel()
	m, cmd := update(t, m, engineEventMsg(event.NewText("Extracting archive /tmp/a.zip")))
	assert.NotNil(t, cmd, "keeps reading events")
	m, _ = update(t, m, engineEventMsg(event.NewText("Extracting file docs/readme.md")))
	m, _ = update(t, m, engineEventMsg(event.NewText("warning: skipping ../x: outside the destination")))
	m, _ = update(t, m, engineEventMsg(event.NewProgress(42, "")))

	assert.InDelta(t, 42, m.pct, 0)
	require.Len(t, m.feed.lines, 2)
	require.Len(t, m.feed.warnings, 1)
	assert.Equal(t, "docs/readme.md", m.feed.current())

	view := m.View()
	assert.Contains(t, view, "arc7 extract")
	assert.Contains(t, view, "42%")
	assert.Contains(t, view, "0 / 10 files")
	assert.Contains(t, view, "readme.md")
	assert.Contains(t, view, "warnings (1)")
}

func TestModel_ErrorEvent(t *testing.T) {
	m, _ := newTestModel()
	boom := errors.New("data error")
	m, _ = update(t, m, engineEventMsg(event.NewError(boom)))
	assert.True(t, m.done)
	assert.ErrorIs(t, m.Err(), boom)
	assert.Contains(t, m.View(), "data error")
}

func TestModel_CompletedThenChannelClosed(t *testing.T) {
	m, _ := newTestModel()
	m, _ = update(t, m, engineEventMsg(event.NewCompleted()))
	assert.True(t, m.done)
	assert.Contains(t, m.View(), "done")

	m, cmd := update(t, m, channelDoneMsg{})
	assert.True(t, m.quitting)
	assert.NoError(t, m.Err())
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_ChannelClosedWithoutTerminalEvent(t *testing.T) {
	m, _ := newTestModel()
	m, _ = update(t, m, channelDoneMsg{})
	assert.ErrorIs(t, m.Err(), bridge.ErrCancelled)
}

func TestModel_WindowResize(t *testing.T) {
	m, _ := newTestModel()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 40, m.height)
}

func TestModel_TickRefreshesSnapshot(t *testing.T) {
	m, _ := newTestModel()
	m.stats.AddFilesDone(3)
	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.Equal(t, int64(3), m.lastSnap.FilesDone)
	assert.NotNil(t, cmd)
}

func TestModel_ScrollKeys(t *testing.T) {
	m, _ := newTestModel()
	for range 50 {
		m, _ = update(t, m, engineEventMsg(event.NewText("Compressing f.txt")))
	}
	_ = m.View()
	m, _ = update(t, m, key('g'))
	assert.False(t, m.feed.autoScroll)
	assert.Equal(t, 0, m.feed.scrollOffset)
	m, _ = update(t, m, key('j'))
	assert.Equal(t, 1, m.feed.scrollOffset)
	m, _ = update(t, m, key('k'))
	assert.Equal(t, 0, m.feed.scrollOffset)
	m, _ = update(t, m, key('G'))
	assert.True(t, m.feed.autoScroll)
}
