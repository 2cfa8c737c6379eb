package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/event"
	"github.com/bamsammich/arc7/internal/stats"
	"github.com/bamsammich/arc7/internal/ui"
)

// Bubble Tea messages.
type engineEventMsg event.Event
type channelDoneMsg struct{}
type tickMsg time.Time

// readNextEvent returns a tea.Cmd that blocks on the event channel.
func readNextEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return channelDoneMsg{}
		}
		return engineEventMsg(ev)
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the root Bubble Tea model for one archive operation.
type Model struct {
	events <-chan event.Event
	cancel func()
	stats  *stats.Collector
	title  string

	feed      feedView
	width     int
	height    int
	pct       float64
	status    string
	statusMsg string // transient notification
	lastSnap  stats.Snapshot

	done      bool
	err       error
	cancelled bool
	quitting  bool
}

// NewModel creates a model reading events. cancel is called when the user
// quits before the operation has finished.
func NewModel(events <-chan event.Event, collector *stats.Collector, title string, cancel func()) Model {
	if collector == nil {
		collector = stats.NewCollector()
	}
	if cancel == nil {
		cancel = func() {}
	}
	return Model{
		events: events,
		cancel: cancel,
		stats:  collector,
		title:  title,
		feed:   newFeedView(),
		width:  80,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		readNextEvent(m.events),
		tickCmd(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		return m.handleEngineEvent(event.Event(msg))

	case channelDoneMsg:
		// Closed without a terminal event: the handle was released.
		if !m.done {
			m.done = true
			m.err = bridge.ErrCancelled
		}
		m.quitting = true
		return m, tea.Quit

	case tickMsg:
		m.stats.Tick()
		m.lastSnap = m.stats.Snapshot()
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		if !m.done {
			m.cancelled = true
			m.err = bridge.ErrCancelled
			m.cancel()
		}
		m.quitting = true
		return m, tea.Quit

	case "j", "down":
		m.feed.scrollDown()
	case "k", "up":
		m.feed.scrollUp()
	case "G", "end":
		m.feed.scrollToBottom()
	case "g", "home":
		m.feed.scrollToTop()
	}
	return m, nil
}

func (m Model) handleEngineEvent(ev event.Event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case event.Text:
		m.feed.addText(ev.Message, ev.Timestamp)
	case event.Progress:
		m.pct = ev.Percent
		if ev.Status != "" {
			m.status = ev.Status
		}
	case event.Error:
		m.done = true
		m.err = ev.Err
		m.statusMsg = ev.Err.Error()
	case event.Completed:
		m.done = true
		m.pct = ev.Percent
		m.status = ev.Status
	}
	m.lastSnap = m.stats.Snapshot()
	// Keep reading after a terminal event so the closed channel ends the program.
	return m, readNextEvent(m.events)
}

// Err returns the operation's outcome as seen by the model.
func (m Model) Err() error { return m.err }

// Cancelled reports whether the user quit before the operation finished.
func (m Model) Cancelled() bool { return m.cancelled }

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	contentHeight := max(m.height-3, 3) // header + status + footer
	b.WriteString(m.feed.view(m.width, contentHeight))

	switch {
	case m.statusMsg != "":
		style := styleStatus
		if m.err != nil && !errors.Is(m.err, bridge.ErrCancelled) {
			style = styleIconFailed
		}
		b.WriteString(style.Render("  " + ui.Truncate(m.statusMsg, m.width-4)))
	case m.feed.current() != "" && !m.done:
		b.WriteString(styleStatus.Render("  " + ui.Truncate(m.feed.current(), m.width-4)))
	}
	b.WriteByte('\n')

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.lastSnap
	label := styleHeaderLabel.Render("arc7 " + m.title)

	if m.done && m.err == nil {
		return styleHeader.Render(fmt.Sprintf("  %s  %s  %s files  %s",
			label,
			styleIconDone.Render("done"),
			ui.FormatCount(snap.FilesDone),
			ui.FormatDuration(snap.Elapsed),
		))
	}

	filled := ui.ProgressBar(m.pct, 20)
	header := fmt.Sprintf("  %s  %3.0f%%  %s",
		label,
		m.pct,
		styleProgressFilled.Render(filled),
	)
	if snap.FilesTotal > 0 {
		header += fmt.Sprintf("  %s / %s files", ui.FormatCount(snap.FilesDone), ui.FormatCount(snap.FilesTotal))
	}
	if snap.BytesTotal > 0 {
		header += "  " + ui.FormatBytes(snap.BytesTotal)
	}
	if m.status != "" {
		header += "  " + m.status
	}
	return styleHeader.Render(header)
}

func (m Model) renderFooter() string {
	type keybind struct {
		key   string
		label string
	}

	binds := []keybind{{"q", "cancel"}, {"j/k", "scroll"}, {"g/G", "top/bottom"}}
	if m.done {
		binds[0].label = "quit"
	}

	var parts []string
	for _, kb := range binds {
		parts = append(parts,
			styleKeybindKey.Render(kb.key)+" "+styleKeybindLabel.Render(kb.label))
	}
	return "  " + strings.Join(parts, "   ")
}
