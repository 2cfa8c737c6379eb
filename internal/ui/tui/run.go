// Package tui renders a running archive operation with Bubble Tea.
package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/config"
	"github.com/bamsammich/arc7/internal/stats"
)

// Config configures the TUI.
type Config struct {
	Stats *stats.Collector
	Theme config.ThemeConfig
	Title string // e.g. "compress"
}

// Run consumes h's events in a full-screen program until the operation
// ends or the user quits, which cancels h. It returns the operation's error,
// bridge.ErrCancelled after a quit.
func Run(ctx context.Context, h *bridge.Handle, cfg Config) error {
	ApplyTheme(cfg.Theme)
	model := NewModel(h.Events(), cfg.Stats, cfg.Title, h.Cancel)
	prog := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
		tea.WithContext(ctx),
	)
	final, err := prog.Run()
	if err != nil {
		h.Cancel()
		if errors.Is(err, tea.ErrProgramKilled) {
			return bridge.ErrCancelled
		}
		return fmt.Errorf("tui: %w", err)
	}

	m, ok := final.(Model)
	if !ok || m.Cancelled() {
		return bridge.ErrCancelled
	}
	h.Wait()
	return m.Err()
}
