package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/stats"
	"github.com/bamsammich/arc7/internal/ui"
	"github.com/bamsammich/arc7/internal/ui/tui"
)

// present drives a started operation to completion, rendering its events
// with the TUI or a line presenter, and returns the operation's error.
func (a *app) present(ctx context.Context, h *bridge.Handle, title string, col *stats.Collector) error {
	if a.tuiFlag && !a.quiet && ui.StderrIsTTY() {
		err := tui.Run(ctx, h, tui.Config{Stats: col, Theme: a.cfg.Theme, Title: title})
		if err == nil {
			fmt.Fprintln(a.stderr, ui.CompletionSummary(col.Snapshot()))
		}
		return err
	}

	isTTY, width := false, 0
	if f, ok := a.stderr.(*os.File); ok {
		isTTY = ui.IsTTY(f.Fd())
		width = ui.TermWidth(f.Fd())
	}
	p := ui.NewPresenter(ui.Config{
		Writer:     a.stdout,
		ErrWriter:  a.stderr,
		Stats:      col,
		Width:      width,
		IsTTY:      isTTY,
		Quiet:      a.quiet,
		NoProgress: a.noProgress,
		NoColor:    a.noColor,
	})

	stop := context.AfterFunc(ctx, h.Cancel)
	defer stop()

	var sink bridge.Sink = p
	if a.logSink != nil {
		sink = &loggingSink{next: p, log: a.logger.With("op", title, "id", h.ID())}
	}
	err := h.Drain(sink)
	p.Close()
	if err == nil {
		if s := p.Summary(); s != "" {
			fmt.Fprintln(a.stderr, s)
		}
	}
	return err
}

// loggingSink tees per-file activity into the structured log.
type loggingSink struct {
	next bridge.Sink
	log  *slog.Logger
	last int
}

func (s *loggingSink) Text(msg string) {
	if w, ok := ui.SplitWarning(msg); ok {
		s.log.Info("entry skipped", "reason", w)
	} else {
		s.log.Debug(msg)
	}
	s.next.Text(msg)
}

func (s *loggingSink) Progress(pct float64, status string) {
	if p := int(pct) / 10; p != s.last {
		s.last = p
		s.log.Debug("progress", "percent", int(pct), "status", status)
	}
	s.next.Progress(pct, status)
}
