package ui

import (
	"io"

	"github.com/fatih/color"

	"github.com/bamsammich/arc7/internal/stats"
)

// Presenter renders the Text and Progress events of one archive operation.
// It satisfies bridge.Sink, so a handle can drain straight into it.
type Presenter interface {
	Text(msg string)
	Progress(pct float64, status string)
	// Close erases any in-place display. Call it once after draining.
	Close()
	// Summary returns the final summary line, or "" when none should be shown.
	Summary() string
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	Stats      *stats.Collector
	Width      int
	IsTTY      bool
	Quiet      bool
	NoProgress bool
	NoColor    bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}
	warn := color.New(color.FgYellow, color.Bold)
	if cfg.NoColor {
		warn.DisableColor()
	}
	if cfg.Quiet {
		return &quietPresenter{errW: cfg.ErrWriter, warn: warn}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return newPlainPresenter(cfg.Writer, cfg.ErrWriter, cfg.Stats, warn, cfg.NoProgress)
	}
	width := cfg.Width
	if width <= 0 {
		width = 80
	}
	return &hudPresenter{
		w:     cfg.ErrWriter, // HUD renders to stderr (the TTY)
		stats: cfg.Stats,
		warn:  warn,
		width: width,
	}
}

// printWarning writes a warning line with a coloured "warning:" label.
func printWarning(w io.Writer, c *color.Color, msg string) {
	c.Fprint(w, "warning:")
	io.WriteString(w, " "+msg+"\n")
}
