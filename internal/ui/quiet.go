package ui

import (
	"io"

	"github.com/fatih/color"
)

// quietPresenter drops progress and informational text. Warnings about
// rejected entries still reach stderr.
type quietPresenter struct {
	errW io.Writer
	warn *color.Color
}

func (p *quietPresenter) Text(msg string) {
	if rest, ok := SplitWarning(msg); ok && p.errW != nil {
		printWarning(p.errW, p.warn, rest)
	}
}

func (p *quietPresenter) Progress(float64, string) {}

func (p *quietPresenter) Close() {}

func (p *quietPresenter) Summary() string {
	return ""
}
