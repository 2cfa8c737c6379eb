package engine

import (
	"fmt"
	"sync"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/stats"
)

// reporter turns codec callbacks into bridge events. Percent only moves
// forward and is emitted when its whole-number part changes.
type reporter struct {
	emit  bridge.Sink
	stats *stats.Collector

	mu     sync.Mutex
	last   int
	status string
}

func newReporter(emit bridge.Sink, c *stats.Collector) *reporter {
	if c == nil {
		c = stats.NewCollector()
	}
	return &reporter{emit: emit, stats: c, last: -1}
}

func (r *reporter) text(msg string) { r.emit.Text(msg) }

// fileStarted announces a file and makes it the status of later progress.
func (r *reporter) fileStarted(verb, name string) {
	line := verb + " " + name
	r.mu.Lock()
	r.status = line
	r.mu.Unlock()
	r.emit.Text(line)
}

// skipped warns about an entry left out of an extraction.
func (r *reporter) skipped(name string, reason error) {
	r.stats.AddFilesRejected(1)
	r.emit.Text(fmt.Sprintf("warning: skipping %s: %v", name, reason))
}

// progress raises the overall percentage to pct.
func (r *reporter) progress(pct float64) {
	cur, _ := r.stats.Advance(pct)
	r.mu.Lock()
	defer r.mu.Unlock()
	if whole := int(cur); whole != r.last {
		r.last = whole
		r.emit.Progress(cur, r.status)
	}
}

// bytesDone is called on the direct extraction path, where percent is
// processed bytes over declared bytes.
func (r *reporter) bytesDone(n int64) {
	r.stats.AddBytesProcessed(n)
	if pct, ok := r.stats.BytePercent(); ok {
		r.mu.Lock()
		defer r.mu.Unlock()
		if whole := int(pct); whole != r.last {
			r.last = whole
			r.emit.Progress(pct, r.status)
		}
	}
}

// window returns callbacks for one sub-operation covering [start, start+span)
// of the whole, with verb prefixing each file-started line.
func (r *reporter) window(start, span float64, verb string) codec.Callbacks {
	return codec.Callbacks{
		Progress: func(pct float64) {
			r.progress(start + span*pct/100)
		},
		FileStarted: func(name string) {
			r.stats.AddFilesDone(1)
			r.fileStarted(verb, name)
		},
		Skipped: r.skipped,
	}
}
