package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Reader is the read side of a Collector used by presenters.
type Reader interface {
	Snapshot() Snapshot
	RollingSpeed(seconds int) float64
	ETA() time.Duration
}

// ReadTicker is a Reader that presenters also drive once per second.
type ReadTicker interface {
	Reader
	Tick()
}

// Collector tracks archive operation statistics using lock-free atomic counters.
type Collector struct {
	filesTotal     atomic.Int64
	filesDone      atomic.Int64
	filesRejected  atomic.Int64
	bytesTotal     atomic.Int64
	bytesProcessed atomic.Int64
	// percent in hundredths, only ever raised.
	percent   atomic.Int64
	startTime time.Time

	// Ring buffer, written only by the presenter's Tick().
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per second
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records the declared file count and byte size of the operation.
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

func (c *Collector) AddFilesDone(n int64)      { c.filesDone.Add(n) }
func (c *Collector) AddFilesRejected(n int64)  { c.filesRejected.Add(n) }
func (c *Collector) AddBytesProcessed(n int64) { c.bytesProcessed.Add(n) }

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesTotal     int64
	FilesDone      int64
	FilesRejected  int64
	BytesTotal     int64
	BytesProcessed int64
	Percent        float64
	Elapsed        time.Duration
}

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesTotal:     c.filesTotal.Load(),
		FilesDone:      c.filesDone.Load(),
		FilesRejected:  c.filesRejected.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		BytesProcessed: c.bytesProcessed.Load(),
		Percent:        c.Percent(),
		Elapsed:        c.Elapsed(),
	}
}

// Percent returns the highest completion percentage observed so far.
func (c *Collector) Percent() float64 {
	return float64(c.percent.Load()) / 100
}

// BytePercent derives completion from processed/total bytes and raises the
// stored percentage. It reports the new value and whether it advanced.
func (c *Collector) BytePercent() (float64, bool) {
	total := c.bytesTotal.Load()
	if total <= 0 {
		return c.Percent(), false
	}
	return c.Advance(float64(c.bytesProcessed.Load()) / float64(total) * 100)
}

// Advance raises the stored percentage to pct if it is higher. Values are
// clamped to [0, 100]. Progress therefore never moves backwards.
func (c *Collector) Advance(pct float64) (float64, bool) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	next := int64(pct * 100)
	for {
		cur := c.percent.Load()
		if next <= cur {
			return float64(cur) / 100, false
		}
		if c.percent.CompareAndSwap(cur, next) {
			return float64(next) / 100, true
		}
	}
}

// Tick snapshots the byte delta into the ring buffer. Called 1/sec by the presenter.
func (c *Collector) Tick() {
	current := c.bytesProcessed.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n seconds of samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time based on rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesProcessed.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"files=%d/%d rejected=%d bytes=%d/%d percent=%.2f",
		s.FilesDone, s.FilesTotal, s.FilesRejected,
		s.BytesProcessed, s.BytesTotal, s.Percent,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
