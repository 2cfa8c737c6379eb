// Package throttle caps extraction write throughput.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// NewLimiter creates a limiter capping throughput to bytesPerSec, or nil for
// no limit. The burst is 1 MB, or the rate itself when that is smaller.
func NewLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := 1 << 20
	if bytesPerSec < int64(burst) {
		burst = int(bytesPerSec)
	}
	return rate.NewLimiter(rate.Limit(bytesPerSec), burst)
}

// Writer wraps w so writes are paced by lim. A nil limiter returns w unchanged.
func Writer(ctx context.Context, w io.Writer, lim *rate.Limiter) io.Writer {
	if lim == nil {
		return w
	}
	return &limitedWriter{ctx: ctx, w: w, lim: lim}
}

type limitedWriter struct {
	ctx context.Context
	w   io.Writer
	lim *rate.Limiter
}

// Write waits in burst-sized steps so a buffer larger than the burst never
// trips WaitN's size check.
func (lw *limitedWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		chunk := min(len(p), lw.lim.Burst())
		if err := lw.lim.WaitN(lw.ctx, chunk); err != nil {
			return written, err
		}
		n, err := lw.w.Write(p[:chunk])
		written += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]
	}
	return written, nil
}
