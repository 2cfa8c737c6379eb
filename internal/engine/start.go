package engine

import (
	"context"

	"github.com/bamsammich/arc7/internal/bridge"
)

// StartCompress validates req and runs the compression on a background
// goroutine. Request-shape errors are returned before anything starts.
func StartCompress(ctx context.Context, d *Dispatcher, req CompressRequest, opts ...bridge.Option) (*bridge.Handle, error) {
	if _, err := validateCompress(req); err != nil {
		return nil, err
	}
	return bridge.Start(ctx, func(ctx context.Context, emit bridge.Sink) error {
		return d.Compress(ctx, req, emit)
	}, withLogger(d, opts)...), nil
}

// StartExtract validates req and runs the extraction on a background goroutine.
func StartExtract(ctx context.Context, d *Dispatcher, req ExtractRequest, opts ...bridge.Option) (*bridge.Handle, error) {
	if _, err := validateExtract(req); err != nil {
		return nil, err
	}
	return bridge.Start(ctx, func(ctx context.Context, emit bridge.Sink) error {
		return d.Extract(ctx, req, emit)
	}, withLogger(d, opts)...), nil
}

func withLogger(d *Dispatcher, opts []bridge.Option) []bridge.Option {
	return append([]bridge.Option{bridge.WithLogger(d.logger())}, opts...)
}
