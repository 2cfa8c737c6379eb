package engine

import (
	"context"

	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/format"
	"github.com/bamsammich/arc7/internal/textenc"
)

// List returns the archive's entries. Zip names stored without the UTF-8
// flag are decoded when req.Encoding is set.
func (d *Dispatcher) List(ctx context.Context, req ListRequest) ([]codec.Entry, error) {
	if req.Archive == "" {
		return nil, validationf("no archive given")
	}
	enc, err := resolveEncoding(req.Encoding)
	if err != nil {
		return nil, err
	}
	archive, err := existingArchive(req.Archive)
	if err != nil {
		return nil, err
	}

	var entries []codec.Entry
	err = req.Password.Use(func(pw []byte) error {
		var err error
		entries, err = d.Codec.List(ctx, archive, pw)
		if err != nil {
			return &CodecError{Op: "list", Archive: archive, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Encoding == "" {
		return entries, nil
	}
	if enc == nil {
		if k, err := format.Detect(ctx, archive); err != nil || k != format.Zip {
			return entries, nil
		}
		if enc, err = textenc.Detect(archive); err != nil || enc == nil {
			d.logger().Warn("could not detect the filename encoding, using UTF-8", "archive", archive)
			return entries, nil
		}
	}
	for i := range entries {
		if !entries[i].Unicode {
			entries[i].Name = enc.Decode(entries[i].Name)
		}
	}
	return entries, nil
}

// Info tests the archive's integrity and reports its metadata and checksum.
func (d *Dispatcher) Info(ctx context.Context, req ListRequest) (codec.Info, error) {
	archive, err := existingArchive(req.Archive)
	if err != nil {
		return codec.Info{}, err
	}
	var info codec.Info
	err = req.Password.Use(func(pw []byte) error {
		var err error
		info, err = d.Codec.Check(ctx, archive, pw)
		if err != nil {
			return &CodecError{Op: "check", Archive: archive, Err: err}
		}
		return nil
	})
	return info, err
}
