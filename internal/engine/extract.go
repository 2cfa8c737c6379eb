package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/time/rate"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/extract"
	"github.com/bamsammich/arc7/internal/format"
	"github.com/bamsammich/arc7/internal/textenc"
	"github.com/bamsammich/arc7/internal/throttle"
)

const copyBufSize = 32 * 1024

type extractResult struct {
	extracted int
	rejected  int
}

// Extract writes the archive's file entries below req.Destination. Entries
// that would land outside it are reported and skipped.
func (d *Dispatcher) Extract(ctx context.Context, req ExtractRequest, emit bridge.Sink) error {
	enc, err := validateExtract(req)
	if err != nil {
		return err
	}
	archive, err := existingArchive(req.Archive)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(req.Destination, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}
	planner, err := extract.NewPlanner(req.Destination)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}
	log := d.logger().With("archive", archive, "dest", planner.Root())

	rep := newReporter(emit, req.Stats)
	rep.text("Extracting archive " + archive)
	rep.progress(0)

	kind, detectErr := format.Detect(ctx, archive)
	if detectErr != nil {
		log.Debug("archive kind not detected, leaving it to the codec", "error", detectErr)
	}

	return req.Password.Use(func(pw []byte) error {
		var (
			res extractResult
			err error
		)
		if kind == format.Zip && req.Encoding != "" && len(pw) == 0 {
			res, err = d.extractZip(ctx, archive, planner, req, enc, rep, log)
		} else {
			res, err = d.extractWithCodec(ctx, archive, planner, req, pw, rep, log)
		}
		if err != nil {
			return err
		}
		log.Info("extraction done", "extracted", res.extracted, "rejected", res.rejected)

		if res.extracted == 0 && res.rejected > 0 {
			if req.ZeroFiles == ZeroFilesFail {
				return fmt.Errorf("%w: all %d file entries were rejected", ErrNothingExtracted, res.rejected)
			}
			rep.text(fmt.Sprintf("warning: all %d file entries were rejected, nothing extracted", res.rejected))
		}
		rep.progress(100)
		rep.text("Extraction finished")
		return nil
	})
}

func existingArchive(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return "", &SourceNotFoundError{Paths: []string{path}}
	}
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", validationf("%s is a directory, not an archive", path)
	}
	return abs, nil
}

// extractWithCodec checks every listed entry first and hands the rejected
// names to the codec as exclusions.
func (d *Dispatcher) extractWithCodec(
	ctx context.Context,
	archive string,
	planner *extract.Planner,
	req ExtractRequest,
	pw []byte,
	rep *reporter,
	log *slog.Logger,
) (extractResult, error) {
	entries, err := d.Codec.List(ctx, archive, pw)
	if err != nil {
		return extractResult{}, &CodecError{Op: "list", Archive: archive, Err: err}
	}

	var (
		res      extractResult
		exclude  []string
		total    int64
		accepted int
	)
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		total += e.Size
		target, err := planner.Check(extract.Entry{Name: e.Name})
		if err != nil {
			if !errors.Is(err, extract.ErrPathTraversal) {
				return extractResult{}, err
			}
			log.Warn("rejected entry", "name", e.Name, "error", err)
			rep.text(fmt.Sprintf("warning: skipping %s: outside the destination", e.Name))
			rep.stats.AddFilesRejected(1)
			exclude = append(exclude, e.Name)
			res.rejected++
			continue
		}
		if req.SkipExisting && exists(target.Path) {
			rep.text("Skipping existing " + e.Name)
			exclude = append(exclude, e.Name)
			continue
		}
		accepted++
	}
	rep.stats.SetTotals(int64(accepted), total)
	if accepted == 0 {
		return res, nil
	}

	var skipped int
	cb := rep.window(0, 100, "Extracting file")
	cb.Skipped = func(name string, reason error) {
		skipped++
		rep.skipped(name, reason)
	}
	err = d.Codec.Extract(ctx, codec.ExtractJob{
		Archive:     archive,
		Destination: planner.Root(),
		Password:    pw,
		Exclude:     exclude,
		BytesPerSec: req.BWLimit,
	}, cb)
	if err != nil {
		return extractResult{}, &CodecError{Op: "extract", Archive: archive, Err: err}
	}
	res.extracted = accepted - skipped
	res.rejected += skipped
	return res, nil
}

// extractZip reads the zip directly so names stored without the UTF-8 flag
// can be decoded with a legacy encoding.
func (d *Dispatcher) extractZip(
	ctx context.Context,
	archive string,
	planner *extract.Planner,
	req ExtractRequest,
	enc *textenc.Encoding,
	rep *reporter,
	log *slog.Logger,
) (extractResult, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return extractResult{}, &CodecError{Op: "open", Archive: archive, Err: err}
	}
	defer r.Close()

	if enc == nil {
		enc, err = textenc.DetectNames(textenc.RawNames(r.File))
		if err != nil {
			log.Debug("encoding detection failed", "error", err)
		}
		if enc == nil {
			rep.text("warning: could not detect the filename encoding, using UTF-8")
			enc = textenc.UTF8
		}
	}
	log.Debug("extracting zip directly", "encoding", enc)

	var total, files int64
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			total += int64(f.UncompressedSize64)
			files++
		}
	}
	rep.stats.SetTotals(files, total)

	lim := throttle.NewLimiter(req.BWLimit)
	buf := make([]byte, copyBufSize)
	var res extractResult
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := f.Name
		if f.NonUTF8 {
			name = enc.Decode(name)
		}
		info := f.FileInfo()
		if info.IsDir() || strings.HasSuffix(name, "/") {
			continue
		}
		size := int64(f.UncompressedSize64)

		target, err := planner.Plan(extract.Entry{Name: name})
		if errors.Is(err, extract.ErrPathTraversal) {
			log.Warn("rejected entry", "name", name, "error", err)
			rep.text(fmt.Sprintf("warning: skipping %s: outside the destination", name))
			rep.stats.AddFilesRejected(1)
			rep.bytesDone(size)
			res.rejected++
			continue
		}
		if errors.Is(err, extract.ErrEntryConflict) {
			log.Warn("skipping conflicting entry", "name", name, "error", err)
			rep.skipped(name, err)
			rep.bytesDone(size)
			res.rejected++
			continue
		}
		if err != nil {
			return res, &CodecError{Op: "extract", Archive: archive, Err: err}
		}
		if req.SkipExisting && exists(target.Path) {
			rep.text("Skipping existing " + name)
			rep.bytesDone(size)
			continue
		}
		if !info.Mode().IsRegular() {
			log.Debug("skipping non-regular entry", "name", name, "mode", info.Mode())
			rep.bytesDone(size)
			continue
		}

		rep.fileStarted("Extracting file", name)
		if err := copyEntry(ctx, f, target.Path, lim, buf, rep); err != nil {
			return res, &CodecError{Op: "extract", Archive: archive, Err: err}
		}
		rep.stats.AddFilesDone(1)
		res.extracted++
	}
	return res, nil
}

func copyEntry(ctx context.Context, f *zip.File, path string, lim *rate.Limiter, buf []byte, rep *reporter) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	return codec.WriteFile(ctx, path, &progressReader{r: rc, rep: rep}, f.Mode().Perm(), f.Modified, lim, buf)
}

type progressReader struct {
	r   io.Reader
	rep *reporter
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.rep.bytesDone(int64(n))
	}
	return n, err
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
