// Package engine validates archive requests, chooses the codec calls that
// carry them out and reports their progress as bridge events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/format"
)

// Dispatcher runs compress, extract, list and info operations against a codec.
type Dispatcher struct {
	Codec  codec.Codec
	Logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default.
func NewDispatcher(c codec.Codec, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{Codec: c, Logger: logger}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Compress adds req.Sources to the archive at req.Destination. Loose files
// go in first, flat; a directory follows in a second codec call that
// appends to the same archive.
func (d *Dispatcher) Compress(ctx context.Context, req CompressRequest, emit bridge.Sink) error {
	plan, err := validateCompress(req)
	if err != nil {
		return err
	}
	files, dirs, err := partitionSources(req.Sources)
	if err != nil {
		return err
	}
	if len(dirs) > 1 {
		return fmt.Errorf("%w: got %d", ErrMultipleDirectoriesNotAllowed, len(dirs))
	}
	if !plan.spec.SupportsMultiFile && (len(dirs) > 0 || len(files) != 1) {
		return validationf("%s holds exactly one file", plan.spec.Kind)
	}
	if req.VolumeSize > 0 && len(files) > 0 && len(dirs) > 0 {
		return validationf("multi-volume archives take either files or one directory, not both")
	}
	dest, err := prepareDestination(req.Destination, plan.spec.Kind)
	if err != nil {
		return err
	}
	log := d.logger().With("archive", dest, "kind", plan.spec.Kind)

	var dirSources []codec.Source
	if len(dirs) == 1 {
		sc := NewScanner(ScannerConfig{
			Root:          dirs[0],
			Recursive:     req.Recursive,
			PreserveRoot:  req.PreserveRoot,
			Flatten:       req.Flatten,
			SkipEmptyDirs: req.SkipEmptyDirs,
			Names:         plan.names,
			Rules:         req.Rules,
			Skip:          dest,
			Logger:        log,
		})
		if dirSources, err = sc.Scan(ctx); err != nil {
			return err
		}
	}

	var fileBytes, dirBytes int64
	for _, s := range files {
		fileBytes += s.Size
	}
	for _, s := range dirSources {
		dirBytes += s.Size
	}
	rep := newReporter(emit, req.Stats)
	rep.stats.SetTotals(int64(len(files)+len(dirSources)), fileBytes+dirBytes)
	fileShare := share(fileBytes, dirBytes, len(files), len(dirSources))

	return req.Password.Use(func(pw []byte) error {
		job := codec.CompressJob{
			Archive:        dest,
			Kind:           plan.spec.Kind,
			Append:         req.Append,
			Level:          req.Level,
			Method:         req.Method,
			Password:       pw,
			EncryptHeaders: req.EncryptFilenames,
			VolumeSize:     req.VolumeSize,
		}
		if len(files) > 0 {
			job.Sources = files
			rep.text(fmt.Sprintf("%d files found for compression", len(files)))
			log.Debug("compressing files", "count", len(files), "append", job.Append)
			if err := d.Codec.Compress(ctx, job, rep.window(0, fileShare, "Compressing")); err != nil {
				return &CodecError{Op: "compress", Archive: dest, Err: err}
			}
			job.Append = true
		}
		if len(dirs) == 1 {
			job.Sources = dirSources
			rep.text(fmt.Sprintf("%d files found for compression", countFiles(dirSources)))
			log.Debug("compressing directory", "dir", dirs[0], "entries", len(dirSources), "append", job.Append)
			// An empty tree still produces an empty archive.
			if len(dirSources) > 0 || len(files) == 0 {
				if err := d.Codec.Compress(ctx, job, rep.window(fileShare, 100-fileShare, "Compressing")); err != nil {
					return &CodecError{Op: "compress", Archive: dest, Err: err}
				}
			}
		}
		rep.progress(100)
		rep.text("Compression finished")
		return nil
	})
}

// partitionSources splits sources into files and directories, failing with
// every missing path at once.
func partitionSources(sources []string) ([]codec.Source, []string, error) {
	var (
		files   []codec.Source
		dirs    []string
		missing []string
	)
	seen := make(map[string]int)
	for _, src := range sources {
		abs, err := filepath.Abs(src)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving %s: %w", src, err)
		}
		info, err := os.Stat(abs)
		if errors.Is(err, os.ErrNotExist) {
			missing = append(missing, src)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("stat %s: %w", src, err)
		}
		if info.IsDir() {
			dirs = append(dirs, abs)
			continue
		}
		files = append(files, codec.Source{
			Path: abs,
			Name: uniqueName(seen, filepath.Base(abs)),
			Size: info.Size(),
		})
	}
	if len(missing) > 0 {
		return nil, nil, &SourceNotFoundError{Paths: missing}
	}
	return files, dirs, nil
}

// prepareDestination appends the kind's extension to an extensionless path,
// refuses directories and creates missing parents.
func prepareDestination(dest string, kind format.Kind) (string, error) {
	if filepath.Ext(dest) == "" {
		dest += kind.Extension()
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidDestination, dest, err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrInvalidDestination, abs)
	}
	parent := filepath.Dir(abs)
	info, err := os.Stat(parent)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidDestination, parent)
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidDestination, err)
		}
	case err != nil:
		return "", fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}
	return abs, nil
}

// share is the percentage of the whole taken by the file sub-operation.
func share(fileBytes, dirBytes int64, files, dirEntries int) float64 {
	switch {
	case files == 0:
		return 0
	case dirEntries == 0:
		return 100
	case fileBytes+dirBytes > 0:
		return float64(fileBytes) / float64(fileBytes+dirBytes) * 100
	}
	return float64(files) / float64(files+dirEntries) * 100
}

func countFiles(sources []codec.Source) int {
	n := 0
	for _, s := range sources {
		if !s.IsDir {
			n++
		}
	}
	return n
}
