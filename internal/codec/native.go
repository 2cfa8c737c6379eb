package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/mholt/archives"
	"golang.org/x/time/rate"

	"github.com/bamsammich/arc7/internal/extract"
	"github.com/bamsammich/arc7/internal/format"
	"github.com/bamsammich/arc7/internal/throttle"
)

const copyBufSize = 32 * 1024

// zip method IDs beyond Store and Deflate that the zip writer can produce.
const zipMethodBZip2 uint16 = 12

// Native is a pure-Go codec. It creates zip, tar, gzip, bzip2 and xz
// archives and reads every supported kind, including encrypted 7z. It does
// not create 7z archives, encrypt, or split volumes.
type Native struct {
	logger *slog.Logger
}

// NewNative creates a Native codec logging to logger (or slog.Default).
func NewNative(logger *slog.Logger) *Native {
	if logger == nil {
		logger = slog.Default()
	}
	return &Native{logger: logger}
}

// Supports reports why the native codec cannot create job, or nil if it can.
func (n *Native) Supports(job CompressJob) error {
	switch {
	case job.Kind == format.SevenZip:
		return fmt.Errorf("%w: creating 7z archives", ErrUnsupported)
	case len(job.Password) > 0 || job.EncryptHeaders:
		return fmt.Errorf("%w: encryption", ErrUnsupported)
	case job.VolumeSize > 0:
		return fmt.Errorf("%w: multi-volume archives", ErrUnsupported)
	case job.Append && !format.SpecFor(job.Kind).SupportsMultiFile:
		return fmt.Errorf("%w: appending to %s streams", ErrUnsupported, job.Kind)
	}
	if job.Kind == format.Zip {
		if _, err := zipMethod(job.Method); err != nil {
			return err
		}
	} else if job.Method != MethodDefault {
		return fmt.Errorf("%w: method %s for %s", ErrUnsupported, job.Method, job.Kind)
	}
	return nil
}

func zipMethod(m Method) (uint16, error) {
	switch m {
	case MethodDefault, MethodDeflate:
		return zip.Deflate, nil
	case MethodCopy:
		return zip.Store, nil
	case MethodBZip2:
		return zipMethodBZip2, nil
	}
	return 0, fmt.Errorf("%w: zip method %s", ErrUnsupported, m)
}

// Compress writes job.Sources into job.Archive.
func (n *Native) Compress(ctx context.Context, job CompressJob, cb Callbacks) error {
	if err := n.Supports(job); err != nil {
		return err
	}

	var total int64
	for _, s := range job.Sources {
		total += s.Size
	}
	cnt := &counter{total: total, cb: cb}

	switch job.Kind {
	case format.Zip, format.Tar:
		files, err := n.fileInfos(ctx, job.Sources, cnt, cb)
		if err != nil {
			return err
		}
		return n.archive(ctx, job, files)
	case format.GZip, format.BZip2, format.XZ:
		if len(job.Sources) != 1 || job.Sources[0].IsDir {
			return fmt.Errorf("%s holds exactly one file, got %d sources", job.Kind, len(job.Sources))
		}
		return n.compressStream(ctx, job, cnt, cb)
	}
	return fmt.Errorf("%w: kind %s", ErrUnsupported, job.Kind)
}

func (n *Native) archive(ctx context.Context, job CompressJob, files []archives.FileInfo) error {
	var ar archives.Archiver
	if job.Kind == format.Zip {
		m, err := zipMethod(job.Method)
		if err != nil {
			return err
		}
		ar = archives.Zip{Compression: m}
	} else {
		ar = archives.Tar{}
	}

	if job.Append {
		if _, err := os.Stat(job.Archive); err == nil {
			ins, ok := ar.(archives.Inserter)
			if !ok {
				return fmt.Errorf("%w: appending to %s", ErrUnsupported, job.Kind)
			}
			f, err := os.OpenFile(job.Archive, os.O_RDWR, 0)
			if err != nil {
				return fmt.Errorf("opening %s for append: %w", job.Archive, err)
			}
			defer f.Close()
			n.logger.Debug("appending to archive", "archive", job.Archive, "files", len(files))
			if err := ins.Insert(ctx, f, files); err != nil {
				return fmt.Errorf("appending to %s: %w", job.Archive, err)
			}
			return f.Close()
		}
	}

	return createFile(job.Archive, func(w io.Writer) error {
		return ar.Archive(ctx, w, files)
	})
}

func (n *Native) compressStream(ctx context.Context, job CompressJob, cnt *counter, cb Callbacks) error {
	var comp archives.Compressor
	switch job.Kind {
	case format.GZip:
		comp = archives.Gz{CompressionLevel: int(job.Level)}
	case format.BZip2:
		comp = archives.Bz2{CompressionLevel: int(job.Level)}
	default:
		comp = archives.Xz{}
	}

	src := job.Sources[0]
	in, err := os.Open(src.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src.Path, err)
	}
	defer in.Close()
	cb.fileStarted(src.Name)

	return createFile(job.Archive, func(w io.Writer) error {
		wc, err := comp.OpenWriter(w)
		if err != nil {
			return err
		}
		r := &ctxReader{ctx: ctx, r: &countingFile{File: in, count: cnt.add}}
		if _, err := io.CopyBuffer(wc, r, make([]byte, copyBufSize)); err != nil {
			wc.Close()
			return err
		}
		return wc.Close()
	})
}

func (n *Native) fileInfos(ctx context.Context, sources []Source, cnt *counter, cb Callbacks) ([]archives.FileInfo, error) {
	files := make([]archives.FileInfo, 0, len(sources))
	for _, s := range sources {
		info, err := os.Stat(s.Path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", s.Path, err)
		}
		files = append(files, archives.FileInfo{
			FileInfo:      info,
			NameInArchive: s.Name,
			Open: func() (fs.File, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				f, err := os.Open(s.Path)
				if err != nil {
					return nil, err
				}
				if !s.IsDir {
					cb.fileStarted(s.Name)
				}
				return &countingFile{File: f, count: cnt.add}, nil
			},
		})
	}
	return files, nil
}

// createFile writes a new file at path via fn, removing it again on failure.
func createFile(path string, fn func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// List returns every entry of the archive.
func (n *Native) List(ctx context.Context, archive string, password []byte) ([]Entry, error) {
	f, fm, err := openIdentified(ctx, archive)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, ok := singleStream(fm); ok {
		return []Entry{{Name: streamName(archive), Unicode: true}}, nil
	}
	ex, err := extractorFor(fm, password)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = ex.Extract(ctx, f, func(_ context.Context, fi archives.FileInfo) error {
		entries = append(entries, entryFrom(fi))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", archive, err)
	}
	return entries, nil
}

// Extract writes every file entry of the archive below job.Destination.
// Names in job.Exclude and names escaping the destination are skipped.
func (n *Native) Extract(ctx context.Context, job ExtractJob, cb Callbacks) error {
	f, fm, err := openIdentified(ctx, job.Archive)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	planner, err := extract.NewPlanner(job.Destination)
	if err != nil {
		return err
	}
	cnt := &counter{total: st.Size(), cb: cb}
	src := &countingFile{File: f, count: cnt.add}
	lim := throttle.NewLimiter(job.BytesPerSec)
	buf := make([]byte, copyBufSize)

	if d, ok := singleStream(fm); ok {
		return n.extractStream(ctx, d, src, planner, streamName(job.Archive), lim, buf, cb)
	}

	ex, err := extractorFor(fm, job.Password)
	if err != nil {
		return err
	}
	excluded := make(map[string]struct{}, len(job.Exclude))
	for _, name := range job.Exclude {
		excluded[name] = struct{}{}
	}

	err = ex.Extract(ctx, src, func(ctx context.Context, fi archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := fi.NameInArchive
		if fi.IsDir() {
			return nil
		}
		if _, skip := excluded[name]; skip {
			return nil
		}
		if fi.LinkTarget != "" || !fi.Mode().IsRegular() {
			n.logger.Debug("skipping non-regular entry", "name", name, "mode", fi.Mode())
			return nil
		}
		target, err := planner.Plan(extract.Entry{Name: name})
		if errors.Is(err, extract.ErrPathTraversal) {
			n.logger.Warn("rejected entry", "name", name, "error", err)
			return nil
		}
		if errors.Is(err, extract.ErrEntryConflict) {
			n.logger.Warn("skipping conflicting entry", "name", name, "error", err)
			cb.skipped(name, err)
			return nil
		}
		if err != nil {
			return err
		}

		cb.fileStarted(name)
		rc, err := fi.Open()
		if err != nil {
			return fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		return WriteFile(ctx, target.Path, rc, fi.Mode().Perm(), fi.ModTime(), lim, buf)
	})
	if err != nil {
		return fmt.Errorf("extracting %s: %w", job.Archive, err)
	}
	cb.progress(100)
	return nil
}

func (n *Native) extractStream(
	ctx context.Context,
	d archives.Decompressor,
	src io.Reader,
	planner *extract.Planner,
	name string,
	lim *rate.Limiter,
	buf []byte,
	cb Callbacks,
) error {
	rc, err := d.OpenReader(src)
	if err != nil {
		return fmt.Errorf("opening stream: %w", err)
	}
	defer rc.Close()

	target, err := planner.Plan(extract.Entry{Name: name})
	if errors.Is(err, extract.ErrEntryConflict) {
		n.logger.Warn("skipping conflicting entry", "name", name, "error", err)
		cb.skipped(name, err)
		return nil
	}
	if err != nil {
		return err
	}
	cb.fileStarted(name)
	if err := WriteFile(ctx, target.Path, rc, 0o644, time.Time{}, lim, buf); err != nil {
		return err
	}
	cb.progress(100)
	return nil
}

// Check reads every entry to verify checksums and gathers archive metadata.
func (n *Native) Check(ctx context.Context, archive string, password []byte) (Info, error) {
	f, fm, err := openIdentified(ctx, archive)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, err
	}
	info := Info{Path: archive, PackedSize: st.Size()}
	if k, err := format.Detect(ctx, archive); err == nil {
		info.Kind = k
		info.Method = k.String()
	}

	if d, ok := singleStream(fm); ok {
		rc, err := d.OpenReader(f)
		if err != nil {
			return Info{}, fmt.Errorf("checking %s: %w", archive, err)
		}
		defer rc.Close()
		size, err := io.Copy(io.Discard, &ctxReader{ctx: ctx, r: rc})
		if err != nil {
			return Info{}, fmt.Errorf("checking %s: %w", archive, err)
		}
		info.FileCount, info.UnpackedSize = 1, size
	} else {
		ex, err := extractorFor(fm, password)
		if err != nil {
			return Info{}, err
		}
		err = ex.Extract(ctx, f, func(ctx context.Context, fi archives.FileInfo) error {
			if fi.IsDir() {
				return nil
			}
			e := entryFrom(fi)
			if e.Method != "" {
				info.Method = e.Method
			}
			rc, err := fi.Open()
			if err != nil {
				return fmt.Errorf("%s: %w", fi.NameInArchive, err)
			}
			defer rc.Close()
			size, err := io.Copy(io.Discard, &ctxReader{ctx: ctx, r: rc})
			if err != nil {
				return fmt.Errorf("%s: %w", fi.NameInArchive, err)
			}
			info.FileCount++
			info.UnpackedSize += size
			return nil
		})
		if err != nil {
			return Info{}, fmt.Errorf("checking %s: %w", archive, err)
		}
	}

	sum, err := HashFile(archive)
	if err != nil {
		return Info{}, err
	}
	info.Checksum = sum
	return info, nil
}

func openIdentified(ctx context.Context, path string) (*os.File, archives.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	fm, _, err := archives.Identify(ctx, path, f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("identifying %s: %w", path, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, fm, nil
}

// singleStream returns the decompressor of a bare compressed stream (no
// archive container inside).
func singleStream(fm archives.Format) (archives.Decompressor, bool) {
	if ca, ok := fm.(archives.CompressedArchive); ok {
		if ca.Extraction == nil && ca.Compression != nil {
			return ca.Compression, true
		}
		return nil, false
	}
	if _, ok := fm.(archives.Extractor); ok {
		return nil, false
	}
	d, ok := fm.(archives.Decompressor)
	return d, ok
}

func extractorFor(fm archives.Format, password []byte) (archives.Extractor, error) {
	switch v := fm.(type) {
	case archives.SevenZip:
		v.Password = string(password)
		return v, nil
	case archives.Zip:
		if len(password) > 0 {
			return nil, fmt.Errorf("%w: encrypted zip", ErrUnsupported)
		}
	}
	ex, ok := fm.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("%w: %s cannot be extracted", ErrUnsupported, fm.Extension())
	}
	return ex, nil
}

// streamName is the output name for a bare compressed stream: the archive's
// base name without its compression extension.
func streamName(archive string) string {
	base := filepath.Base(archive)
	ext := filepath.Ext(base)
	if ext == "" || ext == base {
		return base + ".out"
	}
	return strings.TrimSuffix(base, ext)
}

func entryFrom(fi archives.FileInfo) Entry {
	e := Entry{
		Name:    fi.NameInArchive,
		Size:    fi.Size(),
		IsDir:   fi.IsDir(),
		ModTime: fi.ModTime(),
		Unicode: true,
	}
	var h *zip.FileHeader
	switch v := fi.Header.(type) {
	case zip.FileHeader:
		h = &v
	case *zip.FileHeader:
		h = v
	}
	if h != nil {
		e.Unicode = !h.NonUTF8
		e.Encrypted = h.Flags&0x1 != 0
		e.Packed = int64(h.CompressedSize64)
		e.Method = zipMethodName(h.Method)
	}
	return e
}

func zipMethodName(m uint16) string {
	switch m {
	case zip.Store:
		return "Copy"
	case zip.Deflate:
		return "Deflate"
	case 9:
		return "Deflate64"
	case zipMethodBZip2:
		return "BZip2"
	case 14:
		return "LZMA"
	case 98:
		return "PPMd"
	}
	return fmt.Sprintf("method %d", m)
}

// WriteFile streams r into path through the optional limiter, replacing any
// existing file or symlink. buf is the copy buffer.
func WriteFile(ctx context.Context, path string, r io.Reader, perm fs.FileMode, mtime time.Time, lim *rate.Limiter, buf []byte) error {
	if fi, err := os.Lstat(path); err == nil && fi.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("replacing symlink %s: %w", path, err)
		}
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm|0o200)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	w := throttle.Writer(ctx, out, lim)
	if _, err := io.CopyBuffer(w, &ctxReader{ctx: ctx, r: r}, buf); err != nil {
		out.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if !mtime.IsZero() {
		_ = os.Chtimes(path, mtime, mtime)
	}
	return nil
}

// countingFile reports bytes read through Read and ReadAt.
type countingFile struct {
	*os.File
	count func(int)
}

func (f *countingFile) Read(p []byte) (int, error) {
	n, err := f.File.Read(p)
	f.count(n)
	return n, err
}

func (f *countingFile) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.File.ReadAt(p, off)
	f.count(n)
	return n, err
}

// ctxReader stops a copy once ctx is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
