package codec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bamsammich/arc7/internal/format"
)

// Binary names tried, in order, when no path is configured.
var sevenZipNames = []string{"7zz", "7z", "7za"}

// ErrBinaryNotFound is returned by Locate when no 7-Zip executable exists.
var ErrBinaryNotFound = errors.New("7-Zip binary not found")

// Locate resolves the 7-Zip executable once. A configured path or name is
// used as given; otherwise 7zz, 7z and 7za are tried on PATH.
func Locate(configured string) (string, error) {
	if configured != "" {
		p, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrBinaryNotFound, configured, err)
		}
		return p, nil
	}
	for _, name := range sevenZipNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (tried %s)", ErrBinaryNotFound, strings.Join(sevenZipNames, ", "))
}

// ExitError is a non-zero exit from the 7-Zip binary.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("7-Zip exited with code %d", e.Code)
	}
	return fmt.Sprintf("7-Zip exited with code %d: %s", e.Code, msg)
}

// SevenZip drives an external 7-Zip executable. It handles everything the
// native codec cannot: 7z creation, encryption, header encryption, volumes
// and the full method list.
type SevenZip struct {
	binary string
	logger *slog.Logger
}

// NewSevenZip creates a codec around the executable at binary.
func NewSevenZip(binary string, logger *slog.Logger) *SevenZip {
	if logger == nil {
		logger = slog.Default()
	}
	return &SevenZip{binary: binary, logger: logger}
}

var typeSwitch = map[format.Kind]string{
	format.SevenZip: "7z",
	format.Zip:      "zip",
	format.GZip:     "gzip",
	format.BZip2:    "bzip2",
	format.Tar:      "tar",
	format.XZ:       "xz",
}

// compressArgs builds the "a" command line. The list file holds entry names
// relative to the working directory.
func compressArgs(job CompressJob, listFile string) ([]string, error) {
	t, ok := typeSwitch[job.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: kind %s", ErrUnsupported, job.Kind)
	}
	args := []string{"a", "-t" + t, "-bsp1", "-bb1", "-bso1", "-bse2", "-y", "-spd", "-scsUTF-8"}
	args = append(args, "-mx="+strconv.Itoa(int(job.Level)))
	if job.Method != MethodDefault {
		switch job.Kind {
		case format.SevenZip:
			args = append(args, "-m0="+job.Method.String())
		case format.Zip:
			args = append(args, "-mm="+job.Method.String())
		default:
			return nil, fmt.Errorf("%w: method %s for %s", ErrUnsupported, job.Method, job.Kind)
		}
	}
	if len(job.Password) > 0 {
		args = append(args, "-p"+string(job.Password))
		if job.Kind == format.Zip {
			args = append(args, "-mem=AES256")
		}
	}
	if job.EncryptHeaders {
		if job.Kind != format.SevenZip {
			return nil, fmt.Errorf("%w: header encryption for %s", ErrUnsupported, job.Kind)
		}
		args = append(args, "-mhe=on")
	}
	if job.VolumeSize > 0 {
		args = append(args, "-v"+strconv.FormatInt(job.VolumeSize, 10)+"b")
	}
	return append(args, "--", job.Archive, "@"+listFile), nil
}

func extractArgs(job ExtractJob, excludeFile string) []string {
	args := []string{"x", "-bsp1", "-bb1", "-bso1", "-bse2", "-y", "-aoa", "-spd", "-scsUTF-8", "-o" + job.Destination}
	args = append(args, passwordArgs(job.Password)...)
	if excludeFile != "" {
		args = append(args, "-x@"+excludeFile)
	}
	return append(args, "--", job.Archive)
}

// passwordArgs returns the -p switch for a non-empty password. Without it
// 7-Zip prompts for encrypted archives; stdin is empty so the prompt fails
// instead of blocking.
func passwordArgs(pw []byte) []string {
	if len(pw) == 0 {
		return nil
	}
	return []string{"-p" + string(pw)}
}

func listArgs(archive string, password []byte) []string {
	args := append([]string{"l", "-slt", "-sccUTF-8"}, passwordArgs(password)...)
	return append(args, "--", archive)
}

// sourceBase returns the directory a source must be added from so that 7-Zip,
// which stores names relative to its working directory, records src.Name.
func sourceBase(src Source) (string, error) {
	rel := filepath.FromSlash(src.Name)
	abs, err := filepath.Abs(src.Path)
	if err != nil {
		return "", err
	}
	sep := string(filepath.Separator)
	if !strings.HasSuffix(abs, sep+rel) {
		return "", fmt.Errorf("%w: entry name %q differs from its path", ErrUnsupported, src.Name)
	}
	base := strings.TrimSuffix(abs, sep+rel)
	if base == "" {
		base = sep
	}
	return base, nil
}

type sourceGroup struct {
	base  string
	names []string
	size  int64
}

// groupByBase splits sources into one group per working directory,
// preserving first-seen order.
func groupByBase(sources []Source) ([]sourceGroup, error) {
	var groups []sourceGroup
	index := make(map[string]int)
	for _, src := range sources {
		base, err := sourceBase(src)
		if err != nil {
			return nil, err
		}
		i, ok := index[base]
		if !ok {
			i = len(groups)
			index[base] = i
			groups = append(groups, sourceGroup{base: base})
		}
		groups[i].names = append(groups[i].names, filepath.FromSlash(src.Name))
		groups[i].size += src.Size
	}
	return groups, nil
}

// Compress runs "7z a" once per source directory. In create mode an
// existing archive is replaced first; later groups update the new archive.
func (s *SevenZip) Compress(ctx context.Context, job CompressJob, cb Callbacks) error {
	if len(job.Sources) == 0 {
		return nil
	}
	groups, err := groupByBase(job.Sources)
	if err != nil {
		return err
	}
	if len(groups) > 1 && job.VolumeSize > 0 {
		return fmt.Errorf("%w: multi-volume archives from several directories", ErrUnsupported)
	}
	archive, err := filepath.Abs(job.Archive)
	if err != nil {
		return err
	}
	job.Archive = archive

	if !job.Append {
		if err := os.Remove(archive); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("replacing %s: %w", archive, err)
		}
	}

	var total, done int64
	for _, g := range groups {
		total += g.size
	}
	for i, g := range groups {
		if err := s.compressGroup(ctx, job, g, scaled(cb, done, g.size, total, i, len(groups))); err != nil {
			return err
		}
		done += g.size
	}
	cb.progress(100)
	return nil
}

func (s *SevenZip) compressGroup(ctx context.Context, job CompressJob, g sourceGroup, cb Callbacks) error {
	list, cleanup, err := writeList(g.names)
	if err != nil {
		return err
	}
	defer cleanup()

	args, err := compressArgs(job, list)
	if err != nil {
		return err
	}
	_, err = s.run(ctx, g.base, args, cb)
	return err
}

// scaled maps a group's 0-100 progress onto its share of the whole job.
// Shares follow byte sizes, or group count when every source is empty.
func scaled(cb Callbacks, done, size, total int64, i, n int) Callbacks {
	start, span := float64(i)/float64(n), 1/float64(n)
	if total > 0 {
		start, span = float64(done)/float64(total), float64(size)/float64(total)
	}
	return Callbacks{
		Progress: func(pct float64) {
			cb.progress((start + span*pct/100) * 100)
		},
		FileStarted: cb.FileStarted,
		Skipped:     cb.Skipped,
	}
}

// Extract runs "7z x" into job.Destination, skipping job.Exclude.
func (s *SevenZip) Extract(ctx context.Context, job ExtractJob, cb Callbacks) error {
	var excludeFile string
	if len(job.Exclude) > 0 {
		list, cleanup, err := writeList(job.Exclude)
		if err != nil {
			return err
		}
		defer cleanup()
		excludeFile = list
	}
	if job.BytesPerSec > 0 {
		s.logger.Debug("bandwidth limit is not applied by the 7-Zip binary")
	}
	if _, err := s.run(ctx, "", extractArgs(job, excludeFile), cb); err != nil {
		return err
	}
	cb.progress(100)
	return nil
}

// List runs "7z l -slt" and parses the technical listing.
func (s *SevenZip) List(ctx context.Context, archive string, password []byte) ([]Entry, error) {
	out, err := s.run(ctx, "", listArgs(archive, password), Callbacks{})
	if err != nil {
		return nil, err
	}
	_, entries := parseListing(out)
	return entries, nil
}

// Check runs "7z t" and then lists the archive for its metadata.
func (s *SevenZip) Check(ctx context.Context, archive string, password []byte) (Info, error) {
	test := append([]string{"t", "-bsp0"}, passwordArgs(password)...)
	if _, err := s.run(ctx, "", append(test, "--", archive), Callbacks{}); err != nil {
		return Info{}, err
	}
	out, err := s.run(ctx, "", listArgs(archive, password), Callbacks{})
	if err != nil {
		return Info{}, err
	}
	props, entries := parseListing(out)

	info := Info{Path: archive, Method: props["Method"]}
	if k, ok := fromTypeName(props["Type"]); ok {
		info.Kind = k
	}
	if st, err := os.Stat(archive); err == nil {
		info.PackedSize = st.Size()
	}
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		info.FileCount++
		info.UnpackedSize += e.Size
		if info.Method == "" {
			info.Method = e.Method
		}
	}
	sum, err := HashFile(archive)
	if err != nil {
		return Info{}, err
	}
	info.Checksum = sum
	return info, nil
}

func fromTypeName(t string) (format.Kind, bool) {
	for k, name := range typeSwitch {
		if strings.EqualFold(name, t) {
			return k, true
		}
	}
	return 0, false
}

// run executes the binary, feeding progress lines to cb, and returns the
// captured stdout. Cancelling ctx kills the process.
func (s *SevenZip) run(ctx context.Context, dir string, args []string, cb Callbacks) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader("")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	s.logger.Debug("running 7-Zip", "binary", s.binary, "command", args[0], "dir", dir)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.binary, err)
	}

	var captured bytes.Buffer
	scanner := bufio.NewScanner(io.TeeReader(stdout, &captured))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(splitProgress)
	var last string
	for scanner.Scan() {
		pl := parseProgressLine(scanner.Text())
		if pl.hasPercent {
			cb.progress(pl.percent)
		}
		if pl.file != "" && pl.file != last {
			last = pl.file
			cb.fileStarted(pl.file)
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// Keep draining so the process is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	err = cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e := &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
			if isPasswordFailure(stderr.String() + captured.String()) {
				return nil, fmt.Errorf("%w: %w", ErrWrongPassword, e)
			}
			return nil, e
		}
		return nil, err
	}
	if scanErr != nil {
		return nil, fmt.Errorf("reading 7-Zip output: %w", scanErr)
	}
	return captured.Bytes(), nil
}

func isPasswordFailure(out string) bool {
	return strings.Contains(out, "Wrong password") ||
		strings.Contains(out, "Can not open encrypted archive")
}

// writeList writes names, one per line, to a temporary list file.
func writeList(names []string) (string, func(), error) {
	f, err := os.CreateTemp("", "arc7-list-*.txt")
	if err != nil {
		return "", nil, fmt.Errorf("creating list file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	w := bufio.NewWriter(f)
	for _, n := range names {
		w.WriteString(n)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing list file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
