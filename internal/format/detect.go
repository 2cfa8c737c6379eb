package format

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mholt/archives"
)

// ErrUnknownArchive is returned when an existing file is not a recognised archive.
var ErrUnknownArchive = errors.New("unrecognised archive")

// Detect sniffs the kind of an existing archive from its header bytes and name.
// Compressed tarballs report their outer compression kind.
func Detect(ctx context.Context, path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	fm, _, err := archives.Identify(ctx, path, f)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrUnknownArchive, path, err)
	}
	if k, ok := fromIdentified(fm.Extension()); ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %s (%s)", ErrUnknownArchive, path, fm.Extension())
}

func fromIdentified(ext string) (Kind, bool) {
	ext = strings.ToLower(ext)
	if i := strings.LastIndex(ext, "."); i > 0 {
		ext = ext[i:]
	}
	switch ext {
	case ".7z":
		return SevenZip, true
	case ".zip":
		return Zip, true
	case ".gz":
		return GZip, true
	case ".bz2":
		return BZip2, true
	case ".tar":
		return Tar, true
	case ".xz":
		return XZ, true
	}
	return 0, false
}
