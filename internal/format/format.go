// Package format maps output modes and destination file names onto archive
// kinds and the capabilities each kind carries.
package format

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidFormat is returned for a mode that names no known archive kind.
var ErrInvalidFormat = errors.New("invalid archive format")

// Kind is a concrete archive container or compression stream.
type Kind int

const (
	SevenZip Kind = iota + 1
	Zip
	GZip
	BZip2
	Tar
	XZ
)

var kindNames = [...]string{
	SevenZip: "7z",
	Zip:      "zip",
	GZip:     "gzip",
	BZip2:    "bzip2",
	Tar:      "tar",
	XZ:       "xz",
}

var kindExtensions = [...]string{
	SevenZip: ".7z",
	Zip:      ".zip",
	GZip:     ".gz",
	BZip2:    ".bz2",
	Tar:      ".tar",
	XZ:       ".xz",
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return "unknown"
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k > 0 && int(k) < len(kindNames)
}

// Extension returns the canonical file extension, including the dot.
func (k Kind) Extension() string {
	if k.Valid() {
		return kindExtensions[k]
	}
	return ""
}

// Mode selects the output kind. The zero Mode is Auto.
type Mode struct {
	kind Kind
}

// Auto infers the kind from the destination file name.
var Auto = Mode{}

// Explicit returns a Mode fixed to kind k.
func Explicit(k Kind) Mode { return Mode{kind: k} }

// IsAuto reports whether the mode infers its kind.
func (m Mode) IsAuto() bool { return m.kind == 0 }

func (m Mode) String() string {
	if m.IsAuto() {
		return "auto"
	}
	return m.kind.String()
}

// ParseMode parses a user-supplied format name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "7z", "7zip", "sevenzip":
		return Explicit(SevenZip), nil
	case "zip":
		return Explicit(Zip), nil
	case "gzip", "gz":
		return Explicit(GZip), nil
	case "bzip2", "bz2":
		return Explicit(BZip2), nil
	case "tar":
		return Explicit(Tar), nil
	case "xz":
		return Explicit(XZ), nil
	}
	return Auto, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Spec is a resolved kind together with its capabilities.
type Spec struct {
	Kind Kind
	// SupportsFilenameEncryption is true only for 7z, whose header can be encrypted.
	SupportsFilenameEncryption bool
	// SupportsMultiFile is false for single-stream compressors.
	SupportsMultiFile bool
}

// SpecFor returns the capabilities of kind k.
func SpecFor(k Kind) Spec {
	return Spec{
		Kind:                       k,
		SupportsFilenameEncryption: k == SevenZip,
		SupportsMultiFile:          k != GZip && k != BZip2 && k != XZ,
	}
}

// Resolve picks the archive kind for dest. An explicit mode wins; in auto mode
// the lowercase extension decides, and anything unrecognised is 7z.
func Resolve(m Mode, dest string) (Spec, error) {
	if !m.IsAuto() {
		if !m.kind.Valid() {
			return Spec{}, fmt.Errorf("%w: %d", ErrInvalidFormat, int(m.kind))
		}
		return SpecFor(m.kind), nil
	}
	return SpecFor(FromExtension(dest)), nil
}

// FromExtension infers a kind from a file name's extension, defaulting to 7z.
func FromExtension(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return Zip
	case ".gz":
		return GZip
	case ".bz2":
		return BZip2
	case ".tar":
		return Tar
	case ".xz":
		return XZ
	}
	return SevenZip
}
