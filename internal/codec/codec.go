// Package codec performs the actual archive reads and writes. The engine
// drives it through the Codec interface and never touches archive bytes
// itself, except for the direct zip path used for legacy filename encodings.
package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bamsammich/arc7/internal/format"
)

var (
	// ErrUnsupported is returned when a codec cannot perform a request.
	ErrUnsupported = errors.New("not supported by this codec")
	// ErrWrongPassword is returned when an archive cannot be decrypted.
	ErrWrongPassword = errors.New("wrong password or encrypted archive")
)

// Level is a compression level on the 7-Zip scale (0-9).
type Level int

const (
	LevelNone   Level = 0
	LevelFast   Level = 1
	LevelLow    Level = 3
	LevelNormal Level = 5
	LevelHigh   Level = 7
	LevelUltra  Level = 9
)

var levelNames = map[string]Level{
	"none":   LevelNone,
	"fast":   LevelFast,
	"low":    LevelLow,
	"normal": LevelNormal,
	"high":   LevelHigh,
	"ultra":  LevelUltra,
}

// ParseLevel accepts a level name or a digit 0-9.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return LevelNormal, nil
	}
	if l, ok := levelNames[s]; ok {
		return l, nil
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return Level(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown compression level %q", s)
}

// Method is the compression method used inside a container.
type Method int

const (
	MethodDefault Method = iota
	MethodCopy
	MethodDeflate
	MethodDeflate64
	MethodBZip2
	MethodLZMA
	MethodLZMA2
	MethodPPMd
)

var methodNames = [...]string{
	MethodDefault:   "Default",
	MethodCopy:      "Copy",
	MethodDeflate:   "Deflate",
	MethodDeflate64: "Deflate64",
	MethodBZip2:     "BZip2",
	MethodLZMA:      "LZMA",
	MethodLZMA2:     "LZMA2",
	MethodPPMd:      "PPMd",
}

func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "Unknown"
}

// ParseMethod matches a method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MethodDefault, nil
	}
	for m, name := range methodNames {
		if strings.EqualFold(name, s) {
			return Method(m), nil
		}
	}
	return 0, fmt.Errorf("unknown compression method %q", s)
}

// Entry is one item listed from an archive.
type Entry struct {
	Name      string // as stored
	Size      int64
	Packed    int64
	IsDir     bool
	Unicode   bool // zip: the UTF-8 name flag is set
	Encrypted bool
	Method    string
	ModTime   time.Time
}

// Source is one file or empty directory to add. Name is the slash-separated
// path inside the archive.
type Source struct {
	Path  string
	Name  string
	IsDir bool
	Size  int64
}

// CompressJob describes one compression call against a destination archive.
type CompressJob struct {
	Archive        string
	Kind           format.Kind
	Sources        []Source
	Append         bool
	Level          Level
	Method         Method
	Password       []byte
	EncryptHeaders bool
	VolumeSize     int64
}

// ExtractJob describes a whole-archive extraction.
type ExtractJob struct {
	Archive     string
	Destination string
	Password    []byte
	// Exclude lists stored entry names that must not be written.
	Exclude     []string
	BytesPerSec int64
}

// Info is the result of an integrity check.
type Info struct {
	Path         string
	Kind         format.Kind
	PackedSize   int64
	UnpackedSize int64
	FileCount    int
	Method       string
	Checksum     string // BLAKE3 of the archive bytes, hex
}

// Callbacks relay codec activity. Any field may be nil.
type Callbacks struct {
	Progress    func(percent float64)
	FileStarted func(name string)
	// Skipped reports an entry left out because its target path is taken.
	Skipped func(name string, reason error)
}

func (c Callbacks) progress(pct float64) {
	if c.Progress != nil {
		c.Progress(pct)
	}
}

func (c Callbacks) skipped(name string, reason error) {
	if c.Skipped != nil {
		c.Skipped(name, reason)
	}
}

func (c Callbacks) fileStarted(name string) {
	if c.FileStarted != nil {
		c.FileStarted(name)
	}
}

// Codec reads and writes archives.
type Codec interface {
	List(ctx context.Context, archive string, password []byte) ([]Entry, error)
	Compress(ctx context.Context, job CompressJob, cb Callbacks) error
	Extract(ctx context.Context, job ExtractJob, cb Callbacks) error
	Check(ctx context.Context, archive string, password []byte) (Info, error)
}
