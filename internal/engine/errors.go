package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a malformed request.
	ErrValidation = errors.New("invalid request")
	// ErrSourceNotFound marks a request naming paths that do not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrMultipleDirectoriesNotAllowed is returned when a compression names
	// more than one directory.
	ErrMultipleDirectoriesNotAllowed = errors.New("only one directory may be compressed at a time")
	// ErrInvalidDestination is returned when the archive path cannot be written.
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrCodec marks a failure reported by the archive codec.
	ErrCodec = errors.New("codec failure")
	// ErrNothingExtracted is returned under ZeroFilesFail when every file
	// entry was rejected.
	ErrNothingExtracted = errors.New("no files were extracted")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SourceNotFoundError lists every missing source path.
type SourceNotFoundError struct {
	Paths []string
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", strings.Join(e.Paths, ", "))
}

func (e *SourceNotFoundError) Unwrap() error { return ErrSourceNotFound }

// CodecError wraps a codec failure with the operation and archive it hit.
type CodecError struct {
	Op      string
	Archive string
	Err     error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Archive, e.Err)
}

func (e *CodecError) Unwrap() []error { return []error{ErrCodec, e.Err} }
