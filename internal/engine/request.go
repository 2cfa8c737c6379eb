package engine

import (
	"fmt"
	"strings"

	"github.com/bamsammich/arc7/internal/codec"
	"github.com/bamsammich/arc7/internal/filter"
	"github.com/bamsammich/arc7/internal/format"
	"github.com/bamsammich/arc7/internal/secret"
	"github.com/bamsammich/arc7/internal/stats"
	"github.com/bamsammich/arc7/internal/textenc"
)

// EncodingAuto asks the extractor to detect legacy zip filename encodings.
const EncodingAuto = "auto"

// ZeroFilesPolicy decides the outcome of an extraction in which every file
// entry was rejected.
type ZeroFilesPolicy int

const (
	// ZeroFilesSucceed reports success with a warning.
	ZeroFilesSucceed ZeroFilesPolicy = iota
	// ZeroFilesFail reports ErrNothingExtracted.
	ZeroFilesFail
)

func (p ZeroFilesPolicy) String() string {
	if p == ZeroFilesFail {
		return "fail"
	}
	return "succeed"
}

// ParseZeroFiles accepts "succeed" or "fail". Empty means succeed.
func ParseZeroFiles(s string) (ZeroFilesPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "succeed", "success":
		return ZeroFilesSucceed, nil
	case "fail", "error":
		return ZeroFilesFail, nil
	}
	return 0, validationf("unknown zero-files policy %q (want succeed or fail)", s)
}

// CompressRequest describes one compression. The dispatcher never modifies it.
type CompressRequest struct {
	Sources     []string
	Destination string
	Mode        format.Mode
	Level       codec.Level
	Method      codec.Method
	Password    secret.Spec

	Flatten       bool
	SkipEmptyDirs bool
	PreserveRoot  bool
	Recursive     bool
	Append        bool

	// VolumeSize splits the archive into volumes of this many bytes.
	VolumeSize       int64
	EncryptFilenames bool

	// Filter is a glob matched against file base names; empty matches all.
	Filter string
	// Rules is an optional include/exclude chain applied to relative paths.
	Rules *filter.Chain

	// Stats receives counters for presenters. Optional.
	Stats *stats.Collector
}

// ExtractRequest describes one extraction.
type ExtractRequest struct {
	Archive     string
	Destination string
	Password    secret.Spec
	// Encoding is "" for the codec default, EncodingAuto, or a charset name
	// used to decode zip entry names stored without the UTF-8 flag.
	Encoding     string
	ZeroFiles    ZeroFilesPolicy
	SkipExisting bool
	// BWLimit caps write throughput in bytes per second. 0 is unlimited.
	BWLimit int64

	Stats *stats.Collector
}

// ListRequest describes a listing or an integrity check.
type ListRequest struct {
	Archive  string
	Password secret.Spec
	Encoding string
}

type compressPlan struct {
	spec  format.Spec
	names *filter.Chain
}

// validateCompress checks the request shape without touching the filesystem.
func validateCompress(req CompressRequest) (compressPlan, error) {
	if len(req.Sources) == 0 {
		return compressPlan{}, validationf("no sources given")
	}
	for _, s := range req.Sources {
		if strings.TrimSpace(s) == "" {
			return compressPlan{}, validationf("empty source path")
		}
	}
	if strings.TrimSpace(req.Destination) == "" {
		return compressPlan{}, validationf("no destination given")
	}
	spec, err := format.Resolve(req.Mode, req.Destination)
	if err != nil {
		return compressPlan{}, err
	}
	if _, err := req.Password.Mode(); err != nil {
		return compressPlan{}, err
	}
	if err := secret.ValidateEncryption(req.EncryptFilenames, spec, req.Password); err != nil {
		return compressPlan{}, err
	}
	switch {
	case req.VolumeSize < 0:
		return compressPlan{}, validationf("negative volume size")
	case req.VolumeSize > 0 && req.Append:
		return compressPlan{}, validationf("cannot append to a multi-volume archive")
	case req.VolumeSize > 0 && !spec.SupportsMultiFile:
		return compressPlan{}, validationf("%s streams cannot be split into volumes", spec.Kind)
	case req.Level < codec.LevelNone || req.Level > codec.LevelUltra:
		return compressPlan{}, validationf("compression level %d out of range 0-9", req.Level)
	}
	names := filter.NewChain(false)
	if err := names.SetNamePattern(req.Filter); err != nil {
		return compressPlan{}, validationf("filter %q: %v", req.Filter, err)
	}
	return compressPlan{spec: spec, names: names}, nil
}

// validateExtract checks the request shape and resolves a named encoding.
func validateExtract(req ExtractRequest) (*textenc.Encoding, error) {
	if strings.TrimSpace(req.Archive) == "" {
		return nil, validationf("no archive given")
	}
	if strings.TrimSpace(req.Destination) == "" {
		return nil, validationf("no destination given")
	}
	if req.BWLimit < 0 {
		return nil, validationf("negative bandwidth limit")
	}
	if _, err := req.Password.Mode(); err != nil {
		return nil, err
	}
	return resolveEncoding(req.Encoding)
}

// resolveEncoding returns nil for "" and "auto".
func resolveEncoding(name string) (*textenc.Encoding, error) {
	if name == "" || strings.EqualFold(name, EncodingAuto) {
		return nil, nil
	}
	enc, err := textenc.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return enc, nil
}
