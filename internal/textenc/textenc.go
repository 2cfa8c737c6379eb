// Package textenc detects and decodes legacy (non-UTF-8) filename encodings
// in zip archives.
package textenc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// MinConfidence is the detector confidence (0-100) a candidate must exceed.
const MinConfidence = 50

// ErrUnknownEncoding is returned by Lookup for names with no decoder.
var ErrUnknownEncoding = errors.New("unknown text encoding")

// Encoding is a named character encoding used to decode raw entry names.
type Encoding struct {
	Name string
	enc  encoding.Encoding
}

// UTF8 is returned when every entry already declares UTF-8 names.
var UTF8 = &Encoding{Name: "UTF-8", enc: unicode.UTF8}

// IsUTF8 reports whether names can be used as stored.
func (e *Encoding) IsUTF8() bool {
	return e == nil || e.enc == unicode.UTF8
}

// Decode converts a raw name to UTF-8. Undecodable input is returned unchanged.
func (e *Encoding) Decode(raw string) string {
	if e.IsUTF8() {
		return raw
	}
	s, err := e.enc.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return s
}

func (e *Encoding) String() string {
	if e == nil {
		return "none"
	}
	return e.Name
}

// chardet reports a few names no index knows.
var detectorAliases = map[string]string{
	"gb-18030":   "gb18030",
	"ibm420_ltr": "ibm420",
	"ibm420_rtl": "ibm420",
	"ibm424_ltr": "ibm424",
	"ibm424_rtl": "ibm424",
}

// Lookup resolves an IANA or WHATWG charset name such as "cp437" or "shift_jis".
func Lookup(name string) (*Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := detectorAliases[key]; ok {
		key = alias
	}
	if key == "utf-8" || key == "utf8" {
		return UTF8, nil
	}
	if enc, err := ianaindex.IANA.Encoding(key); err == nil && enc != nil {
		return &Encoding{Name: canonicalName(enc, name), enc: enc}, nil
	}
	if enc, err := htmlindex.Get(key); err == nil && enc != nil {
		return &Encoding{Name: canonicalName(enc, name), enc: enc}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

func canonicalName(enc encoding.Encoding, fallback string) string {
	if n, err := ianaindex.IANA.Name(enc); err == nil && n != "" {
		return n
	}
	return fallback
}

// Detect inspects the central directory of the zip archive at path. It returns
// UTF8 when no entry lacks the unicode flag, the detected encoding when the
// detector is confident enough, and nil when it cannot decide.
func Detect(path string) (*Encoding, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening zip index: %w", err)
	}
	defer r.Close()

	return DetectNames(RawNames(r.File))
}

// RawNames returns the stored name bytes of every entry without the unicode flag.
func RawNames(files []*zip.File) [][]byte {
	var raw [][]byte
	for _, f := range files {
		if f.NonUTF8 {
			raw = append(raw, []byte(f.Name))
		}
	}
	return raw
}

// DetectNames runs statistical detection over raw name bytes.
func DetectNames(raw [][]byte) (*Encoding, error) {
	if len(raw) == 0 {
		return UTF8, nil
	}

	var sample []byte
	for _, name := range raw {
		sample = append(sample, name...)
		sample = append(sample, '\n')
	}

	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		if errors.Is(err, chardet.NotDetectedError) {
			return nil, nil
		}
		return nil, fmt.Errorf("detecting name encoding: %w", err)
	}
	if res.Confidence <= MinConfidence {
		return nil, nil
	}
	enc, err := Lookup(res.Charset)
	if err != nil {
		return nil, nil //nolint:nilerr // an unmappable charset is "undetected"
	}
	return enc, nil
}
