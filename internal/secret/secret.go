// Package secret resolves how an archive password was supplied and exposes
// its plaintext only for the duration of a callback.
package secret

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/bamsammich/arc7/internal/format"
)

var (
	// ErrUnsupportedPasswordMode is returned when both a plain and a secure
	// password are supplied.
	ErrUnsupportedPasswordMode = errors.New("only one of plain or secure password may be set")
	// ErrInvalidEncryptionRequest is returned when filename encryption is asked
	// for but the format or the password cannot provide it.
	ErrInvalidEncryptionRequest = errors.New("invalid encryption request")
)

// Mode is the password variant carried by a Spec.
type Mode int

const (
	None Mode = iota
	Plain
	Secure
)

func (m Mode) String() string {
	switch m {
	case None:
		return "none"
	case Plain:
		return "plain"
	case Secure:
		return "secure"
	}
	return "unknown"
}

// Spec is the password as supplied by the caller. At most one field may be set.
type Spec struct {
	Plain  string
	Secure *SecureString
}

// Mode resolves which variant the Spec carries.
func (s Spec) Mode() (Mode, error) {
	hasPlain := s.Plain != ""
	hasSecure := s.Secure != nil && s.Secure.Size() > 0
	switch {
	case hasPlain && hasSecure:
		return None, ErrUnsupportedPasswordMode
	case hasPlain:
		return Plain, nil
	case hasSecure:
		return Secure, nil
	}
	return None, nil
}

// Present reports whether a non-empty password was supplied.
func (s Spec) Present() bool {
	m, err := s.Mode()
	return err == nil && m != None
}

// Use calls fn with the password bytes, or nil when no password was given.
// The bytes are wiped after fn returns and must not be retained.
func (s Spec) Use(fn func(pw []byte) error) error {
	mode, err := s.Mode()
	if err != nil {
		return err
	}
	switch mode {
	case Plain:
		buf := []byte(s.Plain)
		defer memguard.WipeBytes(buf)
		return fn(buf)
	case Secure:
		return s.Secure.use(fn)
	}
	return fn(nil)
}

// ValidateEncryption checks a filename-encryption request against the
// resolved format and the supplied password.
func ValidateEncryption(encryptNames bool, fs format.Spec, s Spec) error {
	if !encryptNames {
		return nil
	}
	if !fs.SupportsFilenameEncryption {
		return fmt.Errorf("%w: %s archives cannot encrypt filenames", ErrInvalidEncryptionRequest, fs.Kind)
	}
	if !s.Present() {
		return fmt.Errorf("%w: filename encryption needs a password", ErrInvalidEncryptionRequest)
	}
	return nil
}
