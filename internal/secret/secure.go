package secret

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

// SecureString holds a password sealed in an encrypted memguard enclave.
// The plaintext only exists in a locked buffer while Spec.Use runs.
type SecureString struct {
	enclave *memguard.Enclave
}

// NewSecureString seals b into an enclave. b is wiped.
func NewSecureString(b []byte) *SecureString {
	if len(b) == 0 {
		return &SecureString{}
	}
	return &SecureString{enclave: memguard.NewEnclave(b)}
}

// Size returns the length of the sealed password.
func (s *SecureString) Size() int {
	if s == nil || s.enclave == nil {
		return 0
	}
	return s.enclave.Size()
}

func (s *SecureString) use(fn func(pw []byte) error) error {
	lb, err := s.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening secure password: %w", err)
	}
	defer lb.Destroy()
	return fn(lb.Bytes())
}

// Prompt reads a password from the terminal on fd without echo and seals it.
func Prompt(fd int, w io.Writer, label string) (*SecureString, error) {
	fmt.Fprint(w, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return NewSecureString(b), nil
}

// ReadLine reads the first line of r (for --password-stdin) and seals it.
func ReadLine(r io.Reader) (*SecureString, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		memguard.WipeBytes(line)
		return nil, fmt.Errorf("reading password: %w", err)
	}
	trimmed := bytes.TrimRight(line, "\r\n")
	s := NewSecureString(trimmed)
	memguard.WipeBytes(line)
	return s, nil
}
