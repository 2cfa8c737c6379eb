package secret

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/arc7/internal/format"
)

func TestMode(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		want    Mode
		wantErr error
	}{
		{name: "none", spec: Spec{}, want: None},
		{name: "plain", spec: Spec{Plain: "hunter2"}, want: Plain},
		{name: "secure", spec: Spec{Secure: NewSecureString([]byte("hunter2"))}, want: Secure},
		{name: "empty secure", spec: Spec{Secure: NewSecureString(nil)}, want: None},
		{
			name:    "both",
			spec:    Spec{Plain: "a", Secure: NewSecureString([]byte("b"))},
			wantErr: ErrUnsupportedPasswordMode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.spec.Mode()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsePlainWipesAfterReturn(t *testing.T) {
	var seen []byte
	var leaked []byte
	err := Spec{Plain: "hunter2"}.Use(func(pw []byte) error {
		seen = append([]byte(nil), pw...)
		leaked = pw
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hunter2", string(seen))
	assert.Equal(t, make([]byte, len("hunter2")), leaked)
}

func TestUseSecure(t *testing.T) {
	src := []byte("s3cret")
	s := Spec{Secure: NewSecureString(src)}
	assert.Equal(t, make([]byte, 6), src, "source bytes are wiped when sealed")

	var seen string
	require.NoError(t, s.Use(func(pw []byte) error {
		seen = string(pw)
		return nil
	}))
	assert.Equal(t, "s3cret", seen)

	// The enclave survives use and can be opened again.
	require.NoError(t, s.Use(func(pw []byte) error {
		assert.Equal(t, "s3cret", string(pw))
		return nil
	}))
}

func TestUseNone(t *testing.T) {
	called := false
	require.NoError(t, Spec{}.Use(func(pw []byte) error {
		called = true
		assert.Nil(t, pw)
		return nil
	}))
	assert.True(t, called)
}

func TestUsePropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := Spec{Plain: "x"}.Use(func([]byte) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestUseBothFailsBeforeCallback(t *testing.T) {
	err := Spec{Plain: "a", Secure: NewSecureString([]byte("b"))}.Use(func([]byte) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, ErrUnsupportedPasswordMode)
}

func TestValidateEncryption(t *testing.T) {
	sevenZip := format.SpecFor(format.SevenZip)
	zip := format.SpecFor(format.Zip)

	require.NoError(t, ValidateEncryption(false, zip, Spec{}))
	require.NoError(t, ValidateEncryption(true, sevenZip, Spec{Plain: "pw"}))
	require.NoError(t, ValidateEncryption(true, sevenZip, Spec{Secure: NewSecureString([]byte("pw"))}))

	require.ErrorIs(t, ValidateEncryption(true, zip, Spec{Plain: "pw"}), ErrInvalidEncryptionRequest)
	require.ErrorIs(t, ValidateEncryption(true, sevenZip, Spec{}), ErrInvalidEncryptionRequest)
}

func TestReadLine(t *testing.T) {
	s, err := ReadLine(strings.NewReader("correct horse\r\nignored\n"))
	require.NoError(t, err)
	assert.Equal(t, len("correct horse"), s.Size())

	require.NoError(t, Spec{Secure: s}.Use(func(pw []byte) error {
		assert.Equal(t, "correct horse", string(pw))
		return nil
	}))
}

func TestReadLineNoNewline(t *testing.T) {
	s, err := ReadLine(strings.NewReader("pw"))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Size())
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "plain", Plain.String())
	assert.Equal(t, "secure", Secure.String())
	assert.Equal(t, "unknown", Mode(9).String())
}
