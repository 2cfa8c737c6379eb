package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/bamsammich/arc7/internal/bridge"
	"github.com/bamsammich/arc7/internal/engine"
	"github.com/bamsammich/arc7/internal/format"
	"github.com/bamsammich/arc7/internal/secret"
	"github.com/bamsammich/arc7/internal/textenc"
)

const (
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

// exitError carries an exit code for a failure that was already reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

var usageErrors = []error{
	engine.ErrValidation,
	engine.ErrSourceNotFound,
	engine.ErrMultipleDirectoriesNotAllowed,
	engine.ErrInvalidDestination,
	secret.ErrUnsupportedPasswordMode,
	secret.ErrInvalidEncryptionRequest,
	format.ErrInvalidFormat,
	textenc.ErrUnknownEncoding,
}

// exitCode maps an operation error to the process exit status:
// 2 for a request that was rejected before work began, 130 after a
// cancellation, 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bridge.ErrCancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	}
	var ue usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	for _, target := range usageErrors {
		if errors.Is(err, target) {
			return exitUsage
		}
	}
	return exitFailure
}
