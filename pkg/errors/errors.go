// Package errors defines the sentinel errors shared across the engine and an
// AppError wrapper that carries a CLI exit code.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrCorpusUnreadable means the corpus directory is missing or contains no
	// regular files. Fatal at build time.
	ErrCorpusUnreadable = errors.New("corpus unreadable")
	// ErrIndexMissing means a required shard or document-store file is absent.
	// Fatal at query startup.
	ErrIndexMissing = errors.New("index missing")
	// ErrIndexCorruption means a postings read hit a short read, an offset past
	// EOF, or an overflowing length field. Fatal to the current query only.
	ErrIndexCorruption = errors.New("index corruption")
	// ErrMalformedQuery means the Boolean parser rejected the input.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrModelLoadFailed means the cross-encoder session could not be created.
	ErrModelLoadFailed = errors.New("model load failed")
	// ErrRerankUnavailable is returned for jobs submitted after the rerank
	// worker entered its failed state.
	ErrRerankUnavailable = errors.New("reranking unavailable")
	// ErrInference means a single rerank job failed inside the model session.
	ErrInference = errors.New("inference error")
	// ErrCancelled fulfills futures for jobs still queued at shutdown.
	ErrCancelled = errors.New("job cancelled")
)

// Exit codes for the CLI surface.
const (
	ExitOK             = 0
	ExitMissingInput   = 1
	ExitMalformedQuery = 2
)

// AppError wraps a sentinel with context and an exit code.
type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel error with a message and exit code.
func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

// Newf is New with Sprintf-style formatting.
func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps an error to the CLI exit code it should produce.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}
	switch {
	case errors.Is(err, ErrMalformedQuery):
		return ExitMalformedQuery
	default:
		return ExitMissingInput
	}
}
