package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/refmesh/internal/ir"
)

// RuntimeError is a replication failure the caller cannot retry blindly.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Key identifies the affected ref, when there is one.
	Key ir.RefKey

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCASRetriesExhausted indicates every compare-and-swap attempt
	// on a ref lost to a concurrent writer.
	ErrCodeCASRetriesExhausted RuntimeErrorCode = "CAS_RETRIES_EXHAUSTED"

	// ErrCodeNoTables indicates an operation needed resolver tables before
	// the first Reload.
	ErrCodeNoTables RuntimeErrorCode = "NO_TABLES"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Key.URL != "" {
		return fmt.Sprintf("%s: %s (ref=%s)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCASExhausted reports whether err is a CAS_RETRIES_EXHAUSTED error.
func IsCASExhausted(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCASRetriesExhausted
	}
	return false
}

// IsNoTables reports whether err is a NO_TABLES error.
func IsNoTables(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeNoTables
	}
	return false
}

func newCASExhausted(key ir.RefKey, attempts int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCASRetriesExhausted,
		Message: fmt.Sprintf("ref changed concurrently on every attempt (%d)", attempts),
		Key:     key,
		Details: map[string]string{
			"attempts": fmt.Sprintf("%d", attempts),
		},
	}
}

func newNoTables() *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoTables,
		Message: "origin links not loaded; call Reload first",
	}
}
