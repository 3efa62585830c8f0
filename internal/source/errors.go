package source

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrProviderAuth means the credentials were rejected
	ErrProviderAuth = errors.New("provider rejected credentials")
	// ErrProviderUnavailable covers rate limits, timeouts and server errors
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrCursorReset means the cursor is no longer valid and must be re-acquired
	ErrCursorReset = errors.New("provider cursor reset")
)

// Kind classifies a provider failure
type Kind int

const (
	KindUnavailable Kind = iota
	KindAuth
	KindCursorReset
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindCursorReset:
		return "cursor_reset"
	default:
		return "unavailable"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindAuth:
		return ErrProviderAuth
	case KindCursorReset:
		return ErrCursorReset
	default:
		return ErrProviderUnavailable
	}
}

// ProviderError is a classified provider failure
type ProviderError struct {
	Op   string
	Kind Kind
	Err  error
}

// NewProviderError wraps err with an operation name and a kind
func NewProviderError(op string, kind Kind, err error) *ProviderError {
	return &ProviderError{Op: op, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.sentinel(), e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// classify turns any store error into a *ProviderError.
// Unclassified errors are treated as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewProviderError(op, KindUnavailable, err)
}
