package storage

import (
	"errors"
	"fmt"

	"github.com/adityaahir3105/FinDocs/internal/obs"
)

var (
	// ErrProviderAuth means the provider rejected the credential.
	ErrProviderAuth = errors.New("storage: provider rejected credentials")
	// ErrProviderQuota means a rate or storage limit was hit; the caller may retry later.
	ErrProviderQuota = errors.New("storage: provider quota exceeded")
	// ErrProviderIO covers every other provider failure.
	ErrProviderIO = errors.New("storage: provider request failed")

	ErrUnsupportedOperation = errors.New("storage: operation not supported by provider")
	ErrInvalidName          = errors.New("storage: invalid name")
)

// ProviderError records which provider call failed and how it is classified.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As.
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func newProviderError(provider, op string, kind, err error) *ProviderError {
	obs.ProviderError(provider, KindName(kind))
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

// KindName returns a short label for metrics and logs.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrProviderAuth):
		return "auth"
	case errors.Is(err, ErrProviderQuota):
		return "quota"
	case errors.Is(err, ErrUnsupportedOperation):
		return "unsupported"
	case errors.Is(err, ErrProviderIO):
		return "io"
	default:
		return "unknown"
	}
}
