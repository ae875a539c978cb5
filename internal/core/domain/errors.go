package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyContent indicates a document with no indexable content
	ErrEmptyContent = errors.New("empty content")

	// ErrMissingNamespace indicates a document without a workspace
	ErrMissingNamespace = errors.New("missing namespace")

	// ErrMissingDocumentType indicates a document without a type
	ErrMissingDocumentType = errors.New("missing document type")

	// ErrParseFailed indicates chunking input was malformed
	ErrParseFailed = errors.New("parse failed")

	// ErrServiceUnavailable indicates an external provider could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ProviderError carries the status and body of a failed embedding or
// vector-store call so callers can tell quota errors from auth errors.
type ProviderError struct {
	Provider   string
	Status     int
	StatusText string
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.Status, e.StatusText, e.Body)
}

// IsLimitExceeded reports whether the error looks like a batch-size or
// payload-size rejection, which the embedding client handles by halving.
func (e *ProviderError) IsLimitExceeded() bool {
	return e.Status == 413 || e.Status == 429
}
