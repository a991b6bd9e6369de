package common

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration indicates missing or invalid external-service
	// credentials. Raised at client construction, before any work.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation indicates empty or invalid input. Rejected without
	// side effects.
	ErrValidation = errors.New("validation error")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyProcessing indicates a pipeline run is already holding
	// the item; the claim compare-and-swap failed.
	ErrAlreadyProcessing = errors.New("item is already processing")
)

// ExternalServiceError wraps a failure from an external collaborator
// (embedding, extraction, transcription). Sub-steps catch it at the
// smallest possible scope; only top-level occurrences abort a run.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError wraps err with the originating service name.
func NewExternalServiceError(service string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Err: err}
}
