package cte

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction   = errors.New("extraction failed")
	ErrNoRootMarker = errors.New("closing root marker not found")
)

// ExtractionError reports a document that could not yield the fields the
// rule lookup needs, or that has nowhere to receive a PO.
type ExtractionError struct {
	// Field is the element that was missing or unusable (UFEnv, rem/CNPJ, CTe).
	Field string

	// Err is the underlying decode error, if any.
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s missing or empty", e.Field)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}
