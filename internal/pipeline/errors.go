package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionMismatch marks a document skipped by the selection mode
	// because its region differs from the one the code was chosen for.
	ErrRegionMismatch = errors.New("region mismatch")

	// ErrNoDocuments is returned by Survey when the folder holds no
	// readable document.
	ErrNoDocuments = errors.New("no readable documents")

	// ErrSameFolder is returned when the selection output folder is the
	// input folder; publishing would then delete the stamped items.
	ErrSameFolder = errors.New("input and output folders are the same")
)

// RegionMismatchError reports a document whose region differs from the
// selected one.
type RegionMismatchError struct {
	Want string
	Got  string
}

func (e *RegionMismatchError) Error() string {
	return fmt.Sprintf("document region %s differs from selected region %s", e.Got, e.Want)
}

func (e *RegionMismatchError) Is(target error) bool {
	return target == ErrRegionMismatch
}
