package archive

import (
	"errors"
	"fmt"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

var ErrIO = errors.New("archive I/O failure")

// IOError reports a corrupt archive or a filesystem failure while
// extracting, rebuilding or relocating it.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// Stage returns the item stage the failed operation belongs to.
func (e *IOError) Stage() types.Stage {
	switch e.Op {
	case "open archive", "create temp dir", "extract", "read member":
		return types.StageExtracting
	case "write member":
		return types.StageMutating
	default:
		return types.StageRelocating
	}
}
