package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

// relocateDocument publishes content at dst together with the companion
// files of src, then removes src. On any failure everything already moved
// is put back and src is left untouched. Existing files in the output
// folder are never replaced.
func relocateDocument(src, dst string, content []byte, companions []string) error {
	dir := filepath.Dir(dst)
	for _, target := range append([]string{dst}, companionTargets(dir, companions)...) {
		if utils.FileExists(target) {
			return fmt.Errorf("failed to publish %s: %w", filepath.Base(target), utils.ErrDestinationExists)
		}
	}

	staging := utils.StagingPath(dir, filepath.Base(dst))

	if err := os.WriteFile(staging, content, 0o644); err != nil {
		os.Remove(staging)
		return fmt.Errorf("failed to write output %s: %w", filepath.Base(dst), err)
	}

	type move struct{ from, to string }
	var moved []move
	rollback := func() {
		for i := len(moved) - 1; i >= 0; i-- {
			utils.MoveFile(moved[i].to, moved[i].from)
		}
		os.Remove(staging)
	}

	for _, c := range companions {
		to := filepath.Join(dir, filepath.Base(c))
		if err := utils.MoveFile(c, to); err != nil {
			rollback()
			return fmt.Errorf("failed to move companion %s: %w", filepath.Base(c), err)
		}
		moved = append(moved, move{from: c, to: to})
	}

	if err := utils.Publish(staging, dst); err != nil {
		rollback()
		return fmt.Errorf("failed to publish %s: %w", filepath.Base(dst), err)
	}

	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		rollback()
		return fmt.Errorf("failed to remove input %s: %w", filepath.Base(src), err)
	}
	return nil
}

func companionTargets(dir string, companions []string) []string {
	targets := make([]string, len(companions))
	for i, c := range companions {
		targets[i] = filepath.Join(dir, filepath.Base(c))
	}
	return targets
}
