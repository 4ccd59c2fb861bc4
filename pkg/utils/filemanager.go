// =============================================================================
// Freight PO Editor - File Manager Utility
// =============================================================================
//
// This module provides the file operations the pipeline is built on:
//   - Non-recursive discovery of input items
//   - Atomic writes (staging file + rename in the same directory)
//   - Moves with a copy fallback for cross-device renames
//   - Companion lookup (the PDF rendering next to an XML)
//   - Cleanup of stale temporary directories left by an interrupted run
//
// RELOCATION STRATEGY:
//   - Output files are first written under a unique staging name and only
//     renamed to their final name once complete
//   - Input files are removed only after their output is in place
//   - Failed items remain in their original location
//
// =============================================================================

package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all given directories if they don't exist.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// ListFiles returns the regular files directly inside dir, in directory
// listing order. Subdirectories are not entered.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

// HasExtension reports whether path ends in ext, ignoring case.
func HasExtension(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// Companions returns the files next to path that share its base name and
// carry one of the given extensions, e.g. nota.pdf for nota.xml.
func Companions(path string, extensions []string) []string {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var found []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if strings.TrimSuffix(name, ext) != base || name == filepath.Base(path) {
			continue
		}
		for _, want := range extensions {
			if strings.EqualFold(ext, want) {
				found = append(found, filepath.Join(dir, name))
				break
			}
		}
	}
	return found
}

// =============================================================================
// WRITES AND MOVES
// =============================================================================

// StagingSuffix ends the name of every staging file.
const StagingSuffix = ".partial"

// ErrDestinationExists is returned by Publish when the target is taken.
var ErrDestinationExists = errors.New("destination already exists")

// StagingPath returns a unique hidden sibling path for building name in dir
// before it is renamed into place.
func StagingPath(dir, name string) string {
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", name, uuid.NewString(), StagingSuffix))
}

// Publish renames a finished staging file to dst. It never replaces an
// existing file: if dst is taken it fails with ErrDestinationExists and
// the staging file is left for the caller to discard.
func Publish(staging, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%s: %w", filepath.Base(dst), ErrDestinationExists)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(staging, dst)
}

// SameDir reports whether a and b name the same directory once made
// absolute and with symlinks resolved. Both must exist.
func SameDir(a, b string) (bool, error) {
	ra, err := resolveDir(a)
	if err != nil {
		return false, err
	}
	rb, err := resolveDir(b)
	if err != nil {
		return false, err
	}
	if ra == rb {
		return true, nil
	}
	ia, errA := os.Stat(ra)
	ib, errB := os.Stat(rb)
	return errA == nil && errB == nil && os.SameFile(ia, ib), nil
}

func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// WriteFileAtomic writes data to a staging file in the target directory and
// renames it over path. A reader never observes a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	staging := StagingPath(filepath.Dir(path), filepath.Base(path))

	f, err := os.OpenFile(staging, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(staging)
		return fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(staging)
		return fmt.Errorf("failed to sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staging)
		return fmt.Errorf("failed to close staging file: %w", err)
	}
	if err := os.Rename(staging, path); err != nil {
		os.Remove(staging)
		return fmt.Errorf("failed to publish %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MoveFile moves src to dst, replacing dst. If rename fails (e.g.
// cross-device), it copies and then deletes the source.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", filepath.Base(src), err)
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to remove original %s: %w", filepath.Base(src), err)
	}
	return nil
}

// =============================================================================
// MAINTENANCE
// =============================================================================

// CleanStaleDirs removes directories directly inside root whose name starts
// with prefix and that are older than maxAge. These are the temporary
// extraction folders of runs that were killed mid-archive.
//
// RETURNS:
//   - The number of directories removed.
//   - An error if root cannot be read or a directory cannot be removed.
func CleanStaleDirs(root, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to clean %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// CleanStaleStaging removes staging files directly inside dir that are
// older than maxAge. They are left behind when a run is killed between
// writing an output and publishing it.
//
// RETURNS:
//   - The number of files removed.
//   - An error if dir cannot be read or a file cannot be removed.
func CleanStaleStaging(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, StagingSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("failed to clean %s: %w", name, err)
		}
		removed++
	}
	return removed, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
