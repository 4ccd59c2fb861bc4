// =============================================================================
// Freight PO Editor - Archive Repackager
// =============================================================================
//
// This module re-stamps every CT-e document inside a ZIP archive and
// publishes a rebuilt archive with the same layout.
//
// REPACKAGING PIPELINE:
//   1. Create a private temp directory (<temp_root>/ZIP_<uuid>)
//   2. Extract every member, preserving internal paths
//   3. Stamp every .xml member through the caller's StampFunc
//   4. Rebuild the archive under a staging name in the output directory,
//      in the original member order, with the original names, times and
//      compression methods; other members are copied unchanged
//   5. Rename the staging archive to its final name
//   6. Delete the input archive
//
// ALL OR NOTHING:
//   Any failure before step 6 removes the staging archive and leaves the
//   input archive untouched. A failure deleting the input withdraws the
//   published output. The temp directory is removed on every path.
//
// =============================================================================

package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SideneiSilva/editor-po-barry/internal/cte"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

// TempPrefix starts the name of every extraction directory.
const TempPrefix = "ZIP_"

// StampFunc stamps one document member. name is the member path inside
// the archive.
type StampFunc func(name string, content []byte) (cte.Mutation, error)

// Result summarizes a repackaged archive.
type Result struct {
	// Documents is the number of document members stamped.
	Documents int

	// Members is the total number of members, documents included.
	Members int

	// Previous and New count the PO codes before and after stamping.
	Previous types.Tally
	New      types.Tally

	// OutputPath is the published archive.
	OutputPath string
}

// Repackager rebuilds archives. It holds no per-archive state and can be
// reused for a whole sweep.
type Repackager struct {
	// TempRoot is where extraction directories are created.
	TempRoot string

	// DocumentExt selects the members to stamp. Default: ".xml".
	DocumentExt string

	logger *zap.Logger
}

// New creates a Repackager extracting under tempRoot.
func New(tempRoot string, logger *zap.Logger) *Repackager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repackager{TempRoot: tempRoot, DocumentExt: ".xml", logger: logger}
}

// Repackage stamps every document in the archive at archivePath and moves
// the rebuilt archive into outputDir under the same name. An archive of that
// name already in outputDir is never replaced.
func (r *Repackager) Repackage(ctx context.Context, archivePath, outputDir string, stamp StampFunc) (Result, error) {
	var res Result
	name := filepath.Base(archivePath)

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return res, &IOError{Op: "open archive", Path: name, Err: err}
	}
	readerOpen := true
	defer func() {
		if readerOpen {
			zr.Close()
		}
	}()

	workDir, cleanup, err := r.workspace()
	if err != nil {
		return res, err
	}
	defer cleanup()

	// Extract.
	if err := r.extract(ctx, zr.File, workDir); err != nil {
		return res, err
	}

	// Stamp documents in place inside the workspace.
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !r.isDocument(f) {
			continue
		}
		path := filepath.Join(workDir, filepath.FromSlash(f.Name))
		content, err := os.ReadFile(path)
		if err != nil {
			return res, &IOError{Op: "read member", Path: f.Name, Err: err}
		}
		m, err := stamp(f.Name, content)
		if err != nil {
			return res, fmt.Errorf("member %s: %w", f.Name, err)
		}
		if err := os.WriteFile(path, m.Content, 0o644); err != nil {
			return res, &IOError{Op: "write member", Path: f.Name, Err: err}
		}
		res.Previous.Add(m.Previous)
		res.New.Add(string(m.New))
		res.Documents++

		r.logger.Debug("Stamped archive member",
			zap.String("archive", name),
			zap.String("member", f.Name),
			zap.String("previous_po", m.Previous),
			zap.String("new_po", string(m.New)))
	}

	// Rebuild under a staging name, then publish.
	staging := utils.StagingPath(outputDir, name)
	if err := r.rebuild(zr.File, workDir, staging, res.Documents); err != nil {
		os.Remove(staging)
		return res, err
	}
	res.Members = len(zr.File)

	final := filepath.Join(outputDir, name)
	if err := utils.Publish(staging, final); err != nil {
		os.Remove(staging)
		return res, &IOError{Op: "publish archive", Path: name, Err: err}
	}

	zr.Close()
	readerOpen = false

	if err := os.Remove(archivePath); err != nil {
		if rmErr := os.Remove(final); rmErr != nil {
			r.logger.Error("Could not withdraw published archive",
				zap.String("archive", name), zap.Error(rmErr))
		}
		return res, &IOError{Op: "remove input archive", Path: name, Err: err}
	}

	res.OutputPath = final
	return res, nil
}

// workspace creates the private extraction directory and returns its
// cleanup function.
func (r *Repackager) workspace() (string, func(), error) {
	dir := filepath.Join(r.TempRoot, TempPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, &IOError{Op: "create temp dir", Path: dir, Err: err}
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("Failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}

func (r *Repackager) isDocument(f *zip.File) bool {
	return !f.FileInfo().IsDir() && utils.HasExtension(f.Name, r.DocumentExt)
}

// extract writes every member under dir, rejecting names that would land
// outside it and names that appear twice.
func (r *Repackager) extract(ctx context.Context, files []*zip.File, dir string) error {
	seen := make(map[string]bool, len(files))
	root := filepath.Clean(dir) + string(os.PathSeparator)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(dir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target+string(os.PathSeparator), root) || target == filepath.Clean(dir) {
			return &IOError{Op: "extract", Path: f.Name, Err: errors.New("member path escapes archive root")}
		}
		if seen[target] {
			return &IOError{Op: "extract", Path: f.Name, Err: errors.New("duplicate member name")}
		}
		seen[target] = true

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &IOError{Op: "extract", Path: f.Name, Err: err}
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &IOError{Op: "extract", Path: f.Name, Err: err}
		}
		if err := extractFile(f, target); err != nil {
			return &IOError{Op: "extract", Path: f.Name, Err: err}
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// rebuild writes a new archive at dest mirroring files, with member
// content taken from the workspace. Members that were not stamped must
// still carry their original CRC, which proves they are byte-identical.
func (r *Repackager) rebuild(files []*zip.File, workDir, dest string, wantDocuments int) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return &IOError{Op: "create archive", Path: filepath.Base(dest), Err: err}
	}
	zw := zip.NewWriter(out)

	fail := func(op, member string, err error) error {
		zw.Close()
		out.Close()
		return &IOError{Op: op, Path: member, Err: err}
	}

	documents := 0
	for _, f := range files {
		hdr := &zip.FileHeader{
			Name:           f.Name,
			Comment:        f.Comment,
			Method:         f.Method,
			Modified:       f.Modified,
			CreatorVersion: f.CreatorVersion,
			ExternalAttrs:  f.ExternalAttrs,
		}

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fail("add member", f.Name, err)
		}
		if f.FileInfo().IsDir() {
			continue
		}

		content, err := os.ReadFile(filepath.Join(workDir, filepath.FromSlash(f.Name)))
		if err != nil {
			return fail("reread member", f.Name, err)
		}
		if r.isDocument(f) {
			documents++
		} else if crc32.ChecksumIEEE(content) != f.CRC32 {
			return fail("verify member", f.Name, errors.New("content changed during repackaging"))
		}
		if _, err := w.Write(content); err != nil {
			return fail("pack member", f.Name, err)
		}
	}

	if documents != wantDocuments {
		return fail("verify archive", "", fmt.Errorf("rebuilt %d documents, stamped %d", documents, wantDocuments))
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return &IOError{Op: "finish archive", Path: filepath.Base(dest), Err: err}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return &IOError{Op: "sync archive", Path: filepath.Base(dest), Err: err}
	}
	if err := out.Close(); err != nil {
		return &IOError{Op: "close archive", Path: filepath.Base(dest), Err: err}
	}
	return nil
}
