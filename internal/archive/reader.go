package archive

import (
	"archive/zip"
	"context"
	"io"
	"path/filepath"
)

// VisitFunc receives one document member of an archive.
type VisitFunc func(name string, content []byte) error

// Documents calls fn for every document member of the archive at
// archivePath, in member order, without extracting anything to disk. It
// stops at the first error fn returns.
func (r *Repackager) Documents(ctx context.Context, archivePath string, fn VisitFunc) error {
	name := filepath.Base(archivePath)

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return &IOError{Op: "open archive", Path: name, Err: err}
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.isDocument(f) {
			continue
		}
		content, err := readMember(f)
		if err != nil {
			return &IOError{Op: "read member", Path: f.Name, Err: err}
		}
		if err := fn(f.Name, content); err != nil {
			return err
		}
	}
	return nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
