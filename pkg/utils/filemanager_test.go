package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListFilesIsNotRecursive(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "b.xml"), "b")
	write(t, filepath.Join(dir, "a.zip"), "a")
	write(t, filepath.Join(dir, "sub", "c.xml"), "c")

	files, err := ListFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.zip"), filepath.Join(dir, "b.xml")}, files)
}

func TestListFilesMissingDir(t *testing.T) {
	_, err := ListFiles(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestCompanions(t *testing.T) {
	dir := t.TempDir()
	xml := filepath.Join(dir, "nota.xml")
	write(t, xml, "x")
	write(t, filepath.Join(dir, "nota.PDF"), "p")
	write(t, filepath.Join(dir, "nota.txt"), "t")
	write(t, filepath.Join(dir, "nota2.pdf"), "p")

	got := Companions(xml, []string{".pdf"})
	assert.Equal(t, []string{filepath.Join(dir, "nota.PDF")}, got)
	assert.Empty(t, Companions(xml, nil))
}

func TestWriteFileAtomicLeavesNoStaging(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.xml")
	write(t, target, "old")

	require.NoError(t, WriteFileAtomic(target, []byte("new"), 0o644))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMoveFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "a.pdf")
	dst := filepath.Join(t.TempDir(), "a.pdf")
	write(t, src, "pdf")

	require.NoError(t, MoveFile(src, dst))
	assert.False(t, FileExists(src))
	assert.True(t, FileExists(dst))
}

func TestStagingPathIsHiddenAndUnique(t *testing.T) {
	a := StagingPath("/out", "lote.zip")
	b := StagingPath("/out", "lote.zip")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(filepath.Base(a), ".lote.zip."))
	assert.Equal(t, "/out", filepath.Dir(a))
}

func TestCleanStaleDirs(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, "ZIP_old")
	fresh := filepath.Join(root, "ZIP_fresh")
	other := filepath.Join(root, "keep")
	for _, d := range []string{old, fresh, other} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := CleanStaleDirs(root, "ZIP_", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, FileExists(old))
	assert.True(t, FileExists(fresh))
	assert.True(t, FileExists(other))

	n, err = CleanStaleDirs(filepath.Join(root, "missing"), "ZIP_", time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPublishNeverReplaces(t *testing.T) {
	dir := t.TempDir()
	staging := StagingPath(dir, "a.xml")
	dst := filepath.Join(dir, "a.xml")
	write(t, staging, "new")

	require.NoError(t, Publish(staging, dst))
	assert.False(t, FileExists(staging))

	again := StagingPath(dir, "a.xml")
	write(t, again, "newer")
	err := Publish(again, dst)
	assert.ErrorIs(t, err, ErrDestinationExists)
	assert.True(t, FileExists(again), "staging is left to the caller")

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCleanStaleStaging(t *testing.T) {
	dir := t.TempDir()
	old := StagingPath(dir, "lote.zip")
	fresh := StagingPath(dir, "a.xml")
	done := filepath.Join(dir, "b.xml")
	visible := filepath.Join(dir, "notes.partial")
	for _, p := range []string{old, fresh, done, visible} {
		write(t, p, "x")
	}
	past := time.Now().Add(-48 * time.Hour)
	for _, p := range []string{old, done, visible} {
		require.NoError(t, os.Chtimes(p, past, past))
	}

	n, err := CleanStaleStaging(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, FileExists(old))
	assert.True(t, FileExists(fresh))
	assert.True(t, FileExists(done))
	assert.True(t, FileExists(visible))

	n, err = CleanStaleStaging(filepath.Join(dir, "missing"), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSameDir(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a")
	b := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(a, 0o755))
	require.NoError(t, os.MkdirAll(b, 0o755))

	same, err := SameDir(a, filepath.Join(a, "..", "a"))
	require.NoError(t, err)
	assert.True(t, same)

	same, err = SameDir(a, b)
	require.NoError(t, err)
	assert.False(t, same)

	link := filepath.Join(root, "link")
	if err := os.Symlink(a, link); err == nil {
		same, err = SameDir(a, link)
		require.NoError(t, err)
		assert.True(t, same)
	}

	_, err = SameDir(a, filepath.Join(root, "missing"))
	assert.Error(t, err)
}
