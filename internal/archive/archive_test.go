package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SideneiSilva/editor-po-barry/internal/cte"
	"github.com/SideneiSilva/editor-po-barry/internal/testutil"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

const transferCacauSP types.POCode = "4504819466/00010"

func stampWith(po types.POCode) StampFunc {
	return func(_ string, content []byte) (cte.Mutation, error) {
		return cte.Mutate(content, po)
	}
}

type dirs struct {
	input, output, temp string
}

func newDirs(t *testing.T) dirs {
	t.Helper()
	root := t.TempDir()
	d := dirs{
		input:  filepath.Join(root, "in"),
		output: filepath.Join(root, "out"),
		temp:   filepath.Join(root, "tmp"),
	}
	require.NoError(t, utils.EnsureDirectories(d.input, d.output, d.temp))
	return d
}

func doc(po string) []byte {
	return []byte(testutil.CTe(testutil.Doc{CTNumber: "1", Region: "SP", TaxID: testutil.TaxIDCacau, PO: po}))
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "expected %s to be empty", dir)
}

func TestRepackageStampsEveryDocument(t *testing.T) {
	d := newDirs(t)
	readme := []byte("leia-me\r\n")
	pdf := []byte("%PDF-1.4 binary\x00\x01")
	data := testutil.Zip(t,
		testutil.Member{Name: "notas/"},
		testutil.Member{Name: "notas/a.xml", Content: doc("4504820481/00010")},
		testutil.Member{Name: "notas/a.pdf", Content: pdf},
		testutil.Member{Name: "b.XML", Content: doc("")},
		testutil.Member{Name: "c.xml", Content: doc("4504820481/00010")},
		testutil.Member{Name: "LEIAME.txt", Content: readme},
	)
	in := testutil.WriteFile(t, d.input, "lote.zip", data)

	res, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	require.NoError(t, err)

	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 6, res.Members)
	assert.Equal(t, "2x 4504820481/00010, 1x NOT_FOUND", res.Previous.String())
	assert.Equal(t, "3x 4504819466/00010", res.New.String())
	assert.Equal(t, filepath.Join(d.output, "lote.zip"), res.OutputPath)

	assert.False(t, utils.FileExists(in), "input archive must be removed")
	assertEmptyDir(t, d.temp)

	contents, order := testutil.ReadZip(t, res.OutputPath)
	assert.Equal(t, []string{"notas/", "notas/a.xml", "notas/a.pdf", "b.XML", "c.xml", "LEIAME.txt"}, order)
	assert.Equal(t, pdf, contents["notas/a.pdf"])
	assert.Equal(t, readme, contents["LEIAME.txt"])
	for _, name := range []string{"notas/a.xml", "b.XML", "c.xml"} {
		assert.Contains(t, string(contents[name]), string(transferCacauSP), name)
		assert.NotContains(t, string(contents[name]), "4504820481/00010", name)
	}
}

func TestRepackagePreservesHeaders(t *testing.T) {
	d := newDirs(t)
	in := testutil.WriteFile(t, d.input, "lote.zip", testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: doc("")},
	))

	orig, err := zip.OpenReader(in)
	require.NoError(t, err)
	want := orig.File[0].FileHeader
	require.NoError(t, orig.Close())

	res, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	require.NoError(t, err)

	got, err := zip.OpenReader(res.OutputPath)
	require.NoError(t, err)
	defer got.Close()
	require.Len(t, got.File, 1)
	assert.Equal(t, want.Name, got.File[0].Name)
	assert.Equal(t, want.Method, got.File[0].Method)
	assert.True(t, want.Modified.Equal(got.File[0].Modified))
}

func TestRepackageFailureLeavesInputUntouched(t *testing.T) {
	d := newDirs(t)
	data := testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: doc("4504820481/00010")},
		testutil.Member{Name: "b.xml", Content: []byte("<semraiz/>")},
	)
	in := testutil.WriteFile(t, d.input, "lote.zip", data)

	_, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	require.Error(t, err)
	assert.ErrorIs(t, err, cte.ErrNoRootMarker)
	assert.Contains(t, err.Error(), "b.xml")

	after, readErr := os.ReadFile(in)
	require.NoError(t, readErr)
	assert.True(t, bytes.Equal(data, after), "input archive must be byte-identical")
	assertEmptyDir(t, d.output)
	assertEmptyDir(t, d.temp)
}

func TestRepackageStampError(t *testing.T) {
	d := newDirs(t)
	in := testutil.WriteFile(t, d.input, "lote.zip", testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: doc("")},
	))
	boom := errors.New("unknown payer")

	_, err := New(d.temp, nil).Repackage(context.Background(), in, d.output,
		func(string, []byte) (cte.Mutation, error) { return cte.Mutation{}, boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, utils.FileExists(in))
	assertEmptyDir(t, d.output)
}

func TestRepackageCorruptArchive(t *testing.T) {
	d := newDirs(t)
	in := testutil.WriteFile(t, d.input, "lote.zip", []byte("not a zip"))

	_, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	assert.ErrorIs(t, err, ErrIO)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "open archive", ioErr.Op)
	assert.True(t, utils.FileExists(in))
}

func TestRepackageRejectsEscapingMembers(t *testing.T) {
	for _, name := range []string{"../evil.xml", "a/../../evil.xml"} {
		t.Run(name, func(t *testing.T) {
			d := newDirs(t)
			in := testutil.WriteFile(t, d.input, "lote.zip", testutil.Zip(t,
				testutil.Member{Name: name, Content: doc("")},
			))

			_, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
			assert.ErrorIs(t, err, ErrIO)
			assert.True(t, utils.FileExists(in))
			assert.False(t, utils.FileExists(filepath.Join(filepath.Dir(d.temp), "evil.xml")))
		})
	}
}

func TestRepackageRejectsDuplicateMembers(t *testing.T) {
	d := newDirs(t)
	in := testutil.WriteFile(t, d.input, "lote.zip", testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: doc("")},
		testutil.Member{Name: "a.xml", Content: doc("")},
	))

	_, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	assert.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRepackageArchiveWithoutDocuments(t *testing.T) {
	d := newDirs(t)
	in := testutil.WriteFile(t, d.input, "lote.zip", testutil.Zip(t,
		testutil.Member{Name: "LEIAME.txt", Content: []byte("x")},
	))

	res, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	require.NoError(t, err)
	assert.Zero(t, res.Documents)
	assert.Empty(t, res.New.String())
	assert.True(t, utils.FileExists(res.OutputPath))
}

func TestRepackageCanceled(t *testing.T) {
	d := newDirs(t)
	in := testutil.WriteFile(t, d.input, "lote.zip", testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: doc("")},
	))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(d.temp, nil).Repackage(ctx, in, d.output, stampWith(transferCacauSP))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, utils.FileExists(in))
	assertEmptyDir(t, d.output)
}

func TestRepackageNeverReplacesExistingOutput(t *testing.T) {
	d := newDirs(t)
	data := testutil.Zip(t, testutil.Member{Name: "a.xml", Content: doc("")})
	in := testutil.WriteFile(t, d.input, "lote.zip", data)
	earlier := testutil.WriteFile(t, d.output, "lote.zip", []byte("earlier run"))

	_, err := New(d.temp, nil).Repackage(context.Background(), in, d.output, stampWith(transferCacauSP))
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrDestinationExists)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, types.StageRelocating, ioErr.Stage())

	after, readErr := os.ReadFile(in)
	require.NoError(t, readErr)
	assert.True(t, bytes.Equal(data, after), "input archive must be byte-identical")

	kept, readErr := os.ReadFile(earlier)
	require.NoError(t, readErr)
	assert.Equal(t, "earlier run", string(kept))

	entries, readErr := os.ReadDir(d.output)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "staging archive must be discarded")
	assertEmptyDir(t, d.temp)
}

func TestRepackageIntoInputFolderKeepsInput(t *testing.T) {
	d := newDirs(t)
	data := testutil.Zip(t, testutil.Member{Name: "a.xml", Content: doc("")})
	in := testutil.WriteFile(t, d.input, "lote.zip", data)

	_, err := New(d.temp, nil).Repackage(context.Background(), in, d.input, stampWith(transferCacauSP))
	assert.ErrorIs(t, err, utils.ErrDestinationExists)

	after, readErr := os.ReadFile(in)
	require.NoError(t, readErr)
	assert.True(t, bytes.Equal(data, after))
}
