package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SideneiSilva/editor-po-barry/internal/config"
	"github.com/SideneiSilva/editor-po-barry/internal/cte"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/testutil"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

const unknownTaxID = "11.111.111/0001-11"

type fixture struct {
	cfg      *config.MainConfig
	pipeline *Pipeline
	seen     []types.Outcome
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	require.NoError(t, utils.EnsureDirectories(cfg.Directories()...))

	f := &fixture{cfg: &cfg}
	p, err := New(f.cfg, rules.Default(), rules.DefaultRegistry(),
		WithObserver(func(o types.Outcome) { f.seen = append(f.seen, o) }))
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) in(t *testing.T, c types.Category) string {
	t.Helper()
	dir, err := f.cfg.InputDir(c)
	require.NoError(t, err)
	return dir
}

func (f *fixture) out(t *testing.T, c types.Category) string {
	t.Helper()
	dir, err := f.cfg.OutputDir(c)
	require.NoError(t, err)
	return dir
}

func (f *fixture) ledgerLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func document(region, taxID, po string) []byte {
	return []byte(testutil.CTe(testutil.Doc{CTNumber: "1234", Region: region, TaxID: taxID, PO: po}))
}

type row struct {
	Item    string
	Success bool
	Stage   types.Stage
}

func rows(outcomes []types.Outcome) []row {
	var r []row
	for _, o := range outcomes {
		r = append(r, row{Item: o.Item, Success: o.Success, Stage: o.Stage})
	}
	return r
}

func TestScenarioFreightCacauSP(t *testing.T) {
	f := newFixture(t)
	in := testutil.WriteFile(t, f.in(t, types.CategoryFreight), "a.xml", document("SP", testutil.TaxIDCacau, ""))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.Len(t, outcomes, 1)
	o := outcomes[0]

	require.True(t, o.Success, o.Message())
	assert.Equal(t, types.StageCompleted, o.Stage)
	assert.Equal(t, types.POCode("4504819456/00010"), o.NewPO)
	assert.Equal(t, types.NotFound, o.PreviousPO)
	assert.Equal(t, "1234", o.CTNumber)

	assert.False(t, utils.FileExists(in))
	data, err := os.ReadFile(filepath.Join(f.out(t, types.CategoryFreight), "a.xml"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "4504819456/00010"))

	lines := f.ledgerLines(t, f.pipeline.Ledger().SuccessPath())
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "| FREIGHT | a.xml | PREVIOUS_PO=NOT_FOUND | NEW_PO=4504819456/00010"), lines[0])
	assert.False(t, utils.FileExists(f.pipeline.Ledger().ErrorPath()))
}

func TestScenarioCostChocolateMG(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.in(t, types.CategoryCost), "b.xml", document("mg", testutil.TaxIDChocolate, "4504820480/00010"))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryCost)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success, outcomes[0].Message())
	assert.Equal(t, types.POCode("4504820600/00010"), outcomes[0].NewPO)
	assert.Equal(t, "4504820480/00010", outcomes[0].PreviousPO)

	data, err := os.ReadFile(outcomes[0].OutputPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "4504820480/00010")
	assert.Equal(t, 2, strings.Count(string(data), "4504820600/00010"))
}

func TestScenarioTransferArchive(t *testing.T) {
	f := newFixture(t)
	readme := []byte("manter intacto")
	testutil.WriteFile(t, f.in(t, types.CategoryTransfer), "lote.zip", testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: document("SP", testutil.TaxIDCacau, "4504820481/00010")},
		testutil.Member{Name: "b.xml", Content: document("SP", testutil.TaxIDCacau, "")},
		testutil.Member{Name: "c.xml", Content: document("SP", testutil.TaxIDCacau, "4504820481/00010")},
		testutil.Member{Name: "leia.txt", Content: readme},
	))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryTransfer)
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	require.True(t, o.Success, o.Message())
	assert.Equal(t, types.KindArchive, o.Kind)
	assert.Equal(t, 3, o.Documents)

	lines := f.ledgerLines(t, f.pipeline.Ledger().SuccessPath())
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0],
		"| TRANSFER | lote.zip | TOTAL_DOCS=3 | PREVIOUS_PO=[2x 4504820481/00010, 1x NOT_FOUND] | NEW_PO=[3x 4504819466/00010]"),
		lines[0])

	contents, order := testutil.ReadZip(t, filepath.Join(f.out(t, types.CategoryTransfer), "lote.zip"))
	assert.Equal(t, []string{"a.xml", "b.xml", "c.xml", "leia.txt"}, order)
	assert.Equal(t, readme, contents["leia.txt"])

	entries, err := os.ReadDir(f.cfg.TempPath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestScenarioUnknownPayer(t *testing.T) {
	f := newFixture(t)
	in := testutil.WriteFile(t, f.in(t, types.CategoryFreight), "c.xml", document("SP", unknownTaxID, ""))
	before, err := os.ReadFile(in)
	require.NoError(t, err)

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.False(t, o.Success)
	assert.Equal(t, types.StageResolving, o.Stage)
	assert.ErrorIs(t, o.Err, rules.ErrUnknownPayer)

	after, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.False(t, utils.FileExists(filepath.Join(f.out(t, types.CategoryFreight), "c.xml")))

	lines := f.ledgerLines(t, f.pipeline.Ledger().ErrorPath())
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "| FREIGHT | c.xml | ERROR=unknown payer tax ID 11111111000111"), lines[0])
	assert.False(t, utils.FileExists(f.pipeline.Ledger().SuccessPath()))
}

func TestFailureStages(t *testing.T) {
	f := newFixture(t)
	dir := f.in(t, types.CategoryCost)
	testutil.WriteFile(t, dir, "1-no-region.xml", document("", testutil.TaxIDCacau, ""))
	testutil.WriteFile(t, dir, "2-no-rule.xml", document("RJ", testutil.TaxIDCacau, ""))
	testutil.WriteFile(t, dir, "3-no-root.xml", []byte(`<cteProc xmlns="`+cte.Namespace+`"><UFEnv>SP</UFEnv><rem><CNPJ>33163908010561</CNPJ></rem></cteProc>`))
	testutil.WriteFile(t, dir, "4-ok.xml", document("SP", testutil.TaxIDCacau, ""))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryCost)

	// Items are visited in name order.
	want := []row{
		{Item: "1-no-region.xml", Stage: types.StageExtracting},
		{Item: "2-no-rule.xml", Stage: types.StageResolving},
		{Item: "3-no-root.xml", Stage: types.StageMutating},
		{Item: "4-ok.xml", Success: true, Stage: types.StageCompleted},
	}
	if diff := cmp.Diff(want, rows(outcomes)); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	assert.ErrorIs(t, outcomes[0].Err, cte.ErrExtraction)
	assert.ErrorIs(t, outcomes[1].Err, rules.ErrMissingRule)
	assert.ErrorIs(t, outcomes[2].Err, cte.ErrNoRootMarker)

	assert.Len(t, f.ledgerLines(t, f.pipeline.Ledger().ErrorPath()), 3)
	assert.Len(t, f.ledgerLines(t, f.pipeline.Ledger().SuccessPath()), 1)

	remaining, err := Pending(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}

func TestArchiveFailsAsUnit(t *testing.T) {
	f := newFixture(t)
	data := testutil.Zip(t,
		testutil.Member{Name: "a.xml", Content: document("SP", testutil.TaxIDCacau, "")},
		testutil.Member{Name: "notas/b.xml", Content: document("SP", unknownTaxID, "")},
	)
	in := testutil.WriteFile(t, f.in(t, types.CategoryTransfer), "lote.zip", data)

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryTransfer)
	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.False(t, o.Success)
	assert.Equal(t, types.StageResolving, o.Stage)
	assert.ErrorIs(t, o.Err, rules.ErrUnknownPayer)
	assert.Equal(t, "archive lote.zip: member notas/b.xml: unknown payer tax ID 11111111000111", o.Message())

	after, err := os.ReadFile(in)
	require.NoError(t, err)
	assert.Equal(t, data, after)

	entries, err := os.ReadDir(f.out(t, types.CategoryTransfer))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCorruptArchiveStage(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.in(t, types.CategoryFreight), "ruim.zip", []byte("PK not really"))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.Len(t, outcomes, 1)
	assert.Equal(t, types.StageExtracting, outcomes[0].Stage)
}

func TestCompanionsTravelAndOthersAreIgnored(t *testing.T) {
	f := newFixture(t)
	dir := f.in(t, types.CategoryFreight)
	testutil.WriteFile(t, dir, "nota.xml", document("MG", testutil.TaxIDChocolate, ""))
	testutil.WriteFile(t, dir, "nota.pdf", []byte("%PDF"))
	testutil.WriteFile(t, dir, "planilha.xlsx", []byte("x"))
	testutil.WriteFile(t, dir, "sub/dentro.xml", document("MG", testutil.TaxIDChocolate, ""))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Success, outcomes[0].Message())
	assert.Equal(t, types.POCode("4504820480/00010"), outcomes[0].NewPO)

	out := f.out(t, types.CategoryFreight)
	assert.FileExists(t, filepath.Join(out, "nota.xml"))
	assert.FileExists(t, filepath.Join(out, "nota.pdf"))
	assert.NoFileExists(t, filepath.Join(dir, "nota.pdf"))
	assert.FileExists(t, filepath.Join(dir, "planilha.xlsx"))
	assert.FileExists(t, filepath.Join(dir, "sub", "dentro.xml"))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no staging files may remain")
}

func TestCompanionsStayWithFailedDocument(t *testing.T) {
	f := newFixture(t)
	dir := f.in(t, types.CategoryFreight)
	testutil.WriteFile(t, dir, "nota.xml", document("SP", unknownTaxID, ""))
	testutil.WriteFile(t, dir, "nota.pdf", []byte("%PDF"))

	f.pipeline.RunCategory(context.Background(), types.CategoryFreight)

	assert.FileExists(t, filepath.Join(dir, "nota.pdf"))
	assert.NoFileExists(t, filepath.Join(f.out(t, types.CategoryFreight), "nota.pdf"))
}

func TestRunSweepsAllCategoriesInOrder(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.in(t, types.CategoryCost), "c.xml", document("SP", testutil.TaxIDChocolate, ""))
	testutil.WriteFile(t, f.in(t, types.CategoryFreight), "f.xml", document("SP", testutil.TaxIDChocolate, ""))
	testutil.WriteFile(t, f.in(t, types.CategoryTransfer), "t.xml", document("SP", unknownTaxID, ""))

	s := f.pipeline.Run(context.Background())

	assert.NotEmpty(t, s.RunID)
	assert.False(t, s.Interrupted)
	assert.Equal(t, 2, s.Succeeded())
	assert.Equal(t, 1, s.Failed())
	assert.Equal(t, 2, s.Documents())

	want := []CategoryCount{
		{Category: types.CategoryFreight, Succeeded: 1},
		{Category: types.CategoryTransfer, Failed: 1},
		{Category: types.CategoryCost, Succeeded: 1},
	}
	if diff := cmp.Diff(want, s.ByCategory()); diff != "" {
		t.Errorf("ByCategory mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, f.seen, 3)
	assert.Equal(t, []string{"f.xml", "t.xml", "c.xml"}, []string{f.seen[0].Item, f.seen[1].Item, f.seen[2].Item})
	assert.Equal(t, types.POCode("4504820597/00010"), s.Outcomes[2].NewPO)
}

func TestRunCancelledLeavesItems(t *testing.T) {
	f := newFixture(t)
	in := testutil.WriteFile(t, f.in(t, types.CategoryFreight), "a.xml", document("SP", testutil.TaxIDCacau, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := f.pipeline.Run(ctx)

	assert.True(t, s.Interrupted)
	assert.Empty(t, s.Outcomes)
	assert.FileExists(t, in)
}

func TestReprocessingAppliesNewCategory(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.in(t, types.CategoryFreight), "a.xml", document("SP", testutil.TaxIDCacau, ""))
	first := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.True(t, first[0].Success)

	require.NoError(t, utils.MoveFile(first[0].OutputPath, filepath.Join(f.in(t, types.CategoryCost), "a.xml")))
	second := f.pipeline.RunCategory(context.Background(), types.CategoryCost)
	require.Len(t, second, 1)
	require.True(t, second[0].Success, second[0].Message())
	assert.Equal(t, "4504819456/00010", second[0].PreviousPO)
	assert.Equal(t, types.POCode("4504819456/00020"), second[0].NewPO)
}

func TestRunRemovesStaleStagingFiles(t *testing.T) {
	f := newFixture(t)
	out := f.out(t, types.CategoryTransfer)
	stale := utils.StagingPath(out, "lote.zip")
	require.NoError(t, os.WriteFile(stale, []byte("half an archive"), 0o644))
	published := testutil.WriteFile(t, out, "pronto.zip", []byte("done"))
	f.cfg.StaleTempAge = -1

	f.pipeline.Run(context.Background())
	assert.NoFileExists(t, stale)
	assert.FileExists(t, published)
}

func TestRunKeepsFreshStagingFiles(t *testing.T) {
	f := newFixture(t)
	fresh := utils.StagingPath(f.out(t, types.CategoryFreight), "a.xml")
	require.NoError(t, os.WriteFile(fresh, []byte("in progress"), 0o644))

	f.pipeline.Run(context.Background())
	assert.FileExists(t, fresh)
}

func TestExistingOutputIsNeverReplaced(t *testing.T) {
	f := newFixture(t)
	in := f.in(t, types.CategoryFreight)
	out := f.out(t, types.CategoryFreight)
	src := testutil.WriteFile(t, in, "a.xml", document("SP", testutil.TaxIDCacau, ""))
	earlier := testutil.WriteFile(t, out, "a.xml", []byte("earlier run"))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, types.StageRelocating, outcomes[0].Stage)
	assert.ErrorIs(t, outcomes[0].Err, utils.ErrDestinationExists)
	assert.FileExists(t, src)

	data, err := os.ReadFile(earlier)
	require.NoError(t, err)
	assert.Equal(t, "earlier run", string(data))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no staging file may remain")
}

func TestExistingCompanionIsNeverReplaced(t *testing.T) {
	f := newFixture(t)
	in := f.in(t, types.CategoryFreight)
	out := f.out(t, types.CategoryFreight)
	src := testutil.WriteFile(t, in, "nota.xml", document("SP", testutil.TaxIDCacau, ""))
	pdf := testutil.WriteFile(t, in, "nota.pdf", []byte("new pdf"))
	earlier := testutil.WriteFile(t, out, "nota.pdf", []byte("old pdf"))

	outcomes := f.pipeline.RunCategory(context.Background(), types.CategoryFreight)
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, utils.ErrDestinationExists)
	assert.FileExists(t, src)
	assert.FileExists(t, pdf)
	assert.NoFileExists(t, filepath.Join(out, "nota.xml"))

	data, err := os.ReadFile(earlier)
	require.NoError(t, err)
	assert.Equal(t, "old pdf", string(data))
}

func TestRunRemovesStaleTempDirs(t *testing.T) {
	f := newFixture(t)
	stale := filepath.Join(f.cfg.TempPath(), "ZIP_interrupted")
	require.NoError(t, os.MkdirAll(stale, 0o755))
	f.cfg.StaleTempAge = -1

	f.pipeline.Run(context.Background())
	assert.NoDirExists(t, stale)
}

func TestRunOnlyGivenCategories(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.in(t, types.CategoryFreight), "f.xml", document("SP", testutil.TaxIDCacau, ""))
	left := testutil.WriteFile(t, f.in(t, types.CategoryCost), "c.xml", document("SP", testutil.TaxIDCacau, ""))

	s := f.pipeline.Run(context.Background(), types.CategoryFreight)
	require.Len(t, s.Outcomes, 1)
	assert.Equal(t, "f.xml", s.Outcomes[0].Item)
	assert.FileExists(t, left)

	n, err := Pending(f.in(t, types.CategoryCost))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
