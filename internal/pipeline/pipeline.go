// =============================================================================
// Freight PO Editor - Pipeline Module
// =============================================================================
//
// This module orchestrates a sweep: every item dropped in a category's
// intake folder is stamped with the PO its rules call for and moved to the
// category's output folder.
//
// PER-ITEM PIPELINE (loose .xml document):
//   1. Read the document                        (extracting)
//   2. Extract region and payer tax ID          (extracting)
//   3. Identify the payer and resolve the PO    (resolving)
//   4. Rewrite the PO tokens in memory          (mutating)
//   5. Write the output, move companions, then
//      remove the input                          (relocating)
//
//   A .zip archive runs steps 1-4 for every document member and is then
//   rebuilt as a whole (see internal/archive). Any other file is ignored.
//
// FAILURE ISOLATION:
//   Every failure becomes a failure outcome recorded in the error ledger.
//   The failed item stays where it was and the sweep moves on. Cancelling
//   the context stops the sweep between items; an item in flight is always
//   finished.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SideneiSilva/editor-po-barry/internal/archive"
	"github.com/SideneiSilva/editor-po-barry/internal/config"
	"github.com/SideneiSilva/editor-po-barry/internal/cte"
	"github.com/SideneiSilva/editor-po-barry/internal/ledger"
	"github.com/SideneiSilva/editor-po-barry/internal/logging"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

const (
	documentExt = ".xml"
	archiveExt  = ".zip"
)

// ItemExtensions lists the file extensions a sweep picks up.
var ItemExtensions = []string{documentExt, archiveExt}

// Observer is called once per finished item, after it was recorded in the
// ledger.
type Observer func(types.Outcome)

// =============================================================================
// PIPELINE STRUCTURE
// =============================================================================

// Pipeline sweeps intake folders. It holds only immutable collaborators
// and is not safe for concurrent sweeps over the same folders.
type Pipeline struct {
	cfg        *config.MainConfig
	table      *rules.Table
	registry   *rules.Registry
	ledger     *ledger.Ledger
	repackager *archive.Repackager
	logger     *zap.Logger
	observer   Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the operational logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithObserver registers a callback for every finished item.
func WithObserver(observer Observer) Option {
	return func(p *Pipeline) { p.observer = observer }
}

// New creates a Pipeline writing its ledgers under cfg.LogPath().
func New(cfg *config.MainConfig, table *rules.Table, registry *rules.Registry, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:      cfg,
		table:    table,
		registry: registry,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.OrNop(p.logger)

	l, err := ledger.New(cfg.LogPath(), cfg.SuccessLog, cfg.ErrorLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	p.ledger = l
	p.repackager = archive.New(cfg.TempPath(), p.logger)

	p.logger.Debug("Pipeline ready",
		zap.Int("rules", len(table.Entries())),
		zap.Int("payers", registry.Len()),
		zap.String("ledger", l.SuccessPath()))

	return p, nil
}

// Ledger returns the ledger every outcome is recorded in.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// =============================================================================
// SWEEPS
// =============================================================================

// Run sweeps the given categories in order, or every category (FREIGHT,
// TRANSFER, COST) when none is given.
func (p *Pipeline) Run(ctx context.Context, categories ...types.Category) Summary {
	if len(categories) == 0 {
		categories = types.AllCategories
	}

	s := Summary{RunID: uuid.NewString(), Started: time.Now()}
	logger := p.logger.With(zap.String("run_id", s.RunID))

	if n, err := utils.CleanStaleDirs(p.cfg.TempPath(), archive.TempPrefix, p.cfg.StaleTempAge); err != nil {
		logger.Warn("Failed to clean stale temp dirs", zap.Error(err))
	} else if n > 0 {
		logger.Info("Removed stale temp dirs", zap.Int("count", n))
	}
	for _, category := range categories {
		if out, err := p.cfg.OutputDir(category); err == nil {
			p.cleanStaging(logger, out)
		}
	}

	for _, category := range categories {
		if ctx.Err() != nil {
			break
		}
		s.Outcomes = append(s.Outcomes, p.RunCategory(ctx, category)...)
	}

	s.Finished = time.Now()
	s.Interrupted = ctx.Err() != nil
	logger.Info("Sweep complete",
		zap.Int("succeeded", s.Succeeded()),
		zap.Int("failed", s.Failed()),
		zap.Bool("interrupted", s.Interrupted),
		zap.Duration("elapsed", s.Finished.Sub(s.Started)))
	return s
}

// RunCategory sweeps the intake folder of one category.
func (p *Pipeline) RunCategory(ctx context.Context, category types.Category) []types.Outcome {
	in, err := p.cfg.InputDir(category)
	if err != nil {
		p.logger.Error("No intake folder", zap.String("category", string(category)), zap.Error(err))
		return nil
	}
	out, err := p.cfg.OutputDir(category)
	if err != nil {
		p.logger.Error("No output folder", zap.String("category", string(category)), zap.Error(err))
		return nil
	}

	resolver := RuleResolver{Category: category, Table: p.table, Registry: p.registry}
	return p.sweep(ctx, category, in, out, resolver)
}

// RunSelected stamps the operator-chosen code into every item of inDir and
// moves the results to outDir. Documents of another region fail with
// ErrRegionMismatch and are left in place.
//
// RETURNS:
//   - One outcome per item.
//   - ErrSameFolder if inDir and outDir are the same directory, or an
//     error if either folder is unusable. Nothing is processed then.
func (p *Pipeline) RunSelected(ctx context.Context, inDir, outDir string, resolver FixedResolver) ([]types.Outcome, error) {
	if err := utils.EnsureDirectories(outDir); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}
	same, err := utils.SameDir(inDir, outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to compare folders: %w", err)
	}
	if same {
		return nil, fmt.Errorf("%s: %w", outDir, ErrSameFolder)
	}

	p.cleanStaging(p.logger, outDir)
	return p.sweep(ctx, types.CategorySelected, inDir, outDir, resolver), nil
}

// cleanStaging removes staging files a killed run left in an output folder.
func (p *Pipeline) cleanStaging(logger *zap.Logger, dir string) {
	if n, err := utils.CleanStaleStaging(dir, p.cfg.StaleTempAge); err != nil {
		logger.Warn("Failed to clean stale staging files", zap.String("dir", dir), zap.Error(err))
	} else if n > 0 {
		logger.Info("Removed stale staging files", zap.String("dir", dir), zap.Int("count", n))
	}
}

// Pending counts the items a sweep of dir would process.
func Pending(dir string) (int, error) {
	files, err := utils.ListFiles(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if isItem(f) {
			n++
		}
	}
	return n, nil
}

func isItem(path string) bool {
	return utils.HasExtension(path, documentExt) || utils.HasExtension(path, archiveExt)
}

func (p *Pipeline) sweep(ctx context.Context, category types.Category, inDir, outDir string, resolver Resolver) []types.Outcome {
	logger := p.logger.With(zap.String("category", string(category)))

	files, err := utils.ListFiles(inDir)
	if err != nil {
		logger.Error("Failed to scan intake folder", zap.Error(err))
		return nil
	}

	var outcomes []types.Outcome
	for i, path := range files {
		if ctx.Err() != nil {
			logger.Info("Sweep interrupted", zap.Int("unvisited", len(files)-i))
			break
		}

		var o types.Outcome
		switch {
		case utils.HasExtension(path, documentExt):
			o = p.processDocument(category, path, outDir, resolver)
		case utils.HasExtension(path, archiveExt):
			o = p.processArchive(ctx, category, path, outDir, resolver)
		default:
			logger.Debug("Ignoring file", zap.String("item", filepath.Base(path)))
			continue
		}

		p.finish(logger, o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (p *Pipeline) finish(logger *zap.Logger, o types.Outcome) {
	if err := p.ledger.Record(o); err != nil {
		logger.Error("Failed to write ledger", zap.String("item", o.Item), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("item", o.Item),
		zap.String("kind", string(o.Kind)),
		zap.String("stage", string(o.Stage)),
		zap.Duration("elapsed", o.Duration),
	}
	if o.CTNumber != "" {
		fields = append(fields, zap.String("ct_number", o.CTNumber))
	}
	switch {
	case !o.Success:
		logger.Warn("Item failed", append(fields, zap.Error(o.Err))...)
	case o.Kind == types.KindArchive:
		logger.Info("Archive stamped", append(fields,
			zap.Int("documents", o.Documents),
			zap.String("previous_po", o.Previous.String()),
			zap.String("new_po", o.New.String()))...)
	default:
		logger.Info("Document stamped", append(fields,
			zap.String("previous_po", o.PreviousPO),
			zap.String("new_po", string(o.NewPO)))...)
	}

	if p.observer != nil {
		p.observer(o)
	}
}

// =============================================================================
// ITEM PROCESSING
// =============================================================================

func (p *Pipeline) processDocument(category types.Category, path, outDir string, resolver Resolver) types.Outcome {
	start := time.Now()
	o := types.Outcome{
		Category: category,
		Item:     filepath.Base(path),
		Path:     path,
		Kind:     types.KindDocument,
		Stage:    types.StageDiscovered,
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return failed(o, start, &stageError{stage: types.StageExtracting, err: err})
	}

	attrs, m, err := stamp(content, resolver)
	o.CTNumber = attrs.CTNumber
	if err != nil {
		return failed(o, start, err)
	}

	target := filepath.Join(outDir, o.Item)
	companions := utils.Companions(path, p.cfg.CompanionExtensions)
	if err := relocateDocument(path, target, m.Content, companions); err != nil {
		return failed(o, start, &stageError{stage: types.StageRelocating, err: err})
	}

	o.Success = true
	o.Stage = types.StageCompleted
	o.PreviousPO = m.Previous
	o.NewPO = m.New
	o.OutputPath = target
	o.Duration = time.Since(start)
	return o
}

func (p *Pipeline) processArchive(ctx context.Context, category types.Category, path, outDir string, resolver Resolver) types.Outcome {
	start := time.Now()
	o := types.Outcome{
		Category: category,
		Item:     filepath.Base(path),
		Path:     path,
		Kind:     types.KindArchive,
		Stage:    types.StageDiscovered,
	}

	stampMember := func(name string, content []byte) (cte.Mutation, error) {
		attrs, m, err := stamp(content, resolver)
		if err == nil {
			p.logger.Debug("Member resolved",
				zap.String("item", o.Item),
				zap.String("member", name),
				zap.String("ct_number", attrs.CTNumber))
		}
		return m, err
	}

	// An archive is never abandoned halfway; cancellation is honored
	// between items.
	res, err := p.repackager.Repackage(context.WithoutCancel(ctx), path, outDir, stampMember)
	if err != nil {
		return failed(o, start, fmt.Errorf("archive %s: %w", o.Item, err))
	}

	o.Success = true
	o.Stage = types.StageCompleted
	o.Documents = res.Documents
	o.Previous = res.Previous
	o.New = res.New
	o.OutputPath = res.OutputPath
	o.Duration = time.Since(start)
	return o
}

// stamp runs extraction, resolution and mutation over one document.
// Errors carry the stage they happened in.
func stamp(content []byte, resolver Resolver) (cte.Attributes, cte.Mutation, error) {
	attrs, err := cte.Extract(content)
	if err != nil {
		return attrs, cte.Mutation{}, &stageError{stage: types.StageExtracting, err: err}
	}

	code, err := resolver.Resolve(attrs)
	if err != nil {
		return attrs, cte.Mutation{}, &stageError{stage: types.StageResolving, err: err}
	}

	m, err := cte.Mutate(content, code)
	if err != nil {
		return attrs, cte.Mutation{}, &stageError{stage: types.StageMutating, err: err}
	}
	return attrs, m, nil
}

func failed(o types.Outcome, start time.Time, err error) types.Outcome {
	o.Success = false
	o.Stage = stageOf(err)
	o.Err = err
	o.Duration = time.Since(start)
	return o
}

// =============================================================================
// STAGE TRACKING
// =============================================================================

// stageError tags an error with the stage it happened in. It is
// transparent to errors.Is and to the error message.
type stageError struct {
	stage types.Stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func stageOf(err error) types.Stage {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	var ioErr *archive.IOError
	if errors.As(err, &ioErr) {
		return ioErr.Stage()
	}
	return types.StageRelocating
}
