package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/SideneiSilva/editor-po-barry/internal/cte"
	"github.com/SideneiSilva/editor-po-barry/internal/rules"
	"github.com/SideneiSilva/editor-po-barry/internal/types"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

// Survey describes the documents waiting in a folder, for the selection
// mode to offer the right candidate codes.
type Survey struct {
	// Documents is the number of readable documents, archive members
	// included.
	Documents int

	// Unreadable counts documents and archives that could not be read.
	Unreadable int

	// Regions and TaxIDs count the documents per region and per payer tax
	// ID, in first-seen order.
	Regions types.Tally
	TaxIDs  types.Tally

	// Region is the most frequent region. Ties go to the region seen first.
	Region string

	// TaxID is the most frequent payer tax ID and Payer the entity it
	// belongs to.
	TaxID string
	Payer types.Payer
}

// Survey reads every document in dir, loose or inside an archive, without
// changing anything, and determines the dominant region and payer.
//
// RETURNS:
//   - The survey.
//   - ErrNoDocuments if nothing could be read, or the registry error if the
//     dominant tax ID belongs to no known payer.
func (p *Pipeline) Survey(ctx context.Context, dir string) (Survey, error) {
	var s Survey

	files, err := utils.ListFiles(dir)
	if err != nil {
		return s, err
	}

	count := func(name string, content []byte) {
		attrs, err := cte.Extract(content)
		if err != nil {
			s.Unreadable++
			p.logger.Debug("Unreadable document", zap.String("item", name), zap.Error(err))
			return
		}
		s.Documents++
		s.Regions.Add(rules.NormalizeRegion(attrs.Region))
		s.TaxIDs.Add(attrs.TaxID)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		name := filepath.Base(path)

		switch {
		case utils.HasExtension(path, documentExt):
			content, err := os.ReadFile(path)
			if err != nil {
				s.Unreadable++
				p.logger.Warn("Failed to read document", zap.String("item", name), zap.Error(err))
				continue
			}
			count(name, content)

		case utils.HasExtension(path, archiveExt):
			err := p.repackager.Documents(ctx, path, func(member string, content []byte) error {
				count(name+"/"+member, content)
				return nil
			})
			if err != nil {
				s.Unreadable++
				p.logger.Warn("Failed to read archive", zap.String("item", name), zap.Error(err))
			}
		}
	}

	if s.Documents == 0 {
		return s, fmt.Errorf("%s: %w", dir, ErrNoDocuments)
	}

	s.Region = dominant(s.Regions)
	s.TaxID = dominant(s.TaxIDs)
	payer, err := p.registry.Identify(s.TaxID)
	if err != nil {
		return s, err
	}
	s.Payer = payer
	return s, nil
}

// dominant returns the most frequent key, the first seen on ties.
func dominant(t types.Tally) string {
	best, bestCount := "", 0
	for _, k := range t.Keys() {
		if n := t.Count(k); n > bestCount {
			best, bestCount = k, n
		}
	}
	return best
}
