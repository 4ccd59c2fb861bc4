// =============================================================================
// Freight PO Editor - Ledger
// =============================================================================
//
// The ledger is the business record of a sweep, kept as two append-only text
// files in the log directory:
//
//   LOG_EDICAO_PO.txt  one line per processed document or archive
//   LOG_ERRO.txt       one line per failed item (only created on failure)
//
// LINE FORMATS:
//   2024-01-15 10:30:00 | FREIGHT | a.xml | PREVIOUS_PO=NOT_FOUND | NEW_PO=4504819456/00010
//   2024-01-15 10:30:01 | TRANSFER | b.zip | TOTAL_DOCS=3 | PREVIOUS_PO=[2x X, 1x NOT_FOUND] | NEW_PO=[3x Y]
//   2024-01-15 10:30:02 | COST | c.xml | ERROR=unknown payer tax ID 11111111000111
//
// =============================================================================

package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/SideneiSilva/editor-po-barry/internal/types"
)

const timestampLayout = "2006-01-02 15:04:05"

// Ledger appends outcome lines to the success and error files.
type Ledger struct {
	successPath string
	errorPath   string
	now         func() time.Time
	mu          sync.Mutex
}

// New creates a ledger writing into dir. Neither file is created until the
// first line is written to it.
func New(dir, successName, errorName string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: ensure log dir: %w", err)
	}
	return &Ledger{
		successPath: filepath.Join(dir, successName),
		errorPath:   filepath.Join(dir, errorName),
		now:         time.Now,
	}, nil
}

// SuccessPath returns the success ledger file.
func (l *Ledger) SuccessPath() string { return l.successPath }

// ErrorPath returns the error ledger file.
func (l *Ledger) ErrorPath() string { return l.errorPath }

// Record appends the line matching the outcome to the right file.
func (l *Ledger) Record(o types.Outcome) error {
	if !o.Success {
		return l.append(l.errorPath, FormatFailure(l.now(), o))
	}
	return l.append(l.successPath, FormatSuccess(l.now(), o))
}

// FormatSuccess renders a success line without the trailing newline.
func FormatSuccess(at time.Time, o types.Outcome) string {
	if o.Kind == types.KindArchive {
		return fmt.Sprintf("%s | %s | %s | TOTAL_DOCS=%d | PREVIOUS_PO=[%s] | NEW_PO=[%s]",
			at.Format(timestampLayout), o.Category, o.Item, o.Documents, o.Previous.String(), o.New.String())
	}
	return fmt.Sprintf("%s | %s | %s | PREVIOUS_PO=%s | NEW_PO=%s",
		at.Format(timestampLayout), o.Category, o.Item, o.PreviousPO, o.NewPO)
}

// FormatFailure renders an error line without the trailing newline.
func FormatFailure(at time.Time, o types.Outcome) string {
	return fmt.Sprintf("%s | %s | %s | ERROR=%s",
		at.Format(timestampLayout), o.Category, o.Item, oneLine(o.Message()))
}

func (l *Ledger) append(path, line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", filepath.Base(path), err)
	}
	if _, err := file.WriteString(line + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("ledger: write %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
