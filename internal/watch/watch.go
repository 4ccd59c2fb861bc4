// Package watch reruns the sweep when items land in the intake folders.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/SideneiSilva/editor-po-barry/internal/logging"
	"github.com/SideneiSilva/editor-po-barry/pkg/utils"
)

// DefaultSettle is how long the folders must stay quiet before a sweep.
const DefaultSettle = 2 * time.Second

// SweepFunc processes the intake folders once.
type SweepFunc func(ctx context.Context)

// Watcher triggers sweeps on filesystem activity. Sweeps always run on the
// goroutine that called Run, one at a time.
type Watcher struct {
	dirs       []string
	settle     time.Duration
	extensions []string
	sweep      SweepFunc
	logger     *zap.Logger
}

// New creates a Watcher over dirs. Only files with one of the given
// extensions trigger a sweep.
func New(dirs []string, extensions []string, settle time.Duration, sweep SweepFunc, logger *zap.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		dirs:       dirs,
		settle:     settle,
		extensions: extensions,
		sweep:      sweep,
		logger:     logging.OrNop(logger),
	}
}

// Run sweeps once, then again every time the folders settle after a
// relevant change. It returns when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.logger.Info("Watching folder", zap.String("dir", dir))
	}

	w.sweep(ctx)

	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				w.logger.Debug("Change detected", zap.String("path", event.Name), zap.String("op", event.Op.String()))
				settled = time.After(w.settle)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-settled:
			settled = nil
			if ctx.Err() != nil {
				return nil
			}
			w.sweep(ctx)
		}
	}
}

// relevant reports whether event can bring a new item into a folder.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	for _, ext := range w.extensions {
		if utils.HasExtension(event.Name, ext) {
			return true
		}
	}
	return false
}
