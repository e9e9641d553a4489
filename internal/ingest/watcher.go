package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/daleelapp/daleel/internal/extract"
)

// debounceWindow coalesces bursts of filesystem events (editors and copy
// tools emit several writes per file) into one ingestion pass.
const debounceWindow = 500 * time.Millisecond

// Watcher re-ingests documents as they appear in the documents directory.
type Watcher struct {
	service *Service
	docsDir string
	logger  *slog.Logger
}

// NewWatcher creates a watcher that feeds new files to the service.
func NewWatcher(service *Service, docsDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{service: service, docsDir: docsDir, logger: logger}
}

// Run watches the documents directory until the context is canceled.
// Create and write events on supported files are debounced and then
// ingested as one batch.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.docsDir); err != nil {
		return err
	}
	w.logger.Info("watching documents directory", "dir", w.docsDir)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !extract.Supported(name) {
				continue
			}
			pending[name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceWindow)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			clear(pending)

			w.logger.Info("change detected, ingesting", "files", names)
			if _, err := w.service.IngestNew(ctx, names); err != nil {
				w.logger.Error("watch ingestion failed", "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
