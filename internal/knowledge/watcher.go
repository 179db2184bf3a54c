package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lumencrm/lumen/internal/document"
)

// settleDelay is how long a file must be quiet after a write event before it
// is ingested. Editors and downloads produce bursts of writes; ingesting on
// the first one reads a half-written file.
const settleDelay = 500 * time.Millisecond

// Watcher ingests files dropped into a directory. Files ending in .txt, .md
// and .html are picked up; everything else is ignored.
type Watcher struct {
	ingestor *Ingestor
	dir      string
	ownerID  string
	logger   *slog.Logger
}

// NewWatcher creates a Watcher ingesting on behalf of ownerID.
func NewWatcher(ingestor *Ingestor, dir, ownerID string, logger *slog.Logger) *Watcher {
	return &Watcher{
		ingestor: ingestor,
		dir:      dir,
		ownerID:  ownerID,
		logger:   logger,
	}
}

// Run watches the directory until ctx is cancelled. Existing files are
// ingested on startup, then create and write events trigger ingestion after
// a settle delay. Individual file failures are logged and skipped.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", "dir", w.dir)

	if err := w.ingestExisting(ctx); err != nil {
		return err
	}

	pending := make(map[string]*time.Timer)
	fired := make(chan string)
	// done releases timer callbacks blocked on fired no matter which branch
	// Run returns from; Stop alone cannot reach a callback already running.
	done := make(chan struct{})
	defer close(done)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

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
			path := event.Name
			if docTypeForPath(path) == "" {
				continue
			}
			if t, exists := pending[path]; exists {
				t.Reset(settleDelay)
				continue
			}
			pending[path] = time.AfterFunc(settleDelay, func() {
				select {
				case fired <- path:
				case <-done:
				}
			})

		case path := <-fired:
			delete(pending, path)
			if err := w.ingestFile(ctx, path); err != nil {
				w.logger.Error("failed to ingest file", "path", path, "error", err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

func (w *Watcher) ingestExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if docTypeForPath(path) == "" {
			continue
		}
		if err := w.ingestFile(ctx, path); err != nil {
			w.logger.Error("failed to ingest file", "path", path, "error", err)
		}
	}
	return nil
}

func (w *Watcher) ingestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	name := filepath.Base(path)
	id, err := w.ingestor.Ingest(ctx, document.Document{
		Title:   strings.TrimSuffix(name, filepath.Ext(name)),
		Content: string(data),
		Type:    docTypeForPath(path),
		Source:  path,
		OwnerID: w.ownerID,
	})
	if err != nil {
		return err
	}
	w.logger.Info("file ingested", "path", path, "document_id", id)
	return nil
}

// docTypeForPath maps a file extension to a document type, or "" for files
// the watcher does not handle.
func docTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return TypeText
	case ".md", ".markdown":
		return TypeMarkdown
	case ".html", ".htm":
		return TypeHTML
	default:
		return ""
	}
}
