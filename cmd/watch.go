package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumencrm/lumen/internal/app"
	"github.com/lumencrm/lumen/internal/knowledge"
)

// runWatch watches the configured directory and ingests files dropped into
// it, until interrupted.
func runWatch(ctx context.Context, a *app.App) error {
	dir := a.Config.WatchDir
	if dir == "" {
		return fmt.Errorf("no watch directory configured (set watch_dir or LUMEN_WATCH_DIR)")
	}

	fmt.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	watcher := knowledge.NewWatcher(a.Ingestor, dir, ingestOwner, a.Logger)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
