package engine

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/botweaver/botweaver/internal/graph"
)

// Watch hot-reloads the compiled graph whenever the graph file changes on
// disk. A file that no longer parses keeps the previous graph serving.
func (e *Engine) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Editors typically replace the file via rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()

		target := filepath.Clean(path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}

				g, err := graph.Load(path)
				if err != nil {
					e.log.Error("graph reload failed, keeping previous graph",
						slog.String("path", path), slog.Any("error", err))
					continue
				}

				e.swap(g)
				e.log.Info("graph reloaded", slog.String("path", path),
					slog.Int("nodes", g.Aliases().Len()))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.log.Error("graph watcher error", slog.Any("error", err))
			}
		}
	}()

	return nil
}
