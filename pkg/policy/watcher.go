package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads policy files into a Gate when they change on disk.
type Watcher struct {
	gate    *Gate
	watcher *fsnotify.Watcher
	logger  zerolog.Logger
}

// NewWatcher creates a watcher that recompiles changed policies into the gate.
func NewWatcher(gate *Gate, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		gate:    gate,
		watcher: fsw,
		logger:  logger.With().Str("component", "policy-watcher").Logger(),
	}, nil
}

// Watch loads the .rego files in dir, then watches the directory and reloads
// on write or create. A broken edit keeps the previous compiled policy in
// place; the failure is logged.
func (w *Watcher) Watch(ctx context.Context, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return fmt.Errorf("failed to list policy directory: %w", err)
	}
	if err := w.gate.LoadPolicyFiles(ctx, paths); err != nil {
		return err
	}

	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	go w.processEvents(ctx)

	w.logger.Info().Str("dir", dir).Int("policies", len(paths)).Msg("Watching policy directory")
	return nil
}

// Close stops watching for file changes.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	// Editors fire several events per save; debounce before recompiling.
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".rego") {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Policy file changed")

			path := event.Name
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(reloadDelay, func() {
				if err := w.gate.LoadPolicyFiles(ctx, []string{path}); err != nil {
					w.logger.Error().Err(err).Str("file", path).Msg("Failed to reload policy")
					return
				}
				w.logger.Info().Str("file", path).Msg("Policy reloaded")
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
