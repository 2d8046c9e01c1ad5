package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"placementai/ml"
)

const defaultDebounce = 200 * time.Millisecond

// Reloader watches the artifact file and swaps it into the service when it
// changes. The parent directory is watched so atomic renames are seen.
type Reloader struct {
	path     string
	service  *Service
	logger   *zap.Logger
	debounce time.Duration

	// OnReload runs after a successful swap.
	OnReload func(*ml.ModelArtifact)
}

func NewReloader(path string, service *Service, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		path:     filepath.Clean(path),
		service:  service,
		logger:   logger,
		debounce: defaultDebounce,
	}
}

// Run blocks until ctx is done. An artifact that fails to load is logged
// and the previous model keeps serving.
func (r *Reloader) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	r.logger.Info("watching model artifact", zap.String("path", r.path))

	timer := time.NewTimer(r.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(r.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("artifact watcher error", zap.Error(err))
		case <-timer.C:
			if err := r.Reload(); err != nil {
				r.logger.Error("model reload failed", zap.String("path", r.path), zap.Error(err))
			}
		}
	}
}

// Reload loads the artifact from disk and swaps it in.
func (r *Reloader) Reload() error {
	artifact, err := ml.LoadArtifact(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("artifact %s disappeared: %w", r.path, err)
		}
		return err
	}
	if err := r.service.Swap(artifact); err != nil {
		return err
	}
	r.logger.Info("model reloaded", zap.String("path", r.path))
	if r.OnReload != nil {
		r.OnReload(artifact)
	}
	return nil
}
