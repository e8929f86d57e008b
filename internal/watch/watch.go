// Package watch reloads a widget configuration file whenever it changes on
// disk and pushes the new snapshot to a live chat session.
package watch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentoven/chatwidget/internal/config"
	"github.com/agentoven/chatwidget/pkg/models"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Target receives reloaded configurations. *chat.Orchestrator implements it.
type Target interface {
	UpdateConfig(ctx context.Context, cfg models.WidgetConfig)
}

// Watcher monitors a single widget YAML file.
type Watcher struct {
	path    string
	target  Target
	watcher *fsnotify.Watcher
}

// New starts watching path. The parent directory is watched rather than the
// file itself so editors that replace the file on save are still seen.
func New(path string, target Target) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve widget file: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{path: abs, target: target, watcher: fw}, nil
}

// Run applies every change of the file until ctx is cancelled. The watcher
// is closed when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	log.Info().Str("file", w.path).Msg("👀 Watching widget config")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("file", w.path).Msg("Widget config watcher error")
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := config.LoadWidget(w.path)
	if err != nil {
		// A half-written file is common mid-save; the next event retries.
		log.Warn().Err(err).Str("file", w.path).Msg("Widget config not reloaded")
		return
	}
	w.target.UpdateConfig(ctx, cfg)
	log.Info().Str("file", w.path).Str("business", cfg.Business.Name).Msg("Widget config reloaded")
}
