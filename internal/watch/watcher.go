// Package watch reloads templates and requests a re-render when the template
// or asset directories change on disk.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/stacklok/status-page-server/internal/regen"
)

// Reloader re-parses a template set, keeping the previous one on failure
type Reloader interface {
	Reload() error
}

// Watcher observes the template and asset directories
type Watcher struct {
	templatesDir string
	assetsDir    string
	templates    Reloader
	notifier     regen.Notifier

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// Option configures a Watcher
type Option func(*Watcher)

// WithTemplatesDir watches dir and reloads templates when it changes
func WithTemplatesDir(dir string) Option {
	return func(w *Watcher) {
		w.templatesDir = dir
	}
}

// WithAssetsDir watches dir and its subdirectories
func WithAssetsDir(dir string) Option {
	return func(w *Watcher) {
		w.assetsDir = dir
	}
}

// New creates a watcher and registers the configured directories. Changes
// are only processed once Watch runs.
func New(templates Reloader, notifier regen.Notifier, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		templates: templates,
		notifier:  notifier,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.templatesDir == "" && w.assetsDir == "" {
		return nil, fmt.Errorf("nothing to watch")
	}
	if w.templatesDir != "" && templates == nil {
		return nil, fmt.Errorf("a template reloader is required to watch templates")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w.watcher = watcher

	if w.templatesDir != "" {
		if err := watcher.Add(w.templatesDir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch templates directory %s: %w", w.templatesDir, err)
		}
	}
	if w.assetsDir != "" {
		if err := w.addTree(w.assetsDir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch assets directory %s: %w", w.assetsDir, err)
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Watch processes file events until ctx is cancelled or the watcher is closed
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return fmt.Errorf("watcher is closed")
	}

	slog.Info("Watching site sources", "templates_dir", w.templatesDir, "assets_dir", w.assetsDir)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping site source watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || isHidden(event.Name) {
		return
	}

	switch {
	case w.templatesDir != "" && within(w.templatesDir, event.Name):
		slog.Info("Template change detected, reloading", "path", event.Name, "op", event.Op.String())
		if err := w.templates.Reload(); err != nil {
			slog.Error("Failed to reload templates, keeping the previous set", "error", err)
			return
		}
		w.notifier.Notify()

	case w.assetsDir != "" && within(w.assetsDir, event.Name):
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addTree(event.Name); err != nil {
					slog.Error("Failed to watch new asset directory", "path", event.Name, "error", err)
				}
			}
		}
		slog.Info("Asset change detected", "path", event.Name, "op", event.Op.String())
		w.notifier.Notify()
	}
}

// Close releases the file watcher
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return nil
	}
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close file watcher: %w", err)
	}
	w.watcher = nil
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && filepath.IsLocal(rel)
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
