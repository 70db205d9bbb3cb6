// Package watch re-runs a reflow whenever the input work-center or
// work-order JSON files change on disk, grounded on
// C360Studio-semspec's direct fsnotify dependency.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReflowFunc runs one reflow cycle; it is supplied by the caller (usually
// internal/server) so this package stays oblivious to the engine itself.
type ReflowFunc func(ctx context.Context) error

// Watcher watches the directories containing centersPath and ordersPath
// and calls Reflow (debounced) whenever either file changes.
type Watcher struct {
	centersPath string
	ordersPath  string
	debounce    time.Duration
	reflow      ReflowFunc
	logger      *slog.Logger
}

// New constructs a Watcher. It does not start watching until Run is
// called.
func New(centersPath, ordersPath string, debounce time.Duration, reflow ReflowFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		centersPath: centersPath,
		ordersPath:  ordersPath,
		debounce:    debounce,
		reflow:      reflow,
		logger:      logger,
	}
}

// Run blocks, watching for changes until ctx is canceled. Writes to
// either input file trigger a debounced reflow: rapid successive writes
// (e.g. an editor's save-then-rewrite) collapse into a single run.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	dirs := uniqueDirs(w.centersPath, w.ordersPath)
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return err
		}
	}

	var timer *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err := <-fsw.Errors:
			w.logger.Error("watch: fsnotify error", slog.String("error", err.Error()))
		case <-trigger:
			w.logger.Info("watch: input changed, re-running reflow")
			if err := w.reflow(ctx); err != nil {
				w.logger.Error("watch: reflow failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	abs := filepath.Clean(name)
	return abs == filepath.Clean(w.centersPath) || abs == filepath.Clean(w.ordersPath)
}

func uniqueDirs(paths ...string) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		dir := filepath.Dir(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
