package poller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sandevgo/tuskmem/pkg/log"
)

const defaultDebounce = 2 * time.Second

// Triggerable is anything that can be asked for an immediate poll.
type Triggerable interface {
	Trigger()
}

// Watcher triggers a poll when files under the watched directories change.
// Bursts of events collapse into one trigger after the debounce period.
type Watcher struct {
	target   Triggerable
	dirs     []string
	debounce time.Duration

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewWatcher(target Triggerable, dirs ...string) *Watcher {
	return &Watcher{target: target, dirs: dirs, debounce: defaultDebounce}
}

func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Start adds the directories and their direct subdirectories, since
// sources keep one folder per project. It returns right away.
func (w *Watcher) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	added := 0
	for _, dir := range w.dirs {
		for _, d := range watchTargets(dir) {
			if err := watcher.Add(d); err != nil {
				logger.Warn().Err(err).Str("dir", d).Msg("failed to watch directory")
				continue
			}
			added++
		}
	}
	if added == 0 {
		_ = watcher.Close()
		logger.Info().Strs("dirs", w.dirs).Msg("nothing to watch, relying on interval polls")
		return nil
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	go w.run(ctx)

	logger.Info().Int("dirs", added).Msg("watching sources for changes")
	return nil
}

func (w *Watcher) Shutdown(ctx context.Context) error {
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	logger := log.FromCtx(ctx)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isDir(event.Name) {
				_ = w.watcher.Add(event.Name)
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("watcher error")
		case <-timer.C:
			logger.Debug().Msg("source changed, triggering poll")
			w.target.Trigger()
		}
	}
}

func watchTargets(dir string) []string {
	if !isDir(dir) {
		return nil
	}
	targets := []string{dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return targets
	}
	for _, e := range entries {
		if e.IsDir() {
			targets = append(targets, filepath.Join(dir, e.Name()))
		}
	}
	return targets
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
