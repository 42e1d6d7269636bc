package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a config file whenever it is written and reports every
// successfully parsed version on Changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan *Config
	errs    chan error
}

// NewWatcher starts watching the directory that contains path. Editors
// usually replace files on save, so the directory is watched rather than
// the file itself.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	return &Watcher{
		path:    path,
		watcher: fsw,
		changes: make(chan *Config, 1),
		errs:    make(chan error, 1),
	}, nil
}

// Changes delivers reloaded configurations. Only the most recent pending
// config is kept.
func (w *Watcher) Changes() <-chan *Config {
	return w.changes
}

// Errors delivers reload failures. Errors are dropped when nobody reads.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounce = time.After(reloadDebounce)

		case <-debounce:
			debounce = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.report(fmt.Errorf("reload config: %w", err))
		return
	}
	// Replace any config the consumer has not picked up yet.
	select {
	case <-w.changes:
	default:
	}
	w.changes <- cfg
}

func (w *Watcher) report(err error) {
	select {
	case w.errs <- err:
	default:
	}
}
