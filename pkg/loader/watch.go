package loader

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/arbor/pkg/tree"
)

// Watcher calls a function on the tree's owner goroutine after the watched
// file has been written and then stayed quiet for the debounce window.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	deb      *debouncer
	sched    tree.Scheduler
	onChange func()
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	reloads atomic.Int64
}

// NewWatcher prepares a watcher for path. onChange runs through sched.
func NewWatcher(path string, sched tree.Scheduler, debounce time.Duration, onChange func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     abs,
		fsw:      fsw,
		deb:      newDebouncer(debounce),
		sched:    sched,
		onChange: onChange,
		log:      slog.Default().With(slog.String("component", "watcher")),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Watch wires a file source to its tree: every change drops the file's
// index and refreshes the tree, keeping open and selected nodes.
func Watch(t *tree.Tree, f *File, debounce time.Duration) (*Watcher, error) {
	w, err := NewWatcher(f.Path, t.Scheduler(), debounce, func() {
		f.Reset()
		t.Refresh(nil)
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.cancel()
		w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Start begins watching. The parent directory is watched so editors that
// replace the file by rename are still seen.
func (w *Watcher) Start() error {
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	go w.loop()
	return nil
}

// Stop ends watching and cancels a pending reload.
func (w *Watcher) Stop() {
	w.cancel()
	w.deb.Cancel()
	w.fsw.Close()
	<-w.done
}

// Reloads reports how many debounced reloads were dispatched.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.deb.Trigger(func() {
				if w.ctx.Err() != nil {
					return
				}
				w.reloads.Add(1)
				w.sched.Schedule(w.onChange)
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("warning: file watcher error", slog.String("path", w.path), slog.String("error", err.Error()))
		}
	}
}
