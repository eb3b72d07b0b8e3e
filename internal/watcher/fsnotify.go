package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FsnotifyWatcher implements Watcher over github.com/fsnotify/fsnotify,
// debouncing rapid repeat events per path (spec §4 "Watch mode"). Unlike
// the teacher's HybridWatcher, there is no polling fallback and no
// gitignore matcher: a notes vault has no gitignore concept, and fsnotify
// is available on every platform dotmd targets.
type FsnotifyWatcher struct {
	fsw      *fsnotify.Watcher
	opts     Options
	rootPath string

	events chan FileEvent
	errors chan error
	stopCh chan struct{}

	mu      sync.Mutex
	stopped bool
}

var _ Watcher = (*FsnotifyWatcher)(nil)

// NewFsnotifyWatcher creates a watcher with the given options.
func NewFsnotifyWatcher(opts Options) (*FsnotifyWatcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &FsnotifyWatcher{
		fsw:    fsw,
		opts:   opts,
		events: make(chan FileEvent, opts.EventBufferSize),
		errors: make(chan error, 16),
		stopCh: make(chan struct{}),
	}, nil
}

// Start implements Watcher.
func (w *FsnotifyWatcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	w.rootPath = absRoot

	if err := w.addRecursive(absRoot); err != nil {
		return fmt.Errorf("watch %s: %w", absRoot, err)
	}

	debounced := newDebouncer(w.opts.DebounceWindow, w.events)

	go func() {
		defer debounced.stop()
		for {
			select {
			case <-ctx.Done():
				_ = w.Stop()
				return
			case <-w.stopCh:
				return
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(ev, debounced)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				select {
				case w.errors <- err:
				default:
				}
			}
		}
	}()
	return nil
}

// addRecursive registers every directory under root with fsnotify;
// fsnotify only watches the directories it's explicitly told about.
func (w *FsnotifyWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *FsnotifyWatcher) ignored(dirName string) bool {
	for _, p := range w.opts.IgnorePatterns {
		if p == dirName {
			return true
		}
	}
	return false
}

func (w *FsnotifyWatcher) handle(ev fsnotify.Event, debounced *debouncer) {
	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	var op Operation
	switch {
	case ev.Op&fsnotify.Create != 0:
		op = OpCreate
		if isDir {
			_ = w.fsw.Add(ev.Name)
		}
	case ev.Op&fsnotify.Write != 0:
		op = OpModify
	case ev.Op&fsnotify.Remove != 0:
		op = OpDelete
	case ev.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		return // chmod and anything else is not interesting to the indexer
	}

	if filepath.Base(ev.Name) == "config.yaml" {
		op = OpConfigChange
	}

	debounced.add(FileEvent{Path: ev.Name, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// Stop implements Watcher.
func (w *FsnotifyWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	err := w.fsw.Close()
	close(w.events)
	close(w.errors)
	return err
}

// Events implements Watcher.
func (w *FsnotifyWatcher) Events() <-chan FileEvent { return w.events }

// Errors implements Watcher.
func (w *FsnotifyWatcher) Errors() <-chan error { return w.errors }
