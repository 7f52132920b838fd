// Package watch reports file changes below a directory tree.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Event is one change. Path is slash-separated and relative to the watched
// root.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// DefaultIgnore holds directory names skipped by default.
var DefaultIgnore = []string{".git", "node_modules"}

// Watcher follows a directory tree recursively, adding directories as they
// are created.
type Watcher struct {
	root   string
	ignore map[string]bool
	logger log.FieldLogger
	fsw    *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore skips directories whose root-relative slash path is one of
// paths, in addition to DefaultIgnore names.
func WithIgnore(paths ...string) Option {
	return func(w *Watcher) {
		for _, p := range paths {
			w.ignore[filepath.ToSlash(filepath.Clean(p))] = true
		}
	}
}

// WithLogger sets the logger for watcher errors.
func WithLogger(l log.FieldLogger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New starts watching root.
func New(root string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		root:   abs,
		ignore: make(map[string]bool),
		logger: log.StandardLogger(),
		fsw:    fsw,
	}
	for _, name := range DefaultIgnore {
		w.ignore[name] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string { return w.root }

func (w *Watcher) skip(abs string) bool {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	return w.ignore[rel] || (rel != "." && w.ignore[filepath.Base(abs)])
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p != dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skip(p) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// Events emits changes until ctx is done, then closes the channel. It must
// be called once.
func (w *Watcher) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.WithError(err).Warn("watch error")
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
					continue
				}
				if w.skip(ev.Name) {
					continue
				}
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						if err := w.addTree(ev.Name); err != nil {
							w.logger.WithError(err).Warn("watching new directory")
						}
					}
				}
				rel, err := filepath.Rel(w.root, ev.Name)
				if err != nil {
					continue
				}
				select {
				case out <- Event{Path: filepath.ToSlash(rel), Op: ev.Op}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Debounce groups events that arrive less than d apart into one batch,
// keeping the last event per path in first-seen order. While the consumer
// is busy, new events keep merging into the pending batch.
func Debounce(ctx context.Context, in <-chan Event, d time.Duration) <-chan []Event {
	out := make(chan []Event)
	go func() {
		defer close(out)

		var (
			pending []Event
			index   = make(map[string]int)
			timer   *time.Timer
			fire    <-chan time.Time
			ready   bool
		)
		reset := func() {
			pending = nil
			index = make(map[string]int)
			ready = false
		}

		for {
			var send chan []Event
			if ready {
				send = out
			}
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-in:
				if !ok {
					if len(pending) > 0 {
						select {
						case out <- pending:
						case <-ctx.Done():
						}
					}
					return
				}
				if i, seen := index[ev.Path]; seen {
					pending[i] = ev
				} else {
					index[ev.Path] = len(pending)
					pending = append(pending, ev)
				}
				if timer == nil {
					timer = time.NewTimer(d)
				} else {
					timer.Reset(d)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				ready = len(pending) > 0
			case send <- pending:
				reset()
			}
		}
	}()
	return out
}
