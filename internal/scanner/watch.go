package scanner

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher rescans the configured roots whenever a file is created,
// written, removed, or renamed inside them, debounced by the caller's rescan
// callback (typically the same function that drives a config reload).
type Watcher struct {
	fsw *fsnotify.Watcher
	log *logrus.Entry
}

// NewWatcher creates an fsnotify watcher over dirs. Directories that
// don't exist are skipped rather than treated as fatal, since a user
// or custom root may legitimately not exist yet.
func NewWatcher(dirs []string, log *logrus.Entry) (*Watcher, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := fsw.Add(d); err != nil {
			log.WithError(err).WithField("dir", d).Warn("scanner: cannot watch directory")
		}
	}
	return &Watcher{fsw: fsw, log: log}, nil
}

// Run blocks, invoking onChange once for every filesystem event that
// touches a .gguf file, until ctx is cancelled. Events are not batched.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	defer w.fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !isGGUFEvent(ev) {
				continue
			}
			onChange()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("scanner: watch error")
		}
	}
}

func isGGUFEvent(ev fsnotify.Event) bool {
	if !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Write)) {
		return false
	}
	return strings.HasSuffix(strings.ToLower(ev.Name), ".gguf")
}
