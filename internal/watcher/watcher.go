package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Watcher publishes a Record for every fsnotify event under Root.
type Watcher struct {
	Root      string
	Recursive bool
	Pub       message.Publisher
	Logger    zerolog.Logger

	fsw *fsnotify.Watcher
}

// Start creates the fsnotify watcher and registers Root (and, when
// Recursive, every directory below it). Events that happen after Start
// returns are delivered by Run.
func (w *Watcher) Start() error {
	if w.Root == "" {
		return errors.New("missing Root")
	}
	if w.Pub == nil {
		return errors.New("missing Publisher")
	}
	if w.fsw != nil {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	w.fsw = fsw
	if err := w.add(w.Root); err != nil {
		fsw.Close()
		w.fsw = nil
		return err
	}
	return nil
}

// Run delivers events until ctx is cancelled or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	defer w.fsw.Close()

	w.Logger.Info().Str("root", w.Root).Bool("recursive", w.Recursive).Msg("watching")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.Recursive && ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if err := w.add(ev.Name); err != nil {
				w.Logger.Warn().Err(err).Str("dir", ev.Name).Msg("watch new directory")
			}
		}
	}

	rec := NewRecord(ev, w.Root, time.Now())
	w.Logger.Debug().Str("name", rec.Name).Str("op", rec.Op).Msg("change")
	if err := Publish(w.Pub, rec); err != nil {
		w.Logger.Error().Err(err).Str("name", rec.Name).Msg("publish change")
	}
}

// add registers dir, and its subdirectories when Recursive.
func (w *Watcher) add(dir string) error {
	if !w.Recursive {
		return errors.Wrapf(w.fsw.Add(dir), "watch %s", dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.Wrapf(err, "walk %s", path)
		}
		if !d.IsDir() {
			return nil
		}
		return errors.Wrapf(w.fsw.Add(path), "watch %s", path)
	})
}
