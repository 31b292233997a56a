// Package mock publishes synthetic change records so the server can be
// demonstrated without touching the disk.
package mock

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/fsnotify/fsnotify"
	"github.com/gyokuro/filewatch/internal/watcher"
	"github.com/rs/zerolog"
)

type mockFile struct {
	name    string
	renamed string
	script  []fsnotify.Op
	step    int
	offset  int // ticks before the first event
}

// Scripts loop forever; each file starts and ends absent.
var (
	scriptSteady = []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Write, fsnotify.Chmod, fsnotify.Rename, fsnotify.Remove}
	scriptBurst  = []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Write, fsnotify.Write, fsnotify.Write, fsnotify.Remove}
	scriptSlow   = []fsnotify.Op{fsnotify.Create, 0, 0, fsnotify.Write, 0, 0, fsnotify.Remove, 0}
)

// Generator walks a fixed set of fake files through create, write, rename
// and remove cycles.
type Generator struct {
	Pub      message.Publisher
	Interval time.Duration
	Logger   zerolog.Logger

	files []*mockFile
	now   func() time.Time
}

// NewGenerator creates a generator publishing on pub.
func NewGenerator(pub message.Publisher, interval time.Duration, logger zerolog.Logger) *Generator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Generator{
		Pub:      pub,
		Interval: interval,
		Logger:   logger,
		now:      time.Now,
		files: []*mockFile{
			{name: "notes/todo.md", renamed: "notes/done.md", script: scriptSteady},
			{name: "build/out.log", script: scriptBurst, offset: 1},
			{name: "src/main.go", renamed: "src/main.go.orig", script: scriptSteady, offset: 3},
			{name: "tmp/upload.part", script: scriptSlow, offset: 2},
		},
	}
}

// Run publishes one step per interval until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick++
			for _, rec := range g.Step(tick) {
				if err := watcher.Publish(g.Pub, rec); err != nil {
					g.Logger.Error().Err(err).Str("name", rec.Name).Msg("publish mock change")
				}
			}
		}
	}
}

// Step advances every file that is due at tick and returns the records
// produced, in file order.
func (g *Generator) Step(tick int) []watcher.Record {
	at := g.now()
	var out []watcher.Record
	for _, f := range g.files {
		if tick <= f.offset {
			continue
		}
		op := f.script[f.step]
		f.step = (f.step + 1) % len(f.script)
		if op == 0 {
			continue
		}

		name := f.name
		if f.renamed != "" && renamedPhase(f.script, f.step) {
			name = f.renamed
		}
		out = append(out, record(name, op, at))

		// A rename is reported on the old name, followed by a create of the new one.
		if op == fsnotify.Rename && f.renamed != "" {
			out = append(out, record(f.renamed, fsnotify.Create, at))
		}
	}
	return out
}

// renamedPhase reports whether the file lives under its new name when the
// op just before next runs. That is the case after the script's rename.
func renamedPhase(script []fsnotify.Op, next int) bool {
	cur := (next - 1 + len(script)) % len(script)
	for i := 0; i < cur; i++ {
		if script[i] == fsnotify.Rename {
			return true
		}
	}
	return false
}

func record(name string, op fsnotify.Op, at time.Time) watcher.Record {
	return watcher.NewRecord(fsnotify.Event{Name: name, Op: op}, "", at)
}
