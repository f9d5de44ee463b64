package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"

	"github.com/lvillar/proposalgen"
	"github.com/lvillar/proposalgen/generator"
)

// debouncer delays a callback until events for a key stop arriving.
type debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	fn     func(key string)
}

func newDebouncer(delay time.Duration, fn func(key string)) *debouncer {
	return &debouncer{timers: make(map[string]*time.Timer), delay: delay, fn: fn}
}

// Trigger schedules fn for key, resetting any pending timer.
func (d *debouncer) Trigger(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		d.fn(key)
	})
}

// Stop cancels all pending timers.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.timers = make(map[string]*time.Timer)
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var delay time.Duration
	var createdBy string
	s, err := open(ctx, args, stderr, "watch [flags] <config>", func(fs *flag.FlagSet) {
		fs.DurationVar(&delay, "debounce", 500*time.Millisecond, "quiet period before regenerating")
		fs.StringVar(&createdBy, "created-by", "", "author stored on the version records")
	})
	if err != nil {
		return err
	}
	defer s.close()

	if len(s.args) != 1 {
		return fmt.Errorf("%w: expected one configuration file", ErrUsage)
	}
	configPath, err := filepath.Abs(s.args[0])
	if err != nil {
		return err
	}

	w := &watcher{
		gen:        s.app.Generator,
		configPath: configPath,
		createdBy:  createdBy,
		stdout:     stdout,
		asJSON:     s.common.json,
	}
	return w.run(ctx, delay, s.app.Config.TemplatesDir)
}

// watcher regenerates a proposal when its configuration or a template
// changes. The first build creates the proposal record; later builds add
// versions to it.
type watcher struct {
	gen        *generator.Generator
	configPath string
	createdBy  string
	stdout     io.Writer
	asJSON     bool

	proposalID uint
}

func (w *watcher) run(ctx context.Context, delay time.Duration, templatesDir string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Editors often replace files, so watch directories and filter.
	dirs := []string{filepath.Dir(w.configPath)}
	if abs, err := filepath.Abs(templatesDir); err == nil && abs != dirs[0] {
		dirs = append(dirs, abs)
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	builds := make(chan struct{}, 1)
	deb := newDebouncer(delay, func(string) {
		select {
		case builds <- struct{}{}:
		default:
		}
	})
	defer deb.Stop()

	log := w.gen.Log
	log.Printf("Watching %s for changes (Ctrl-C to stop)", joinDirs(dirs))
	w.build(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			log.Debugf("Change: %s %s", ev.Op, ev.Name)
			deb.Trigger("build")
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Watcher: %v", err)
		case <-builds:
			w.build(ctx)
		}
	}
}

// relevant reports whether ev touches the configuration or a PDF template.
func (w *watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if filepath.Clean(ev.Name) == w.configPath {
		return true
	}
	return filepath.Ext(ev.Name) == ".pdf" || filepath.Ext(ev.Name) == ".PDF"
}

// build regenerates once. Errors are logged so the watch keeps going.
func (w *watcher) build(ctx context.Context) {
	log := w.gen.Log
	cfg, err := proposalgen.ParseFile(w.configPath)
	if err != nil {
		log.Errorf("Configuration: %v", err)
		return
	}

	var sum *generator.Summary
	if w.proposalID != 0 {
		sum, err = w.gen.Refine(ctx, w.proposalID, cfg, w.createdBy)
	} else {
		sum, err = w.gen.Generate(ctx, cfg, generator.GenerateOptions{CreatedBy: w.createdBy})
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Errorf("Generation failed: %v", err)
		return
	}
	w.proposalID = sum.ProposalID
	if err := printSummary(w.stdout, sum, w.asJSON); err != nil {
		log.Warnf("Printing summary: %v", err)
	}
}

func joinDirs(dirs []string) string {
	if len(dirs) == 1 {
		return dirs[0]
	}
	return fmt.Sprintf("%s and %s", dirs[0], dirs[1])
}
