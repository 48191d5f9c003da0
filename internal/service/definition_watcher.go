package service

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const definitionDebounce = 500 * time.Millisecond

// ─────────────────────────────────────────────────────────────
// Definition watcher — hot-reload of survey JSON files
// ─────────────────────────────────────────────────────────────

// DefinitionWatcher imports every *.json survey in a directory on start and
// re-imports a file whenever it is written. Bursts of writes to the same
// file are debounced.
type DefinitionWatcher struct {
	dir     string
	surveys *SurveyService
	emitter EventEmitter

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	timers  map[string]*time.Timer
}

// NewDefinitionWatcher creates a watcher for dir.
func NewDefinitionWatcher(dir string, surveys *SurveyService, emitter EventEmitter) *DefinitionWatcher {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &DefinitionWatcher{dir: dir, surveys: surveys, emitter: emitter, timers: map[string]*time.Timer{}}
}

// LoadAll imports every definition file currently in the directory and
// returns how many succeeded. Bad files are logged and skipped.
func (w *DefinitionWatcher) LoadAll(ctx context.Context) int {
	matches, err := filepath.Glob(filepath.Join(w.dir, "*.json"))
	if err != nil {
		log.Printf("[WATCHER] list %s: %v", w.dir, err)
		return 0
	}
	n := 0
	for _, path := range matches {
		if w.reload(ctx, path) {
			n++
		}
	}
	return n
}

// Start loads the directory and begins watching it.
func (w *DefinitionWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	loaded := w.LoadAll(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = watcher
	w.cancel = cancel
	w.mu.Unlock()

	go w.loop(watchCtx, watcher)
	log.Printf("[WATCHER] loaded %d definition(s), watching %s", loaded, w.dir)
	return nil
}

func (w *DefinitionWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[WATCHER] error: %v", err)
		}
	}
}

func (w *DefinitionWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(definitionDebounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.reload(ctx, path)
	})
}

func (w *DefinitionWatcher) reload(ctx context.Context, path string) bool {
	sv, err := w.surveys.ImportFile(ctx, path)
	if err != nil {
		log.Printf("[WATCHER] %v", err)
		return false
	}
	log.Printf("[WATCHER] loaded %q from %s", sv.Title, filepath.Base(path))
	w.emitter.Emit(ctx, "definitions:reloaded", map[string]string{"surveyId": sv.ID, "file": filepath.Base(path)})
	return true
}

// Stop ends watching and cancels pending reloads.
func (w *DefinitionWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
