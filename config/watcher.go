package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/ruleflow/phlow/value"
)

// ChangeEvent is emitted when a watched document's content actually changes.
type ChangeEvent struct {
	Source   string
	OldHash  string
	NewHash  string
	Document value.Value
	Time     time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the default debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// Watcher monitors a document file for changes and invokes a callback with
// the freshly parsed document. It watches the containing directory so that
// atomic saves (rename-over, editor swap files, ConfigMap symlink swaps)
// are still observed.
//
// A changed document only ever produces a brand new value.Value; it never
// mutates or migrates an in-flight execctx.Context. Callers rebuild their
// workflow.Workflow from scratch on each ChangeEvent.
type Watcher struct {
	source   *FileSource
	debounce time.Duration
	logger   *zap.Logger
	onChange func(ChangeEvent)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	lastHash  string

	mu      sync.Mutex
	pending bool
}

// NewWatcher creates a Watcher for the given FileSource. onChange is called
// whenever the document's content hash differs from the previously observed
// one.
func NewWatcher(source *FileSource, onChange func(ChangeEvent), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		source:   source,
		debounce: 500 * time.Millisecond,
		logger:   zap.NewNop(),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching the document's directory for changes.
func (w *Watcher) Start() error {
	hash, err := w.source.Hash()
	if err != nil {
		return fmt.Errorf("watcher: initial hash: %w", err)
	}
	w.lastHash = hash

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: create fsnotify: %w", err)
	}
	w.fsWatcher = fsw

	dir := filepath.Dir(w.source.Path())
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop terminates the watcher and waits for its goroutine to exit. Safe to
// call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.mu.Lock()
				w.pending = true
				w.mu.Unlock()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("document watcher error", zap.Error(err))

		case <-ticker.C:
			w.mu.Lock()
			fire := w.pending
			w.pending = false
			w.mu.Unlock()
			if fire {
				w.processChange()
			}
		}
	}
}

func (w *Watcher) processChange() {
	doc, err := w.source.Load()
	if err != nil {
		w.logger.Error("watcher: failed to load document", zap.String("path", w.source.Path()), zap.Error(err))
		return
	}

	newHash, err := w.source.Hash()
	if err != nil {
		w.logger.Error("watcher: failed to hash document", zap.String("path", w.source.Path()), zap.Error(err))
		return
	}

	if newHash == w.lastHash {
		return
	}

	oldHash := w.lastHash
	w.lastHash = newHash

	w.logger.Info("document changed", zap.String("path", w.source.Path()))

	w.onChange(ChangeEvent{
		Source:   w.source.Name(),
		OldHash:  oldHash,
		NewHash:  newHash,
		Document: doc,
		Time:     time.Now(),
	})
}
