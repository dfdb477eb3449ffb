package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file and reports edits. A valid edit replaces the
// current config and reaches the change callback with the previous one. An
// invalid edit keeps the current config and reaches the invalid callback
// once per file revision.
type Watcher struct {
	path      string
	interval  time.Duration
	log       *slog.Logger
	onChange  func(old, new *Config)
	onInvalid func(error)

	mu      sync.Mutex
	current *Config
	seen    stamp
	hash    [sha256.Size]byte

	done     chan struct{}
	stopOnce sync.Once
}

// stamp identifies a file revision without reading it.
type stamp struct {
	mtime time.Time
	size  int64
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger. The default is [slog.Default].
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// OnInvalid registers fn for edits that fail to parse or validate.
func OnInvalid(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onInvalid = fn }
}

// NewWatcher loads path and starts polling it on a background goroutine.
// It fails if the initial load does. Call [Watcher.Stop] to end polling.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		log:      slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	st, err := w.stat()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	cfg, hash, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.seen, w.hash = cfg, st, hash

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	st, err := w.stat()
	if err != nil {
		w.log.Warn("config: watched file unavailable", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if st == w.seen {
		w.mu.Unlock()
		return
	}
	w.seen = st
	w.mu.Unlock()

	cfg, hash, err := w.load()
	if err != nil {
		w.log.Warn("config: edit rejected, keeping previous settings", "path", w.path, "err", err)
		if w.onInvalid != nil {
			w.onInvalid(err)
		}
		return
	}

	w.mu.Lock()
	if hash == w.hash {
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current, w.hash = cfg, hash
	w.mu.Unlock()

	w.log.Info("config: reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) stat() (stamp, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return stamp{}, err
	}
	return stamp{mtime: info.ModTime(), size: info.Size()}, nil
}

func (w *Watcher) load() (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
