package config

import (
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// MutableConfig is the hot-reloadable subset of Config. Only the
// destructive action budget is re-read on reload; ToolTrustOverrides is
// seeded empty, is not read from the config file, and is never updated, so
// tool trust requirements do not change at runtime. socket_path and
// audit_log are load-once — changing either mid-process would orphan the
// listener or split the audit trail across two files, so Watcher never
// touches them.
type MutableConfig struct {
	MaxDestructivePerMinute int
	ToolTrustOverrides      map[string]string
}

// Watcher holds an atomically-swappable MutableConfig snapshot, kept in
// sync with the on-disk TOML file via fsnotify. Each reload is pushed to
// the OnReload callback, which the daemon uses to apply the new budget to
// the rate limiter, so an operator can tighten (or loosen) the rate limit
// without restarting the process.
type Watcher struct {
	path string

	mu   sync.RWMutex
	curr MutableConfig

	onReload func(MutableConfig)

	logger  *zap.Logger
	watcher *fsnotify.Watcher
	closed  atomic.Bool
}

// OnReload registers fn to be called, with the freshly reloaded snapshot,
// every time the watched file changes. Intended for wiring a component
// like the rate limiter that needs to react to the new value rather than
// poll Current().
func (w *Watcher) OnReload(fn func(MutableConfig)) {
	w.onReload = fn
}

// NewWatcher builds a Watcher seeded with the mutable fields of cfg and
// starts watching path for writes. Failure to create the underlying
// fsnotify watcher is non-fatal: the Watcher still serves the seeded
// snapshot, it just never updates it.
func NewWatcher(path string, cfg *Config, logger *zap.Logger) *Watcher {
	w := &Watcher{
		path: path,
		curr: MutableConfig{
			MaxDestructivePerMinute: cfg.Agent.MaxDestructivePerMinute,
			ToolTrustOverrides:      map[string]string{},
		},
		logger: logger,
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config hot-reload disabled: failed to create fsnotify watcher", zap.Error(err))
		return w
	}
	if err := fw.Add(path); err != nil {
		logger.Warn("config hot-reload disabled: failed to watch config file", zap.String("path", path), zap.Error(err))
		fw.Close()
		return w
	}
	w.watcher = fw
	return w
}

// Current returns the latest MutableConfig snapshot.
func (w *Watcher) Current() MutableConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.curr
}

// Run blocks, applying fsnotify events until the Watcher is closed. No-op
// if construction failed to establish a watch.
func (w *Watcher) Run() {
	if w.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config hot-reload: failed to re-read config file, keeping previous values", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.curr.MaxDestructivePerMinute = cfg.Agent.MaxDestructivePerMinute
	snapshot := w.curr
	w.mu.Unlock()

	w.logger.Info("config hot-reload applied",
		zap.Int("max_destructive_per_minute", cfg.Agent.MaxDestructivePerMinute))

	if w.onReload != nil {
		w.onReload(snapshot)
	}
}

// Close stops the underlying fsnotify watch.
func (w *Watcher) Close() error {
	if w.watcher == nil || w.closed.Swap(true) {
		return nil
	}
	return w.watcher.Close()
}
