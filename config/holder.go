package config

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Hooks are called after each reload attempt.
type Hooks struct {
	Applied func(*Config) // the new configuration is live
	Failed  func(error)   // the current configuration was kept
}

// Holder keeps the live configuration of a running server and reloads it
// from its file. The generator section and logging.level take effect without
// a restart. RestartRequired names the rest.
type Holder struct {
	path string
	cfg  atomic.Pointer[Config]

	mu     sync.Mutex // serializes reloads
	logger zerolog.Logger
	hooks  Hooks

	stop     chan struct{}
	stopOnce sync.Once
}

// NewHolder loads the file at path.
func NewHolder(path string) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{path: abs, logger: zerolog.Nop(), stop: make(chan struct{})}
	h.cfg.Store(cfg)
	return h, nil
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.cfg.Load()
}

// Reload re-reads the file. A file that fails to load or validate leaves the
// current configuration in place.
func (h *Holder) Reload() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("config reload failed, keeping current config")
		if h.hooks.Failed != nil {
			h.hooks.Failed(err)
		}
		return fmt.Errorf("reload config: %w", err)
	}

	prev := h.cfg.Swap(next)
	if prev.Generator != next.Generator {
		h.logger.Info().
			Int("default_samples", next.Generator.DefaultSamples).
			Int("max_samples", next.Generator.MaxSamples).
			Int("max_sessions", next.Generator.MaxSessions).
			Msg("generator settings changed")
	}
	if prev.Logging.Level != next.Logging.Level {
		h.logger.Info().Str("old", prev.Logging.Level).Str("new", next.Logging.Level).Msg("log level changed")
	}
	if keys := RestartRequired(prev, next); len(keys) > 0 {
		h.logger.Warn().Strs("keys", keys).Msg("changed settings take effect after restart")
	}

	if h.hooks.Applied != nil {
		h.hooks.Applied(next)
	}
	return nil
}

// Watch reloads on writes to the config file and on SIGHUP until Stop. It is
// called once. When the file cannot be watched the error is returned and
// SIGHUP still reloads.
func (h *Holder) Watch(logger zerolog.Logger, hooks Hooks) error {
	h.mu.Lock()
	h.logger = logger
	h.hooks = hooks
	h.mu.Unlock()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)

	// The directory is watched because editors that save atomically replace
	// the file.
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err = watcher.Add(filepath.Dir(h.path)); err != nil {
			watcher.Close()
		}
	}
	if err != nil {
		go h.loop(nil, sighup)
		return fmt.Errorf("watch config file: %w", err)
	}

	go h.loop(watcher, sighup)
	logger.Info().Str("path", h.path).Msg("watching config file and SIGHUP")
	return nil
}

// Stop ends the watch loop. It is safe to call more than once.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Holder) loop(watcher *fsnotify.Watcher, sighup chan os.Signal) {
	defer signal.Stop(sighup)

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher != nil {
		defer watcher.Close()
		events, errs = watcher.Events, watcher.Errors
	}
	name := filepath.Base(h.path)

	for {
		select {
		case <-h.stop:
			return
		case <-sighup:
			h.logger.Info().Msg("received SIGHUP, reloading config")
			_ = h.Reload()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) == name && ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				_ = h.Reload()
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			h.logger.Error().Err(err).Msg("config watcher error")
		}
	}
}

// RestartRequired lists the sections that differ between prev and next and
// are only read at startup.
func RestartRequired(prev, next *Config) []string {
	var keys []string
	changed := func(key string, differs bool) {
		if differs {
			keys = append(keys, key)
		}
	}

	changed("server", prev.Server != next.Server)
	changed("remote", !reflect.DeepEqual(prev.Remote, next.Remote))
	changed("database", prev.Database != next.Database)
	changed("logging.format", prev.Logging.Format != next.Logging.Format)
	changed("metrics", prev.Metrics != next.Metrics)
	changed("openapi", prev.OpenAPI != next.OpenAPI)
	return keys
}
