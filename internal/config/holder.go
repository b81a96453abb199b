// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/validation"
)

// debounceWindow suppresses reload storms caused by editors writing the
// config file in several bursts.
const debounceWindow = 500 * time.Millisecond

// ReloadEvent reports the outcome of a hot-reload attempt.
type ReloadEvent struct {
	// Err is nil when the reload succeeded.
	Err error
	// Profiles is the profile count after a successful reload.
	Profiles int
}

// Holder provides thread-safe access to the current configuration and
// supports hot reloading from file. A failed reload keeps the previous
// configuration in place.
type Holder struct {
	mu      sync.RWMutex
	current *AppConfig

	path   string
	caps   *validation.Capabilities
	logger zerolog.Logger

	eventsMu sync.Mutex
	events   []chan<- ReloadEvent
}

// NewHolder wraps a validated initial configuration.
func NewHolder(initial *AppConfig, path string, caps *validation.Capabilities) *Holder {
	return &Holder{
		current: initial,
		path:    path,
		caps:    caps,
		logger:  xglog.WithComponent("config"),
	}
}

// Get returns the current configuration snapshot. Callers hold the
// returned pointer for the duration of one phase; it is never mutated.
func (h *Holder) Get() *AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Subscribe registers a channel that receives reload events.
func (h *Holder) Subscribe(ch chan<- ReloadEvent) {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	h.events = append(h.events, ch)
}

func (h *Holder) publish(ev ReloadEvent) {
	h.eventsMu.Lock()
	defer h.eventsMu.Unlock()
	for _, ch := range h.events {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Reload loads, validates, and atomically swaps the configuration.
func (h *Holder) Reload(_ context.Context) error {
	cfg, err := LoadAndValidate(h.path, h.caps)
	if err != nil {
		h.logger.Error().Err(err).
			Str("event", "config.reload_failed").
			Msg("configuration reload rejected, previous config unchanged")
		h.publish(ReloadEvent{Err: err})
		return err
	}

	h.mu.Lock()
	h.current = cfg
	h.mu.Unlock()

	h.logger.Info().
		Str("event", "config.reload_success").
		Int("profiles", len(cfg.Profiles)).
		Msg("configuration reloaded")
	h.publish(ReloadEvent{Profiles: len(cfg.Profiles)})
	return nil
}

// Watch observes the config file and triggers a reload on modification,
// debounced by debounceWindow. It blocks until ctx is cancelled.
func (h *Holder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(h.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.path).
		Msg("watching configuration file")

	lastReload := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if time.Since(lastReload) < debounceWindow {
				continue
			}
			// Wait for the writer to finish before reading.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(debounceWindow):
			}
			_ = h.Reload(ctx)
			lastReload = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn().Err(err).
				Str("event", "config.watch_error").
				Msg("config watcher error")
		}
	}
}
