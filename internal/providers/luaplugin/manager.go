// SPDX-License-Identifier: MIT

package luaplugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/providers"
)

const debounce = 2 * time.Second

// Manager owns the plugin directory: it scans it into the registry and
// keeps the set current while the directory changes on disk.
type Manager struct {
	dir      string
	registry *providers.Registry
	bus      *events.Bus
	logger   zerolog.Logger

	mu      sync.Mutex
	current []*Plugin
	errors  []FileError
	watcher *fsnotify.Watcher
}

func NewManager(dir string, registry *providers.Registry, bus *events.Bus) *Manager {
	return &Manager{
		dir:      dir,
		registry: registry,
		bus:      bus,
		logger:   log.WithComponent("plugins"),
	}
}

// Reload rescans the plugin directory and swaps the registry's plugin set
// in one step. Files that fail validation are skipped and reported via
// Errors; the surviving set still loads.
func (m *Manager) Reload(_ context.Context) error {
	plugins, failures := Scan(m.dir)

	set := make([]providers.Provider, len(plugins))
	for i, p := range plugins {
		set[i] = p
	}
	rejected := m.registry.SetPlugins(set)
	for _, name := range rejected {
		for _, p := range plugins {
			if p.Name() == name {
				failures = append(failures, FileError{Path: p.path,
					Err: fmt.Errorf("plugin name %q shadows a built-in provider", name)})
				p.Close()
			}
		}
	}

	m.mu.Lock()
	old := m.current
	m.current = plugins
	m.errors = failures
	m.mu.Unlock()

	// In-flight calls finish under the plugin mutex before the state dies.
	for _, p := range old {
		p.Close()
	}

	loaded := len(plugins) - len(rejected)
	for _, f := range failures {
		m.logger.Warn().Str("event", "plugins.file_skipped").Str("file", f.Error()).Msg("plugin skipped")
	}
	m.logger.Info().
		Str("event", "plugins.reloaded").
		Int("loaded", loaded).
		Int("skipped", len(failures)).
		Msg("plugin set reloaded")
	if m.bus != nil {
		m.bus.Emit(events.PluginsReloaded, map[string]any{
			"loaded":  loaded,
			"skipped": len(failures),
		})
	}
	return nil
}

// Errors returns the per-file failures recorded by the last reload.
func (m *Manager) Errors() []FileError {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FileError, len(m.errors))
	copy(out, m.errors)
	return out
}

// StartWatcher watches the plugin directory and reloads after changes
// settle. An empty or missing directory disables the watcher.
func (m *Manager) StartWatcher(ctx context.Context) error {
	if m.dir == "" {
		m.logger.Info().Str("event", "plugins.watcher_disabled").Msg("no plugin directory configured")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(m.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch plugin dir: %w", err)
	}

	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "plugins.watcher_started").
		Str("dir", m.dir).
		Msg("watching plugin directory")

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	// Restartable timer so a burst of writes yields one reload.
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Str("event", "plugins.watcher_stopped").Msg("plugin watcher stopped")
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounce, func() {
					if err := m.Reload(ctx); err != nil {
						m.logger.Error().Err(err).
							Str("event", "plugins.auto_reload_failed").
							Msg("automatic plugin reload failed")
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error().Err(err).Str("event", "plugins.watcher_error").Msg("plugin watcher error")
		}
	}
}

// Stop closes the watcher, if one is running.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
}
