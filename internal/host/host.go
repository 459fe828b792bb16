// SPDX-License-Identifier: GPL-3.0-only

// Package host composes the daemon: it drives the render pipeline and every
// registered capability from one cooperative tick loop and arbitrates access
// from the control surfaces.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenled/led-autobrightness-daemon/internal/pipeline"
	"github.com/lumenled/led-autobrightness-daemon/internal/settings"
)

// DefaultTickInterval is the cadence of the driver loop.
const DefaultTickInterval = 10 * time.Millisecond

// Capability is a pluggable controller hosted by the daemon: it is ticked on
// the loop cadence and owns one named settings section. Tick and the config
// entry points are never invoked concurrently; the host guarantees it.
type Capability interface {
	// Name is the capability's settings section name.
	Name() string

	// Initialize is called once at startup, after the persisted
	// configuration has been imported.
	Initialize() error

	// Tick advances the capability's control loop. It must not block.
	Tick(now time.Time)

	// ExportConfig serializes the capability's settings section.
	ExportConfig() (json.RawMessage, error)

	// ImportConfig applies a settings section and reports whether the full
	// expected shape was present.
	ImportConfig(raw json.RawMessage) bool

	// Telemetry returns display labels mapped to value arrays, or nil.
	Telemetry() map[string][]any

	// ConfigHints returns static per-field range/default descriptions.
	ConfigHints() map[string]string
}

// Switchable is implemented by capabilities that carry a runtime enable
// toggle in addition to their settings section.
type Switchable interface {
	SetEnabled(enabled bool)
}

// Notifier receives consumed UI refresh notifications after a tick. It runs
// outside the host lock and may block briefly.
type Notifier func(mode pipeline.RefreshMode)

// ErrUnknownSection is returned for config operations on a section no
// registered capability owns.
var ErrUnknownSection = errors.New("unknown settings section")

// Loop is the daemon's single-threaded cooperative driver. One mutex
// serializes the tick path against the D-Bus and MQTT entry points.
type Loop struct {
	mu     sync.Mutex
	engine *pipeline.Engine
	caps   []Capability

	store    *settings.Store
	interval time.Duration
	notify   Notifier
}

// LoopOption is a functional option for configuring a Loop.
type LoopOption func(*Loop)

// WithTickInterval overrides the driver cadence.
func WithTickInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.interval = d
	}
}

// WithNotifier sets the notification dispatcher.
func WithNotifier(fn Notifier) LoopOption {
	return func(l *Loop) {
		l.notify = fn
	}
}

// NewLoop creates a driver loop around the render engine and settings store.
func NewLoop(engine *pipeline.Engine, store *settings.Store, opts ...LoopOption) *Loop {
	l := &Loop{
		engine:   engine,
		store:    store,
		interval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register adds a capability. Must be called before Initialize.
func (l *Loop) Register(c Capability) {
	l.caps = append(l.caps, c)
}

// Initialize imports each capability's persisted section and initializes it.
func (l *Loop) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.caps {
		if raw := l.store.Section(c.Name()); raw != nil {
			if !c.ImportConfig(raw) {
				log.Warn().Str("section", c.Name()).Msg("Persisted settings section is incomplete, using defaults for missing fields")
			}
		}
		if err := c.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize %q: %w", c.Name(), err)
		}
	}
	return nil
}

// Run drives the loop until the context is canceled.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", l.interval).Msg("Driver loop running")
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.tick(now)
		}
	}
}

func (l *Loop) tick(now time.Time) {
	l.mu.Lock()
	l.engine.Tick(now)
	for _, c := range l.caps {
		c.Tick(now)
	}
	mode := l.engine.ConsumeRefresh()
	l.mu.Unlock()

	if mode != pipeline.RefreshNone && l.notify != nil {
		l.notify(mode)
	}
}

// Locked runs fn under the host lock, serialized against the tick path.
func (l *Loop) Locked(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

// Telemetry merges the telemetry snapshots of every capability.
func (l *Loop) Telemetry() map[string][]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string][]any)
	for _, c := range l.caps {
		for label, values := range c.Telemetry() {
			merged[label] = values
		}
	}
	return merged
}

// ExportSection serializes the named settings section.
func (l *Loop) ExportSection(name string) (json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.capability(name)
	if c == nil {
		return nil, ErrUnknownSection
	}
	return c.ExportConfig()
}

// ImportSection applies a settings section, schedules a full state broadcast
// and persists the updated settings. The returned flag reports whether the
// section carried the full expected shape.
func (l *Loop) ImportSection(name string, raw json.RawMessage) (bool, error) {
	l.mu.Lock()
	c := l.capability(name)
	if c == nil {
		l.mu.Unlock()
		return false, ErrUnknownSection
	}
	complete := c.ImportConfig(raw)
	l.engine.RequestStateBroadcast()
	l.mu.Unlock()

	if err := l.SaveSettings(); err != nil {
		log.Error().Err(err).Msg("Failed to persist settings")
	}
	return complete, nil
}

// ConfigHints returns the named capability's field descriptions.
func (l *Loop) ConfigHints(name string) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.capability(name)
	if c == nil {
		return nil, ErrUnknownSection
	}
	return c.ConfigHints(), nil
}

// Brightness returns the live output brightness.
func (l *Loop) Brightness() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.engine.Brightness()
}

// SetBrightness starts a host-priority fade to level. While it runs, the
// pipeline owns the output and capability writers stand down.
func (l *Loop) SetBrightness(level uint8, fade time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engine.StartTransition(level, fade, time.Now())
	l.engine.RequestStateBroadcast()
}

// SetAutomatic flips the enable toggle of every switchable capability,
// schedules a full state broadcast and persists the change.
func (l *Loop) SetAutomatic(enabled bool) {
	l.mu.Lock()
	for _, c := range l.caps {
		if s, ok := c.(Switchable); ok {
			s.SetEnabled(enabled)
		}
	}
	l.engine.RequestStateBroadcast()
	l.mu.Unlock()

	if err := l.SaveSettings(); err != nil {
		log.Error().Err(err).Msg("Failed to persist settings")
	}
}

// SaveSettings exports every capability section into the store and writes it.
func (l *Loop) SaveSettings() error {
	l.mu.Lock()
	for _, c := range l.caps {
		raw, err := c.ExportConfig()
		if err != nil {
			l.mu.Unlock()
			return fmt.Errorf("failed to export %q: %w", c.Name(), err)
		}
		l.store.SetSection(c.Name(), raw)
	}
	l.mu.Unlock()

	return l.store.Save()
}

// capability finds a registered capability by section name. Callers hold the lock.
func (l *Loop) capability(name string) Capability {
	for _, c := range l.caps {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
