// SPDX-License-Identifier: GPL-3.0-only

// Package dbus provides the D-Bus control service for the LED brightness daemon.
package dbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrEmptySection is returned when an empty settings section name is provided.
var ErrEmptySection = errors.New("section cannot be empty")

// ErrRateLimitExceeded is returned when write requests exceed the rate limit.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// ErrInvalidLevel is returned when a brightness level outside 0-255 is provided.
var ErrInvalidLevel = errors.New("brightness must be between 0 and 255")

const (
	// rateLimitPerSecond is the maximum number of write requests per second.
	rateLimitPerSecond = 20

	// rateLimitBurst is the maximum burst size for write requests.
	rateLimitBurst = 5
)

const (
	// ServiceName is the D-Bus service name.
	ServiceName = "io.github.lumenled.LedAutoBrightness"

	// ObjectPath is the D-Bus object path.
	ObjectPath = "/io/github/lumenled/LedAutoBrightness"

	// InterfaceName is the D-Bus interface name.
	InterfaceName = "io.github.lumenled.LedAutoBrightness"
)

// IntrospectXML is the D-Bus introspection XML for the service.
const IntrospectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="GetTelemetry">
      <arg name="telemetry" type="s" direction="out"/>
    </method>
    <method name="GetConfig">
      <arg name="section" type="s" direction="in"/>
      <arg name="config" type="s" direction="out"/>
    </method>
    <method name="SetConfig">
      <arg name="section" type="s" direction="in"/>
      <arg name="config" type="s" direction="in"/>
      <arg name="complete" type="b" direction="out"/>
    </method>
    <method name="GetConfigHints">
      <arg name="section" type="s" direction="in"/>
      <arg name="hints" type="a{ss}" direction="out"/>
    </method>
    <method name="GetBrightness">
      <arg name="brightness" type="u" direction="out"/>
    </method>
    <method name="SetBrightness">
      <arg name="brightness" type="u" direction="in"/>
      <arg name="fadeMs" type="u" direction="in"/>
    </method>
    <signal name="StateChanged">
      <arg name="brightness" type="u"/>
    </signal>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

// Host is the daemon surface the D-Bus service fronts.
// This allows for mocking in tests.
type Host interface {
	// Telemetry returns the merged live readouts of all capabilities.
	Telemetry() map[string][]any

	// ExportSection serializes the named settings section.
	ExportSection(name string) (json.RawMessage, error)

	// ImportSection applies a settings section and reports completeness.
	ImportSection(name string, raw json.RawMessage) (bool, error)

	// ConfigHints returns the named section's field descriptions.
	ConfigHints(name string) (map[string]string, error)

	// Brightness returns the live output brightness.
	Brightness() uint8

	// SetBrightness starts a fade of the output to the given level.
	SetBrightness(level uint8, fade time.Duration)
}

// Server implements the D-Bus control service.
//
// Thread safety:
//   - The Host serializes all calls internally.
//   - The connMu mutex protects the D-Bus connection field for signal emission.
type Server struct {
	conn        *dbus.Conn
	connMu      sync.RWMutex // Protects conn field only
	host        Host
	rateLimiter *rate.Limiter
}

// NewServer creates a new D-Bus server fronting the given host.
func NewServer(host Host) *Server {
	return &Server{
		host:        host,
		rateLimiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
	}
}

// Start connects to the session bus and exports the service.
func (s *Server) Start() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}

	// Ensure connection is closed if setup fails
	success := false
	defer func() {
		if !success {
			if closeErr := conn.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("Failed to close D-Bus connection during cleanup")
			}
		}
	}()

	// Export the server object
	err = conn.Export(s, ObjectPath, InterfaceName)
	if err != nil {
		return fmt.Errorf("failed to export server: %w", err)
	}

	// Export introspectable interface
	err = conn.Export(introspect.Introspectable(IntrospectXML), ObjectPath, "org.freedesktop.DBus.Introspectable")
	if err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	// Request the service name
	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", ServiceName)
	}

	// Store connection with mutex protection
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	success = true
	log.Info().Str("service", ServiceName).Msg("D-Bus service started")
	return nil
}

// Stop disconnects from the session bus.
func (s *Server) Stop() error {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// GetTelemetry returns the merged capability readouts as a JSON object.
func (s *Server) GetTelemetry() (string, *dbus.Error) {
	telemetry := s.host.Telemetry()

	data, err := json.Marshal(telemetry)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal telemetry")
		return "", dbus.MakeFailedError(err)
	}

	log.Debug().Int("entries", len(telemetry)).Msg("Read telemetry")
	return string(data), nil
}

// GetConfig returns the named settings section as a JSON object.
func (s *Server) GetConfig(section string) (string, *dbus.Error) {
	if section == "" {
		return "", dbus.MakeFailedError(ErrEmptySection)
	}

	raw, err := s.host.ExportSection(section)
	if err != nil {
		log.Error().Err(err).Str("section", section).Msg("Failed to export settings section")
		return "", dbus.MakeFailedError(err)
	}

	log.Debug().Str("section", section).Msg("Read settings section")
	return string(raw), nil
}

// SetConfig applies a JSON settings section. The returned flag reports
// whether every expected field was present.
func (s *Server) SetConfig(section, config string) (bool, *dbus.Error) {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetConfig")
		return false, dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if section == "" {
		return false, dbus.MakeFailedError(ErrEmptySection)
	}

	if !json.Valid([]byte(config)) {
		return false, dbus.MakeFailedError(errors.New("config is not valid JSON"))
	}

	complete, err := s.host.ImportSection(section, json.RawMessage(config))
	if err != nil {
		log.Error().Err(err).Str("section", section).Msg("Failed to import settings section")
		return false, dbus.MakeFailedError(err)
	}

	log.Debug().Str("section", section).Bool("complete", complete).Msg("Applied settings section")
	return complete, nil
}

// GetConfigHints returns the named section's per-field range descriptions.
func (s *Server) GetConfigHints(section string) (map[string]string, *dbus.Error) {
	if section == "" {
		return nil, dbus.MakeFailedError(ErrEmptySection)
	}

	hints, err := s.host.ConfigHints(section)
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}
	return hints, nil
}

// GetBrightness returns the live output brightness (0-255).
func (s *Server) GetBrightness() (uint32, *dbus.Error) {
	brightness := s.host.Brightness()
	log.Debug().Uint8("brightness", brightness).Msg("Got brightness")
	return uint32(brightness), nil
}

// SetBrightness fades the output to a level (0-255) over fadeMs milliseconds.
func (s *Server) SetBrightness(brightness, fadeMs uint32) *dbus.Error {
	if !s.rateLimiter.Allow() {
		log.Warn().Msg("Rate limit exceeded for SetBrightness")
		return dbus.MakeFailedError(ErrRateLimitExceeded)
	}

	if brightness > 255 {
		return dbus.MakeFailedError(ErrInvalidLevel)
	}

	// #nosec G115 -- brightness is validated to 0-255, safe for uint8
	s.host.SetBrightness(uint8(brightness), time.Duration(fadeMs)*time.Millisecond)

	log.Debug().Uint32("brightness", brightness).Uint32("fadeMs", fadeMs).Msg("Set brightness")
	return nil
}

// EmitStateChanged emits the StateChanged signal with the current brightness.
func (s *Server) EmitStateChanged(brightness uint8) {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()

	if conn == nil {
		return
	}

	err := conn.Emit(ObjectPath, InterfaceName+".StateChanged", uint32(brightness))
	if err != nil {
		log.Error().Err(err).Msg("Failed to emit StateChanged signal")
	}
}
