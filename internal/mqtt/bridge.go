// SPDX-License-Identifier: GPL-3.0-only

// Package mqtt publishes daemon state to an MQTT broker and accepts
// brightness, auto-mode and settings commands from it.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/lumenled/led-autobrightness-daemon/internal/config"
)

// Host is the daemon surface the bridge fronts.
type Host interface {
	// Telemetry returns the merged live readouts of all capabilities.
	Telemetry() map[string][]any

	// Brightness returns the live output brightness.
	Brightness() uint8

	// SetBrightness starts a fade of the output to the given level.
	SetBrightness(level uint8, fade time.Duration)

	// SetAutomatic toggles automatic brightness control.
	SetAutomatic(enabled bool)

	// ImportSection applies a settings section and reports completeness.
	ImportSection(name string, raw json.RawMessage) (bool, error)
}

// brightnessCommand is the payload accepted on the brightness set topic.
type brightnessCommand struct {
	Brightness uint16 `json:"brightness"`
	FadeMs     uint32 `json:"fade_ms"`
}

// state is the retained payload published on the state topic.
type state struct {
	Brightness uint8            `json:"brightness"`
	Telemetry  map[string][]any `json:"telemetry,omitempty"`
}

// ClientFactory builds an MQTT client from prepared options. Tests inject a
// fake here.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Bridge connects the daemon to an MQTT broker.
type Bridge struct {
	cfg     config.MQTTConfig
	host    Host
	client  pahomqtt.Client
	factory ClientFactory
	stop    chan struct{}
}

// BridgeOption is a functional option for configuring a Bridge.
type BridgeOption func(*Bridge)

// WithClientFactory overrides how the MQTT client is constructed.
func WithClientFactory(factory ClientFactory) BridgeOption {
	return func(b *Bridge) {
		b.factory = factory
	}
}

// NewBridge creates a bridge for the given broker configuration.
func NewBridge(cfg config.MQTTConfig, host Host, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		cfg:  cfg,
		host: host,
		stop: make(chan struct{}),
		factory: func(opts *pahomqtt.ClientOptions) pahomqtt.Client {
			return pahomqtt.NewClient(opts)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start connects to the broker, subscribes to the command topics and begins
// the heartbeat publisher.
func (b *Bridge) Start() error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.cfg.Broker).
		SetClientID(b.cfg.ClientID).
		SetAutoReconnect(true)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username).SetPassword(b.cfg.Password)
	}
	opts.SetOnConnectHandler(func(client pahomqtt.Client) {
		log.Info().Str("broker", b.cfg.Broker).Msg("Connected to MQTT broker")
		if err := b.subscribe(client); err != nil {
			log.Error().Err(err).Msg("MQTT subscription failed")
		}
		b.publishState(client)
	})

	client := b.factory(opts)
	if t := client.Connect(); t.Wait() && t.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", t.Error())
	}
	b.client = client

	go b.heartbeat()
	return nil
}

// Stop halts the heartbeat and disconnects from the broker.
func (b *Bridge) Stop() {
	close(b.stop)
	if b.client != nil {
		b.client.Disconnect(250)
	}
}

func (b *Bridge) subscribe(client pahomqtt.Client) error {
	brightnessTopic := b.cfg.TopicPrefix + "/brightness/set"
	if t := client.Subscribe(brightnessTopic, 0, b.handleBrightness); t.Wait() && t.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", brightnessTopic, t.Error())
	}

	autoTopic := b.cfg.TopicPrefix + "/auto/set"
	if t := client.Subscribe(autoTopic, 0, b.handleAuto); t.Wait() && t.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", autoTopic, t.Error())
	}

	configTopic := b.cfg.TopicPrefix + "/config/+/set"
	if t := client.Subscribe(configTopic, 0, b.handleConfig); t.Wait() && t.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", configTopic, t.Error())
	}
	return nil
}

func (b *Bridge) handleBrightness(_ pahomqtt.Client, msg pahomqtt.Message) {
	cmd := &brightnessCommand{}
	if err := json.Unmarshal(msg.Payload(), cmd); err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Msg("Discarding malformed brightness command")
		return
	}
	if cmd.Brightness > 255 {
		log.Warn().Uint16("brightness", cmd.Brightness).Msg("Discarding out of range brightness command")
		return
	}

	// #nosec G115 -- brightness is validated to 0-255, safe for uint8
	b.host.SetBrightness(uint8(cmd.Brightness), time.Duration(cmd.FadeMs)*time.Millisecond)
	log.Debug().Uint16("brightness", cmd.Brightness).Uint32("fadeMs", cmd.FadeMs).Msg("Applied brightness command")
}

func (b *Bridge) handleAuto(_ pahomqtt.Client, msg pahomqtt.Message) {
	enabled, err := strconv.ParseBool(strings.TrimSpace(string(msg.Payload())))
	if err != nil {
		log.Warn().Str("payload", string(msg.Payload())).Msg("Discarding malformed auto command")
		return
	}

	b.host.SetAutomatic(enabled)
	log.Info().Bool("enabled", enabled).Msg("Applied auto command")
}

func (b *Bridge) handleConfig(_ pahomqtt.Client, msg pahomqtt.Message) {
	section := sectionFromTopic(b.cfg.TopicPrefix, msg.Topic())
	if section == "" {
		log.Warn().Str("topic", msg.Topic()).Msg("Discarding config command with no section")
		return
	}

	complete, err := b.host.ImportSection(section, json.RawMessage(msg.Payload()))
	if err != nil {
		log.Warn().Err(err).Str("section", section).Msg("Rejected config command")
		return
	}
	if !complete {
		log.Debug().Str("section", section).Msg("Applied partial config command")
	}
	log.Info().Str("section", section).Msg("Applied config command")
}

// sectionFromTopic extracts the settings section name from a config command
// topic of the form <prefix>/config/<section>/set. Section names may contain
// spaces but not slashes.
func sectionFromTopic(prefix, topic string) string {
	rest, ok := strings.CutPrefix(topic, prefix+"/config/")
	if !ok {
		return ""
	}
	section, ok := strings.CutSuffix(rest, "/set")
	if !ok || strings.Contains(section, "/") {
		return ""
	}
	return section
}

// PublishState publishes the retained daemon state.
func (b *Bridge) PublishState() {
	if b.client == nil {
		return
	}
	b.publishState(b.client)
}

func (b *Bridge) publishState(client pahomqtt.Client) {
	payload, err := json.Marshal(state{
		Brightness: b.host.Brightness(),
		Telemetry:  b.host.Telemetry(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal daemon state")
		return
	}

	topic := b.cfg.TopicPrefix + "/state"
	if t := client.Publish(topic, 0, true, payload); t.Wait() && t.Error() != nil {
		log.Error().Err(t.Error()).Str("topic", topic).Msg("Failed to publish daemon state")
	}
}

func (b *Bridge) heartbeat() {
	ticker := time.NewTicker(b.cfg.Heartbeat.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.PublishState()
		}
	}
}
