// SPDX-License-Identifier: GPL-3.0-only

// Package config loads the daemon configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration
type Config struct {
	Log      LogConfig    `yaml:"log"`
	Settings string       `yaml:"settings"` // Path to the persisted settings file
	Sensor   SensorConfig `yaml:"sensor"`
	LED      LEDConfig    `yaml:"led"`
	DBus     DBusConfig   `yaml:"dbus"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Colors bool   `yaml:"colors"`
}

// SensorConfig contains ambient light sensor settings
type SensorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bus     string `yaml:"bus"`     // I2C character device, e.g. /dev/i2c-1
	Address uint16 `yaml:"address"` // 7-bit slave address (default: 0x23)
}

// LEDConfig contains the serial LED link settings
type LEDConfig struct {
	Device string `yaml:"device"` // Serial port, e.g. /dev/ttyUSB0
	Baud   int    `yaml:"baud"`   // Line speed (default: 115200)
	Count  int    `yaml:"count"`  // Number of addressable LEDs (default: 30)
	Color  string `yaml:"color"`  // Base color as #RRGGBB (default: #FFFFFF)
}

// DBusConfig contains D-Bus control service settings
type DBusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTConfig contains MQTT telemetry bridge settings
type MQTTConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Broker      string   `yaml:"broker"`       // e.g. tcp://localhost:1883
	ClientID    string   `yaml:"client_id"`    // Client identifier (default: led-autobrightness)
	TopicPrefix string   `yaml:"topic_prefix"` // Topic namespace (default: led-autobrightness)
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	Heartbeat   Duration `yaml:"heartbeat"` // State publish interval (default: 30s)
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// BaseColor parses the configured LED color into RGB bytes.
func (c *LEDConfig) BaseColor() ([3]byte, error) {
	var rgb [3]byte
	if len(c.Color) != 7 || c.Color[0] != '#' {
		return rgb, fmt.Errorf("invalid color %q: expected #RRGGBB", c.Color)
	}
	for i := 0; i < 3; i++ {
		hi, ok1 := hexNibble(c.Color[1+2*i])
		lo, ok2 := hexNibble(c.Color[2+2*i])
		if !ok1 || !ok2 {
			return rgb, fmt.Errorf("invalid color %q: expected #RRGGBB", c.Color)
		}
		rgb[i] = hi<<4 | lo
	}
	return rgb, nil
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Settings == "" {
		cfg.Settings = "/var/lib/led-autobrightness/settings.json"
	}

	// Sensor defaults
	if cfg.Sensor.Bus == "" {
		cfg.Sensor.Bus = "/dev/i2c-1"
	}
	if cfg.Sensor.Address == 0 {
		cfg.Sensor.Address = 0x23
	}

	// LED link defaults
	if cfg.LED.Baud == 0 {
		cfg.LED.Baud = 115200
	}
	if cfg.LED.Count == 0 {
		cfg.LED.Count = 30
	}
	if cfg.LED.Color == "" {
		cfg.LED.Color = "#FFFFFF"
	}

	// MQTT defaults
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "led-autobrightness"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "led-autobrightness"
	}
	if cfg.MQTT.Heartbeat == 0 {
		cfg.MQTT.Heartbeat = Duration(30 * time.Second)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LED.Count < 1 {
		return fmt.Errorf("led.count must be positive, got %d", c.LED.Count)
	}
	if c.LED.Baud < 1 {
		return fmt.Errorf("led.baud must be positive, got %d", c.LED.Baud)
	}
	if _, err := c.LED.BaseColor(); err != nil {
		return err
	}
	if c.Sensor.Address > 0x7f {
		return fmt.Errorf("sensor.address 0x%x is not a 7-bit I2C address", c.Sensor.Address)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	return nil
}
