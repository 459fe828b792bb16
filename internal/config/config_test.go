package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/var/lib/led-autobrightness/settings.json", cfg.Settings)
	assert.Equal(t, "/dev/i2c-1", cfg.Sensor.Bus)
	assert.Equal(t, uint16(0x23), cfg.Sensor.Address)
	assert.Equal(t, 115200, cfg.LED.Baud)
	assert.Equal(t, 30, cfg.LED.Count)
	assert.Equal(t, "#FFFFFF", cfg.LED.Color)
	assert.Equal(t, "led-autobrightness", cfg.MQTT.ClientID)
	assert.Equal(t, 30*time.Second, cfg.MQTT.Heartbeat.Duration())
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log:
  level: debug
  colors: true
settings: /tmp/led.json
sensor:
  enabled: true
  bus: /dev/i2c-3
  address: 0x5c
led:
  device: /dev/ttyUSB0
  baud: 57600
  count: 120
  color: "#FF8800"
dbus:
  enabled: true
mqtt:
  enabled: true
  broker: tcp://broker.local:1883
  topic_prefix: house/leds
  heartbeat: 10s
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Sensor.Enabled)
	assert.Equal(t, uint16(0x5c), cfg.Sensor.Address)
	assert.Equal(t, "/dev/ttyUSB0", cfg.LED.Device)
	assert.Equal(t, 120, cfg.LED.Count)
	assert.True(t, cfg.DBus.Enabled)
	assert.Equal(t, "house/leds", cfg.MQTT.TopicPrefix)
	assert.Equal(t, 10*time.Second, cfg.MQTT.Heartbeat.Duration())

	rgb, err := cfg.LED.BaseColor()
	require.NoError(t, err)
	assert.Equal(t, [3]byte{0xff, 0x88, 0x00}, rgb)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "negative led count", content: "led:\n  count: -5\n"},
		{name: "bad color", content: "led:\n  color: \"red\"\n"},
		{name: "address out of range", content: "sensor:\n  address: 0x90\n"},
		{name: "mqtt enabled without broker", content: "mqtt:\n  enabled: true\n"},
		{name: "bad duration", content: "mqtt:\n  heartbeat: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBaseColor(t *testing.T) {
	tests := []struct {
		color   string
		want    [3]byte
		wantErr bool
	}{
		{color: "#FFFFFF", want: [3]byte{255, 255, 255}},
		{color: "#000000", want: [3]byte{0, 0, 0}},
		{color: "#a0b1c2", want: [3]byte{0xa0, 0xb1, 0xc2}},
		{color: "FFFFFF", wantErr: true},
		{color: "#FFF", wantErr: true},
		{color: "#GGHHII", wantErr: true},
		{color: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.color, func(t *testing.T) {
			led := LEDConfig{Color: tt.color}
			got, err := led.BaseColor()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
