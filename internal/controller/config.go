// SPDX-License-Identifier: GPL-3.0-only

package controller

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/lumenled/led-autobrightness-daemon/internal/brightness"
)

// SectionName is the named settings section owned by the controller.
const SectionName = "Auto Brightness"

// Config holds the externally-supplied controller parameters. Values are
// clamped at write time, never rejected.
type Config struct {
	Enabled          bool `json:"enabled"`
	MinBrightnessPct int  `json:"minBrightnessPct"`
	MaxBrightnessPct int  `json:"maxBrightnessPct"`
	MinLux           int  `json:"minLux"`
	MaxLux           int  `json:"maxLux"`
}

// DefaultConfig returns the shipped defaults: disabled, 10-100% brightness
// over a 5-500 lux window.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		MinBrightnessPct: 10,
		MaxBrightnessPct: 100,
		MinLux:           5,
		MaxLux:           500,
	}
}

// Clamp forces every field into its valid range: percentages into [0,100]
// (the maximum at least 1 and never below the minimum), lux bounds into
// [0,65535] independently.
func (c *Config) Clamp() {
	c.MinBrightnessPct = clampInt(c.MinBrightnessPct, 0, 100)
	c.MaxBrightnessPct = clampInt(c.MaxBrightnessPct, 1, 100)
	if c.MaxBrightnessPct < c.MinBrightnessPct {
		c.MaxBrightnessPct = c.MinBrightnessPct
	}
	c.MinLux = clampInt(c.MinLux, 0, 65535)
	c.MaxLux = clampInt(c.MaxLux, 1, 65535)
}

// Curve returns the brightness mapping window for the configuration.
func (c Config) Curve() brightness.Curve {
	return brightness.Curve{
		MinPercent: c.MinBrightnessPct,
		MaxPercent: c.MaxBrightnessPct,
		MinLux:     c.MinLux,
		MaxLux:     c.MaxLux,
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Name returns the controller's settings section name.
func (c *Controller) Name() string {
	return SectionName
}

// Config returns the current configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// SetEnabled toggles the controller. Disabling resets the smoothing state so
// the next enable performs a cold-start seed instead of resuming a stale
// estimate.
func (c *Controller) SetEnabled(enabled bool) {
	c.cfg.Enabled = enabled
	if !enabled {
		c.hasSmoothed = false
	}
}

// ExportConfig serializes the configuration section.
func (c *Controller) ExportConfig() (json.RawMessage, error) {
	raw, err := json.Marshal(c.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config section: %w", err)
	}
	return raw, nil
}

// ImportConfig applies a configuration section. Present fields overwrite the
// current values and are clamped into range; absent fields keep their current
// values. The return value reports whether the full expected shape was
// present; an incomplete section is a completeness signal to the host, not a
// hard failure.
func (c *Controller) ImportConfig(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var in struct {
		Enabled          *bool `json:"enabled"`
		MinBrightnessPct *int  `json:"minBrightnessPct"`
		MaxBrightnessPct *int  `json:"maxBrightnessPct"`
		MinLux           *int  `json:"minLux"`
		MaxLux           *int  `json:"maxLux"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		c.log.Warn().Err(err).Msg("Failed to parse config section")
		return false
	}

	complete := true
	if in.Enabled != nil {
		c.cfg.Enabled = *in.Enabled
	} else {
		complete = false
	}
	if in.MinBrightnessPct != nil {
		c.cfg.MinBrightnessPct = *in.MinBrightnessPct
	} else {
		complete = false
	}
	if in.MaxBrightnessPct != nil {
		c.cfg.MaxBrightnessPct = *in.MaxBrightnessPct
	} else {
		complete = false
	}
	if in.MinLux != nil {
		c.cfg.MinLux = *in.MinLux
	} else {
		complete = false
	}
	if in.MaxLux != nil {
		c.cfg.MaxLux = *in.MaxLux
	} else {
		complete = false
	}

	c.cfg.Clamp()

	if !c.cfg.Enabled {
		c.hasSmoothed = false
	}

	return complete
}

// Telemetry reports the display snapshot: the last raw illuminance (one
// decimal) or a waiting placeholder, plus the target against the configured
// maximum while the controller is enabled. Nil when no sensor is present.
func (c *Controller) Telemetry() map[string][]any {
	if !c.present {
		return nil
	}

	t := make(map[string][]any)
	if c.hasLux {
		t["Light level"] = []any{math.Round(c.lastLux*10) / 10, " lx"}
	} else {
		t["Light level"] = []any{"waiting..."}
	}

	if c.cfg.Enabled {
		_, maxBri := c.cfg.Curve().Levels()
		t["Auto brightness"] = []any{c.target, fmt.Sprintf("/%d", maxBri)}
	}
	return t
}

// ConfigHints returns static per-field descriptions of valid ranges and
// defaults, for human display only.
func (c *Controller) ConfigHints() map[string]string {
	return map[string]string{
		"enabled":          "BH1750 sensor",
		"minBrightnessPct": "0-100, default: 10",
		"maxBrightnessPct": "1-100, default: 100",
		"minLux":           "lux mapped to minimum brightness (darkest room)",
		"maxLux":           "lux mapped to maximum brightness (brightest room)",
	}
}
