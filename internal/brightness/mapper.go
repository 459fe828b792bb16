// SPDX-License-Identifier: GPL-3.0-only

// Package brightness provides the perceptual mapping from ambient illuminance
// (in lux) to LED output brightness (0-255).
package brightness

import "math"

const (
	// MaxLevel is the highest output brightness level.
	MaxLevel uint8 = 255

	// MinFloor is the lowest brightness the mapper will ever select while a
	// minimum percentage is configured. Keeping the floor above zero avoids a
	// dead slider at the very bottom of the range.
	MinFloor uint8 = 1
)

// Curve describes the configured illuminance-to-brightness window.
// MinPercent/MaxPercent bound the output brightness as percentages of
// MaxLevel; MinLux/MaxLux bound the illuminance window they map to.
type Curve struct {
	MinPercent int
	MaxPercent int
	MinLux     int
	MaxLux     int
}

// Levels returns the effective output brightness bounds for the curve.
// The lower bound is floored to MinFloor; the upper bound is raised to the
// lower bound if the configured percentages invert.
func (c Curve) Levels() (min, max uint8) {
	min = PercentToLevel(c.MinPercent)
	if min < MinFloor {
		min = MinFloor
	}
	max = PercentToLevel(c.MaxPercent)
	if max < min {
		max = min
	}
	return min, max
}

// Map converts a smoothed illuminance value into a target brightness level.
//
// Readings at or below MinLux map to the lower bound, readings at or above
// MaxLux map to the upper bound, and readings in between are normalized and
// passed through a square-root curve so mid-range illuminance produces a
// visually proportionate brightness rather than a linear one.
//
// Map is a pure function: deterministic for identical inputs, no state.
func (c Curve) Map(lux float64) uint8 {
	minBri, maxBri := c.Levels()

	minLux := float64(c.MinLux)
	maxLux := float64(c.MaxLux)
	if maxLux <= minLux {
		maxLux = minLux + 1
	}

	if lux <= minLux {
		return minBri
	}
	if lux >= maxLux {
		return maxBri
	}

	normalized := (lux - minLux) / (maxLux - minLux)
	normalized = math.Sqrt(normalized)

	return minBri + uint8(math.Round(normalized*float64(maxBri-minBri)))
}

// PercentToLevel converts a percentage (0-100) to a brightness level (0-255).
// Percentages outside the valid range are clamped before conversion.
func PercentToLevel(percent int) uint8 {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return uint8(math.Round(float64(percent) / 100 * float64(MaxLevel)))
}
