// SPDX-License-Identifier: GPL-3.0-only

// Package controller implements the closed-loop ambient-light-to-brightness
// controller: it samples a light sensor, smooths the readings, maps them to a
// target output brightness and walks the live brightness toward that target
// without ever blocking the render pipeline it shares the output with.
package controller

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/lumenled/led-autobrightness-daemon/internal/host"
	"github.com/lumenled/led-autobrightness-daemon/internal/sensor"
)

// Verify Controller implements the host capability interfaces.
var (
	_ host.Capability = (*Controller)(nil)
	_ host.Switchable = (*Controller)(nil)
)

//go:generate mockgen -source=controller.go -destination=mocks/output_mock.go -package=mocks

const (
	// sampleInterval is how often the light sensor is polled.
	sampleInterval = 500 * time.Millisecond

	// stepInterval is how often the live brightness advances one step.
	stepInterval = 30 * time.Millisecond

	// uiSyncInterval bounds how often a UI refresh notification is requested
	// while the brightness is moving.
	uiSyncInterval = 2 * time.Second

	// emaAlpha is the exponential smoothing factor for illuminance readings.
	// Biased toward noise rejection over responsiveness.
	emaAlpha = 0.35

	// targetHysteresis is the minimum change in mapped brightness, in levels,
	// required to adopt a new target. Suppresses micro-adjustments from
	// sensor noise that survives smoothing.
	targetHysteresis = 3

	// debugSampleEvery thins the per-sample debug log line.
	debugSampleEvery = 5
)

// Output is the shared render-pipeline surface the controller writes into.
// The pipeline owns the output while Busy reports true; the controller must
// check-and-skip, never override.
type Output interface {
	// Busy reports whether a higher-priority transition currently owns the output.
	Busy() bool

	// Brightness returns the live output brightness.
	Brightness() uint8

	// SetBrightness writes level into the live brightness and both of its
	// shadow copies so the render pipeline picks it up atomically.
	SetBrightness(level uint8)

	// SetLastNonZero records the most recent nonzero brightness, used for
	// restore-from-off semantics elsewhere in the host.
	SetLastNonZero(level uint8)

	// Apply pushes the current brightness to the physical output.
	Apply() error

	// RequestUIRefresh asks the host to refresh open control interfaces
	// without persisting state or broadcasting a full update.
	RequestUIRefresh()
}

// Controller is the auto-brightness control loop. It owns all of its state
// and is driven from a single goroutine: the host invokes Tick repeatedly and
// guarantees config reads/writes never run concurrently with it.
type Controller struct {
	log       zerolog.Logger
	sampleLog zerolog.Logger

	sensor sensor.LightSensor
	out    Output

	cfg Config

	present bool

	lastLux     float64
	hasLux      bool
	smoothedLux float64
	hasSmoothed bool

	target  uint8
	current uint8

	lastSample time.Time
	lastStep   time.Time
	uiSync     *rate.Limiter
}

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = logger
	}
}

// WithConfig sets the initial configuration. It is clamped on the way in.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		cfg.Clamp()
		c.cfg = cfg
	}
}

// New creates a controller reading from ls and driving out. A nil ls means no
// sensor bus is configured; the controller then stays a permanent no-op.
func New(ls sensor.LightSensor, out Output, opts ...Option) *Controller {
	c := &Controller{
		log:    log.Logger,
		sensor: ls,
		out:    out,
		cfg:    DefaultConfig(),
		uiSync: rate.NewLimiter(rate.Every(uiSyncInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sampleLog = c.log.Sample(&zerolog.BasicSampler{N: debugSampleEvery})
	return c
}

// Initialize probes the sensor and seeds the actuation state from the live
// output brightness. A missing sensor is logged, never an error: the
// controller degrades to a no-op for the process lifetime.
func (c *Controller) Initialize() error {
	if c.sensor != nil {
		if err := c.sensor.Begin(sensor.ContinuousHighRes); err != nil {
			c.log.Warn().Err(err).Msg("Light sensor not found, auto-brightness inactive")
		} else {
			c.present = true
			c.log.Info().Msg("Light sensor found")
		}
	}

	level := c.out.Brightness()
	c.current = level
	c.target = level
	return nil
}

// Tick advances the control loop. It performs no blocking I/O beyond one
// sensor read per elapsed sample interval and returns promptly every call.
func (c *Controller) Tick(now time.Time) {
	c.sample(now)
	c.step(now)
}

// sample polls the sensor, updates the smoothed illuminance estimate and
// derives a hysteresis-protected target brightness.
func (c *Controller) sample(now time.Time) {
	if !c.cfg.Enabled || !c.present || now.Sub(c.lastSample) < sampleInterval {
		return
	}

	lux, err := c.sensor.Read()
	c.lastSample = now
	if err != nil {
		c.log.Debug().Err(err).Msg("Light sensor read failed")
		return
	}
	if lux < 0 {
		// Legacy driver contract: a negative level is a transient failure.
		c.log.Debug().Float64("lux", lux).Msg("Light sensor returned invalid reading")
		return
	}

	c.lastLux = lux
	c.hasLux = true

	if !c.hasSmoothed {
		// Cold start: seed the estimate directly and pick up the brightness
		// from wherever the user or system last left it.
		c.smoothedLux = lux
		c.hasSmoothed = true
		c.current = c.out.Brightness()
	} else {
		c.smoothedLux = emaAlpha*lux + (1-emaAlpha)*c.smoothedLux
	}

	candidate := c.cfg.Curve().Map(c.smoothedLux)
	if absDistance(candidate, c.target) > targetHysteresis {
		c.target = candidate
	}

	c.sampleLog.Debug().
		Float64("lux", lux).
		Float64("smoothed", c.smoothedLux).
		Uint8("target", candidate).
		Uint8("current", c.current).
		Msg("Ambient light sample")
}

// step moves the live brightness one step toward the target and pushes the
// change into the shared output state. Skipped entirely while the pipeline
// owns the output; nothing is queued or accumulated.
func (c *Controller) step(now time.Time) {
	if !c.cfg.Enabled || !c.present || c.out.Busy() || now.Sub(c.lastStep) < stepInterval {
		return
	}
	c.lastStep = now

	if c.current == c.target {
		return
	}

	step := stepSize(absDistance(c.current, c.target))
	if c.target > c.current {
		c.current = minLevel(c.current+step, c.target)
	} else {
		if c.current-c.target < step {
			c.current = c.target
		} else {
			c.current -= step
		}
	}

	c.out.SetBrightness(c.current)
	if err := c.out.Apply(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to apply brightness")
	}
	if c.current > 0 {
		c.out.SetLastNonZero(c.current)
	}

	// Keep an open control interface's slider current without triggering a
	// state broadcast storm.
	if c.uiSync.AllowN(now, 1) {
		c.out.RequestUIRefresh()
	}
}

// stepSize returns the coarse-to-fine step for the remaining distance.
func stepSize(distance uint8) uint8 {
	switch {
	case distance > 50:
		return 4
	case distance > 20:
		return 2
	default:
		return 1
	}
}

func absDistance(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func minLevel(a, b uint8) uint8 {
	if a < b {
		return a
	}
	return b
}

// Target returns the brightness the controller is currently steering toward.
func (c *Controller) Target() uint8 {
	return c.target
}

// Current returns the controller's view of the live brightness.
func (c *Controller) Current() uint8 {
	return c.current
}

// LastLux returns the most recent raw illuminance reading, if any.
func (c *Controller) LastLux() (float64, bool) {
	return c.lastLux, c.hasLux
}

// SensorPresent reports whether a sensor was found at startup.
func (c *Controller) SensorPresent() bool {
	return c.present
}
