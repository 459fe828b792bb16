// SPDX-License-Identifier: GPL-3.0-only

// Package pipeline implements the LED render pipeline: the live output
// brightness with its shadow copies, host-initiated brightness transitions,
// and frame output through a pluggable sink.
package pipeline

import (
	"time"

	"github.com/rs/zerolog/log"
)

// RefreshMode describes the pending UI notification, consumed by the host's
// notification dispatcher.
type RefreshMode int

const (
	// RefreshNone means no notification is pending.
	RefreshNone RefreshMode = iota

	// RefreshNoNotify updates open control interfaces without persisting
	// state or broadcasting a full update.
	RefreshNoNotify

	// RefreshState broadcasts a full state update and persists settings.
	RefreshState
)

// Sink receives rendered RGB frames.
type Sink interface {
	// WriteFrame writes one frame of packed RGB data (3 bytes per LED).
	WriteFrame(rgb []byte) error

	// Close releases the underlying transport.
	Close() error
}

// Engine owns the shared output state. It is part of the host's
// single-threaded cooperative model: every method must be called under the
// host loop's lock, the same discipline the control loop itself runs under.
type Engine struct {
	sink     Sink
	ledCount int
	color    [3]byte

	current          uint8
	previous         uint8
	transitionTarget uint8
	lastNonZero      uint8

	transitioning bool
	transFrom     uint8
	transTo       uint8
	transStart    time.Time
	transEnd      time.Time

	pendingRefresh RefreshMode
}

// New creates an engine rendering ledCount LEDs of the given base color to
// sink. A nil sink is allowed; frames are dropped until one is attached.
func New(sink Sink, ledCount int, color [3]byte) *Engine {
	return &Engine{
		sink:     sink,
		ledCount: ledCount,
		color:    color,
	}
}

// Busy reports whether a brightness transition currently owns the output.
func (e *Engine) Busy() bool {
	return e.transitioning
}

// Brightness returns the live output brightness.
func (e *Engine) Brightness() uint8 {
	return e.current
}

// SetBrightness writes level into the live brightness and both shadow copies
// so a render frame never observes a half-updated state.
func (e *Engine) SetBrightness(level uint8) {
	e.current = level
	e.previous = level
	e.transitionTarget = level
}

// SetLastNonZero records the most recent nonzero brightness.
func (e *Engine) SetLastNonZero(level uint8) {
	e.lastNonZero = level
}

// LastNonZero returns the brightness to restore when turning back on.
// Defaults to full brightness before anything nonzero was ever applied.
func (e *Engine) LastNonZero() uint8 {
	if e.lastNonZero == 0 {
		return 255
	}
	return e.lastNonZero
}

// RequestUIRefresh records a pending non-persisting notification. A pending
// full-state notification is not downgraded.
func (e *Engine) RequestUIRefresh() {
	if e.pendingRefresh == RefreshNone {
		e.pendingRefresh = RefreshNoNotify
	}
}

// RequestStateBroadcast records a pending full state notification.
func (e *Engine) RequestStateBroadcast() {
	e.pendingRefresh = RefreshState
}

// ConsumeRefresh returns and clears the pending notification.
func (e *Engine) ConsumeRefresh() RefreshMode {
	mode := e.pendingRefresh
	e.pendingRefresh = RefreshNone
	return mode
}

// StartTransition begins a linear fade from the live brightness to target.
// The engine owns the output until the fade completes: Busy reports true and
// lower-priority writers are expected to check-and-skip. A zero duration
// applies immediately.
func (e *Engine) StartTransition(target uint8, d time.Duration, now time.Time) {
	if d <= 0 || target == e.current {
		e.SetBrightness(target)
		if err := e.Apply(); err != nil {
			log.Warn().Err(err).Msg("Failed to apply brightness")
		}
		return
	}

	e.transitioning = true
	e.transFrom = e.current
	e.transTo = target
	e.transStart = now
	e.transEnd = now.Add(d)

	// The previous-value shadow keeps the pre-transition brightness while
	// the transition-target shadow already carries the destination.
	e.previous = e.current
	e.transitionTarget = target
}

// Tick advances an in-progress transition. It is a no-op otherwise.
func (e *Engine) Tick(now time.Time) {
	if !e.transitioning {
		return
	}

	if !now.Before(e.transEnd) {
		e.transitioning = false
		e.SetBrightness(e.transTo)
	} else {
		frac := float64(now.Sub(e.transStart)) / float64(e.transEnd.Sub(e.transStart))
		delta := int(float64(int(e.transTo)-int(e.transFrom)) * frac)
		e.current = uint8(int(e.transFrom) + delta)
	}

	if e.current > 0 {
		e.lastNonZero = e.current
	}
	if err := e.Apply(); err != nil {
		log.Warn().Err(err).Msg("Failed to apply transition frame")
	}
}

// AttachSink connects a sink, e.g. after the LED link reappears.
func (e *Engine) AttachSink(s Sink) {
	e.sink = s
}

// DetachSink disconnects the sink; frames are dropped until reattached.
func (e *Engine) DetachSink() {
	e.sink = nil
}

// Apply renders the base frame scaled by the live brightness and writes it to
// the sink. With no sink attached the frame is dropped.
func (e *Engine) Apply() error {
	if e.sink == nil {
		return nil
	}
	return e.sink.WriteFrame(e.renderFrame())
}

// renderFrame scales the base color by the live brightness for every LED.
func (e *Engine) renderFrame() []byte {
	scale := func(c byte) byte {
		return byte(int(c) * int(e.current) / 255)
	}
	r, g, b := scale(e.color[0]), scale(e.color[1]), scale(e.color[2])

	frame := make([]byte, 3*e.ledCount)
	for i := 0; i < len(frame); i += 3 {
		frame[i] = r
		frame[i+1] = g
		frame[i+2] = b
	}
	return frame
}
