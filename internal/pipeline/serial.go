// SPDX-License-Identifier: GPL-3.0-only

package pipeline

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tarm/serial"
)

// adalight frame header: "Ada", LED count minus one (big-endian), checksum.
const adalightHeaderSize = 6

// SerialSink writes Adalight-framed RGB data to a USB serial LED controller.
// Unlike the engine it carries its own lock: hot-plug reopen requests arrive
// from the udev monitor goroutine.
type SerialSink struct {
	device string
	baud   int
	open   func() (io.WriteCloser, error)

	mu   sync.Mutex
	port io.WriteCloser
}

// SerialSinkOption is a functional option for configuring a SerialSink.
type SerialSinkOption func(*SerialSink)

// WithPortOpener sets a custom port opener for testing.
func WithPortOpener(fn func() (io.WriteCloser, error)) SerialSinkOption {
	return func(s *SerialSink) {
		s.open = fn
	}
}

// NewSerialSink creates a sink for the serial device at the given baud rate.
// The port is not opened until Open is called.
func NewSerialSink(device string, baud int, opts ...SerialSinkOption) *SerialSink {
	s := &SerialSink{device: device, baud: baud}
	s.open = s.openPort
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SerialSink) openPort() (io.WriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{Name: s.device, Baud: s.baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", s.device, err)
	}
	return port, nil
}

// Open connects to the serial device.
func (s *SerialSink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return nil
	}
	port, err := s.open()
	if err != nil {
		return err
	}
	s.port = port
	log.Info().Str("device", s.device).Int("baud", s.baud).Msg("LED serial link connected")
	return nil
}

// ErrLinkDown is returned when a frame is written while the link is detached.
var ErrLinkDown = fmt.Errorf("serial link is down")

// WriteFrame writes one Adalight frame.
func (s *SerialSink) WriteFrame(rgb []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return ErrLinkDown
	}

	buf := make([]byte, adalightHeaderSize+len(rgb))
	count := len(rgb)/3 - 1
	buf[0] = 'A'
	buf[1] = 'd'
	buf[2] = 'a'
	buf[3] = byte(count >> 8)
	buf[4] = byte(count)
	buf[5] = buf[3] ^ buf[4] ^ 0x55
	copy(buf[adalightHeaderSize:], rgb)

	if _, err := s.port.Write(buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Close disconnects from the serial device.
func (s *SerialSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Reopen closes a stale port handle and connects again. Used by the hot-plug
// monitor after the USB serial adapter reappears.
func (s *SerialSink) Reopen() error {
	s.mu.Lock()
	if s.port != nil {
		if err := s.port.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close stale serial port")
		}
		s.port = nil
	}
	s.mu.Unlock()

	return s.Open()
}
