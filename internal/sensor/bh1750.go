// SPDX-License-Identifier: GPL-3.0-only

package sensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// ErrNotInitialized is returned when Read is called before a successful Begin.
var ErrNotInitialized = errors.New("sensor not initialized")

const (
	// DefaultAddr is the BH1750 I2C address with the ADDR pin pulled low.
	DefaultAddr uint16 = 0x23

	// AltAddr is the BH1750 I2C address with the ADDR pin pulled high.
	AltAddr uint16 = 0x5c

	// opPowerOn wakes the sensor from power-down before a mode change.
	opPowerOn byte = 0x01

	// countsPerLux is the datasheet conversion factor for the raw counter.
	countsPerLux = 1.2

	// i2cSlave is the linux i2c-dev ioctl selecting the target slave address.
	i2cSlave = 0x0703
)

// Bus is the minimal bus handle the driver needs. It exists so tests can
// substitute an in-memory transport for /dev/i2c-N.
type Bus interface {
	Write(p []byte) (n int, err error)
	Read(p []byte) (n int, err error)
	Close() error
}

// BusOpener is a function type that opens the sensor's bus handle.
type BusOpener func() (Bus, error)

// BH1750 drives a BH1750 ambient light sensor over linux i2c-dev.
// All methods are safe for concurrent use.
type BH1750 struct {
	busPath string
	addr    uint16
	open    BusOpener

	mu   sync.Mutex
	conn Bus
}

// Verify BH1750 implements LightSensor.
var _ LightSensor = (*BH1750)(nil)

// BH1750Option is a functional option for configuring a BH1750.
type BH1750Option func(*BH1750)

// WithOpener sets a custom bus opener for testing.
func WithOpener(fn BusOpener) BH1750Option {
	return func(s *BH1750) {
		s.open = fn
	}
}

// NewBH1750 creates a driver for the sensor at addr on the i2c-dev bus at
// busPath (e.g. /dev/i2c-1). The bus is not touched until Begin is called.
func NewBH1750(busPath string, addr uint16, opts ...BH1750Option) *BH1750 {
	s := &BH1750{busPath: busPath, addr: addr}
	s.open = s.openBus
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// openBus opens the i2c-dev node and selects the slave address.
func (s *BH1750) openBus() (Bus, error) {
	f, err := os.OpenFile(s.busPath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open i2c bus %s: %w", s.busPath, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(s.addr)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to select i2c slave 0x%02x: %w", s.addr, err)
	}
	return f, nil
}

// Begin powers the sensor on and puts it into the given measurement mode.
func (s *BH1750) Begin(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.open()
	if err != nil {
		return err
	}

	if _, err := c.Write([]byte{opPowerOn}); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to power on sensor: %w", err)
	}
	if _, err := c.Write([]byte{byte(mode)}); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to set measurement mode 0x%02x: %w", byte(mode), err)
	}

	s.conn = c
	log.Debug().Str("bus", s.busPath).Uint16("addr", s.addr).Msg("BH1750 initialized")
	return nil
}

// Read returns the current illuminance in lux.
func (s *BH1750) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, ErrNotInitialized
	}

	buf := make([]byte, 2)
	n, err := s.conn.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("failed to read light level: %w", err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short read from sensor: got %d bytes", n)
	}

	raw := binary.BigEndian.Uint16(buf)
	return float64(raw) / countsPerLux, nil
}

// Close releases the bus handle. Further reads fail until Begin is called again.
func (s *BH1750) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
