package sensor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenled/led-autobrightness-daemon/internal/sensor"
)

// fakeBus is an in-memory i2c bus handle recording writes and serving reads.
type fakeBus struct {
	written  [][]byte
	readData []byte
	readErr  error
	closed   bool
}

func (b *fakeBus) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	b.written = append(b.written, buf)
	return len(p), nil
}

func (b *fakeBus) Read(p []byte) (int, error) {
	if b.readErr != nil {
		return 0, b.readErr
	}
	return copy(p, b.readData), nil
}

func (b *fakeBus) Close() error {
	b.closed = true
	return nil
}

func newTestSensor(bus *fakeBus, openErr error) *sensor.BH1750 {
	return sensor.NewBH1750("/dev/i2c-1", sensor.DefaultAddr, sensor.WithOpener(func() (sensor.Bus, error) {
		if openErr != nil {
			return nil, openErr
		}
		return bus, nil
	}))
}

func TestBH1750_Begin(t *testing.T) {
	bus := &fakeBus{}
	s := newTestSensor(bus, nil)

	err := s.Begin(sensor.ContinuousHighRes)
	require.NoError(t, err)

	// Power-on opcode followed by the measurement mode opcode.
	require.Len(t, bus.written, 2)
	assert.Equal(t, []byte{0x01}, bus.written[0])
	assert.Equal(t, []byte{0x10}, bus.written[1])
}

func TestBH1750_Begin_BusUnavailable(t *testing.T) {
	s := newTestSensor(nil, errors.New("no such device"))

	err := s.Begin(sensor.ContinuousHighRes)
	assert.Error(t, err)
}

func TestBH1750_Read(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		expected float64
	}{
		{
			name:     "zero counter reads zero lux",
			raw:      []byte{0x00, 0x00},
			expected: 0,
		},
		{
			name:     "datasheet conversion divides by 1.2",
			raw:      []byte{0x00, 0x78}, // 120 counts
			expected: 100,
		},
		{
			name:     "big-endian counter order",
			raw:      []byte{0x01, 0x00}, // 256 counts
			expected: 256 / 1.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakeBus{readData: tt.raw}
			s := newTestSensor(bus, nil)
			require.NoError(t, s.Begin(sensor.ContinuousHighRes))

			lux, err := s.Read()
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, lux, 0.001)
		})
	}
}

func TestBH1750_Read_BeforeBegin(t *testing.T) {
	s := newTestSensor(&fakeBus{}, nil)

	_, err := s.Read()
	assert.ErrorIs(t, err, sensor.ErrNotInitialized)
}

func TestBH1750_Read_TransientFailure(t *testing.T) {
	bus := &fakeBus{readErr: errors.New("i/o error")}
	s := newTestSensor(bus, nil)
	require.NoError(t, s.Begin(sensor.ContinuousHighRes))

	_, err := s.Read()
	assert.Error(t, err)

	// A later read succeeds once the bus recovers.
	bus.readErr = nil
	bus.readData = []byte{0x00, 0x78}
	lux, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, lux, 0.001)
}

func TestBH1750_Close(t *testing.T) {
	bus := &fakeBus{}
	s := newTestSensor(bus, nil)
	require.NoError(t, s.Begin(sensor.ContinuousHighRes))

	require.NoError(t, s.Close())
	assert.True(t, bus.closed)

	_, err := s.Read()
	assert.ErrorIs(t, err, sensor.ErrNotInitialized)

	// Closing twice is a no-op.
	assert.NoError(t, s.Close())
}
