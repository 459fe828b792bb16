// Package sensor provides abstractions for ambient light sensors.
package sensor

//go:generate mockgen -source=sensor.go -destination=mocks/sensor_mock.go -package=mocks

// Mode selects the measurement mode of a light sensor.
type Mode byte

const (
	// ContinuousHighRes continuously measures at 1 lx resolution.
	// This is the only mode the daemon uses.
	ContinuousHighRes Mode = 0x10

	// ContinuousHighRes2 continuously measures at 0.5 lx resolution.
	ContinuousHighRes2 Mode = 0x11

	// ContinuousLowRes continuously measures at 4 lx resolution.
	ContinuousLowRes Mode = 0x13
)

// LightSensor represents an ambient light sensor.
// This interface allows for mocking in tests.
type LightSensor interface {
	// Begin initializes the sensor in the given measurement mode. A Begin
	// failure is permanent for the process lifetime: the caller treats the
	// sensor as absent and never retries.
	Begin(mode Mode) error

	// Read returns the current illuminance in lux. Errors are transient;
	// the caller retries at its normal sampling interval.
	Read() (float64, error)

	// Close releases the underlying bus handle.
	Close() error
}
