package pipeline_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenled/led-autobrightness-daemon/internal/pipeline"
)

// fakePort is an in-memory serial port.
type fakePort struct {
	written []byte
	closed  int
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func newTestSink(port *fakePort, openErr error) *pipeline.SerialSink {
	return pipeline.NewSerialSink("/dev/ttyUSB0", 115200,
		pipeline.WithPortOpener(func() (io.WriteCloser, error) {
			if openErr != nil {
				return nil, openErr
			}
			return port, nil
		}))
}

func TestSerialSink_WriteFrame(t *testing.T) {
	port := &fakePort{}
	sink := newTestSink(port, nil)
	require.NoError(t, sink.Open())

	// Two LEDs worth of RGB data.
	frame := []byte{10, 20, 30, 40, 50, 60}
	require.NoError(t, sink.WriteFrame(frame))

	// Adalight header: "Ada", count-1 big-endian, checksum hi^lo^0x55.
	expected := append([]byte{'A', 'd', 'a', 0x00, 0x01, 0x01 ^ 0x55}, frame...)
	assert.Equal(t, expected, port.written)
}

func TestSerialSink_WriteFrame_LinkDown(t *testing.T) {
	sink := newTestSink(&fakePort{}, nil)

	err := sink.WriteFrame([]byte{1, 2, 3})
	assert.ErrorIs(t, err, pipeline.ErrLinkDown)
}

func TestSerialSink_Open_Failure(t *testing.T) {
	sink := newTestSink(nil, errors.New("no such device"))

	assert.Error(t, sink.Open())
}

func TestSerialSink_Open_Idempotent(t *testing.T) {
	port := &fakePort{}
	sink := newTestSink(port, nil)

	require.NoError(t, sink.Open())
	require.NoError(t, sink.Open())
	require.NoError(t, sink.WriteFrame([]byte{1, 2, 3}))
}

func TestSerialSink_Reopen(t *testing.T) {
	port := &fakePort{}
	sink := newTestSink(port, nil)
	require.NoError(t, sink.Open())

	// Reopen closes the stale handle and connects again.
	require.NoError(t, sink.Reopen())
	assert.Equal(t, 1, port.closed)
	require.NoError(t, sink.WriteFrame([]byte{1, 2, 3}))
}

func TestSerialSink_Close(t *testing.T) {
	port := &fakePort{}
	sink := newTestSink(port, nil)
	require.NoError(t, sink.Open())

	require.NoError(t, sink.Close())
	assert.Equal(t, 1, port.closed)

	assert.ErrorIs(t, sink.WriteFrame([]byte{1, 2, 3}), pipeline.ErrLinkDown)
	assert.NoError(t, sink.Close())
}
