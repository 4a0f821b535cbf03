package capture

import (
	"errors"

	"github.com/haivivi/rtvoice/pkg/audio/pcm"
)

// ErrDeviceUnavailable is returned when microphone access is denied or no
// input device exists.
var ErrDeviceUnavailable = errors.New("capture: device unavailable")

// ErrAlreadyStarted is returned by Start when the capture is running.
var ErrAlreadyStarted = errors.New("capture: already started")

// Constraints describes the input stream requested from a Device.
type Constraints struct {
	SampleRate int
	Channels   int

	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConstraints asks for mono 24 kHz voice input with all voice
// processing enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       pcm.FrameFormat.SampleRate(),
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Device opens microphone streams. Implementations return an error
// wrapping ErrDeviceUnavailable when access is denied or no device exists.
type Device interface {
	Open(c Constraints) (Stream, error)
}

// Stream is an open microphone stream. The stream may run at a different
// rate or channel count than requested; the capture graph adapts.
type Stream interface {
	// SampleRate is the actual rate of the samples returned by Read.
	SampleRate() int
	// Channels is the actual interleaved channel count.
	Channels() int
	// Read blocks until buf is filled with interleaved samples or the
	// stream fails. Read after Close returns io.EOF.
	Read(buf []float32) (int, error)
	// Close releases the device. It unblocks a pending Read.
	Close() error
}

// DeviceFunc adapts a function to the Device interface.
type DeviceFunc func(c Constraints) (Stream, error)

// Open implements Device.
func (f DeviceFunc) Open(c Constraints) (Stream, error) {
	return f(c)
}
