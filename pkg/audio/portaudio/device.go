package portaudio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"github.com/haivivi/rtvoice/pkg/audio/capture"
	"github.com/haivivi/rtvoice/pkg/audio/pcm"
)

var echoWarnOnce sync.Once

// Microphone opens the default input device. It implements capture.Device.
type Microphone struct {
	// BufferDuration is the device buffer length. Default: 10ms.
	BufferDuration time.Duration
}

// Open opens a float32 input stream. When the device refuses the requested
// rate the stream falls back to the device's native rate and the capture
// graph resamples.
func (m Microphone) Open(c capture.Constraints) (capture.Stream, error) {
	channels := max(c.Channels, 1)
	bufDur := m.BufferDuration
	if bufDur <= 0 {
		bufDur = 10 * time.Millisecond
	}
	framesFor := func(rate float64) int {
		return int(rate * bufDur.Seconds())
	}

	s, err := openStream(true, channels, float64(c.SampleRate), framesFor(float64(c.SampleRate)), formatFloat32)
	if err != nil {
		if errors.Is(err, errNoDevice) {
			return nil, fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
		}
		native, nerr := defaultInputRate()
		if nerr != nil {
			return nil, fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, nerr)
		}
		slog.Debug("input device rejected rate, using native rate",
			"requested", c.SampleRate, "native", native, "error", err)
		s, err = openStream(true, channels, native, framesFor(native), formatFloat32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
		}
	}

	if c.EchoCancellation {
		echoWarnOnce.Do(func() {
			slog.Info("portaudio input has no echo cancellation; use headphones to avoid feedback")
		})
	}
	return &inputStream{s: s}, nil
}

type inputStream struct {
	s *stream
}

func (in *inputStream) SampleRate() int { return int(in.s.rate) }
func (in *inputStream) Channels() int   { return in.s.channels }

func (in *inputStream) Read(buf []float32) (int, error) {
	frames := len(buf) / in.s.channels
	if frames == 0 {
		return 0, nil
	}
	n, err := in.s.read(unsafe.Pointer(&buf[0]), frames)
	if errors.Is(err, errClosed) {
		return 0, io.EOF
	}
	return n * in.s.channels, err
}

func (in *inputStream) Close() error {
	return in.s.close()
}

// Speaker plays 16-bit PCM on the default output device.
type Speaker struct {
	s      *stream
	format pcm.Format
}

// OpenSpeaker opens an output stream.
// format: PCM format (e.g., pcm.L16Mono24K)
// bufferDuration: duration of each write buffer (e.g., 20ms)
func OpenSpeaker(format pcm.Format, bufferDuration time.Duration) (*Speaker, error) {
	frames := int(format.SamplesInDuration(bufferDuration))
	s, err := openStream(false, format.Channels(), float64(format.SampleRate()), frames, formatInt16)
	if err != nil {
		return nil, err
	}
	return &Speaker{s: s, format: format}, nil
}

// Write plays samples, blocking until the device accepted all of them.
func (sp *Speaker) Write(samples []int16) error {
	ch := sp.s.channels
	for len(samples) >= ch {
		n, err := sp.s.write(unsafe.Pointer(&samples[0]), len(samples)/ch)
		if err != nil {
			return err
		}
		samples = samples[n*ch:]
	}
	return nil
}

// Format returns the PCM format.
func (sp *Speaker) Format() pcm.Format {
	return sp.format
}

// Close stops and closes the stream.
func (sp *Speaker) Close() error {
	return sp.s.close()
}
