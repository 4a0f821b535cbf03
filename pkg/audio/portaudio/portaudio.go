// Package portaudio provides PortAudio-backed microphone and speaker
// streams for the realtime voice client.
//
// This package uses CGO to interface with the PortAudio C library.
//
// For go build: requires portaudio installed via pkg-config (brew install portaudio)
// For bazel build: uses the bundled portaudio library
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// Wrapper functions using void* to avoid CGO type issues with PaStream
static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer,
                              PaStreamFlags streamFlags) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, streamFlags, NULL, NULL);
}

static PaError pa_start_stream(void *stream) {
    return Pa_StartStream((PaStream*)stream);
}

static PaError pa_abort_stream(void *stream) {
    return Pa_AbortStream((PaStream*)stream);
}

static PaError pa_close_stream(void *stream) {
    return Pa_CloseStream((PaStream*)stream);
}

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}

static PaError pa_write_stream(void *stream, const void *buffer, unsigned long frames) {
    return Pa_WriteStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

var (
	initOnce sync.Once
	initErr  error
)

// errNoDevice is returned when the host has no default device of the
// requested direction.
var errNoDevice = errors.New("portaudio: no default device")

// paError converts a PortAudio error code to a Go error.
func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New("portaudio: " + C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// DeviceInfo contains information about an audio device.
type DeviceInfo struct {
	Index             int     `json:"index" yaml:"index"`
	Name              string  `json:"name" yaml:"name"`
	MaxInputChannels  int     `json:"max_input_channels" yaml:"max_input_channels"`
	MaxOutputChannels int     `json:"max_output_channels" yaml:"max_output_channels"`
	DefaultSampleRate float64 `json:"default_sample_rate" yaml:"default_sample_rate"`
	IsDefaultInput    bool    `json:"is_default_input,omitempty" yaml:"is_default_input,omitempty"`
	IsDefaultOutput   bool    `json:"is_default_output,omitempty" yaml:"is_default_output,omitempty"`
}

// Devices returns a list of available audio devices.
func Devices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}

	defaultInput := int(C.Pa_GetDefaultInputDevice())
	defaultOutput := int(C.Pa_GetDefaultOutputDevice())

	devices := make([]DeviceInfo, 0, count)
	for i := 0; i < count; i++ {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			MaxOutputChannels: int(info.maxOutputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
			IsDefaultOutput:   i == defaultOutput,
		})
	}
	return devices, nil
}

// defaultInputRate returns the native rate of the default input device.
func defaultInputRate() (float64, error) {
	idx := C.Pa_GetDefaultInputDevice()
	if idx == C.paNoDevice {
		return 0, errNoDevice
	}
	info := C.Pa_GetDeviceInfo(idx)
	if info == nil {
		return 0, errNoDevice
	}
	return float64(info.defaultSampleRate), nil
}

// sampleFormat selects the PortAudio sample type of a stream.
type sampleFormat int

const (
	formatInt16 sampleFormat = iota
	formatFloat32
)

func (f sampleFormat) pa() C.PaSampleFormat {
	if f == formatFloat32 {
		return C.paFloat32
	}
	return C.paInt16
}

func (f sampleFormat) size() int {
	if f == formatFloat32 {
		return 4
	}
	return 2
}

// stream is a blocking PortAudio stream in a single direction.
type stream struct {
	ptr      unsafe.Pointer
	buffer   unsafe.Pointer
	frames   int
	channels int
	format   sampleFormat
	rate     float64

	closing atomic.Bool
	mu      sync.Mutex
	closed  bool
}

// openStream opens and starts a blocking stream on the default device.
// Exactly one of input or output must be true.
func openStream(input bool, channels int, rate float64, framesPerBuffer int, format sampleFormat) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	var device C.PaDeviceIndex
	if input {
		device = C.Pa_GetDefaultInputDevice()
	} else {
		device = C.Pa_GetDefaultOutputDevice()
	}
	if device == C.paNoDevice {
		return nil, errNoDevice
	}
	info := C.Pa_GetDeviceInfo(device)

	params := &C.PaStreamParameters{
		device:                    device,
		channelCount:              C.int(channels),
		sampleFormat:              format.pa(),
		hostApiSpecificStreamInfo: nil,
	}

	var ptr unsafe.Pointer
	var err error
	if input {
		params.suggestedLatency = info.defaultLowInputLatency
		err = paError(C.pa_open_stream(&ptr, params, nil, C.double(rate), C.ulong(framesPerBuffer), C.paClipOff))
	} else {
		params.suggestedLatency = info.defaultLowOutputLatency
		err = paError(C.pa_open_stream(&ptr, nil, params, C.double(rate), C.ulong(framesPerBuffer), C.paClipOff))
	}
	if err != nil {
		return nil, err
	}
	if err := paError(C.pa_start_stream(ptr)); err != nil {
		C.pa_close_stream(ptr)
		return nil, err
	}

	return &stream{
		ptr:      ptr,
		buffer:   C.malloc(C.size_t(framesPerBuffer * channels * format.size())),
		frames:   framesPerBuffer,
		channels: channels,
		format:   format,
		rate:     rate,
	}, nil
}

// read fills dst with up to s.frames frames from the device and returns
// the number of frames read.
func (s *stream) read(dst unsafe.Pointer, frames int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}
	frames = min(frames, s.frames)
	if err := paError(C.pa_read_stream(s.ptr, s.buffer, C.ulong(frames))); err != nil {
		if s.closing.Load() {
			return 0, errClosed
		}
		return 0, err
	}
	C.memcpy(dst, s.buffer, C.size_t(frames*s.channels*s.format.size()))
	return frames, nil
}

// write plays up to s.frames frames from src and returns the number of
// frames written.
func (s *stream) write(src unsafe.Pointer, frames int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errClosed
	}
	frames = min(frames, s.frames)
	C.memcpy(s.buffer, src, C.size_t(frames*s.channels*s.format.size()))
	if err := paError(C.pa_write_stream(s.ptr, s.buffer, C.ulong(frames))); err != nil {
		return 0, err
	}
	return frames, nil
}

// close aborts and releases the stream. Aborting first unblocks a pending
// read. Safe to call multiple times.
func (s *stream) close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	C.pa_abort_stream(s.ptr)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buffer)
	return err
}

var errClosed = errors.New("portaudio: stream closed")
