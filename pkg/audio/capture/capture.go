package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/haivivi/rtvoice/pkg/audio/pcm"
)

// Capture owns one microphone stream and the processing graph behind it,
// delivering fixed-size mono frames to a callback.
//
// Every successful Start must be paired with a Stop; Stop is safe to call
// any number of times and on a capture that was never started.
type Capture struct {
	dev         Device
	constraints Constraints
	frameSize   int
	readSize    int
	logger      *slog.Logger
	onEnd       func(error)

	mu     sync.Mutex
	stream Stream
	done   chan struct{}
}

// Option configures a Capture.
type Option func(*Capture)

// WithConstraints overrides DefaultConstraints.
func WithConstraints(c Constraints) Option {
	return func(cp *Capture) {
		cp.constraints = c
	}
}

// WithFrameSize sets the samples per delivered frame.
// Default: pcm.FrameSamples.
func WithFrameSize(n int) Option {
	return func(cp *Capture) {
		cp.frameSize = n
	}
}

// WithReadSize sets the number of samples requested from the device per read.
// Default: 10ms at the device rate.
func WithReadSize(n int) Option {
	return func(cp *Capture) {
		cp.readSize = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cp *Capture) {
		cp.logger = l
	}
}

// WithOnEnd sets a callback run when the stream ends without Stop, for
// example when the device is unplugged. err is nil on a clean end of
// stream. The stream is already closed when fn runs.
func WithOnEnd(fn func(err error)) Option {
	return func(cp *Capture) {
		cp.onEnd = fn
	}
}

// New creates a capture on dev. Nothing is opened until Start.
func New(dev Device, opts ...Option) *Capture {
	c := &Capture{
		dev:         dev,
		constraints: DefaultConstraints(),
		frameSize:   pcm.FrameSamples,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Start opens the device and begins delivering frames to onFrame until
// Stop is called or the stream ends. A stream that ends on its own is
// closed and the capture stops running. onFrame runs on the capture
// goroutine and receives a frame it may keep. It must not call Stop.
func (c *Capture) Start(onFrame func(frame []float32)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return ErrAlreadyStarted
	}
	if c.dev == nil {
		return fmt.Errorf("%w: no input device configured", ErrDeviceUnavailable)
	}

	stream, err := c.dev.Open(c.constraints)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	graph, err := NewGraph(c.constraints, stream.SampleRate(), stream.Channels())
	if err != nil {
		stream.Close()
		return err
	}

	readSize := c.readSize
	if readSize <= 0 {
		readSize = stream.SampleRate() / 100
	}
	readSize *= max(stream.Channels(), 1)

	c.logger.Debug("capture started",
		"rate", stream.SampleRate(),
		"channels", stream.Channels(),
		"stages", graph.Len(),
		"echo_cancellation", c.constraints.EchoCancellation)

	c.stream = stream
	c.done = make(chan struct{})
	go c.loop(stream, graph, readSize, onFrame, c.done)
	return nil
}

func (c *Capture) loop(stream Stream, graph *Graph, readSize int, onFrame func([]float32), done chan struct{}) {
	defer close(done)
	err := c.read(stream, graph, readSize, onFrame)

	c.mu.Lock()
	owned := c.done == done
	if owned {
		c.stream, c.done = nil, nil
	}
	c.mu.Unlock()
	if !owned {
		// Stopped; Stop closes the stream.
		return
	}

	if cerr := stream.Close(); cerr != nil {
		c.logger.Warn("capture close failed", "error", cerr)
	}
	if err != nil {
		c.logger.Warn("capture ended", "error", err)
	} else {
		c.logger.Debug("capture stream ended")
	}
	if c.onEnd != nil {
		c.onEnd(err)
	}
}

// read pumps the stream through the graph until it fails or ends. io.EOF
// is reported as nil.
func (c *Capture) read(stream Stream, graph *Graph, readSize int, onFrame func([]float32)) error {
	buf := make([]float32, readSize)
	fr := &framer{size: c.frameSize}
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			out, perr := graph.Process(buf[:n])
			if perr != nil {
				return fmt.Errorf("capture: process: %w", perr)
			}
			fr.push(out, onFrame)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("capture: read: %w", err)
		}
	}
}

// Stop closes the device stream and waits for the capture goroutine to
// exit. It is a no-op when the capture is not running.
func (c *Capture) Stop() {
	c.mu.Lock()
	stream, done := c.stream, c.done
	c.stream, c.done = nil, nil
	c.mu.Unlock()

	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		c.logger.Warn("capture close failed", "error", err)
	}
	<-done
	c.logger.Debug("capture stopped")
}

// Running reports whether a stream is open.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}
