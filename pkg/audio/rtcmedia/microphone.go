package rtcmedia

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/haivivi/rtvoice/pkg/audio/capture"
	"github.com/haivivi/rtvoice/pkg/audio/codec/opus"
	"github.com/haivivi/rtvoice/pkg/audio/pcm"
	"github.com/haivivi/rtvoice/pkg/audio/portaudio"
	"github.com/haivivi/rtvoice/pkg/realtime"
)

const (
	// opusRate is the clock rate of the WebRTC Opus track.
	opusRate = 48000

	// PacketDuration is the duration of one outbound Opus packet.
	PacketDuration = 20 * time.Millisecond

	// DefaultBitrate is the outbound Opus bitrate in bits per second.
	DefaultBitrate = 32000

	packetQueue = 50
)

// OpusMicrophone captures voice at 48 kHz and encodes it as Opus for the
// WebRTC local track. It implements realtime.Microphone.
type OpusMicrophone struct {
	// Device defaults to portaudio.Microphone{}.
	Device capture.Device

	// Bitrate defaults to DefaultBitrate.
	Bitrate int

	Logger *slog.Logger
}

// Open starts capture and returns the packet source.
func (m OpusMicrophone) Open(ctx context.Context) (realtime.OutboundAudio, error) {
	dev := m.Device
	if dev == nil {
		dev = portaudio.Microphone{}
	}
	logger := cmp.Or(m.Logger, slog.Default()).With("component", "opus_microphone")

	enc, err := opus.NewEncoder(opusRate, 1)
	if err != nil {
		return nil, err
	}
	if err := enc.SetBitrate(cmp.Or(m.Bitrate, DefaultBitrate)); err != nil {
		enc.Close()
		return nil, err
	}

	c := capture.DefaultConstraints()
	c.SampleRate = opusRate
	src := &opusSource{
		enc:     enc,
		capture: capture.New(dev, capture.WithConstraints(c), capture.WithFrameSize(enc.FrameSize()), capture.WithLogger(logger)),
		packets: make(chan []byte, packetQueue),
		done:    make(chan struct{}),
		logger:  logger,
	}
	if err := src.capture.Start(src.encode); err != nil {
		enc.Close()
		return nil, err
	}
	return src, nil
}

type opusSource struct {
	enc     *opus.Encoder
	capture *capture.Capture
	packets chan []byte
	done    chan struct{}
	once    sync.Once
	logger  *slog.Logger

	samples []int16
}

// encode runs on the capture goroutine.
func (s *opusSource) encode(frame []float32) {
	s.samples = s.samples[:0]
	for _, v := range frame {
		s.samples = append(s.samples, pcm.Int16FromFloat(v))
	}
	pkt, err := s.enc.Encode(s.samples)
	if err != nil {
		s.logger.Warn("encode failed", "error", err)
		return
	}
	select {
	case s.packets <- pkt:
	default:
		s.logger.Debug("packet dropped, reader behind")
	}
}

func (s *opusSource) ReadPacket() ([]byte, time.Duration, error) {
	select {
	case pkt := <-s.packets:
		return pkt, PacketDuration, nil
	case <-s.done:
		return nil, 0, io.EOF
	}
}

func (s *opusSource) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.capture.Stop()
		s.enc.Close()
	})
	return nil
}
