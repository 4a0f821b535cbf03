package rtcmedia

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/haivivi/rtvoice/pkg/audio/codec/opus"
	"github.com/haivivi/rtvoice/pkg/audio/pcm"
	"github.com/haivivi/rtvoice/pkg/audio/portaudio"
	"github.com/haivivi/rtvoice/pkg/realtime"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// maxConcealed bounds the packets synthesized for one sequence gap.
const maxConcealed = 5

// output is a blocking PCM sink.
type output interface {
	Write(samples []int16) error
	Close() error
}

func openPortAudio(f pcm.Format, buffer time.Duration) (output, error) {
	return portaudio.OpenSpeaker(f, buffer)
}

// Speaker plays the remote Opus track on the default output device. It
// implements realtime.Playback.
type Speaker struct {
	// BufferDuration is the device buffer length. Default: PacketDuration.
	BufferDuration time.Duration

	Logger *slog.Logger

	open func(pcm.Format, time.Duration) (output, error)
}

// Open opens the output device for one remote track.
func (sp Speaker) Open(mimeType string, clockRate uint32, channels uint16) (realtime.PlaybackSink, error) {
	if !strings.EqualFold(mimeType, webrtc.MimeTypeOpus) {
		return nil, fmt.Errorf("rtcmedia: unsupported codec %s", mimeType)
	}
	if clockRate != opusRate {
		return nil, fmt.Errorf("rtcmedia: unsupported clock rate %d", clockRate)
	}
	// Decoding to mono downmixes stereo streams.
	dec, err := opus.NewDecoder(opusRate, 1)
	if err != nil {
		return nil, err
	}
	open := sp.open
	if open == nil {
		open = openPortAudio
	}
	out, err := open(pcm.L16Mono48K, cmp.Or(sp.BufferDuration, PacketDuration))
	if err != nil {
		dec.Close()
		return nil, err
	}
	logger := cmp.Or(sp.Logger, slog.Default()).With("component", "speaker")
	logger.Debug("playback opened", "codec", mimeType, "channels", channels)
	return &opusSink{dec: dec, out: out, logger: logger}, nil
}

type opusSink struct {
	dec    *opus.Decoder
	out    output
	logger *slog.Logger

	started bool
	lastSeq uint16
}

// WriteRTP decodes one packet, concealing up to maxConcealed lost packets
// before it.
func (s *opusSink) WriteRTP(pkt *rtp.Packet) error {
	if s.started {
		lost := int(pkt.SequenceNumber - s.lastSeq - 1)
		if lost > 0x8000 {
			// Late or duplicate packet.
			return nil
		}
		for range min(lost, maxConcealed) {
			samples, err := s.dec.Decode(nil)
			if err != nil {
				return err
			}
			if err := s.out.Write(samples); err != nil {
				return err
			}
		}
	}
	s.started = true
	s.lastSeq = pkt.SequenceNumber

	if len(pkt.Payload) == 0 {
		return nil
	}
	samples, err := s.dec.Decode(pkt.Payload)
	if err != nil {
		s.logger.Debug("decode failed", "seq", pkt.SequenceNumber, "error", err)
		return nil
	}
	return s.out.Write(samples)
}

func (s *opusSink) Close() error {
	err := s.out.Close()
	s.dec.Close()
	return err
}
