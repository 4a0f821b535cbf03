package rtcmedia

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/rtvoice/pkg/audio/capture"
	"github.com/haivivi/rtvoice/pkg/audio/codec/opus"
	"github.com/haivivi/rtvoice/pkg/audio/pcm"
	"github.com/haivivi/rtvoice/pkg/realtime"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

type fakeOutput struct {
	mu     sync.Mutex
	writes []int
	closed bool
	wrote  chan struct{}
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{wrote: make(chan struct{}, 64)}
}

func (o *fakeOutput) Write(samples []int16) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return io.ErrClosedPipe
	}
	o.writes = append(o.writes, len(samples))
	select {
	case o.wrote <- struct{}{}:
	default:
	}
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) lens() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.writes...)
}

// sineStream serves a 440 Hz tone until closed.
type sineStream struct {
	rate   int
	n      int
	once   sync.Once
	closed chan struct{}
}

func (s *sineStream) SampleRate() int { return s.rate }
func (s *sineStream) Channels() int   { return 1 }

func (s *sineStream) Read(buf []float32) (int, error) {
	select {
	case <-s.closed:
		return 0, io.EOF
	default:
	}
	for i := range buf {
		buf[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(s.n)/float64(s.rate)))
		s.n++
	}
	// Pace roughly at real time so the packet queue is not flooded.
	time.Sleep(time.Duration(len(buf)) * time.Second / time.Duration(s.rate))
	return len(buf), nil
}

func (s *sineStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func TestOpusMicrophone_Packets(t *testing.T) {
	var got capture.Constraints
	dev := capture.DeviceFunc(func(c capture.Constraints) (capture.Stream, error) {
		got = c
		return &sineStream{rate: c.SampleRate, closed: make(chan struct{})}, nil
	})

	src, err := OpusMicrophone{Device: dev}.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if got.SampleRate != 48000 || got.Channels != 1 {
		t.Errorf("constraints = %+v, want 48000 Hz mono", got)
	}

	dec, err := opus.NewDecoder(48000, 1)
	if err != nil {
		t.Fatalf("NewDecoder() error: %v", err)
	}
	defer dec.Close()

	for i := 0; i < 3; i++ {
		pkt, dur, err := src.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket() error: %v", err)
		}
		if dur != PacketDuration {
			t.Errorf("duration = %v, want %v", dur, PacketDuration)
		}
		samples, err := dec.Decode(pkt)
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		if len(samples) != 960 {
			t.Errorf("decoded %d samples, want 960", len(samples))
		}
	}

	if err := src.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	for {
		_, _, err := src.ReadPacket()
		if err == nil {
			// Drain packets queued before Close.
			continue
		}
		if !errors.Is(err, io.EOF) {
			t.Errorf("ReadPacket() after Close error = %v, want io.EOF", err)
		}
		break
	}
}

func TestOpusMicrophone_DeviceUnavailable(t *testing.T) {
	dev := capture.DeviceFunc(func(capture.Constraints) (capture.Stream, error) {
		return nil, errors.New("permission denied")
	})
	_, err := OpusMicrophone{Device: dev}.Open(context.Background())
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Errorf("Open() error = %v, want ErrDeviceUnavailable", err)
	}
}

func opusPacket(t *testing.T, enc *opus.Encoder) []byte {
	t.Helper()
	frame := make([]int16, enc.FrameSize())
	for i := range frame {
		frame[i] = int16(8000 * math.Sin(2*math.Pi*300*float64(i)/48000))
	}
	pkt, err := enc.Encode(frame)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	return append([]byte(nil), pkt...)
}

func TestSpeaker_ConcealsGaps(t *testing.T) {
	out := newFakeOutput()
	sp := Speaker{open: func(f pcm.Format, _ time.Duration) (output, error) {
		if f != pcm.L16Mono48K {
			t.Errorf("format = %v, want L16Mono48K", f)
		}
		return out, nil
	}}
	sink, err := sp.Open(webrtc.MimeTypeOpus, 48000, 2)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	enc, err := opus.NewEncoder(48000, 1)
	if err != nil {
		t.Fatalf("NewEncoder() error: %v", err)
	}
	defer enc.Close()

	for _, seq := range []uint16{65535, 0, 2, 2, 1} {
		pkt := &rtp.Packet{
			Header:  rtp.Header{SequenceNumber: seq},
			Payload: opusPacket(t, enc),
		}
		if err := sink.WriteRTP(pkt); err != nil {
			t.Fatalf("WriteRTP(%d) error: %v", seq, err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}

	// 65535, 0, one concealed, 2. The duplicate and the late packet are skipped.
	want := []int{960, 960, 960, 960}
	got := out.lens()
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %d samples, want %d", i, got[i], want[i])
		}
	}
}

func TestSpeaker_RejectsCodec(t *testing.T) {
	sp := Speaker{open: func(pcm.Format, time.Duration) (output, error) {
		t.Fatal("output opened for unsupported codec")
		return nil, nil
	}}
	if _, err := sp.Open(webrtc.MimeTypePCMU, 8000, 1); err == nil {
		t.Error("Open(PCMU) error = nil")
	}
	if _, err := sp.Open(webrtc.MimeTypeOpus, 16000, 1); err == nil {
		t.Error("Open(opus/16000) error = nil")
	}
}

func TestPCMPlayer_PlayAndClear(t *testing.T) {
	out := newFakeOutput()
	p := newPCMPlayer(out, nil)

	chunk := base64.StdEncoding.EncodeToString(make([]byte, 480))
	if err := p.Play(&realtime.ResponseAudioDelta{Delta: chunk}); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	select {
	case <-out.wrote:
	case <-time.After(5 * time.Second):
		t.Fatal("audio never written")
	}
	if got := out.lens(); len(got) != 1 || got[0] != 240 {
		t.Errorf("writes = %v, want [240]", got)
	}

	if err := p.Play(&realtime.ResponseAudioDelta{Delta: "%%"}); err == nil {
		t.Error("Play() with invalid base64 error = nil")
	}

	p.Clear()
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d after Clear, want 0", p.Pending())
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
