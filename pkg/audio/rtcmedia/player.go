package rtcmedia

import (
	"cmp"
	"log/slog"
	"sync"

	"github.com/haivivi/rtvoice/pkg/audio/pcm"
	"github.com/haivivi/rtvoice/pkg/realtime"
)

// PCMPlayer plays response audio deltas on its own goroutine so the
// session handler never blocks on the device.
type PCMPlayer struct {
	out    output
	logger *slog.Logger

	mu      sync.Mutex
	pending [][]int16
	wake    chan struct{}
	done    chan struct{}
	exited  chan struct{}
	once    sync.Once
}

// OpenPCMPlayer opens the default output device at the wire format.
func OpenPCMPlayer(logger *slog.Logger) (*PCMPlayer, error) {
	out, err := openPortAudio(pcm.FrameFormat, PacketDuration)
	if err != nil {
		return nil, err
	}
	return newPCMPlayer(out, logger), nil
}

func newPCMPlayer(out output, logger *slog.Logger) *PCMPlayer {
	p := &PCMPlayer{
		out:    out,
		logger: cmp.Or(logger, slog.Default()).With("component", "pcm_player"),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go p.loop()
	return p
}

// Play queues the audio of ev.
func (p *PCMPlayer) Play(ev *realtime.ResponseAudioDelta) error {
	raw, err := ev.Audio()
	if err != nil {
		return err
	}
	samples := pcm.Int16s(raw)
	if len(samples) == 0 {
		return nil
	}
	p.mu.Lock()
	p.pending = append(p.pending, samples)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Clear drops queued audio, for example when the user starts speaking.
func (p *PCMPlayer) Clear() {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
}

// Pending returns the number of queued chunks.
func (p *PCMPlayer) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *PCMPlayer) loop() {
	defer close(p.exited)
	for {
		p.mu.Lock()
		var next []int16
		if len(p.pending) > 0 {
			next = p.pending[0]
			p.pending = p.pending[1:]
		}
		p.mu.Unlock()

		if next != nil {
			if err := p.out.Write(next); err != nil {
				select {
				case <-p.done:
				default:
					p.logger.Warn("playback write failed", "error", err)
				}
				return
			}
			continue
		}
		select {
		case <-p.wake:
		case <-p.done:
			return
		}
	}
}

// Close stops playback and releases the device.
func (p *PCMPlayer) Close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.out.Close()
		<-p.exited
	})
	return err
}
