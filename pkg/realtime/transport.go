package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtp"
)

// State is a transport lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateAwaitingCredential
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCredential:
		return "awaiting_credential"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Transport owns the link to the remote service for one session. A
// transport is single use: after Close, or a failed Connect, a new one
// must be created.
type Transport interface {
	// Connect runs the handshake. It returns ErrTransportUsed unless the
	// transport is idle, and closes the transport on failure.
	Connect(ctx context.Context) error

	// Send writes events in order with no other send interleaved.
	// It returns ErrSendSuppressed when the control channel is not open
	// and the pre-open policy dropped the batch.
	Send(events ...ClientEvent) error

	// OnMessage sets the single consumer of inbound control messages.
	// It must be called before Connect.
	OnMessage(fn func(data []byte))

	// MediaAttached reports whether the outbound media leg is attached.
	MediaAttached() bool

	State() State

	// Close releases the connection. It is idempotent.
	Close() error
}

// Microphone opens the outbound audio of a WebRTC transport. It is
// distinct from the capture device feeding audio append events.
type Microphone interface {
	Open(ctx context.Context) (OutboundAudio, error)
}

// OutboundAudio yields encoded Opus packets.
type OutboundAudio interface {
	// ReadPacket blocks for the next packet and its duration. It returns
	// an error once closed.
	ReadPacket() ([]byte, time.Duration, error)
	Close() error
}

// Playback renders the remote audio track. Open is called once per
// connection when the track arrives.
type Playback interface {
	Open(mimeType string, clockRate uint32, channels uint16) (PlaybackSink, error)
}

// PlaybackSink consumes RTP packets of one remote track. It is closed when
// the transport closes.
type PlaybackSink interface {
	WriteRTP(pkt *rtp.Packet) error
	Close() error
}

// link holds the state shared by the transport implementations.
type link struct {
	logger  *slog.Logger
	metrics *Metrics
	ch      *controlChannel

	mu        sync.Mutex
	state     State
	onMessage func([]byte)
	wg        sync.WaitGroup
}

func newLink(policy PreOpenPolicy, queueSize int, logger *slog.Logger, metrics *Metrics) link {
	if logger == nil {
		logger = slog.Default()
	}
	return link{
		logger:  logger,
		metrics: metrics,
		ch:      newControlChannel(policy, queueSize, logger, metrics),
	}
}

func (l *link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *link) OnMessage(fn func(data []byte)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onMessage = fn
}

func (l *link) Send(events ...ClientEvent) error {
	return l.ch.send(events)
}

// transition moves from one state to the next and reports whether the
// link was in from.
func (l *link) transition(from, to State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != from {
		return false
	}
	l.logger.Debug("transport state", "from", from, "to", to)
	l.state = to
	return true
}

// markClosed moves to StateClosed and reports whether this call did so.
func (l *link) markClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	l.state = StateClosed
	return true
}

// spawn runs fn in a goroutine tracked by wg unless the link is closed.
func (l *link) spawn(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
	return true
}

// deliver hands one inbound message to the consumer.
func (l *link) deliver(data []byte) {
	l.mu.Lock()
	fn := l.onMessage
	l.mu.Unlock()

	l.metrics.message(outcomeReceived, 1)
	if l.logger.Enabled(context.Background(), slog.LevelDebug) {
		l.logger.Debug("received message", "len", len(data), "content", truncate(string(data), 1000))
	}
	if fn != nil {
		fn(data)
	}
}

// fail closes the transport and returns err, or ErrSessionClosed when the
// transport was closed while connecting.
func fail(t Transport, err error) error {
	if t.State() == StateClosed {
		err = ErrSessionClosed
	}
	t.Close()
	return err
}
