package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/haivivi/rtvoice/pkg/audio/capture"
	"github.com/haivivi/rtvoice/pkg/audio/pcm"
)

// DefaultQueueSize is the capacity of a session's event queue.
const DefaultQueueSize = 64

// Handler receives every parsed server event in wire order.
type Handler func(ev ServerEvent)

// Session is one realtime conversation. It is idle until Init and may be
// initialized again after Disconnect; each Init uses a fresh transport
// and credential.
//
// Inbound events and captured frames are processed in order on a single
// goroutine per Init, so the handler and the StartRecording callback
// never run concurrently. Both may call any Session method.
type Session struct {
	client  *Client
	handler Handler
	logger  *slog.Logger

	mu        sync.Mutex
	gen       uint64
	transport Transport
	connected bool
	capture   *capture.Capture
	queue     *queue
	sessionID string
}

// Init connects a new transport. It fails with ErrAlreadyInitialized while
// a transport is connecting or connected. A Disconnect during Init makes
// Init return ErrSessionClosed and leaves nothing open.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.gen++
	gen := s.gen
	t := s.client.NewTransport()
	q := newQueue(s.client.config.queueSize)
	s.transport, s.queue, s.sessionID = t, q, ""
	s.mu.Unlock()

	t.OnMessage(func(data []byte) {
		q.post(func() { s.dispatch(gen, data) })
	})

	err := t.Connect(ctx)
	s.client.config.metrics.init(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		if err == nil {
			err = ErrSessionClosed
		}
		return err
	}
	if err != nil {
		s.transport, s.queue = nil, nil
		q.stop()
		s.logger.Warn("session init failed", "error", err)
		return err
	}
	s.connected = true
	s.logger.Info("session initialized")
	return nil
}

// dispatch parses one inbound message and hands it to the handler.
func (s *Session) dispatch(gen uint64, data []byte) {
	ev, err := ParseServerEvent(data)
	if err != nil {
		s.client.config.metrics.message(outcomeMalformed, 1)
		s.logger.Debug("dropping malformed message", "error", err)
		return
	}
	switch ev := ev.(type) {
	case *SessionCreated:
		s.mu.Lock()
		if gen == s.gen {
			s.sessionID = ev.Session.ID
		}
		s.mu.Unlock()
	case *ErrorEvent:
		s.logger.Warn("server error", "code", ev.Error.Code, "message", ev.Error.Message)
	}
	if s.handler != nil {
		s.handler(ev)
	}
}

// StartRecording starts capture and hands every frame, encoded as a wire
// frame, to onChunk. A nil onChunk sends the frames with SendAudioChunk.
//
// It fails with ErrNotInitialized until the transport's media leg is
// attached, ErrAlreadyRecording when capture is running and
// ErrDeviceUnavailable when the microphone cannot be opened. Frames are
// dropped when the session queue is full. If the device stream fails,
// recording ends, the device is released and Recording reports false.
func (s *Session) StartRecording(onChunk func(encoded string)) error {
	if onChunk == nil {
		onChunk = s.SendAudioChunk
	}

	s.mu.Lock()
	t, q := s.transport, s.queue
	if t == nil || !t.MediaAttached() {
		s.mu.Unlock()
		return ErrNotInitialized
	}
	if s.capture != nil {
		s.mu.Unlock()
		return ErrAlreadyRecording
	}
	gen := s.gen
	cfg := s.client.config
	var c *capture.Capture
	opts := append([]capture.Option{capture.WithLogger(s.logger)}, cfg.captureOpts...)
	opts = append(opts, capture.WithOnEnd(func(err error) { s.captureEnded(c, err) }))
	c = capture.New(cfg.device, opts...)
	s.capture = c
	s.mu.Unlock()

	err := c.Start(func(frame []float32) {
		ok := q.tryPost(func() { onChunk(pcm.EncodeFrame(frame)) })
		cfg.metrics.frame(!ok)
		if !ok {
			s.logger.Debug("dropping captured frame, session queue full")
		}
	})

	s.mu.Lock()
	if err != nil {
		if s.capture == c {
			s.capture = nil
		}
		s.mu.Unlock()
		return err
	}
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		c.Stop()
		return ErrSessionClosed
	}
	s.logger.Info("recording started")
	return nil
}

// captureEnded drops a capture whose stream ended without StopRecording.
func (s *Session) captureEnded(c *capture.Capture, err error) {
	s.mu.Lock()
	current := s.capture == c
	if current {
		s.capture = nil
	}
	s.mu.Unlock()
	if !current {
		return
	}
	if err != nil {
		s.logger.Warn("recording ended", "error", err)
		return
	}
	s.logger.Info("recording ended")
}

// StopRecording stops capture and keeps the transport open.
func (s *Session) StopRecording() {
	s.mu.Lock()
	c := s.capture
	s.capture = nil
	s.mu.Unlock()

	if c != nil {
		c.Stop()
		s.logger.Info("recording stopped")
	}
}

// SendAudioChunk appends one wire frame to the input audio buffer.
func (s *Session) SendAudioChunk(encoded string) {
	s.send(InputAudioAppend{EventID: generateEventID(), Audio: encoded})
}

// CommitInput commits the input audio buffer and requests a response.
// Both messages are sent together, in that order.
func (s *Session) CommitInput() {
	s.send(
		InputAudioCommit{EventID: generateEventID()},
		ResponseCreate{EventID: generateEventID()},
	)
}

// SendText adds a user text message and requests a response.
func (s *Session) SendText(text string) {
	s.send(
		ConversationItemCreate{EventID: generateEventID(), Item: userText(text)},
		ResponseCreate{EventID: generateEventID()},
	)
}

// UpdateSession updates the remote session configuration.
func (s *Session) UpdateSession(config *SessionConfig) {
	s.send(SessionUpdate{EventID: generateEventID(), Session: config})
}

// CreateResponse requests a response with per-response overrides.
func (s *Session) CreateResponse(opts *ResponseCreateOptions) {
	s.send(ResponseCreate{EventID: generateEventID(), Response: opts})
}

// ClearInput discards the input audio buffer.
func (s *Session) ClearInput() {
	s.send(InputAudioClear{EventID: generateEventID()})
}

// CancelResponse cancels the in-progress response.
func (s *Session) CancelResponse() {
	s.send(ResponseCancel{EventID: generateEventID()})
}

// send writes events to the current transport. Failures are logged, never
// returned.
func (s *Session) send(events ...ClientEvent) {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()

	typ := events[0].EventType()
	if t == nil {
		s.client.config.metrics.message(outcomeSuppressed, len(events))
		s.logger.Debug("send suppressed", "type", typ, "reason", "not initialized")
		return
	}
	err := t.Send(events...)
	switch {
	case err == nil:
	case errors.Is(err, ErrSendSuppressed):
		s.logger.Debug("send suppressed", "type", typ, "reason", "channel not open")
	case errors.Is(err, ErrSessionClosed):
		s.logger.Debug("send suppressed", "type", typ, "reason", "channel closed")
	default:
		s.logger.Warn("send failed", "type", typ, "error", err)
	}
}

// SessionID returns the remote session id once session.created arrived.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Connected reports whether Init succeeded and Disconnect was not called.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Recording reports whether capture is running.
func (s *Session) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture != nil
}

// Disconnect stops capture and closes the transport. It is safe to call
// from any state, any number of times, including from the handler.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.gen++
	t, c, q := s.transport, s.capture, s.queue
	s.transport, s.capture, s.queue = nil, nil, nil
	s.connected = false
	s.sessionID = ""
	s.mu.Unlock()

	if c != nil {
		c.Stop()
	}
	if q != nil {
		q.stop()
	}
	if t != nil {
		if err := t.Close(); err != nil {
			s.logger.Warn("transport close failed", "error", err)
		}
		s.logger.Info("session disconnected")
	}
}

// queue is a single-consumer FIFO of work run on its own goroutine.
type queue struct {
	in   chan func()
	done chan struct{}
	once sync.Once
}

func newQueue(size int) *queue {
	q := &queue{
		in:   make(chan func(), size),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) run() {
	for {
		select {
		case <-q.done:
			return
		case fn := <-q.in:
			select {
			case <-q.done:
				return
			default:
			}
			fn()
		}
	}
}

// post blocks until fn is queued or the queue stops.
func (q *queue) post(fn func()) bool {
	select {
	case q.in <- fn:
		return true
	case <-q.done:
		return false
	}
}

// tryPost queues fn unless the queue is full or stopped.
func (q *queue) tryPost(fn func()) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.in <- fn:
		return true
	default:
		return false
	}
}

// stop ends the consumer goroutine. Queued work is discarded.
func (q *queue) stop() {
	q.once.Do(func() { close(q.done) })
}
