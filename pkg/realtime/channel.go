package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// PreOpenPolicy decides what happens to messages sent before the control
// channel is open.
type PreOpenPolicy int

const (
	// PreOpenDrop drops the message. Audio from the first moments of a
	// session may be lost, but nothing stale is sent.
	PreOpenDrop PreOpenPolicy = iota

	// PreOpenQueue holds up to the configured number of messages and
	// flushes them in order when the channel opens. A batch that would
	// exceed the limit is dropped.
	PreOpenQueue
)

// DefaultPreOpenQueueSize is the PreOpenQueue limit, about 40 seconds of
// 4096-sample frames.
const DefaultPreOpenQueueSize = 256

func (p PreOpenPolicy) String() string {
	switch p {
	case PreOpenDrop:
		return "drop"
	case PreOpenQueue:
		return "queue"
	}
	return fmt.Sprintf("PreOpenPolicy(%d)", int(p))
}

// ParsePreOpenPolicy parses "drop" or "queue". The empty string is drop.
func ParsePreOpenPolicy(s string) (PreOpenPolicy, error) {
	switch s {
	case "", "drop":
		return PreOpenDrop, nil
	case "queue":
		return PreOpenQueue, nil
	}
	return 0, fmt.Errorf("realtime: unknown pre-open policy %q", s)
}

// controlChannel serializes client events onto an ordered message
// channel and gates them on readiness.
type controlChannel struct {
	policy  PreOpenPolicy
	limit   int
	logger  *slog.Logger
	metrics *Metrics

	mu     sync.Mutex
	write  func([]byte) error
	open   bool
	closed bool
	queue  [][]byte
}

func newControlChannel(policy PreOpenPolicy, limit int, logger *slog.Logger, metrics *Metrics) *controlChannel {
	if limit <= 0 {
		limit = DefaultPreOpenQueueSize
	}
	return &controlChannel{policy: policy, limit: limit, logger: logger, metrics: metrics}
}

// send writes events in order with no other send interleaved. It returns
// ErrSendSuppressed when the batch was dropped for lack of an open
// channel.
func (c *controlChannel) send(events []ClientEvent) error {
	payloads := make([][]byte, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("realtime: encode %s: %w", ev.EventType(), err)
		}
		payloads = append(payloads, data)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed:
		c.metrics.message(outcomeSuppressed, len(payloads))
		return ErrSessionClosed
	case c.open:
		return c.flushLocked(payloads)
	case c.policy == PreOpenQueue && len(c.queue)+len(payloads) <= c.limit:
		c.queue = append(c.queue, payloads...)
		return nil
	}
	c.metrics.message(outcomeSuppressed, len(payloads))
	return ErrSendSuppressed
}

func (c *controlChannel) flushLocked(payloads [][]byte) error {
	for i, data := range payloads {
		if c.logger.Enabled(context.Background(), slog.LevelDebug) {
			c.logger.Debug("sending event", "content", truncate(string(data), 500))
		}
		if err := c.write(data); err != nil {
			c.metrics.message(outcomeSent, i)
			return fmt.Errorf("realtime: send: %w", err)
		}
	}
	c.metrics.message(outcomeSent, len(payloads))
	return nil
}

// markOpen installs the writer and flushes queued messages in order.
func (c *controlChannel) markOpen(write func([]byte) error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.open {
		return
	}
	c.write = write
	c.open = true
	queued := c.queue
	c.queue = nil
	if len(queued) > 0 {
		c.logger.Debug("flushing queued events", "count", len(queued))
		if err := c.flushLocked(queued); err != nil {
			c.logger.Warn("flush queued events failed", "error", err)
		}
	}
}

// markClosed makes every later send fail with ErrSessionClosed.
func (c *controlChannel) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.open = false
	if n := len(c.queue); n > 0 {
		c.metrics.message(outcomeSuppressed, n)
		c.queue = nil
	}
}

func (c *controlChannel) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
