package realtime

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
)

// WebSocketConfig configures a WebSocketTransport.
type WebSocketConfig struct {
	// Mediator supplies the bearer credential for the handshake.
	Mediator Mediator

	// URL is the WebSocket endpoint. Default: DefaultWebSocketURL.
	URL string

	// Model is sent as the "model" query parameter. Default: DefaultModel.
	Model string

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	PreOpen          PreOpenPolicy
	PreOpenQueueSize int

	Logger  *slog.Logger
	Metrics *Metrics
}

// WebSocketTransport is a Transport over a WebSocket. It has no media
// leg: audio travels only as append events and response audio arrives as
// ResponseAudioDelta events.
type WebSocketTransport struct {
	link
	cfg WebSocketConfig

	// Guarded by link.mu.
	conn *websocket.Conn
}

// NewWebSocketTransport creates an idle transport.
func NewWebSocketTransport(cfg WebSocketConfig) *WebSocketTransport {
	if cfg.URL == "" {
		cfg.URL = DefaultWebSocketURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	logger := cmp.Or(cfg.Logger, slog.Default()).With("transport", "websocket")
	return &WebSocketTransport{
		link: newLink(cfg.PreOpen, cfg.PreOpenQueueSize, logger, cfg.Metrics),
		cfg:  cfg,
	}
}

// Connect fetches a credential and dials. The control channel is open
// when Connect returns.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	if !t.transition(StateIdle, StateAwaitingCredential) {
		return ErrTransportUsed
	}
	if t.cfg.Mediator == nil {
		return fail(t, credentialError("no_mediator", "no mediator configured", 0, nil))
	}

	cred, err := t.cfg.Mediator.Credential(ctx)
	if err == nil && !cred.Valid() {
		err = credentialError("missing_token", "mediator returned an empty credential", 0, nil)
	}
	if err != nil {
		if !errors.Is(err, ErrCredential) {
			err = credentialError("mediator_failed", "", 0, err)
		}
		return fail(t, err)
	}

	if !t.transition(StateAwaitingCredential, StateNegotiating) {
		return fail(t, ErrSessionClosed)
	}

	u, err := url.Parse(t.cfg.URL)
	if err != nil {
		return fail(t, negotiationError("invalid_endpoint", t.cfg.URL, 0, err))
	}
	q := u.Query()
	q.Set("model", t.cfg.Model)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+cred.Token())
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := t.cfg.Dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		return fail(t, negotiationError("connection_failed", "dial", status, err))
	}

	t.mu.Lock()
	if t.state != StateNegotiating {
		t.mu.Unlock()
		conn.Close()
		return fail(t, ErrSessionClosed)
	}
	t.conn = conn
	t.state = StateConnected
	t.mu.Unlock()

	t.ch.markOpen(func(data []byte) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
	t.spawn(func() { t.readLoop(conn) })
	t.logger.Info("connected", "model", t.cfg.Model)
	return nil
}

// readLoop reads messages until the connection fails or is closed.
func (t *WebSocketTransport) readLoop(conn *websocket.Conn) {
	defer t.ch.markClosed()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if t.State() != StateClosed {
				t.logger.Warn("read failed", "error", fmt.Errorf("read error: %w", err))
			}
			return
		}
		t.deliver(message)
	}
}

// MediaAttached reports whether the connection is up. Audio is carried
// in-band, so the media leg is the connection itself.
func (t *WebSocketTransport) MediaAttached() bool {
	return t.State() == StateConnected
}

// Close closes the connection. It is idempotent.
func (t *WebSocketTransport) Close() error {
	if !t.markClosed() {
		return nil
	}
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	t.ch.markClosed()
	var err error
	if conn != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = conn.Close()
	}
	t.wg.Wait()
	t.logger.Debug("closed")
	return err
}

var _ Transport = (*WebSocketTransport)(nil)
