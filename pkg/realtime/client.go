package realtime

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/haivivi/rtvoice/pkg/audio/capture"
	"github.com/pion/webrtc/v3"
)

const (
	// DefaultWebSocketURL is the default WebSocket endpoint.
	DefaultWebSocketURL = "wss://api.openai.com/v1/realtime"

	// DefaultHTTPURL is the default HTTP endpoint (for WebRTC signaling).
	DefaultHTTPURL = "https://api.openai.com/v1/realtime"
)

// TransportKind selects the Transport a Client creates.
type TransportKind int

const (
	TransportWebRTC TransportKind = iota
	TransportWebSocket
)

func (k TransportKind) String() string {
	switch k {
	case TransportWebRTC:
		return "webrtc"
	case TransportWebSocket:
		return "websocket"
	}
	return fmt.Sprintf("TransportKind(%d)", int(k))
}

// ParseTransportKind parses "webrtc" or "websocket". The empty string is
// webrtc.
func ParseTransportKind(s string) (TransportKind, error) {
	switch s {
	case "", "webrtc":
		return TransportWebRTC, nil
	case "websocket", "ws":
		return TransportWebSocket, nil
	}
	return 0, fmt.Errorf("realtime: unknown transport %q", s)
}

// Client creates sessions sharing one configuration.
type Client struct {
	config *clientConfig
}

// clientConfig holds the client configuration.
type clientConfig struct {
	mediator     Mediator
	model        string
	httpURL      string
	wsURL        string
	httpClient   *http.Client
	iceServers   []webrtc.ICEServer
	microphone   Microphone
	playback     Playback
	device       capture.Device
	captureOpts  []capture.Option
	kind         TransportKind
	preOpen      PreOpenPolicy
	preOpenQueue int
	queueSize    int
	logger       *slog.Logger
	metrics      *Metrics
	newTransport func() Transport
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a client. The mediator supplies one credential per
// session init.
func NewClient(mediator Mediator, opts ...Option) *Client {
	cfg := &clientConfig{
		mediator:   mediator,
		model:      DefaultModel,
		httpURL:    DefaultHTTPURL,
		wsURL:      DefaultWebSocketURL,
		httpClient: http.DefaultClient,
		queueSize:  DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return &Client{config: cfg}
}

// WithModel sets the model. Default: DefaultModel.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPURL sets the WebRTC signaling URL.
func WithHTTPURL(url string) Option {
	return func(c *clientConfig) {
		c.httpURL = url
	}
}

// WithWebSocketURL sets the WebSocket URL.
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithHTTPClient sets a custom HTTP client for signaling.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithICEServers overrides DefaultICEServers.
func WithICEServers(servers ...webrtc.ICEServer) Option {
	return func(c *clientConfig) {
		c.iceServers = servers
	}
}

// WithMicrophone sets the source of the WebRTC local audio track.
func WithMicrophone(m Microphone) Option {
	return func(c *clientConfig) {
		c.microphone = m
	}
}

// WithPlayback sets the sink of the WebRTC remote audio track.
func WithPlayback(p Playback) Option {
	return func(c *clientConfig) {
		c.playback = p
	}
}

// WithCaptureDevice sets the device StartRecording captures from.
func WithCaptureDevice(d capture.Device, opts ...capture.Option) Option {
	return func(c *clientConfig) {
		c.device = d
		c.captureOpts = opts
	}
}

// WithTransportKind selects WebRTC (default) or WebSocket.
func WithTransportKind(k TransportKind) Option {
	return func(c *clientConfig) {
		c.kind = k
	}
}

// WithPreOpenPolicy sets what happens to messages sent before the
// control channel opens. queueSize applies to PreOpenQueue; zero means
// DefaultPreOpenQueueSize.
func WithPreOpenPolicy(p PreOpenPolicy, queueSize int) Option {
	return func(c *clientConfig) {
		c.preOpen = p
		c.preOpenQueue = queueSize
	}
}

// WithQueueSize sets the capacity of the per-session event queue.
// Default: DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithMetrics records session metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *clientConfig) {
		c.metrics = m
	}
}

// WithTransport replaces the built-in transports. fn is called once per
// session init.
func WithTransport(fn func() Transport) Option {
	return func(c *clientConfig) {
		c.newTransport = fn
	}
}

// NewTransport creates an idle transport from the client configuration.
func (c *Client) NewTransport() Transport {
	cfg := c.config
	if cfg.newTransport != nil {
		return cfg.newTransport()
	}
	if cfg.kind == TransportWebSocket {
		return NewWebSocketTransport(WebSocketConfig{
			Mediator:         cfg.mediator,
			URL:              cfg.wsURL,
			Model:            cfg.model,
			PreOpen:          cfg.preOpen,
			PreOpenQueueSize: cfg.preOpenQueue,
			Logger:           cfg.logger,
			Metrics:          cfg.metrics,
		})
	}
	return NewWebRTCTransport(WebRTCConfig{
		Mediator:         cfg.mediator,
		Endpoint:         cfg.httpURL,
		Model:            cfg.model,
		HTTPClient:       cfg.httpClient,
		ICEServers:       cfg.iceServers,
		Microphone:       cfg.microphone,
		Playback:         cfg.playback,
		PreOpen:          cfg.preOpen,
		PreOpenQueueSize: cfg.preOpenQueue,
		Logger:           cfg.logger,
		Metrics:          cfg.metrics,
	})
}

// NewSession creates an idle session delivering server events to handler.
func (c *Client) NewSession(handler Handler) *Session {
	return &Session{
		client:  c,
		handler: handler,
		logger:  c.config.logger,
	}
}
