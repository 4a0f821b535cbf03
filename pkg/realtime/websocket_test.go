package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wsServer struct {
	t        *testing.T
	received chan string
	header   chan http.Header
	query    chan string
	upgrader websocket.Upgrader
}

func newWSServer(t *testing.T) (*wsServer, *httptest.Server) {
	ws := &wsServer{
		t:        t,
		received: make(chan string, 16),
		header:   make(chan http.Header, 1),
		query:    make(chan string, 1),
	}
	srv := httptest.NewServer(ws)
	t.Cleanup(srv.Close)
	return ws, srv
}

func (s *wsServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.header <- r.Header.Clone()
	s.query <- r.URL.Query().Get("model")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"session.created","event_id":"evt_1","session":{"id":"sess_ws"}}`))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var head struct {
			Type string `json:"type"`
		}
		json.Unmarshal(msg, &head)
		s.received <- head.Type
		if head.Type == EventTypeResponseCreate {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.audio.delta","response_id":"resp_1","delta":"AAABAA=="}`))
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketTransport_Session(t *testing.T) {
	ws, srv := newWSServer(t)

	mediator := MediatorFunc(func(context.Context) (Credential, error) {
		return NewCredential("ek_ws"), nil
	})
	client := NewClient(mediator,
		WithTransportKind(TransportWebSocket),
		WithWebSocketURL(wsURL(srv)),
		WithModel(ModelGPT4oMiniRealtimePreview),
	)
	events := make(chan ServerEvent, 16)
	s := client.NewSession(func(ev ServerEvent) { events <- ev })
	defer s.Disconnect()

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if !s.Connected() {
		t.Error("Connected() = false after Init")
	}

	h := <-ws.header
	if got := h.Get("Authorization"); got != "Bearer ek_ws" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer ek_ws")
	}
	if got := h.Get("OpenAI-Beta"); got != "realtime=v1" {
		t.Errorf("OpenAI-Beta = %q, want realtime=v1", got)
	}
	if got := <-ws.query; got != ModelGPT4oMiniRealtimePreview {
		t.Errorf("model = %q, want %q", got, ModelGPT4oMiniRealtimePreview)
	}

	s.SendText("hello")

	var got []string
	for len(got) < 2 {
		select {
		case typ := <-ws.received:
			got = append(got, typ)
		case <-time.After(5 * time.Second):
			t.Fatalf("server received %v, want 2 messages", got)
		}
	}
	want := []string{EventTypeConversationItemCreate, EventTypeResponseCreate}
	if !equal(got, want) {
		t.Errorf("server received %v, want %v", got, want)
	}

	var created *SessionCreated
	var delta *ResponseAudioDelta
	timeout := time.After(5 * time.Second)
	for created == nil || delta == nil {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case *SessionCreated:
				created = e
			case *ResponseAudioDelta:
				delta = e
			}
		case <-timeout:
			t.Fatal("timed out waiting for server events")
		}
	}
	if s.SessionID() != "sess_ws" {
		t.Errorf("SessionID() = %q, want sess_ws", s.SessionID())
	}
	audio, err := delta.Audio()
	if err != nil {
		t.Fatalf("Audio() error: %v", err)
	}
	if len(audio) != 4 {
		t.Errorf("len(Audio()) = %d, want 4", len(audio))
	}

	s.Disconnect()
	if s.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
}

func TestWebSocketTransport_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewWebSocketTransport(WebSocketConfig{
		Mediator: MediatorFunc(func(context.Context) (Credential, error) {
			return NewCredential("ek"), nil
		}),
		URL: wsURL(srv),
	})
	err := tr.Connect(context.Background())
	if !errors.Is(err, ErrNegotiation) {
		t.Fatalf("Connect() error = %v, want ErrNegotiation", err)
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Code != "connection_failed" || rerr.HTTPStatus != http.StatusForbidden {
		t.Errorf("Connect() error = %+v, want connection_failed with 403", rerr)
	}
	if tr.State() != StateClosed {
		t.Errorf("State() = %v, want closed", tr.State())
	}
	if tr.MediaAttached() {
		t.Error("MediaAttached() = true after failed Connect")
	}
}

func TestWebSocketTransport_MediatorError(t *testing.T) {
	cause := errors.New("boom")
	tr := NewWebSocketTransport(WebSocketConfig{
		Mediator: MediatorFunc(func(context.Context) (Credential, error) {
			return Credential{}, cause
		}),
	})
	err := tr.Connect(context.Background())
	if !errors.Is(err, ErrCredential) || !errors.Is(err, cause) {
		t.Errorf("Connect() error = %v, want ErrCredential wrapping cause", err)
	}
}
