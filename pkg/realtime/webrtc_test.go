package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"
)

// remotePeer answers offers with a pion peer connection and records the
// control messages it receives.
type remotePeer struct {
	t        *testing.T
	received chan string

	mu  sync.Mutex
	pcs []*webrtc.PeerConnection
}

func (p *remotePeer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	offer, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p.mu.Lock()
	p.pcs = append(p.pcs, pc)
	p.mu.Unlock()

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			dc.SendText(`{"type":"session.created","session":{"id":"sess_loop"}}`)
		})
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			p.received <- string(msg.Data)
		})
	})

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: string(offer)}); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	<-gathered

	w.Header().Set("Content-Type", "application/sdp")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, pc.LocalDescription().SDP)
}

func (p *remotePeer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pc := range p.pcs {
		pc.Close()
	}
}

func TestWebRTCTransport_Loopback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping loopback peer connection in short mode")
	}

	peer := &remotePeer{t: t, received: make(chan string, 16)}
	srv := httptest.NewServer(peer)
	defer srv.Close()
	defer peer.close()

	mediator := MediatorFunc(func(context.Context) (Credential, error) {
		return NewCredential("ek_loop"), nil
	})
	client := NewClient(mediator,
		WithHTTPURL(srv.URL),
		WithICEServers([]webrtc.ICEServer{}...),
	)
	events := make(chan ServerEvent, 16)
	s := client.NewSession(func(ev ServerEvent) { events <- ev })
	defer s.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() error: %v", err)
	}

	select {
	case ev := <-events:
		if _, ok := ev.(*SessionCreated); !ok {
			t.Fatalf("first event = %T, want *SessionCreated", ev)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no event over the data channel")
	}

	wt := s.transport.(*WebRTCTransport)
	if !wt.MediaAttached() {
		t.Error("MediaAttached() = false")
	}
	deadline := time.Now().Add(5 * time.Second)
	for !wt.ch.isOpen() {
		if time.Now().After(deadline) {
			t.Fatal("control channel never opened")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.SendText("hi")
	var got []string
	for len(got) < 2 {
		select {
		case msg := <-peer.received:
			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(msg), &head); err != nil {
				t.Fatalf("remote received %q: %v", msg, err)
			}
			got = append(got, head.Type)
		case <-time.After(5 * time.Second):
			t.Fatalf("remote received %v, want 2 messages", got)
		}
	}
	want := []string{EventTypeConversationItemCreate, EventTypeResponseCreate}
	if !equal(got, want) {
		t.Errorf("remote received %v, want %v", got, want)
	}

	s.Disconnect()
	if wt.State() != StateClosed {
		t.Errorf("State() = %v after Disconnect, want closed", wt.State())
	}
}

func TestWebRTCTransport_ConnectOnce(t *testing.T) {
	tr := NewWebRTCTransport(WebRTCConfig{
		Mediator: MediatorFunc(func(context.Context) (Credential, error) {
			return Credential{}, nil
		}),
	})
	if err := tr.Connect(context.Background()); !errors.Is(err, ErrCredential) {
		t.Fatalf("Connect() with empty credential error = %v, want ErrCredential", err)
	}
	if err := tr.Connect(context.Background()); !errors.Is(err, ErrTransportUsed) {
		t.Errorf("second Connect() error = %v, want ErrTransportUsed", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := tr.Send(InputAudioCommit{}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send() after close error = %v, want ErrSessionClosed", err)
	}
}

func TestWebRTCTransport_NegotiationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := NewWebRTCTransport(WebRTCConfig{
		Mediator: MediatorFunc(func(context.Context) (Credential, error) {
			return NewCredential("ek"), nil
		}),
		Endpoint:   srv.URL,
		ICEServers: []webrtc.ICEServer{},
	})
	err := tr.Connect(context.Background())
	if !errors.Is(err, ErrNegotiation) {
		t.Fatalf("Connect() error = %v, want ErrNegotiation", err)
	}
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("Connect() error = %v, want HTTP 401", err)
	}
	if tr.State() != StateClosed || tr.MediaAttached() {
		t.Errorf("State() = %v, MediaAttached() = %v after failure", tr.State(), tr.MediaAttached())
	}
}
