package realtime

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// DataChannelLabel is the label of the control data channel.
const DataChannelLabel = "oai-events"

// DefaultICEServers is used when no ICE servers are configured.
var DefaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// WebRTCConfig configures a WebRTCTransport.
type WebRTCConfig struct {
	// Mediator supplies the credential for the signaling exchange.
	Mediator Mediator

	// Endpoint is the signaling URL. Default: DefaultHTTPURL.
	Endpoint string

	// Model is sent as the "model" query parameter. Default: DefaultModel.
	Model string

	HTTPClient *http.Client

	// ICEServers defaults to DefaultICEServers when nil. An empty slice
	// gathers host candidates only.
	ICEServers []webrtc.ICEServer

	// Microphone feeds the local audio track. When nil the track is
	// attached but stays silent.
	Microphone Microphone

	// Playback renders the remote audio track. When nil the track is
	// drained and discarded.
	Playback Playback

	PreOpen          PreOpenPolicy
	PreOpenQueueSize int

	Logger  *slog.Logger
	Metrics *Metrics
}

// WebRTCTransport is a Transport over a WebRTC peer connection with one
// local Opus track, one remote audio track and an ordered data channel
// for control events.
type WebRTCTransport struct {
	link
	cfg WebRTCConfig

	// Guarded by link.mu.
	pc    *webrtc.PeerConnection
	out   OutboundAudio
	media bool
}

// NewWebRTCTransport creates an idle transport.
func NewWebRTCTransport(cfg WebRTCConfig) *WebRTCTransport {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultHTTPURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.ICEServers == nil {
		cfg.ICEServers = DefaultICEServers
	}
	logger := cmp.Or(cfg.Logger, slog.Default()).With("transport", "webrtc")
	return &WebRTCTransport{
		link: newLink(cfg.PreOpen, cfg.PreOpenQueueSize, logger, cfg.Metrics),
		cfg:  cfg,
	}
}

// Connect fetches a credential, negotiates the peer connection and
// returns once the remote description is applied. The data channel opens
// asynchronously afterwards.
func (t *WebRTCTransport) Connect(ctx context.Context) error {
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
	if err := t.negotiate(ctx, cred); err != nil {
		return fail(t, err)
	}
	if !t.transition(StateNegotiating, StateConnected) {
		return fail(t, ErrSessionClosed)
	}
	t.logger.Info("connected", "model", t.cfg.Model)
	return nil
}

func (t *WebRTCTransport) negotiate(ctx context.Context, cred Credential) error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: t.cfg.ICEServers})
	if err != nil {
		return negotiationError("peer_connection", "create peer connection", 0, err)
	}
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		pc.Close()
		return ErrSessionClosed
	}
	t.pc = pc
	t.mu.Unlock()

	if err := t.attachAudio(ctx, pc); err != nil {
		return err
	}

	ordered := true
	dc, err := pc.CreateDataChannel(DataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return negotiationError("data_channel", "create data channel", 0, err)
	}
	dc.OnOpen(func() {
		t.logger.Debug("data channel opened")
		t.ch.markOpen(func(data []byte) error {
			return dc.SendText(string(data))
		})
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.deliver(msg.Data)
	})
	dc.OnClose(func() {
		t.logger.Debug("data channel closed")
		t.ch.markClosed()
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		t.spawn(func() { t.forward(track) })
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.logger.Debug("peer connection state", "state", s.String())
		if s == webrtc.PeerConnectionStateFailed {
			t.logger.Warn("peer connection failed")
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return negotiationError("create_offer", "create offer", 0, err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return negotiationError("local_description", "set local description", 0, err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return negotiationError("ice_gathering", "interrupted", 0, ctx.Err())
	}

	answer, err := exchangeSDP(ctx, t.cfg.HTTPClient, t.cfg.Endpoint, t.cfg.Model, cred, pc.LocalDescription().SDP)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return negotiationError("remote_description", "set remote description", 0, err)
	}
	return nil
}

// attachAudio adds the local Opus track and starts feeding it from a
// freshly opened microphone.
func (t *WebRTCTransport) attachAudio(ctx context.Context, pc *webrtc.PeerConnection) error {
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, "audio", "rtvoice")
	if err != nil {
		return negotiationError("local_track", "create local track", 0, err)
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		return negotiationError("local_track", "add local track", 0, err)
	}
	t.spawn(func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	})

	if t.cfg.Microphone == nil {
		t.logger.Debug("no microphone configured, local track is silent")
		t.mu.Lock()
		t.media = true
		t.mu.Unlock()
		return nil
	}

	out, err := t.cfg.Microphone.Open(ctx)
	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		out.Close()
		return ErrSessionClosed
	}
	t.out = out
	t.media = true
	t.mu.Unlock()

	t.spawn(func() { t.pump(out, track) })
	return nil
}

// pump writes microphone packets to the local track until the
// microphone is closed.
func (t *WebRTCTransport) pump(out OutboundAudio, track *webrtc.TrackLocalStaticSample) {
	for {
		data, dur, err := out.ReadPacket()
		if err != nil {
			return
		}
		if err := track.WriteSample(media.Sample{Data: data, Duration: dur}); err != nil {
			t.logger.Debug("local track write ended", "error", err)
			return
		}
	}
}

// forward routes the remote track to a playback sink opened for this
// connection.
func (t *WebRTCTransport) forward(track *webrtc.TrackRemote) {
	codec := track.Codec()
	t.logger.Debug("received remote track", "kind", track.Kind().String(), "codec", codec.MimeType)

	var sink PlaybackSink
	if t.cfg.Playback != nil {
		s, err := t.cfg.Playback.Open(codec.MimeType, codec.ClockRate, codec.Channels)
		if err != nil {
			t.logger.Warn("playback unavailable", "error", err)
		} else {
			sink = s
		}
	}
	defer func() {
		if sink != nil {
			sink.Close()
		}
	}()

	var last uint16
	first := true
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		gap := !first && pkt.SequenceNumber != last+1
		first, last = false, pkt.SequenceNumber
		t.metrics.rtp(gap)

		if sink == nil {
			continue
		}
		if err := sink.WriteRTP(pkt); err != nil {
			t.logger.Warn("playback failed", "error", err)
			sink.Close()
			sink = nil
		}
	}
}

// MediaAttached reports whether the local audio track is attached.
func (t *WebRTCTransport) MediaAttached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.media && t.state != StateClosed
}

// Close closes the data channel, microphone, peer connection and
// playback sink. It is idempotent.
func (t *WebRTCTransport) Close() error {
	if !t.markClosed() {
		return nil
	}
	t.mu.Lock()
	pc, out := t.pc, t.out
	t.pc, t.out = nil, nil
	t.mu.Unlock()

	t.ch.markClosed()
	if out != nil {
		if err := out.Close(); err != nil {
			t.logger.Warn("close microphone failed", "error", err)
		}
	}
	var err error
	if pc != nil {
		err = pc.Close()
	}
	t.wg.Wait()
	t.logger.Debug("closed")
	return err
}

var _ Transport = (*WebRTCTransport)(nil)
