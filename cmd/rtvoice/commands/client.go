package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pion/webrtc/v3"

	"github.com/haivivi/rtvoice/pkg/cli"
	"github.com/haivivi/rtvoice/pkg/realtime"
)

// sessionSettings is a context resolved into realtime types.
type sessionSettings struct {
	kind     realtime.TransportKind
	preOpen  realtime.PreOpenPolicy
	mediator realtime.Mediator
	options  []realtime.Option
}

// resolveContext builds the mediator and client options for ctx. The
// mediator URL wins over the API key.
func resolveContext(ctx *cli.Context) (*sessionSettings, error) {
	if err := ctx.Validate(); err != nil {
		return nil, fmt.Errorf("context %q: %w", ctx.Name, err)
	}
	kind, err := realtime.ParseTransportKind(ctx.Transport)
	if err != nil {
		return nil, err
	}
	preOpen, err := realtime.ParsePreOpenPolicy(ctx.PreOpen)
	if err != nil {
		return nil, err
	}

	s := &sessionSettings{kind: kind, preOpen: preOpen}
	if ctx.MediatorURL != "" {
		m := realtime.NewHTTPMediator(ctx.MediatorURL)
		m.TokenPath = ctx.TokenPath
		s.mediator = m
	} else {
		s.mediator = &realtime.OpenAIMediator{
			APIKey:       ctx.APIKey,
			BaseURL:      ctx.BaseURL,
			Model:        ctx.Model,
			Voice:        ctx.Voice,
			Instructions: ctx.Instructions,
		}
	}

	s.options = append(s.options,
		realtime.WithTransportKind(kind),
		realtime.WithPreOpenPolicy(preOpen, 0),
		realtime.WithLogger(slog.Default()),
	)
	if ctx.Model != "" {
		s.options = append(s.options, realtime.WithModel(ctx.Model))
	}
	if ctx.BaseURL != "" {
		s.options = append(s.options,
			realtime.WithHTTPURL(ctx.BaseURL),
			realtime.WithWebSocketURL(webSocketURL(ctx.BaseURL)))
	}
	if len(ctx.ICEServers) > 0 {
		s.options = append(s.options, realtime.WithICEServers(webrtc.ICEServer{URLs: ctx.ICEServers}))
	}
	return s, nil
}

// webSocketURL maps an http(s) endpoint to its ws(s) counterpart.
func webSocketURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	}
	return httpURL
}

// sessionConfig is the session.update sent after connect.
func sessionConfig(ctx *cli.Context, manual bool) *realtime.SessionConfig {
	cfg := &realtime.SessionConfig{
		Modalities:              []string{realtime.ModalityText, realtime.ModalityAudio},
		Voice:                   ctx.Voice,
		Instructions:            ctx.Instructions,
		InputAudioFormat:        realtime.AudioFormatPCM16,
		OutputAudioFormat:       realtime.AudioFormatPCM16,
		InputAudioTranscription: &realtime.TranscriptionConfig{Model: "whisper-1"},
	}
	if manual {
		cfg.TurnDetectionDisabled = true
	} else {
		cfg.TurnDetection = &realtime.TurnDetection{
			Type:              realtime.VADServerVAD,
			Threshold:         0.5,
			PrefixPaddingMs:   300,
			SilenceDurationMs: 500,
		}
	}
	return cfg
}
