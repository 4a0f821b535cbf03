package commands

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haivivi/rtvoice/pkg/audio/portaudio"
	"github.com/haivivi/rtvoice/pkg/audio/rtcmedia"
	"github.com/haivivi/rtvoice/pkg/cli"
	"github.com/haivivi/rtvoice/pkg/realtime"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a realtime voice conversation",
	Long: `Start a realtime voice conversation.

Speak into the default microphone; the reply plays on the default output
device. Typed lines are sent as text. With --manual, server-side turn
detection is off and an empty line ends your turn.

Commands:
  /cancel  cancel the current response
  /clear   clear the input audio buffer
  /quit    exit

Examples:
  rtvoice -c dev chat
  rtvoice -c dev chat --manual --metrics-addr :9090`,
	RunE: runChat,
}

var (
	chatTimeout     time.Duration
	chatMetricsAddr string
	chatNoPlayback  bool
	chatManual      bool
	chatAppendAudio bool
)

func init() {
	chatCmd.Flags().DurationVar(&chatTimeout, "timeout", 30*time.Second, "session init timeout")
	chatCmd.Flags().StringVar(&chatMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	chatCmd.Flags().BoolVar(&chatNoPlayback, "no-playback", false, "do not play response audio")
	chatCmd.Flags().BoolVar(&chatManual, "manual", false, "disable server VAD; an empty line commits the turn")
	chatCmd.Flags().BoolVar(&chatAppendAudio, "append-audio", false, "also stream captured audio as append events over WebRTC")
}

func runChat(cmd *cobra.Command, args []string) error {
	cc, err := getContext()
	if err != nil {
		return err
	}
	settings, err := resolveContext(cc)
	if err != nil {
		return err
	}
	timeout := chatTimeout
	if !cmd.Flags().Changed("timeout") && cc.Timeout > 0 {
		timeout = time.Duration(cc.Timeout) * time.Second
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := settings.options
	if chatMetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, realtime.WithMetrics(realtime.NewMetrics(reg)))
		srv := serveMetrics(chatMetricsAddr, reg)
		defer srv.Close()
	}

	var player *rtcmedia.PCMPlayer
	switch settings.kind {
	case realtime.TransportWebRTC:
		opts = append(opts, realtime.WithMicrophone(rtcmedia.OpusMicrophone{}))
		if !chatNoPlayback {
			opts = append(opts, realtime.WithPlayback(rtcmedia.Speaker{}))
		}
	case realtime.TransportWebSocket:
		if !chatNoPlayback {
			player, err = rtcmedia.OpenPCMPlayer(slog.Default())
			if err != nil {
				slog.Warn("playback unavailable", "error", err)
			} else {
				defer player.Close()
			}
		}
	}
	opts = append(opts, realtime.WithCaptureDevice(portaudio.Microphone{}))

	styles := cli.NewStyles(cli.DefaultTheme)
	view := newChatView(os.Stdout, os.Stderr, styles)
	created := make(chan struct{})
	var createdOnce sync.Once

	client := realtime.NewClient(settings.mediator, opts...)
	session := client.NewSession(func(ev realtime.ServerEvent) {
		switch e := ev.(type) {
		case *realtime.SessionCreated:
			createdOnce.Do(func() { close(created) })
		case *realtime.SpeechStarted:
			// Barge-in: drop the rest of the reply.
			if player != nil {
				player.Clear()
			}
		case *realtime.ResponseAudioDelta:
			if player != nil {
				if err := player.Play(e); err != nil {
					slog.Debug("bad audio delta", "error", err)
				}
			}
		}
		view.handle(ev)
	})
	defer session.Disconnect()

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	err = session.Init(initCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	// The control channel may open after Init returns; session.created is
	// the first message on an open channel.
	select {
	case <-created:
	case <-ctx.Done():
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for session.created")
	}
	printer().Success("Connected (%s, %s)", settings.kind, cmp.Or(cc.Model, realtime.DefaultModel))
	session.UpdateSession(sessionConfig(cc, chatManual))

	if settings.kind == realtime.TransportWebSocket || chatAppendAudio {
		if err := session.StartRecording(nil); err != nil {
			if !errors.Is(err, realtime.ErrDeviceUnavailable) {
				return err
			}
			slog.Warn("microphone unavailable, text only", "error", err)
		}
	}

	help := "type to chat · /cancel · /clear · /quit"
	if chatManual {
		help = "empty line ends your turn · " + help
	}
	fmt.Fprintln(os.Stderr, styles.Help.Render(help))

	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(session, strings.TrimSpace(line), chatManual); quit {
				return nil
			}
		}
	}
}

// handleLine applies one stdin line and reports whether to quit.
func handleLine(s *realtime.Session, line string, manual bool) bool {
	switch line {
	case "/quit":
		return true
	case "/cancel":
		s.CancelResponse()
	case "/clear":
		s.ClearInput()
	case "":
		if manual {
			s.CommitInput()
		}
	default:
		s.SendText(line)
	}
	return false
}

func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}
