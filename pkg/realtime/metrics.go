package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	InitAttempts   *prometheus.CounterVec
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
	Messages       *prometheus.CounterVec
	RTPPackets     prometheus.Counter
	RTPGaps        prometheus.Counter
}

// NewMetrics creates the session metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		InitAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtvoice",
			Name:      "init_total",
			Help:      "Session init attempts by result",
		}, []string{"result"}),
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtvoice",
			Name:      "frames_captured_total",
			Help:      "Audio frames delivered by capture",
		}),
		FramesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtvoice",
			Name:      "frames_dropped_total",
			Help:      "Audio frames dropped because the session queue was full",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtvoice",
			Name:      "control_messages_total",
			Help:      "Control channel messages by outcome",
		}, []string{"outcome"}),
		RTPPackets: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtvoice",
			Name:      "rtp_packets_received_total",
			Help:      "RTP packets received on the remote audio track",
		}),
		RTPGaps: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rtvoice",
			Name:      "rtp_sequence_gaps_total",
			Help:      "Discontinuities in remote RTP sequence numbers",
		}),
	}
}

// Message outcomes.
const (
	outcomeSent       = "sent"
	outcomeSuppressed = "suppressed"
	outcomeReceived   = "received"
	outcomeMalformed  = "malformed"
)

func (m *Metrics) init(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.InitAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) message(outcome string, n int) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) frame(dropped bool) {
	if m == nil {
		return
	}
	m.FramesCaptured.Inc()
	if dropped {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) rtp(gap bool) {
	if m == nil {
		return
	}
	m.RTPPackets.Inc()
	if gap {
		m.RTPGaps.Inc()
	}
}
