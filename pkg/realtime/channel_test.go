package realtime

import (
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// wire records payloads written to an open channel.
type wire struct {
	mu   sync.Mutex
	msgs []string
}

func (w *wire) write(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, string(data))
	return nil
}

func (w *wire) types(t *testing.T) []string {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, m := range w.msgs {
		ev, err := ParseServerEvent([]byte(m))
		if err != nil {
			t.Fatalf("sent message %s: %v", m, err)
		}
		out = append(out, ev.EventType())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestControlChannel_DropBeforeOpen(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ch := newControlChannel(PreOpenDrop, 0, slog.Default(), m)
	w := &wire{}

	err := ch.send([]ClientEvent{InputAudioAppend{Audio: "AAA="}})
	if !errors.Is(err, ErrSendSuppressed) {
		t.Fatalf("send() before open error = %v, want ErrSendSuppressed", err)
	}

	ch.markOpen(w.write)
	if got := w.types(t); len(got) != 0 {
		t.Errorf("sent %v after open, want nothing", got)
	}
	if got := testutil.ToFloat64(m.Messages.WithLabelValues(outcomeSuppressed)); got != 1 {
		t.Errorf("suppressed = %v, want 1", got)
	}
}

func TestControlChannel_QueueFlushesInOrder(t *testing.T) {
	ch := newControlChannel(PreOpenQueue, 3, slog.Default(), nil)
	w := &wire{}

	if err := ch.send([]ClientEvent{InputAudioAppend{Audio: "AQ=="}}); err != nil {
		t.Fatalf("send() error: %v", err)
	}
	if err := ch.send([]ClientEvent{InputAudioCommit{}, ResponseCreate{}}); err != nil {
		t.Fatalf("send() error: %v", err)
	}
	// Would exceed the limit of 3.
	if err := ch.send([]ClientEvent{InputAudioClear{}}); !errors.Is(err, ErrSendSuppressed) {
		t.Errorf("send() over limit error = %v, want ErrSendSuppressed", err)
	}

	ch.markOpen(w.write)
	ch.send([]ClientEvent{ResponseCancel{}})

	want := []string{
		EventTypeInputAudioBufferAppend,
		EventTypeInputAudioBufferCommit,
		EventTypeResponseCreate,
		EventTypeResponseCancel,
	}
	if got := w.types(t); !equal(got, want) {
		t.Errorf("sent %v, want %v", got, want)
	}
}

func TestControlChannel_Closed(t *testing.T) {
	ch := newControlChannel(PreOpenQueue, 0, slog.Default(), nil)
	w := &wire{}
	ch.send([]ClientEvent{InputAudioCommit{}})
	ch.markClosed()
	ch.markOpen(w.write)

	if err := ch.send([]ClientEvent{InputAudioCommit{}}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("send() after close error = %v, want ErrSessionClosed", err)
	}
	if got := w.types(t); len(got) != 0 {
		t.Errorf("sent %v after close, want nothing", got)
	}
}

func TestControlChannel_BatchesDoNotInterleave(t *testing.T) {
	ch := newControlChannel(PreOpenDrop, 0, slog.Default(), nil)
	w := &wire{}
	ch.markOpen(w.write)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch.send([]ClientEvent{InputAudioCommit{}, ResponseCreate{}})
		}()
		go func() {
			defer wg.Done()
			ch.send([]ClientEvent{InputAudioAppend{Audio: "AA=="}})
		}()
	}
	wg.Wait()

	got := w.types(t)
	if len(got) != 150 {
		t.Fatalf("sent %d messages, want 150", len(got))
	}
	for i, typ := range got {
		if typ == EventTypeInputAudioBufferCommit && (i+1 >= len(got) || got[i+1] != EventTypeResponseCreate) {
			t.Fatalf("commit at %d not followed by response.create: %v", i, got)
		}
	}
}

func TestParsePreOpenPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    PreOpenPolicy
		wantErr bool
	}{
		{"", PreOpenDrop, false},
		{"drop", PreOpenDrop, false},
		{"queue", PreOpenQueue, false},
		{"buffer", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePreOpenPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePreOpenPolicy(%q) = %v, %v", tt.in, got, err)
		}
		if err == nil && tt.in != "" && got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}
