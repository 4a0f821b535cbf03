package opus

import (
	"errors"
	"math"
	"testing"
)

func sine(n, rate int, freq float64) []int16 {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 16000)
	}
	return pcm
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
	}{
		{"48k mono", 48000, 1},
		{"24k mono", 24000, 1},
		{"48k stereo", 48000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewEncoder(tt.rate, tt.channels)
			if err != nil {
				t.Fatalf("NewEncoder() error: %v", err)
			}
			defer enc.Close()
			dec, err := NewDecoder(tt.rate, tt.channels)
			if err != nil {
				t.Fatalf("NewDecoder() error: %v", err)
			}
			defer dec.Close()

			frame := enc.FrameSize()
			packet, err := enc.Encode(sine(frame*tt.channels, tt.rate, 440))
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if len(packet) == 0 {
				t.Fatal("Encode() returned empty packet")
			}
			pcm, err := dec.Decode(packet)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got := len(pcm) / tt.channels; got != frame {
				t.Errorf("decoded %d samples per channel, want %d", got, frame)
			}
		})
	}
}

func TestDecodeConcealment(t *testing.T) {
	dec, err := NewDecoder(48000, 1)
	if err != nil {
		t.Fatalf("NewDecoder() error: %v", err)
	}
	defer dec.Close()

	pcm, err := dec.Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) error: %v", err)
	}
	if len(pcm) != 960 {
		t.Errorf("concealment produced %d samples, want 960", len(pcm))
	}
}

func TestClosed(t *testing.T) {
	enc, err := NewEncoder(48000, 1)
	if err != nil {
		t.Fatalf("NewEncoder() error: %v", err)
	}
	enc.Close()
	enc.Close()
	if _, err := enc.Encode(make([]int16, 960)); !errors.Is(err, ErrClosed) {
		t.Errorf("Encode() after Close error = %v, want ErrClosed", err)
	}

	dec, err := NewDecoder(48000, 1)
	if err != nil {
		t.Fatalf("NewDecoder() error: %v", err)
	}
	dec.Close()
	if _, err := dec.Decode([]byte{0}); !errors.Is(err, ErrClosed) {
		t.Errorf("Decode() after Close error = %v, want ErrClosed", err)
	}
}
