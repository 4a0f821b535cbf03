package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"
)

const quantum = 1.0 / 32767

func TestInt16FromFloat(t *testing.T) {
	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{"zero", 0, 0},
		{"full positive", 1, 32767},
		{"full negative", -1, -32768},
		{"half positive", 0.5, 16384},
		{"half negative", -0.5, -16384},
		{"clamp high", 1.5, 32767},
		{"clamp low", -2, -32768},
		{"positive infinity", float32(math.Inf(1)), 32767},
		{"negative infinity", float32(math.Inf(-1)), -32768},
		{"nan", float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Int16FromFloat(tt.in); got != tt.want {
				t.Errorf("Int16FromFloat(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncodeFrame_Layout(t *testing.T) {
	wire := EncodeFrame([]float32{0, 1, -1, 1.5, -2})
	raw, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	if len(raw) != 10 {
		t.Fatalf("len(raw) = %d, want 10", len(raw))
	}
	want := []int16{0, 32767, -32768, 32767, -32768}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		if got != w {
			t.Errorf("sample %d = %d, want %d", i, got, w)
		}
	}
}

func TestEncodeFrame_Empty(t *testing.T) {
	if got := EncodeFrame(nil); got != "" {
		t.Errorf("EncodeFrame(nil) = %q, want empty", got)
	}
}

func TestDecodeFrame_Errors(t *testing.T) {
	if _, err := DecodeFrame("not base64!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := DecodeFrame(base64.StdEncoding.EncodeToString([]byte{1, 2, 3})); err == nil {
		t.Error("expected error for odd byte length")
	}
}

func TestEncodeFrame_FullFrame(t *testing.T) {
	frame := make([]float32, FrameSamples)
	for i := range frame {
		frame[i] = float32(math.Sin(float64(i) * 2 * math.Pi * 440 / 24000))
	}
	got, err := DecodeFrame(EncodeFrame(frame))
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if len(got) != FrameSamples {
		t.Fatalf("len = %d, want %d", len(got), FrameSamples)
	}
}

func TestCodec_RoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		frame := rapid.SliceOfN(rapid.Float32Range(-1, 1), 0, 512).Draw(t, "frame")
		got, err := DecodeFrame(EncodeFrame(frame))
		if err != nil {
			t.Fatalf("DecodeFrame: %v", err)
		}
		if len(got) != len(frame) {
			t.Fatalf("len = %d, want %d", len(got), len(frame))
		}
		for i := range frame {
			if d := math.Abs(float64(got[i]) - float64(frame[i])); d > quantum {
				t.Fatalf("sample %d: |%v - %v| = %v > %v", i, got[i], frame[i], d, quantum)
			}
		}
	})
}

func TestCodec_ClampProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.Float32Range(-1000, 1000).Draw(t, "sample")
		v := Int16FromFloat(s)
		switch {
		case s >= 1 && v != math.MaxInt16:
			t.Fatalf("Int16FromFloat(%v) = %d, want %d", s, v, math.MaxInt16)
		case s <= -1 && v != math.MinInt16:
			t.Fatalf("Int16FromFloat(%v) = %d, want %d", s, v, math.MinInt16)
		}
	})
}

func TestFormat(t *testing.T) {
	if got := FrameFormat.SampleRate(); got != 24000 {
		t.Errorf("SampleRate() = %d, want 24000", got)
	}
	if got := L16Mono24K.BytesInDuration(20 * time.Millisecond); got != 960 {
		t.Errorf("BytesInDuration(20ms) = %d, want 960", got)
	}
	if got := L16Mono48K.SamplesInDuration(20 * time.Millisecond); got != 960 {
		t.Errorf("SamplesInDuration(20ms) = %d, want 960", got)
	}
	if got := L16Mono24K.Duration(FrameSamples); got != 4096*time.Second/24000 {
		t.Errorf("Duration(FrameSamples) = %v", got)
	}
}

func TestInt16s(t *testing.T) {
	got := Int16s([]byte{0x01, 0x00, 0xff, 0xff, 0x07})
	if len(got) != 2 || got[0] != 1 || got[1] != -1 {
		t.Errorf("Int16s = %v, want [1 -1]", got)
	}
}
