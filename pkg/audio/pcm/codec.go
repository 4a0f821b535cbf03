package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

const (
	// FrameSamples is the number of samples in one captured AudioFrame.
	FrameSamples = 4096

	// FrameFormat is the format of captured frames and of the wire encoding.
	FrameFormat = L16Mono24K
)

var packBuffers = sync.Pool{
	New: func() any {
		b := make([]byte, 0, FrameSamples*2)
		return &b
	},
}

// Int16FromFloat converts one sample to PCM16. Negative samples scale by
// 32768 and non-negative ones by 32767 so +1.0 does not overflow.
// Samples outside [-1, 1] are clamped; NaN becomes silence.
func Int16FromFloat(s float32) int16 {
	v := float64(s)
	switch {
	case math.IsNaN(v):
		return 0
	case v >= 1:
		return math.MaxInt16
	case v <= -1:
		return math.MinInt16
	case v < 0:
		return int16(math.Round(v * 32768))
	default:
		return int16(math.Round(v * 32767))
	}
}

// FloatFromInt16 is the inverse scaling of Int16FromFloat.
func FloatFromInt16(v int16) float32 {
	if v < 0 {
		return float32(v) / 32768
	}
	return float32(v) / 32767
}

// AppendPCM16 appends samples to dst as 16-bit little-endian PCM.
func AppendPCM16(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(Int16FromFloat(s)))
	}
	return dst
}

// EncodeFrame packs samples as PCM16 and wraps them in standard base64.
// It never fails; out-of-range samples are clamped.
func EncodeFrame(samples []float32) string {
	bp := packBuffers.Get().(*[]byte)
	buf := AppendPCM16((*bp)[:0], samples)
	out := base64.StdEncoding.EncodeToString(buf)
	*bp = buf[:0]
	packBuffers.Put(bp)
	return out
}

// DecodeFrame reverses EncodeFrame.
func DecodeFrame(wire string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return nil, fmt.Errorf("pcm: decode frame: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm: decode frame: odd byte length %d", len(raw))
	}
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = FloatFromInt16(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	return out, nil
}

// Int16s reinterprets little-endian PCM16 bytes as samples. A trailing odd
// byte is ignored.
func Int16s(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}
