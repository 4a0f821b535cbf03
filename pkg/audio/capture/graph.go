package capture

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Node is one stage of the capture processing graph. Process may return
// in itself or a new slice; the caller must not retain either.
type Node interface {
	Process(in []float32) ([]float32, error)
}

// Graph runs nodes in order.
type Graph struct {
	nodes []Node
}

// NewGraph builds the processing chain for a stream delivering
// interleaved audio at inRate/inChannels, producing mono audio at
// c.SampleRate.
func NewGraph(c Constraints, inRate, inChannels int) (*Graph, error) {
	if c.SampleRate <= 0 || inRate <= 0 {
		return nil, fmt.Errorf("capture: invalid sample rate %d -> %d", inRate, c.SampleRate)
	}
	g := &Graph{}
	if inChannels > 1 {
		g.nodes = append(g.nodes, &downmix{channels: inChannels})
	}
	if inRate != c.SampleRate {
		rs, err := newResample(inRate, c.SampleRate)
		if err != nil {
			return nil, err
		}
		g.nodes = append(g.nodes, rs)
	}
	if c.NoiseSuppression {
		g.nodes = append(g.nodes, newHighPass(), newNoiseGate(c.SampleRate))
	}
	if c.AutoGainControl {
		g.nodes = append(g.nodes, newAGC())
	}
	return g, nil
}

// Len returns the number of stages.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Process runs in through every stage.
func (g *Graph) Process(in []float32) ([]float32, error) {
	out := in
	for _, n := range g.nodes {
		var err error
		if out, err = n.Process(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type downmix struct {
	channels int
	out      []float32
}

func (d *downmix) Process(in []float32) ([]float32, error) {
	frames := len(in) / d.channels
	d.out = d.out[:0]
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < d.channels; c++ {
			sum += in[i*d.channels+c]
		}
		d.out = append(d.out, sum/float32(d.channels))
	}
	return d.out, nil
}

type resample struct {
	rs  resampling.Resampler
	in  []float64
	out []float32
}

func newResample(from, to int) (*resample, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("capture: create resampler %d->%d: %w", from, to, err)
	}
	return &resample{rs: rs}, nil
}

func (r *resample) Process(in []float32) ([]float32, error) {
	r.in = r.in[:0]
	for _, s := range in {
		r.in = append(r.in, float64(s))
	}
	res, err := r.rs.Process(r.in)
	if err != nil {
		return nil, fmt.Errorf("capture: resample: %w", err)
	}
	r.out = r.out[:0]
	for _, s := range res {
		r.out = append(r.out, float32(s))
	}
	return r.out, nil
}

// highPass is a one-pole DC blocker.
type highPass struct {
	r     float32
	prevX float32
	prevY float32
}

func newHighPass() *highPass {
	return &highPass{r: 0.995}
}

func (h *highPass) Process(in []float32) ([]float32, error) {
	for i, x := range in {
		y := x - h.prevX + h.r*h.prevY
		h.prevX, h.prevY = x, y
		in[i] = y
	}
	return in, nil
}

// noiseGate attenuates windows whose level stays near the tracked noise
// floor.
type noiseGate struct {
	window int
	floor  float64
	gain   float32

	openRatio float64
	minLevel  float64
	closed    float32
	step      float32
}

func newNoiseGate(rate int) *noiseGate {
	return &noiseGate{
		window:    max(rate/100, 1),
		floor:     1e-3,
		gain:      1,
		openRatio: 2.5,
		minLevel:  2e-3,
		closed:    0.05,
		step:      0.002,
	}
}

func (n *noiseGate) Process(in []float32) ([]float32, error) {
	for start := 0; start < len(in); start += n.window {
		end := min(start+n.window, len(in))
		level := rms(in[start:end])

		// Fall fast, rise slowly: the floor follows quiet passages only.
		if level < n.floor {
			n.floor = 0.9*n.floor + 0.1*level
		} else {
			n.floor = 0.999*n.floor + 0.001*level
		}

		target := n.closed
		if level > max(n.floor*n.openRatio, n.minLevel) {
			target = 1
		}
		for i := start; i < end; i++ {
			switch {
			case n.gain < target:
				n.gain = min(target, n.gain+n.step*10)
			case n.gain > target:
				n.gain = max(target, n.gain-n.step)
			}
			in[i] *= n.gain
		}
	}
	return in, nil
}

// agc drives the block level toward target, never amplifying silence.
type agc struct {
	target  float64
	minGain float64
	maxGain float64
	silence float64
	gain    float64
}

func newAGC() *agc {
	return &agc{
		target:  0.1,
		minGain: 0.25,
		maxGain: 8,
		silence: 3e-3,
		gain:    1,
	}
}

func (a *agc) Process(in []float32) ([]float32, error) {
	if level := rms(in); level > a.silence {
		want := math.Min(math.Max(a.target/level, a.minGain), a.maxGain)
		a.gain += (want - a.gain) * 0.2
	}
	g := float32(a.gain)
	for i, s := range in {
		in[i] = max(-1, min(1, s*g))
	}
	return in, nil
}

func rms(s []float32) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(s)))
}

// framer cuts a continuous sample stream into fixed-size frames.
type framer struct {
	size int
	buf  []float32
}

func (f *framer) push(in []float32, emit func([]float32)) {
	for len(in) > 0 {
		n := min(f.size-len(f.buf), len(in))
		f.buf = append(f.buf, in[:n]...)
		in = in[n:]
		if len(f.buf) == f.size {
			frame := make([]float32, f.size)
			copy(frame, f.buf)
			f.buf = f.buf[:0]
			emit(frame)
		}
	}
}
