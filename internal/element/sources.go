package element

import (
	"math"

	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
)

// WaveformKind tags which closed-form waveform a source was built from,
// so internal/format can re-serialize a source's original DC/AC
// parameters instead of an opaque function value (spec §8 property 5,
// round-trip).
type WaveformKind int

const (
	WaveDC WaveformKind = iota
	WaveAC
)

// WaveformSpec is the tagged, serializable description a source's
// waveform is evaluated from.
type WaveformSpec struct {
	Kind      WaveformKind
	Amplitude float64
	FreqHz    float64
	Phase     float64
}

// Eval evaluates the spec at time t.
func (w WaveformSpec) Eval(t float64) float64 {
	switch w.Kind {
	case WaveAC:
		return w.Amplitude * math.Sin(2*math.Pi*w.FreqHz*t+w.Phase)
	default: // WaveDC
		return w.Amplitude
	}
}

// DC returns a constant-waveform spec.
func DC(v float64) WaveformSpec { return WaveformSpec{Kind: WaveDC, Amplitude: v} }

// AC returns a sinusoidal-waveform spec of the given amplitude,
// frequency (Hz) and phase (radians).
func AC(amplitude, freqHz, phase float64) WaveformSpec {
	return WaveformSpec{Kind: WaveAC, Amplitude: amplitude, FreqHz: freqHz, Phase: phase}
}

// VoltageSource stamps an ideal voltage source whose value is given by a
// WaveformSpec (spec §4.2 stampVoltageSource, §6.3 dump-type params).
type VoltageSource struct {
	Base
	Wave WaveformSpec
	t    float64
}

func NewVoltageSource(x1, y1, x2, y2 int, wave WaveformSpec) *VoltageSource {
	return &VoltageSource{Base: NewBase(2, 1, 0, []int{x1, x2}, []int{y1, y2}), Wave: wave}
}

func (v *VoltageSource) SetTime(t float64) { v.t = t }

func (v *VoltageSource) Stamp(a *mna.Assembler) {
	a.StampVoltageSource(v.Node(0), v.Node(1), v.VSIndex(0), v.Wave.Eval(v.t))
}

func (v *VoltageSource) CurrentIntoNode(post int) float64 {
	return currentSign(post) * v.VSCurrentVal(0)
}

// CurrentSource stamps an independent current source (spec §4.2
// stampCurrentSource).
type CurrentSource struct {
	Base
	Wave WaveformSpec
	t    float64
}

func NewCurrentSource(x1, y1, x2, y2 int, wave WaveformSpec) *CurrentSource {
	return &CurrentSource{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}), Wave: wave}
}

func (c *CurrentSource) SetTime(t float64) { c.t = t }

func (c *CurrentSource) Stamp(a *mna.Assembler) {
	a.StampCurrentSource(c.Node(0), c.Node(1), c.Wave.Eval(c.t))
}

func (c *CurrentSource) CurrentIntoNode(post int) float64 {
	return currentSign(post) * c.Wave.Eval(c.t)
}
