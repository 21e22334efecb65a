package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// Adder sums its input posts' voltages (optionally weighted) and drives
// [out, ref] with the result (spec §4.5 "high-impedance arithmetic
// elements").
type Adder struct {
	ArithBase
	Weights []float64 // nil means unit weight for every input
}

func NewAdder(x, y []int, reg *registry.Registry, outputName string, priority int, weights []float64) *Adder {
	return &Adder{
		ArithBase: NewArithBase(len(x)-2, x, y, reg, outputName, priority),
		Weights:   weights,
	}
}

func (e *Adder) weight(i int) float64 {
	if e.Weights == nil || i >= len(e.Weights) {
		return 1
	}
	return e.Weights[i]
}

func (e *Adder) DoStep(a *mna.Assembler) {
	sum := 0.0
	for i := 0; i < e.NumPosts-2; i++ {
		sum += e.weight(i) * e.Input(i)
	}
	e.publish(a, sum)
}
