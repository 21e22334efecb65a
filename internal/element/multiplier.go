package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// Multiplier outputs the product of its (at least two) input posts times
// Gain.
type Multiplier struct {
	ArithBase
	Gain float64
}

func NewMultiplier(x, y []int, reg *registry.Registry, outputName string, priority int, gain float64) *Multiplier {
	if gain == 0 {
		gain = 1
	}
	return &Multiplier{
		ArithBase: NewArithBase(len(x)-2, x, y, reg, outputName, priority),
		Gain:      gain,
	}
}

func (e *Multiplier) DoStep(a *mna.Assembler) {
	product := e.Gain
	for i := 0; i < e.NumPosts-2; i++ {
		product *= e.Input(i)
	}
	e.publish(a, product)
}
