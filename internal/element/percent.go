package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// Percent outputs Input(0) scaled by Pct/100.
type Percent struct {
	ArithBase
	Pct float64
}

func NewPercent(x, y []int, reg *registry.Registry, outputName string, priority int, pct float64) *Percent {
	return &Percent{
		ArithBase: NewArithBase(1, x, y, reg, outputName, priority),
		Pct:       pct,
	}
}

func (e *Percent) DoStep(a *mna.Assembler) {
	e.publish(a, e.Input(0)*e.Pct/100.0)
}
