package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// divideByZeroFloor matches internal/expr's safeDiv floor so Divider and
// the expression evaluator treat a zero denominator the same way.
const divideByZeroFloor = 1e-12

// Divider outputs Input(0)/Input(1), or 0 when the denominator's magnitude
// is below divideByZeroFloor, to avoid a matrix-poisoning infinity.
type Divider struct {
	ArithBase
}

func NewDivider(x, y []int, reg *registry.Registry, outputName string, priority int) *Divider {
	return &Divider{ArithBase: NewArithBase(2, x, y, reg, outputName, priority)}
}

func (e *Divider) DoStep(a *mna.Assembler) {
	num, den := e.Input(0), e.Input(1)
	if den > -divideByZeroFloor && den < divideByZeroFloor {
		e.publish(a, 0)
		return
	}
	e.publish(a, num/den)
}
