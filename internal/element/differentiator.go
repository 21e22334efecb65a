package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// Differentiator outputs d(Input(0))/dt via backward difference, reusing
// the dt bookkeeping pattern from Capacitor/Inductor (spec §4.5,
// Glossary "Flow").
type Differentiator struct {
	ArithBase
	dt     float64
	lastIn float64
}

func NewDifferentiator(x, y []int, reg *registry.Registry, outputName string, priority int) *Differentiator {
	return &Differentiator{ArithBase: NewArithBase(1, x, y, reg, outputName, priority)}
}

func (e *Differentiator) SetTimeStep(dt float64) { e.dt = dt }

func (e *Differentiator) StartIteration() { e.lastIn = e.Input(0) }

func (e *Differentiator) DoStep(a *mna.Assembler) {
	if e.dt <= 0 {
		e.publish(a, 0)
		return
	}
	e.publish(a, (e.Input(0)-e.lastIn)/e.dt)
}

// Integrator outputs the running backward-Euler integral of Input(0),
// reset to InitialValue on StartIteration's first call.
type Integrator struct {
	ArithBase
	InitialValue float64

	dt       float64
	acc      float64
	accStart float64
	started  bool
}

func NewIntegrator(x, y []int, reg *registry.Registry, outputName string, priority int, initial float64) *Integrator {
	return &Integrator{ArithBase: NewArithBase(1, x, y, reg, outputName, priority), InitialValue: initial}
}

func (e *Integrator) SetTimeStep(dt float64) { e.dt = dt }

func (e *Integrator) StartIteration() {
	if !e.started {
		e.acc = e.InitialValue
		e.started = true
	}
	e.accStart = e.acc
}

func (e *Integrator) DoStep(a *mna.Assembler) {
	if e.dt <= 0 {
		e.publish(a, e.accStart)
		return
	}
	e.publish(a, e.accStart+e.dt*e.Input(0))
}

func (e *Integrator) StepFinished() {
	e.acc = e.Value()
}
