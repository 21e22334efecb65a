package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/topology"
)

// IntegrationMethod selects the companion-model scheme spec §4.5 and §9
// Open Question 1 describe: backward Euler (theta=1) or trapezoidal
// (theta=0.5). Grounded on the teacher's theta-method DynCoefs
// (fem/dyncoefs.go), generalized from Newmark/HHT structural dynamics to
// the two-point circuit companion model.
type IntegrationMethod int

const (
	BackwardEuler IntegrationMethod = iota
	Trapezoidal
)

// Capacitor is treated each step as resistor r_c = dt/C in parallel with
// a history current source (spec §4.5 Capacitor companion model).
// Grounded on other_examples/edp1096-toy-spice device/capacitor.go.go's
// geq/ceq companion-model stamp and predict/normal UpdateState split,
// adapted to the backward-Euler/trapezoidal choice of spec §4.5.
type Capacitor struct {
	Base
	Farads float64
	Method IntegrationMethod

	vPrev float64 // capacitor voltage at the start of this timestep
	iPrev float64 // capacitor current at the start of this timestep (trapezoidal only)
	dt    float64
	geq   float64
}

func NewCapacitor(x1, y1, x2, y2 int, farads float64, method IntegrationMethod) *Capacitor {
	return &Capacitor{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}), Farads: farads, Method: method}
}

// SetTimeStep must be called by the solver loop whenever dt changes
// (before the next Stamp).
func (c *Capacitor) SetTimeStep(dt float64) { c.dt = dt }

func (c *Capacitor) IsReactive() topology.ReactiveKind { return topology.Capacitive }

func (c *Capacitor) Stamp(a *mna.Assembler) {
	if c.dt <= 0 || c.Farads <= 0 {
		return
	}
	c.geq = c.Farads / c.dt
	a.StampConductance(c.Node(0), c.Node(1), c.geq)
	// the history current is RHS-only and is stamped in DoStep; it
	// depends on vPrev, which changes only in StepFinished.
}

func (c *Capacitor) StartIteration() {
	c.commitLastVolts()
}

func (c *Capacitor) DoStep(a *mna.Assembler) {
	if c.dt <= 0 || c.Farads <= 0 {
		return
	}
	var ihist float64
	switch c.Method {
	case Trapezoidal:
		ihist = -c.geq*c.vPrev - c.iPrev
	default: // BackwardEuler
		ihist = -c.geq * c.vPrev
	}
	a.StampCurrentSource(c.Node(0), c.Node(1), ihist)
}

func (c *Capacitor) StepFinished() {
	v := c.VoltageDiff()
	c.iPrev = c.geq * (v - c.vPrev)
	c.vPrev = v
}

func (c *Capacitor) CurrentIntoNode(post int) float64 {
	return currentSign(post) * c.iPrev
}

// Inductor is the dual of Capacitor: resistor r_l = L/dt in series with a
// history voltage source (current-source dual form used here, consistent
// with the conductance-only stamping primitives available).
type Inductor struct {
	Base
	Henries float64
	Method  IntegrationMethod

	iPrev float64
	vPrev float64
	dt    float64
	req   float64
}

func NewInductor(x1, y1, x2, y2 int, henries float64, method IntegrationMethod) *Inductor {
	return &Inductor{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}), Henries: henries, Method: method}
}

func (l *Inductor) SetTimeStep(dt float64) { l.dt = dt }

func (l *Inductor) IsReactive() topology.ReactiveKind { return topology.Inductive }

func (l *Inductor) Stamp(a *mna.Assembler) {
	if l.dt <= 0 || l.Henries <= 0 {
		return
	}
	l.req = l.Henries / l.dt
	a.StampConductance(l.Node(0), l.Node(1), 1.0/l.req)
}

func (l *Inductor) StartIteration() {
	l.commitLastVolts()
}

func (l *Inductor) DoStep(a *mna.Assembler) {
	if l.dt <= 0 || l.Henries <= 0 {
		return
	}
	var ihist float64
	switch l.Method {
	case Trapezoidal:
		ihist = l.iPrev + l.vPrev/l.req
	default: // BackwardEuler
		ihist = l.iPrev
	}
	a.StampCurrentSource(l.Node(0), l.Node(1), ihist)
}

func (l *Inductor) StepFinished() {
	v := l.VoltageDiff()
	l.iPrev = l.iPrev + v/l.req
	l.vPrev = v
}

func (l *Inductor) CurrentIntoNode(post int) float64 {
	return currentSign(post) * l.iPrev
}
