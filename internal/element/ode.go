package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/expr"
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// ODE integrates dx/dt = f(x, t, ...refs) by backward Euler, where f is a
// compiled expression referencing the element's own state under the name
// "x" (resolved by wrapping the caller-supplied Resolver) plus whatever
// other named values the formula touches. This is the non-adaptive,
// single-equation analogue of a full ODE-solver dependency (see
// SPEC_FULL.md's note on why gosl/ode isn't wired: its multi-stage
// adaptive steppers have no host here, since the engine's own fixed-dt
// loop already owns time advancement).
type ODE struct {
	ArithBase
	Formula      *expr.Expr
	BaseResolver expr.Resolver
	InitialValue float64

	dt      float64
	t       float64
	x       float64
	xStart  float64
	started bool
}

func NewODE(x, y []int, reg *registry.Registry, outputName string, priority int, formula string, resolver expr.Resolver, initial float64) (*ODE, error) {
	compiled, err := expr.Compile(formula)
	if err != nil {
		return nil, err
	}
	return &ODE{
		ArithBase:    NewArithBase(0, x, y, reg, outputName, priority),
		Formula:      compiled,
		BaseResolver: resolver,
		InitialValue: initial,
	}, nil
}

func (o *ODE) SetTimeStep(dt float64) { o.dt = dt }
func (o *ODE) SetTime(t float64)      { o.t = t }

func (o *ODE) resolve(name string) (float64, bool) {
	if name == "x" {
		return o.x, true
	}
	if o.BaseResolver != nil {
		return o.BaseResolver.Resolve(name)
	}
	return 0, false
}

type odeResolver struct{ o *ODE }

func (r odeResolver) Resolve(name string) (float64, bool) { return r.o.resolve(name) }

func (o *ODE) StartIteration() {
	if !o.started {
		o.x = o.InitialValue
		o.started = true
	}
	o.xStart = o.x
}

func (o *ODE) DoStep(a *mna.Assembler) {
	ctx := &expr.Context{T: o.t, Dt: o.dt, Resolver: odeResolver{o}}
	deriv := o.Formula.Eval(ctx)
	o.x = o.xStart
	if o.dt > 0 {
		o.x = o.xStart + o.dt*deriv
	}
	o.publish(a, o.x)
}

func (o *ODE) StepFinished() { o.Formula.Commit() }
