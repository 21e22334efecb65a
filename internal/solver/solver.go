// Package solver drives the per-timestep Newton-Raphson loop: stamp,
// solve, check convergence, repeat, then commit state and advance time.
// Grounded on other_examples/RuiCat-circuit/element/time/simulation.go's
// TransientSimulation, adapted from its matrix-checkpoint/rollback
// optimization to a simpler full-restamp-per-subiteration scheme, since
// every companion model here (diode, BJT, MOSFET, capacitor, inductor,
// arithmetic elements) already recomputes its contribution from scratch
// each call rather than applying an incremental delta — restamping from a
// freshly zeroed matrix is therefore idempotent and costs only CPU, not
// correctness.
package solver

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/element"
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
	"github.com/johnnewto/circuitjs1-sub006/internal/simerr"
	"github.com/johnnewto/circuitjs1-sub006/internal/topology"
)

// DefaultMaxSubIterations is the Newton-Raphson subiteration cap.
const DefaultMaxSubIterations = 5000

// ActionScheduler advances any time-ordered pending actions (slider
// assignments, stop-simulation triggers) up to t. The solver only needs
// this much of internal/schedule's surface, so it is declared here rather
// than imported, avoiding a dependency from solver on schedule.
type ActionScheduler interface {
	RunUntil(t float64)
}

// nodeReader exposes the post-to-node mapping the solver needs to write
// solved voltages back, without widening the element.Element contract.
type nodeReader interface {
	Node(post int) int
}

type voltageWriter interface {
	SetTerminalVoltage(post int, v float64)
}

type vsReader interface {
	VSIndex(local int) int
}

type vsWriter interface {
	SetVSCurrent(local int, i float64)
}

// dtSetter/tSetter are implemented by companion models and waveform
// sources that need the current timestep size and/or absolute time
// before they can Stamp/DoStep (Capacitor, Inductor, VoltageSource,
// CurrentSource, Differentiator, Integrator, Equation, ODE, GodleyTable).
// Declared as optional capabilities, like Converger, since most elements
// (resistors, wires, the semiconductor devices) need neither.
type dtSetter interface {
	SetTimeStep(dt float64)
}

type tSetter interface {
	SetTime(t float64)
}

// Solver owns the element list, the assembler over the circuit's MNA
// system, and the computed-value registry, and runs the simulate_step
// control flow against them.
type Solver struct {
	Elements  []element.Element
	Assembler *mna.Assembler
	Registry  *registry.Registry
	Scheduler ActionScheduler

	MaxSubIterations int
	Time             float64

	// ImplicitGroundNode is the node topology.Analyze chose to tie to
	// ground through a 1 GOhm path when no element declared a real
	// ground post (spec §4.1 step 2, GroundPolicy ImplicitGroundVia1G).
	// Zero disables it. This only grounds the single component the
	// analyzer picked; a circuit with several disconnected floating
	// islands and no ground in any of them still leaves the others
	// singular.
	ImplicitGroundNode int
}

// New builds a Solver with the default subiteration cap.
func New(elems []element.Element, a *mna.Assembler, reg *registry.Registry) *Solver {
	return &Solver{
		Elements:         elems,
		Assembler:        a,
		Registry:         reg,
		MaxSubIterations: DefaultMaxSubIterations,
	}
}

// StepResult reports what happened during one Step call, independent of
// whatever is in Elements/Registry afterward.
type StepResult struct {
	Subiterations int
	NonConverged  bool
}

// Step runs one simulate_step(dt): scheduler catch-up, startIteration,
// the Newton-Raphson subiteration loop, stepFinished, the double-buffer
// commits, and the time advance. A non-nil error from a singular matrix
// halts before any state is mutated for this call's loop iteration;
// non-convergence sets NonConverged in the result and is also returned as
// a simerr NonConvergence error, which callers treat as non-halting.
func (s *Solver) Step(dt float64) (StepResult, error) {
	if s.Scheduler != nil {
		s.Scheduler.RunUntil(s.Time)
	}

	newTime := s.Time + dt
	for _, e := range s.Elements {
		if d, ok := e.(dtSetter); ok {
			d.SetTimeStep(dt)
		}
		if ts, ok := e.(tSetter); ok {
			ts.SetTime(newTime)
		}
		e.StartIteration()
	}

	sys := s.Assembler.System()
	subiterations := 0
	converged := false

	for subiterations < s.MaxSubIterations {
		sys.Zero()
		sys.ResetRowInfo()
		for _, e := range s.Elements {
			e.Stamp(s.Assembler)
		}
		for _, e := range s.Elements {
			e.DoStep(s.Assembler)
		}
		if s.ImplicitGroundNode != 0 {
			_ = s.Assembler.StampResistor(s.ImplicitGroundNode, 0, topology.ImplicitGroundResistance)
		}
		sys.Simplify()
		if err := sys.Solve(); err != nil {
			return StepResult{Subiterations: subiterations}, simerr.Matrix("solve failed at t=%g: %v", s.Time, err)
		}

		s.publishVoltages()
		s.publishVSCurrents()
		subiterations++

		allConverged := true
		for _, e := range s.Elements {
			if c, ok := e.(element.Converger); ok && !c.CheckConverged() {
				allConverged = false
			}
		}
		if allConverged {
			converged = true
			break
		}
	}

	for _, e := range s.Elements {
		e.StepFinished()
	}
	if s.Registry != nil {
		s.Registry.CommitPendingToCurrent()
		s.Registry.CommitCurrentToConverged()
	}
	s.Time += dt

	result := StepResult{Subiterations: subiterations, NonConverged: !converged}
	if !converged {
		return result, simerr.NonConvergence("no convergence after %d subiterations at t=%g, publishing last solve", subiterations, s.Time)
	}
	return result, nil
}

func (s *Solver) publishVoltages() {
	for _, e := range s.Elements {
		nr, ok := e.(nodeReader)
		if !ok {
			continue
		}
		vw, ok := e.(voltageWriter)
		if !ok {
			continue
		}
		for post := 0; post < e.PostCount(); post++ {
			vw.SetTerminalVoltage(post, s.Assembler.NodeVoltage(nr.Node(post)))
		}
	}
}

func (s *Solver) publishVSCurrents() {
	for _, e := range s.Elements {
		vr, ok := e.(vsReader)
		if !ok {
			continue
		}
		vw, ok := e.(vsWriter)
		if !ok {
			continue
		}
		for local := 0; local < e.VoltageSourceCount(); local++ {
			vw.SetVSCurrent(local, s.Assembler.VoltageSourceCurrent(vr.VSIndex(local)))
		}
	}
}
