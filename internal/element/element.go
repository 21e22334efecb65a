// Package element implements the circuit element library of spec §4.5:
// the variant set of resistors, reactive devices, semiconductors,
// high-impedance arithmetic/table elements and SFC table elements that
// each know how to stamp, step, integrate and report current.
package element

import "github.com/johnnewto/circuitjs1-sub006/internal/mna"

// Element is the contract every circuit element implements, mirroring
// spec §4.5 one-to-one. It is grounded on ele.Element's AddToRhs/AddToKb
// split in the teacher, generalized from continuum-mechanics residual
// assembly to MNA stamping.
type Element interface {
	PostCount() int
	InternalNodeCount() int
	VoltageSourceCount() int
	Nonlinear() bool

	// Stamp applies the element's matrix/RHS contribution. The solver
	// calls it at the start of every subiteration against a freshly
	// zeroed system, alongside DoStep, rather than once per topology
	// analysis: every implementation here is a pure function of static
	// parameters and the current timestep (not of the previous
	// subiteration's solve), so repeated calls are idempotent.
	Stamp(a *mna.Assembler)

	// StartIteration runs once per timestep, before the subiteration
	// loop: commit integration pending->last, compute history-current
	// for companion models.
	StartIteration()

	// DoStep runs every subiteration, after Stamp, for every element;
	// elements with nothing left to add beyond Stamp simply inherit
	// Base's no-op.
	DoStep(a *mna.Assembler)

	// StepFinished runs once per timestep after convergence: update
	// histories, commit integration state.
	StepFinished()

	// CurrentIntoNode reports the current flowing into post i, for
	// display/scope consumers.
	CurrentIntoNode(post int) float64

	SetNode(post, node int)
	SetVoltageSource(local, global int)
	SetInternalNode(local, node int)
}

// Converger is implemented by nonlinear elements that need to report
// convergence failure to the solver loop (spec §4.4 step 3c). Elements
// whose output is a computed value (table/arithmetic elements) compare
// the computed value itself, never the resulting node voltage, per
// spec §4.5 "High-impedance arithmetic elements".
type Converger interface {
	// CheckConverged compares this subiteration's proposed value to the
	// last and returns false if the change exceeds the element's
	// tolerance (absolute floor ~1e-6, relative ~1e-3, spec Glossary
	// "converged").
	CheckConverged() bool
}

// Connection is implemented by elements whose posts do not all carry
// current; HasCurrentPath reports which ones do.
type Connection interface {
	// HasCurrentPath reports whether post carries current in the MNA
	// sense; high-impedance arithmetic-element inputs return false.
	HasCurrentPath(post int) bool
}

// DefaultTolerance is the global minimum nonlinear-iteration tolerance
// spec's Glossary "converged" entry requires to prevent false convergence
// near zero.
const DefaultTolerance = 1e-6

// RelativeTolerance is the per-element relative tolerance ratio.
const RelativeTolerance = 1e-3

// Converged compares a proposed value against the last one using the
// global absolute-floor + relative-ratio policy (spec §9 Open Question 2).
func Converged(last, proposed float64) bool {
	diff := proposed - last
	if diff < 0 {
		diff = -diff
	}
	tol := DefaultTolerance
	mag := proposed
	if mag < 0 {
		mag = -mag
	}
	if rel := RelativeTolerance * mag; rel > tol {
		tol = rel
	}
	return diff <= tol
}
