package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// nextOwnerID hands out the small integer identities the registry's
// master-priority bookkeeping needs (spec §4.7). Elements are constructed
// once per circuit load, so a package-level counter is sufficient — this
// is not simulation state and never needs to be deterministic across runs.
var nextOwnerID int

func allocOwnerID() int {
	nextOwnerID++
	return nextOwnerID
}

// ArithBase is the shared plumbing for the high-impedance arithmetic and
// table elements of spec §4.5/§4.7: posts carry no current
// (getConnection always false), the element's only electrical footprint
// is a voltage source on [out, ref] driven by whatever the concrete type
// computes from its input posts or the registry. Grounded on the
// teacher's ele/porous composite-behavior pattern of wrapping a shared
// computation in a thin per-variant Stamp, adapted from continuum fields
// to named scalar signals.
type ArithBase struct {
	Base
	ownerID int

	Registry   *registry.Registry
	OutputName string // empty if this element doesn't publish to the registry
	Priority   int

	value     float64
	lastValue float64
	isMaster  bool
}

// NewArithBase allocates an arithmetic element with numInputs read-only
// input posts followed by [out, ref]. x and y must have len ==
// numInputs+2.
func NewArithBase(numInputs int, x, y []int, reg *registry.Registry, outputName string, priority int) ArithBase {
	return ArithBase{
		Base:       NewBase(numInputs+2, 1, 0, x, y),
		ownerID:    allocOwnerID(),
		Registry:   reg,
		OutputName: outputName,
		Priority:   priority,
	}
}

func (a *ArithBase) outPost() int { return a.NumPosts - 2 }
func (a *ArithBase) refPost() int { return a.NumPosts - 1 }

// OutRefCoords returns the [out, ref] posts' coordinates, letting
// internal/format anchor an arithmetic element's dump line on its output
// pair instead of its (variable-length, separately encoded) input posts.
func (a *ArithBase) OutRefCoords() (x1, y1, x2, y2 int) {
	x1, y1 = a.PostCoord(a.outPost())
	x2, y2 = a.PostCoord(a.refPost())
	return
}

// Input reads the i'th input post's current terminal voltage.
func (a *ArithBase) Input(i int) float64 { return a.TermVolts[i] }

func (a *ArithBase) Nonlinear() bool { return true }

func (a *ArithBase) HasCurrentPath(post int) bool {
	return post == a.outPost() || post == a.refPost()
}

func (a *ArithBase) Stamp(asm *mna.Assembler) {
	if a.Registry != nil && a.OutputName != "" {
		a.Registry.RegisterMaster(a.ownerID, a.OutputName, a.Priority)
		if id, ok := a.Registry.MasterOf(a.OutputName); ok {
			a.isMaster = id == a.ownerID
		}
	}
	asm.StampVoltageSourceNoValue(a.Node(a.outPost()), a.Node(a.refPost()), a.VSIndex(0))
	asm.StampNonLinear(a.VSIndex(0))
}

// publish is called by each concrete element's DoStep after computing its
// new value.
func (a *ArithBase) publish(asm *mna.Assembler, v float64) {
	a.lastValue = a.value
	a.value = v
	if a.Registry != nil && a.OutputName != "" && a.isMaster {
		a.Registry.Set(a.ownerID, a.OutputName, v)
	}
	asm.UpdateVoltageSource(a.VSIndex(0), v)
}

func (a *ArithBase) CheckConverged() bool {
	return Converged(a.lastValue, a.value)
}

func (a *ArithBase) CurrentIntoNode(post int) float64 {
	if post != a.outPost() {
		return 0
	}
	return a.VSCurrentVal(0)
}

// Value returns the element's last computed output, for tests and
// display surfaces that don't want to go through the registry.
func (a *ArithBase) Value() float64 { return a.value }
