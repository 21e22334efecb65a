package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/topology"
)

// Base provides the plumbing every concrete element needs — post/node
// bookkeeping, coordinates for wire closure, and no-op defaults for the
// optional lifecycle hooks — so each element file only has to implement
// what makes it different. This mirrors the teacher's composition-over-
// inheritance replacement for CircuitElm's deep class hierarchy (spec §9
// "Inheritance hierarchy of elements").
type Base struct {
	NumPosts    int
	NumVS       int
	NumInternal int

	Nodes    []int
	VS       []int
	Internal []int

	coordX []int
	coordY []int

	// TermVolts holds the current terminal voltages, written by the
	// solver loop each subiteration (spec §4.4 step e: "Write node
	// voltages into each element's volts[]"). LastVolts holds the values
	// as of the start of the timestep, copied by commitLastVolts from
	// StartIteration (spec §3 "Element state").
	TermVolts []float64
	LastVolts []float64

	// VSCurrent caches each owned voltage-source auxiliary current after
	// a solve, so CurrentIntoNode implementations for voltage/current
	// sources don't need direct matrix access.
	VSCurrent []float64
}

// NewBase allocates a Base for an element with numPosts posts, numVS
// voltage sources and numInternal internal nodes, given its post
// coordinates (len(x) == len(y) == numPosts).
func NewBase(numPosts, numVS, numInternal int, x, y []int) Base {
	b := Base{
		NumPosts:    numPosts,
		NumVS:       numVS,
		NumInternal: numInternal,
		Nodes:       make([]int, numPosts),
		VS:          make([]int, numVS),
		Internal:    make([]int, numInternal),
		coordX:      append([]int(nil), x...),
		coordY:      append([]int(nil), y...),
		TermVolts:   make([]float64, numPosts),
		LastVolts:   make([]float64, numPosts),
		VSCurrent:   make([]float64, numVS),
	}
	return b
}

// SetVSCurrent caches the solved auxiliary current for owned voltage
// source local, called by the solver loop after each solve.
func (b *Base) SetVSCurrent(local int, i float64) { b.VSCurrent[local] = i }

// VSCurrentVal returns the cached auxiliary current for owned voltage
// source local.
func (b *Base) VSCurrentVal(local int) float64 { return b.VSCurrent[local] }

// SetTerminalVoltage is called by the solver loop after each solve (spec
// §4.4 step e).
func (b *Base) SetTerminalVoltage(post int, v float64) { b.TermVolts[post] = v }

// Volts returns the current terminal voltage at post.
func (b *Base) Volts(post int) float64 { return b.TermVolts[post] }

// VoltageDiff is a convenience for two-post elements: v(post0) - v(post1).
func (b *Base) VoltageDiff() float64 {
	if len(b.TermVolts) < 2 {
		return 0
	}
	return b.TermVolts[0] - b.TermVolts[1]
}

// commitLastVolts copies the current terminal voltages into LastVolts;
// concrete elements call this from StartIteration so "last" means "as of
// the previous timestep", not "as of the previous subiteration".
func (b *Base) commitLastVolts() {
	copy(b.LastVolts, b.TermVolts)
}

func (b *Base) PostCount() int         { return b.NumPosts }
func (b *Base) InternalNodeCount() int { return b.NumInternal }
func (b *Base) VoltageSourceCount() int { return b.NumVS }

func (b *Base) PostCoord(post int) (int, int) { return b.coordX[post], b.coordY[post] }

// SetPostCoord overrides a post's coordinate, used by composite.go to
// translate a subcircuit template's children into the coordinate space
// of a particular instantiation site.
func (b *Base) SetPostCoord(post, x, y int) { b.coordX[post] = x; b.coordY[post] = y }

func (b *Base) SetNode(post, node int)             { b.Nodes[post] = node }
func (b *Base) SetVoltageSource(local, global int) { b.VS[local] = global }
func (b *Base) SetInternalNode(local, node int)    { b.Internal[local] = node }

func (b *Base) Node(post int) int         { return b.Nodes[post] }
func (b *Base) VSIndex(local int) int     { return b.VS[local] }
func (b *Base) InternalNode(local int) int { return b.Internal[local] }

// Defaults for the topology.Elemental surface; elements that need
// different behavior (wires, ground symbols, labeled nodes, reactive
// devices) override these by defining a method of the same name on the
// concrete type, which shadows Base's via Go's embedding rules.
func (b *Base) IsWireEquivalent() bool                  { return false }
func (b *Base) IsGroundPost(post int) bool               { return false }
func (b *Base) LabeledNodeName() (string, bool)          { return "", false }
func (b *Base) IsReactive() topology.ReactiveKind         { return topology.NotReactive }

// Defaults for the element.Element lifecycle; most elements only need
// Stamp and/or DoStep.
func (b *Base) Nonlinear() bool              { return false }
func (b *Base) StartIteration()              {}
func (b *Base) DoStep(_ *mna.Assembler)       {}
func (b *Base) StepFinished()                {}
func (b *Base) CurrentIntoNode(int) float64   { return 0 }
func (b *Base) Stamp(_ *mna.Assembler)        {}
