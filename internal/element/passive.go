package element

import "github.com/johnnewto/circuitjs1-sub006/internal/mna"

// Resistor stamps a fixed conductance between its two posts (spec §4.2
// stampResistor).
type Resistor struct {
	Base
	Ohms float64
}

func NewResistor(x1, y1, x2, y2 int, ohms float64) *Resistor {
	return &Resistor{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}), Ohms: ohms}
}

func (r *Resistor) Stamp(a *mna.Assembler) {
	// InvalidParameter per spec §4.2 stampResistor contract: an error here
	// leaves the pair unstamped (open circuit) rather than corrupting A.
	_ = a.StampResistor(r.Node(0), r.Node(1), r.Ohms)
}

func (r *Resistor) CurrentIntoNode(post int) float64 {
	return currentSign(post) * r.VoltageDiff() / r.Ohms
}

func currentSign(post int) float64 {
	if post == 0 {
		return 1
	}
	return -1
}

// Wire is a zero-impedance connection; it contributes nothing to the
// matrix — its two posts are merged into one node by the topology
// analyzer's wire closure (spec §4.1 step 1).
type Wire struct{ Base }

func NewWire(x1, y1, x2, y2 int) *Wire {
	return &Wire{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2})}
}

func (w *Wire) IsWireEquivalent() bool { return true }

// Ground declares post 0 as the reference node (spec §4.1 step 2).
type Ground struct{ Base }

func NewGround(x, y int) *Ground {
	return &Ground{Base: NewBase(1, 0, 0, []int{x}, []int{y})}
}

func (g *Ground) IsGroundPost(post int) bool { return post == 0 }

// LabeledNode shares its node with every other LabeledNode of the same
// Name (spec §3 "labeled-node registry"); topology's wire closure handles
// the actual merge.
type LabeledNode struct {
	Base
	Name string
}

func NewLabeledNode(x, y int, name string) *LabeledNode {
	return &LabeledNode{Base: NewBase(1, 0, 0, []int{x}, []int{y}), Name: name}
}

func (l *LabeledNode) LabeledNodeName() (string, bool) { return l.Name, l.Name != "" }
