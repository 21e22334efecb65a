package element

import "github.com/johnnewto/circuitjs1-sub006/internal/mna"

// VCCS is a voltage-controlled current source: i(cn1->cn2) = gain *
// (v(vn1)-v(vn2)), posts [cn1, cn2, vn1, vn2].
type VCCS struct {
	Base
	Gain float64
}

func NewVCCS(x1, y1, x2, y2, x3, y3, x4, y4 int, gain float64) *VCCS {
	return &VCCS{Base: NewBase(4, 0, 0, []int{x1, x2, x3, x4}, []int{y1, y2, y3, y4}), Gain: gain}
}

func (e *VCCS) Stamp(a *mna.Assembler) {
	a.StampVCCS(e.Node(0), e.Node(1), e.Node(2), e.Node(3), e.Gain)
}

// VCVS is a voltage-controlled voltage source: v(on1)-v(on2) = gain *
// (v(cn1)-v(cn2)), posts [on1, on2, cn1, cn2].
type VCVS struct {
	Base
	Gain float64
}

func NewVCVS(x1, y1, x2, y2, x3, y3, x4, y4 int, gain float64) *VCVS {
	return &VCVS{Base: NewBase(4, 1, 0, []int{x1, x2, x3, x4}, []int{y1, y2, y3, y4}), Gain: gain}
}

func (e *VCVS) Stamp(a *mna.Assembler) {
	a.StampVCVS(e.Node(0), e.Node(1), e.Node(2), e.Node(3), e.VSIndex(0), e.Gain)
}

func (e *VCVS) CurrentIntoNode(post int) float64 {
	if post > 1 {
		return 0
	}
	return currentSign(post) * e.VSCurrentVal(0)
}

// CCCS is a current-controlled current source: i(n1->n2) = gain *
// i(ctrl), where ctrl is the global voltage-source index whose current is
// being sensed (e.g. a zero-value VoltageSource used as an ammeter).
type CCCS struct {
	Base
	Gain   float64
	ctrlVS int
}

func NewCCCS(x1, y1, x2, y2 int, ctrlVS int, gain float64) *CCCS {
	return &CCCS{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}), Gain: gain, ctrlVS: ctrlVS}
}

func (e *CCCS) Stamp(a *mna.Assembler) {
	a.StampCCCS(e.Node(0), e.Node(1), e.ctrlVS, e.Gain)
}

func (e *CCCS) CtrlVS() int { return e.ctrlVS }

// CCVS is a current-controlled voltage source: v(on1)-v(on2) = gain *
// i(ctrl).
type CCVS struct {
	Base
	Gain   float64
	ctrlVS int
}

func NewCCVS(x1, y1, x2, y2 int, ctrlVS int, gain float64) *CCVS {
	return &CCVS{Base: NewBase(2, 1, 0, []int{x1, x2}, []int{y1, y2}), Gain: gain, ctrlVS: ctrlVS}
}

func (e *CCVS) Stamp(a *mna.Assembler) {
	a.StampCCVS(e.Node(0), e.Node(1), e.ctrlVS, e.VSIndex(0), e.Gain)
}

func (e *CCVS) CtrlVS() int { return e.ctrlVS }

func (e *CCVS) CurrentIntoNode(post int) float64 {
	return currentSign(post) * e.VSCurrentVal(0)
}

// OpAmp models an ideal operational amplifier as a very-high-gain VCVS
// driving its output post: posts [in+, in-, out].
type OpAmp struct {
	Base
	Gain float64 // open-loop gain, default 1e6 if zero
}

func NewOpAmp(x1, y1, x2, y2, x3, y3 int, gain float64) *OpAmp {
	if gain <= 0 {
		gain = 1e6
	}
	return &OpAmp{Base: NewBase(3, 1, 0, []int{x1, x2, x3}, []int{y1, y2, y3}), Gain: gain}
}

func (o *OpAmp) Stamp(a *mna.Assembler) {
	// v(out) - v(gnd-ref 0) = gain*(v(in+)-v(in-)); output post doubles as
	// the VCVS's own "on1", with on2 implicitly ground (post index -1 via
	// node 0 is handled by Assembler's ground filtering).
	a.StampVCVS(o.Node(2), 0, o.Node(0), o.Node(1), o.VSIndex(0), o.Gain)
}

func (o *OpAmp) CurrentIntoNode(post int) float64 {
	if post != 2 {
		return 0
	}
	return o.VSCurrentVal(0)
}
