package mna

// Assembler is the per-circuit stamping contract elements are handed in
// Stamp/DoStep (spec §4.2). It wraps a System and translates engine-space
// node ids (0 == ground) into matrix row/column indices, and global
// voltage-source indices into their matrix row, so individual element
// implementations never see raw matrix indices.
type Assembler struct {
	sys        *System
	numNodeRow int // number of node-unknown rows == (nodeCount - 1)
}

// NewAssembler builds an Assembler over a System sized for nodeCount-1
// node rows plus vsCount voltage-source rows.
func NewAssembler(sys *System, nodeCount, vsCount int) *Assembler {
	return &Assembler{sys: sys, numNodeRow: nodeCount - 1}
}

// System exposes the underlying matrix for the solver loop.
func (a *Assembler) System() *System { return a.sys }

// row maps an engine node id to a matrix row, or -1 for ground.
func (a *Assembler) row(node int) int {
	if node <= 0 {
		return -1
	}
	return node - 1
}

// VSRow maps a global voltage-source index to its matrix row.
func (a *Assembler) VSRow(vs int) int { return a.numNodeRow + vs }

func (a *Assembler) StampMatrix(n1, n2 int, v float64) {
	r1, r2 := a.row(n1), a.row(n2)
	if r1 < 0 || r2 < 0 {
		return
	}
	a.sys.StampMatrix(r1, r2, v)
}

func (a *Assembler) StampRightSide(n int, v float64) {
	if r := a.row(n); r >= 0 {
		a.sys.StampRightSide(r, v)
	}
}

func (a *Assembler) StampRightSideChanging(n int) {
	if r := a.row(n); r >= 0 {
		a.sys.StampRightSideChanging(r)
	}
}

func (a *Assembler) StampResistor(n1, n2 int, r float64) error {
	return a.sys.StampResistor(a.row(n1), a.row(n2), r)
}

func (a *Assembler) StampConductance(n1, n2 int, g float64) {
	a.sys.StampConductance(a.row(n1), a.row(n2), g)
}

func (a *Assembler) StampCurrentSource(n1, n2 int, i float64) {
	a.sys.StampCurrentSource(a.row(n1), a.row(n2), i)
}

func (a *Assembler) StampVoltageSource(n1, n2, vs int, v float64) {
	a.sys.StampVoltageSource(a.row(n1), a.row(n2), a.VSRow(vs), v)
}

func (a *Assembler) StampVoltageSourceNoValue(n1, n2, vs int) {
	a.sys.StampVoltageSourceNoValue(a.row(n1), a.row(n2), a.VSRow(vs))
}

func (a *Assembler) UpdateVoltageSource(vs int, v float64) {
	a.sys.UpdateVoltageSource(a.VSRow(vs), v)
}

func (a *Assembler) StampVCCS(cn1, cn2, vn1, vn2 int, gain float64) {
	a.sys.StampVCCS(a.row(cn1), a.row(cn2), a.row(vn1), a.row(vn2), gain)
}

func (a *Assembler) StampCCCS(n1, n2, vs int, gain float64) {
	a.sys.StampCCCS(a.row(n1), a.row(n2), a.VSRow(vs), gain)
}

func (a *Assembler) StampVCVS(on1, on2, cn1, cn2, vs int, gain float64) {
	a.sys.StampVCVS(a.row(on1), a.row(on2), a.row(cn1), a.row(cn2), a.VSRow(vs), gain)
}

func (a *Assembler) StampCCVS(on1, on2, cs, vs int, gain float64) {
	a.sys.StampCCVS(a.row(on1), a.row(on2), a.VSRow(cs), a.VSRow(vs), gain)
}

// StampNonLinear marks the row owned by global voltage-source index vs as
// nonlinear, exempting it from simplification.
func (a *Assembler) StampNonLinear(vs int) {
	a.sys.StampNonLinear(a.VSRow(vs))
}

// NodeVoltage reads the solved voltage of an engine node id, honoring any
// RowConst/RowEqual simplification fold and returning 0 for ground.
func (a *Assembler) NodeVoltage(node int) float64 {
	if r := a.row(node); r >= 0 {
		return a.sys.ResolvedValue(r)
	}
	return 0
}

// VoltageSourceCurrent reads the auxiliary current unknown for a global
// voltage-source index.
func (a *Assembler) VoltageSourceCurrent(vs int) float64 {
	return a.sys.ResolvedValue(a.VSRow(vs))
}
