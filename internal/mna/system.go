// Package mna implements the Modified Nodal Analysis matrix kernel: the
// dense stamping assembler, the row-simplification pass, and the
// Crout-with-partial-pivoting LU solver that spec §4.2-§4.3 describe.
package mna

import (
	"fmt"
	"math"

	"github.com/cpmech/gosl/chk"
)

// RowKind classifies a row after the simplification pass.
type RowKind int

const (
	RowNormal RowKind = iota
	RowConst          // row solution is a known literal value
	RowEqual          // row solution equals another variable (+/- sign)
)

// RowInfo carries the per-row bookkeeping the simplifier and stamping
// primitives both read and write. LSChanges/RSChanges are set by
// StampNonLinear / the no-value form of StampVoltageSource and make a row
// permanently ineligible for simplification (spec §9 Open Question 3).
type RowInfo struct {
	Kind      RowKind
	Value     float64 // valid when Kind == RowConst
	MappedCol int      // valid when Kind == RowEqual
	EqualSign float64  // +1 or -1, valid when Kind == RowEqual
	LSChanges bool
	RSChanges bool
}

// System is the dense M x M MNA matrix A, right-hand side b, and solution x
// described in spec §3. Ground (node 0) never appears as a row or column.
type System struct {
	Size int
	A    [][]float64
	B    []float64
	X    []float64
	Rows []RowInfo

	lu       [][]float64
	piv      []int
	pivSign  float64
	factored bool
}

// NewSystem allocates a zeroed M x M system.
func NewSystem(size int) *System {
	s := &System{Size: size}
	s.A = make([][]float64, size)
	for i := range s.A {
		s.A[i] = make([]float64, size)
	}
	s.B = make([]float64, size)
	s.X = make([]float64, size)
	s.Rows = make([]RowInfo, size)
	return s
}

// Zero clears A, b and per-row change flags, but not Rows[i].Kind
// classifications produced by a prior Simplify pass — callers that need a
// fresh simplification call ResetRowInfo explicitly.
func (s *System) Zero() {
	for i := 0; i < s.Size; i++ {
		for j := 0; j < s.Size; j++ {
			s.A[i][j] = 0
		}
		s.B[i] = 0
		s.Rows[i].LSChanges = false
		s.Rows[i].RSChanges = false
	}
	s.factored = false
}

// ResetRowInfo discards any prior simplification classification.
func (s *System) ResetRowInfo() {
	s.Rows = make([]RowInfo, s.Size)
}

// checkRow panics (StampViolation, a programmer bug per spec §4.10) if row
// is outside the allocated matrix.
func (s *System) checkRow(row int) {
	if row < 0 || row >= s.Size {
		chk.Panic("mna: stamp row %d out of range [0,%d)", row, s.Size)
	}
}

// StampMatrix adds v to A[r][c]; it is the single primitive every other
// stamping helper funnels through.
func (s *System) StampMatrix(r, c int, v float64) {
	s.checkRow(r)
	s.checkRow(c)
	s.A[r][c] += v
	s.factored = false
}

// StampRightSide adds v to b[r].
func (s *System) StampRightSide(r int, v float64) {
	s.checkRow(r)
	s.B[r] += v
}

// StampRightSideChanging marks row r as having a right-hand side that
// changes between subiterations without recording a specific delta yet —
// the zero-argument form from spec §4.2. It inhibits simplification.
func (s *System) StampRightSideChanging(r int) {
	s.checkRow(r)
	s.Rows[r].RSChanges = true
}

// StampNonLinear marks row as owned by a nonlinear element's doStep,
// preventing the simplifier from folding it and allowing re-entry every
// subiteration (spec §4.2, §9 Open Question 3).
func (s *System) StampNonLinear(row int) {
	s.checkRow(row)
	s.Rows[row].LSChanges = true
}

// StampResistor adds conductance g=1/r between rows n1 and n2. Ground
// (index < 0) terminals are simply skipped by the Assembler, not here;
// System itself has no notion of ground.
func (s *System) StampResistor(n1, n2 int, r float64) error {
	if r <= 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		return errInvalidResistance(r)
	}
	g := 1.0 / r
	s.stampConductancePair(n1, n2, g)
	return nil
}

func (s *System) stampConductancePair(n1, n2 int, g float64) {
	hasN1 := n1 >= 0
	hasN2 := n2 >= 0
	if hasN1 {
		s.StampMatrix(n1, n1, g)
	}
	if hasN2 {
		s.StampMatrix(n2, n2, g)
	}
	if hasN1 && hasN2 {
		s.StampMatrix(n1, n2, -g)
		s.StampMatrix(n2, n1, -g)
	}
}

// StampConductance is StampResistor expressed directly in siemens, used by
// companion models that compute g rather than r (e.g. gmin shunts).
func (s *System) StampConductance(n1, n2 int, g float64) {
	s.stampConductancePair(n1, n2, g)
}

// StampCurrentSource stamps an independent current source directly into b:
// i is drawn out of n1 and pushed into n2 (current flows through the source
// from n1 to n2).
func (s *System) StampCurrentSource(n1, n2 int, i float64) {
	if n1 >= 0 {
		s.StampRightSide(n1, -i)
	}
	if n2 >= 0 {
		s.StampRightSide(n2, i)
	}
}

// StampVoltageSource stamps an ideal voltage source of value v between n1
// (+) and n2 (-) using auxiliary row/column vsRow (already offset into the
// combined node+voltage-source index space by the caller/Assembler).
func (s *System) StampVoltageSource(n1, n2, vsRow int, v float64) {
	s.stampVoltageSourceStructure(n1, n2, vsRow)
	s.StampRightSide(vsRow, v)
}

// StampVoltageSourceNoValue reserves the voltage-source row/column
// structure without setting b[vsRow] and marks the row as RHS-changing —
// the zero-argument form used by nonlinear/companion sources that set the
// value later via UpdateVoltageSource each doStep.
func (s *System) StampVoltageSourceNoValue(n1, n2, vsRow int) {
	s.stampVoltageSourceStructure(n1, n2, vsRow)
	s.StampRightSideChanging(vsRow)
}

func (s *System) stampVoltageSourceStructure(n1, n2, vsRow int) {
	if n1 >= 0 {
		s.StampMatrix(n1, vsRow, 1)
		s.StampMatrix(vsRow, n1, 1)
	}
	if n2 >= 0 {
		s.StampMatrix(n2, vsRow, -1)
		s.StampMatrix(vsRow, n2, -1)
	}
}

// UpdateVoltageSource overwrites b[vsRow] without re-touching A; used each
// doStep once the structure has already been stamped once.
func (s *System) UpdateVoltageSource(vsRow int, v float64) {
	s.B[vsRow] = v
}

// StampVCCS stamps a voltage-controlled current source: current gain*(v(vn1)
// - v(vn2)) flows from cn1 to cn2.
func (s *System) StampVCCS(cn1, cn2, vn1, vn2 int, gain float64) {
	if cn1 >= 0 {
		if vn1 >= 0 {
			s.StampMatrix(cn1, vn1, gain)
		}
		if vn2 >= 0 {
			s.StampMatrix(cn1, vn2, -gain)
		}
	}
	if cn2 >= 0 {
		if vn1 >= 0 {
			s.StampMatrix(cn2, vn1, -gain)
		}
		if vn2 >= 0 {
			s.StampMatrix(cn2, vn2, gain)
		}
	}
}

// StampCCCS stamps a current-controlled current source: current gain*i(vs)
// flows from n1 to n2, where i(vs) is the auxiliary current of voltage
// source row vsRow.
func (s *System) StampCCCS(n1, n2, vsRow int, gain float64) {
	if n1 >= 0 {
		s.StampMatrix(n1, vsRow, gain)
	}
	if n2 >= 0 {
		s.StampMatrix(n2, vsRow, -gain)
	}
}

// StampVCVS stamps a voltage-controlled voltage source: v(on1)-v(on2) =
// gain*(v(cn1)-v(cn2)), using auxiliary row vsRow.
func (s *System) StampVCVS(on1, on2, cn1, cn2, vsRow int, gain float64) {
	if on1 >= 0 {
		s.StampMatrix(on1, vsRow, 1)
		s.StampMatrix(vsRow, on1, 1)
	}
	if on2 >= 0 {
		s.StampMatrix(on2, vsRow, -1)
		s.StampMatrix(vsRow, on2, -1)
	}
	if cn1 >= 0 {
		s.StampMatrix(vsRow, cn1, -gain)
	}
	if cn2 >= 0 {
		s.StampMatrix(vsRow, cn2, gain)
	}
	s.StampRightSide(vsRow, 0)
}

// StampCCVS stamps a current-controlled voltage source: v(on1)-v(on2) =
// gain*i(csRow), using auxiliary row vsRow and controlling current row
// csRow.
func (s *System) StampCCVS(on1, on2, csRow, vsRow int, gain float64) {
	if on1 >= 0 {
		s.StampMatrix(on1, vsRow, 1)
		s.StampMatrix(vsRow, on1, 1)
	}
	if on2 >= 0 {
		s.StampMatrix(on2, vsRow, -1)
		s.StampMatrix(vsRow, on2, -1)
	}
	s.StampMatrix(vsRow, csRow, -gain)
	s.StampRightSide(vsRow, 0)
}

type invalidResistance float64

func (v invalidResistance) Error() string {
	return fmt.Sprintf("mna: invalid resistance value %g", float64(v))
}

func errInvalidResistance(r float64) error {
	return invalidResistance(r)
}
