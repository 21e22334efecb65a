package element

import (
	"sort"

	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// TablePoint is one breakpoint of a Table element's piecewise-linear
// lookup (spec §4.5 "tables").
type TablePoint struct {
	X, Y float64
}

// Table outputs the piecewise-linear interpolation of Input(0) against a
// sorted set of breakpoints, clamping outside the table's domain.
type Table struct {
	ArithBase
	Points []TablePoint // must be sorted by X
}

func NewTable(x, y []int, reg *registry.Registry, outputName string, priority int, points []TablePoint) *Table {
	pts := append([]TablePoint(nil), points...)
	sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
	return &Table{
		ArithBase: NewArithBase(1, x, y, reg, outputName, priority),
		Points:    pts,
	}
}

func (t *Table) lookup(x float64) float64 {
	n := len(t.Points)
	if n == 0 {
		return 0
	}
	if n == 1 || x <= t.Points[0].X {
		return t.Points[0].Y
	}
	if x >= t.Points[n-1].X {
		return t.Points[n-1].Y
	}
	i := sort.Search(n, func(i int) bool { return t.Points[i].X >= x })
	lo, hi := t.Points[i-1], t.Points[i]
	frac := (x - lo.X) / (hi.X - lo.X)
	return lo.Y + frac*(hi.Y-lo.Y)
}

func (t *Table) DoStep(a *mna.Assembler) {
	t.publish(a, t.lookup(t.Input(0)))
}
