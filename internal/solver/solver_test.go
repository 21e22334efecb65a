package solver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/johnnewto/circuitjs1-sub006/internal/element"
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
	"github.com/johnnewto/circuitjs1-sub006/internal/simerr"
	"github.com/johnnewto/circuitjs1-sub006/internal/topology"
)

// wireUp runs topology.Analyze over elems and pushes the resulting node,
// voltage-source and internal-node assignments back into each element,
// mirroring what internal/engine will do after a load or topology
// change. It returns a ready-to-use Assembler.
func wireUp(t *testing.T, elems []element.Element) (*mna.Assembler, *topology.Result) {
	t.Helper()
	view := make([]topology.Elemental, len(elems))
	for i, e := range elems {
		view[i] = e.(topology.Elemental)
	}
	res, err := topology.Analyze(view, topology.ImplicitGroundVia1G)
	require.NoError(t, err)

	for i, e := range elems {
		for p := 0; p < e.PostCount(); p++ {
			e.SetNode(p, res.PostNode[i][p])
		}
		for v := 0; v < e.VoltageSourceCount(); v++ {
			e.SetVoltageSource(v, res.VoltageSourceBase[i]+v)
		}
		for n := 0; n < e.InternalNodeCount(); n++ {
			e.SetInternalNode(n, res.InternalNodeBase[i]+n)
		}
	}

	sys := mna.NewSystem(res.NodeCount - 1 + res.TotalVoltageSources)
	asm := mna.NewAssembler(sys, res.NodeCount, res.TotalVoltageSources)
	return asm, res
}

func TestStepSolvesResistiveDivider(t *testing.T) {
	// 10V source across two 1k resistors in series, midpoint is 5V.
	src := element.NewVoltageSource(0, 1, 0, 0, element.DC(10))
	r1 := element.NewResistor(0, 1, 0, 2, 1000)
	r2 := element.NewResistor(0, 2, 0, 0, 1000)
	gnd := element.NewGround(0, 0)

	elems := []element.Element{src, r1, r2, gnd}
	asm, _ := wireUp(t, elems)

	sv := solverFor(elems, asm)
	res, err := sv.Step(1e-3)
	require.NoError(t, err)
	require.False(t, res.NonConverged)

	require.InDelta(t, 10.0, asm.NodeVoltage(src.Node(0))-asm.NodeVoltage(src.Node(1)), 1e-9)
	mid := r1.Node(1)
	require.InDelta(t, 5.0, asm.NodeVoltage(mid), 1e-6)
}

func TestStepAdvancesTimeAndCommitsRegistry(t *testing.T) {
	reg := registry.New()
	src := element.NewVoltageSource(0, 0, 0, 1, element.DC(1))
	gnd := element.NewGround(0, 1)
	adder := element.NewAdder([]int{2, 0}, []int{2, 1}, reg, "sum", 5, []float64{2})

	elems := []element.Element{src, gnd, adder}
	asm, _ := wireUp(t, elems)
	sv := New(elems, asm, reg)

	require.Equal(t, 0.0, sv.Time)
	_, err := sv.Step(0.5)
	require.NoError(t, err)
	require.Equal(t, 0.5, sv.Time)
	_, err = sv.Step(0.5)
	require.NoError(t, err)
	require.Equal(t, 1.0, sv.Time)
	_, ok := reg.GetConverged("sum")
	require.True(t, ok)
}

// stubNonlinear never converges, exercising the subiteration cap and the
// NonConvergenceWarning path (spec Scenario C).
type stubNonlinear struct {
	element.Base
	flip bool
}

func newStubNonlinear(x, y int) *stubNonlinear {
	return &stubNonlinear{Base: element.NewBase(1, 0, 0, []int{x}, []int{y})}
}

func (s *stubNonlinear) Nonlinear() bool { return true }

func (s *stubNonlinear) DoStep(a *mna.Assembler) {
	s.flip = !s.flip
	var v float64
	if s.flip {
		v = 1
	} else {
		v = -1
	}
	a.StampCurrentSource(s.Node(0), 0, v)
}

func (s *stubNonlinear) CheckConverged() bool { return false }

func TestStepReportsNonConvergenceWithoutHalting(t *testing.T) {
	r := element.NewResistor(0, 0, 0, 1, 1000)
	gnd := element.NewGround(0, 1)
	stub := newStubNonlinear(0, 0)

	elems := []element.Element{r, gnd, stub}
	asm, _ := wireUp(t, elems)
	sv := New(elems, asm, nil)
	sv.MaxSubIterations = 20

	res, err := sv.Step(1e-3)
	require.Error(t, err)
	var simErr *simerr.Error
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, simerr.KindNonConvergence, simErr.Kind())
	require.True(t, res.NonConverged)
	require.Equal(t, 20, res.Subiterations)
	// time still advances and the last solve is still published, per spec.
	require.InDelta(t, 1e-3, sv.Time, 1e-12)
}

func solverFor(elems []element.Element, asm *mna.Assembler) *Solver {
	return New(elems, asm, registry.New())
}
