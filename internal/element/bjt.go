package element

import (
	"math"

	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
)

// Bjt is a simplified Gummel-Poon bipolar transistor, companion-modeled
// each subiteration as a linearized 3x3 conductance block plus RHS
// correction currents, exactly the hybrid-pi stamp pattern used by
// other_examples/edp1096-toy-spice device/bjt.go.go's Stamp/calculateCurrents/
// calculateConductances, adapted to this package's Assembler.StampMatrix
// direct-entry primitive instead of a dense DeviceMatrix wrapper. Posts
// are [collector, base, emitter].
type Bjt struct {
	Base

	Is  float64 // transport saturation current
	Bf  float64 // forward beta
	Br  float64 // reverse beta
	Vaf float64 // forward Early voltage, 0 disables the effect
	Vt  float64 // thermal voltage

	vbe, vbc float64
	ic, ib   float64
	gm, gpi, gmu, gout float64
}

func NewBjt(xc, yc, xb, yb, xe, ye int) *Bjt {
	return &Bjt{
		Base: NewBase(3, 0, 0, []int{xc, xb, xe}, []int{yc, yb, ye}),
		Is:   1e-16,
		Bf:   100.0,
		Br:   1.0,
		Vaf:  100.0,
		Vt:   0.025852,
	}
}

func (b *Bjt) Nonlinear() bool { return true }

func (b *Bjt) StartIteration() {
	b.commitLastVolts()
	if b.vbe == 0 && b.vbc == 0 {
		b.vbe = 0.65
		b.vbc = -0.3
	}
}

func (b *Bjt) diodeCurrent(v float64) (float64, float64) {
	if v < -3*b.Vt {
		return -b.Is, 1e-12
	}
	ev := diodeExp(v / b.Vt)
	return b.Is * (ev - 1.0), math.Max(b.Is*ev/b.Vt, 1e-12)
}

func (b *Bjt) DoStep(a *mna.Assembler) {
	vbe := b.voltsAt(1) - b.voltsAt(2)
	vbc := b.voltsAt(1) - b.voltsAt(0)
	b.vbe = b.limitJunction(vbe, b.vbe)
	b.vbc = b.limitJunction(vbc, b.vbc)

	iF, gF := b.diodeCurrent(b.vbe)
	iR, gR := b.diodeCurrent(b.vbc)
	if b.Vaf > 0 {
		iF *= 1.0 + b.vbc/b.Vaf
	}

	b.ib = iF/b.Bf + iR/b.Br
	b.ic = iF - iR
	ie := -(b.ic + b.ib)

	b.gm = math.Max(math.Abs(b.ic)/b.Vt, 1e-12)
	b.gpi = math.Max(gF/b.Bf, 1e-12)
	b.gmu = math.Max(gR, 1e-12)
	b.gout = 1e-12
	if b.Vaf > 0 {
		b.gout += math.Abs(b.ic) / b.Vaf
	}

	nc, nb, ne := b.Node(0), b.Node(1), b.Node(2)

	a.StampMatrix(nc, nc, b.gout+b.gmu)
	a.StampMatrix(nc, nb, -b.gmu)
	a.StampMatrix(nc, ne, -b.gout-b.gm)
	a.StampRightSide(nc, -(b.ic - b.gout*(b.voltsAt(0)-b.voltsAt(2)) + b.gmu*b.vbc))

	a.StampMatrix(nb, nb, b.gpi+b.gmu)
	a.StampMatrix(nb, nc, -b.gmu)
	a.StampMatrix(nb, ne, -b.gpi)
	a.StampRightSide(nb, -(b.ib + b.gmu*b.vbc + b.gpi*b.vbe))

	a.StampMatrix(ne, ne, b.gout+b.gm+b.gpi)
	a.StampMatrix(ne, nc, -b.gout)
	a.StampMatrix(ne, nb, -b.gpi-b.gm)
	a.StampRightSide(ne, -(ie + b.gout*(b.voltsAt(0)-b.voltsAt(2)) + b.gpi*b.vbe + b.gm*b.vbe))
}

func (b *Bjt) voltsAt(post int) float64 { return b.TermVolts[post] }

func (b *Bjt) limitJunction(vnew, vold float64) float64 {
	if vnew > 0.8 {
		return 0.8 + b.Vt*math.Log(1.0+(vnew-0.8)/b.Vt)
	}
	if vnew < -5*b.Vt {
		return -5 * b.Vt
	}
	return vnew
}

func (b *Bjt) CheckConverged() bool {
	return Converged(b.TermVolts[1]-b.TermVolts[2], b.vbe) && Converged(b.TermVolts[1]-b.TermVolts[0], b.vbc)
}

func (b *Bjt) CurrentIntoNode(post int) float64 {
	switch post {
	case 0:
		return b.ic
	case 1:
		return b.ib
	default:
		return -(b.ic + b.ib)
	}
}
