package element

import (
	"math"

	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
)

// MosfetRegion is the Shockley square-law operating region a Mosfet
// settled into on its last DoStep.
type MosfetRegion int

const (
	Cutoff MosfetRegion = iota
	Linear
	Saturation
)

// Mosfet is a level-1 (Shockley square-law) MOSFET, companion-modeled
// each subiteration as a linearized drain-source conductance plus a
// transconductance-driven current source, grounded on
// other_examples/edp1096-toy-spice device/mosfet.go.go's
// calculateLevel1Current/calculateConductances and Stamp. Only levels the
// teacher corpus actually exercises with real numbers (level 1) are
// implemented; Vto/Kp/Lambda cover the common case, body effect and
// levels 2/3 are intentionally out of scope (spec's device non-goals).
// Posts are [drain, gate, source].
type Mosfet struct {
	Base

	PMOS   bool
	Vto    float64 // threshold voltage
	Kp     float64 // transconductance parameter, A/V^2
	Lambda float64 // channel length modulation, 1/V

	vgs, vds float64
	id       float64
	gm, gds  float64
	region   MosfetRegion
}

func NewMosfet(xd, yd, xg, yg, xs, ys int, pmos bool) *Mosfet {
	return &Mosfet{
		Base:   NewBase(3, 0, 0, []int{xd, xg, xs}, []int{yd, yg, ys}),
		PMOS:   pmos,
		Vto:    0.7,
		Kp:     2e-5,
		Lambda: 0.01,
	}
}

func (m *Mosfet) Nonlinear() bool { return true }

func (m *Mosfet) StartIteration() { m.commitLastVolts() }

func (m *Mosfet) sign() float64 {
	if m.PMOS {
		return -1
	}
	return 1
}

func (m *Mosfet) DoStep(a *mna.Assembler) {
	sign := m.sign()
	m.vgs = sign * (m.TermVolts[1] - m.TermVolts[2])
	m.vds = sign * (m.TermVolts[0] - m.TermVolts[2])

	vgst := m.vgs - m.Vto
	gmin := 1e-12

	if vgst <= 0 {
		m.region = Cutoff
		m.id, m.gm, m.gds = 0, gmin, gmin
	} else if m.vds < vgst {
		m.region = Linear
		m.id = m.Kp * (vgst*m.vds - 0.5*m.vds*m.vds) * (1 + m.Lambda*m.vds)
		m.gm = m.Kp * m.vds * (1 + m.Lambda*m.vds)
		m.gds = m.Kp*(vgst-m.vds)*(1+m.Lambda*m.vds) + m.Kp*m.Lambda*(vgst*m.vds-0.5*m.vds*m.vds)
	} else {
		m.region = Saturation
		m.id = 0.5 * m.Kp * vgst * vgst * (1 + m.Lambda*m.vds)
		m.gm = m.Kp * vgst * (1 + m.Lambda*m.vds)
		m.gds = 0.5 * m.Kp * vgst * vgst * m.Lambda
	}
	m.gm = math.Max(m.gm, gmin)
	m.gds = math.Max(m.gds, gmin)

	id := sign * m.id
	gm := m.gm
	gds := m.gds

	nd, ng, ns := m.Node(0), m.Node(1), m.Node(2)

	a.StampMatrix(nd, nd, gds)
	a.StampMatrix(nd, ng, gm)
	a.StampMatrix(nd, ns, -gds-gm)
	a.StampRightSide(nd, -id+gds*m.vds+gm*m.vgs)

	a.StampMatrix(ns, ns, gds+gm)
	a.StampMatrix(ns, nd, -gds)
	a.StampMatrix(ns, ng, -gm)
	a.StampRightSide(ns, id-gds*m.vds-gm*m.vgs)
}

func (m *Mosfet) CheckConverged() bool {
	sign := m.sign()
	return Converged(m.vgs, sign*(m.TermVolts[1]-m.TermVolts[2])) &&
		Converged(m.vds, sign*(m.TermVolts[0]-m.TermVolts[2]))
}

func (m *Mosfet) CurrentIntoNode(post int) float64 {
	id := m.sign() * m.id
	switch post {
	case 0:
		return -id
	case 1:
		return 0
	default:
		return id
	}
}

func (m *Mosfet) Region() MosfetRegion { return m.region }
