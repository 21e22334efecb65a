package element

import (
	"math"

	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
)

// diodeExpMax keeps the thermal-voltage-scaled exponent argument bounded
// so Exp never overflows during the early, badly-guessed subiterations of
// Newton's method (spec §4.4 step 3; grounded on
// other_examples/edp1096-toy-spice device/bjt.go.go's limitExp).
const diodeExpMax = 80.0

func diodeExp(x float64) float64 {
	if x > diodeExpMax {
		x = diodeExpMax
	}
	return math.Exp(x)
}

// Diode is a Shockley-equation nonlinear two-terminal device, companion-
// modeled each subiteration as a conductance geq in parallel with a
// current source ieq linearized about the previous subiteration's guess
// (spec §4.2 stampNonLinear, §4.4 Newton-Raphson loop). Grounded on
// other_examples/edp1096-toy-spice device/bjt.go.go's diodeCurrentSlope,
// which is the same B-E/B-C junction equation this element specializes.
type Diode struct {
	Base

	Is float64 // saturation current, amps
	N  float64 // emission coefficient
	Vt float64 // thermal voltage, volts (kT/q at the simulated temperature)

	lastVd float64
	geq    float64
	ieq    float64
}

func NewDiode(x1, y1, x2, y2 int) *Diode {
	return &Diode{
		Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}),
		Is:   1e-14,
		N:    1.0,
		Vt:   0.025852, // kT/q at 300K
	}
}

func (d *Diode) Nonlinear() bool { return true }

func (d *Diode) StartIteration() {
	d.commitLastVolts()
}

// DoStep linearizes the diode about the present (limited) junction voltage,
// records that voltage in lastVd, and stamps the companion model.
// The solver loop calls this once per subiteration, after resetting the
// matrix for the step and before re-solving, so every DoStep call sees a
// freshly zeroed A/B to stamp into.
func (d *Diode) DoStep(a *mna.Assembler) {
	vd := d.limitedVd()
	nvt := d.N * d.Vt
	ev := diodeExp(vd / nvt)
	id := d.Is * (ev - 1.0)
	gd := d.Is * ev / nvt
	if gd < 1e-12 {
		gd = 1e-12
	}
	d.geq = gd
	d.ieq = id - gd*vd
	a.StampConductance(d.Node(0), d.Node(1), d.geq)
	a.StampCurrentSource(d.Node(0), d.Node(1), d.ieq)
	d.lastVd = vd
}

// limitedVd clamps the junction voltage guess the way SPICE3's DEVpnjlim
// does (spec §4.4 step 3b "apply per-element voltage limiting before
// re-stamping"), preventing the exponential from diverging during early
// subiterations.
func (d *Diode) limitedVd() float64 {
	vd := d.VoltageDiff()
	nvt := d.N * d.Vt
	if vd > 0.8 {
		vd = 0.8 + nvt*math.Log(1.0+(vd-0.8)/nvt)
	} else if vd < -5*nvt {
		vd = -5 * nvt
	}
	return vd
}

func (d *Diode) CheckConverged() bool {
	return Converged(d.lastVd, d.VoltageDiff())
}

func (d *Diode) CurrentIntoNode(post int) float64 {
	vd := d.VoltageDiff()
	i := d.geq*vd + d.ieq
	return currentSign(post) * i
}
