package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/johnnewto/circuitjs1-sub006/internal/element"
)

// decodeFunc builds an element from a dump-type code's post coordinates
// and trailing parameters.
type decodeFunc func(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error)

// decoders maps a dump-type code (spec §6.3: "either a character ... or
// a small integer") to its decoder. Codes reuse the SPICE single-letter
// convention where a real SPICE analogue exists (r, c, l, v, i, d, q, m,
// e, f, h, s) and pick an unclaimed letter for this simulator's
// circuitjs1-style non-SPICE extras. GodleyTable and CompositeInstance
// have no entry here: a Godley table's stock/flow structure and a
// composite's template definition are both inherently multi-line,
// structural things, better expressed by the SFC "@matrix" block (§6.4)
// and by code-level registration respectively, not by a flat per-line
// format — loading a circuit that references either skips the line with
// a warning, which is exactly the forward-compatibility behavior §6.3
// already mandates for any dump type a reader doesn't recognize.
var decoders = map[string]decodeFunc{
	"w": decodeWire,
	"g": decodeGround,
	"n": decodeLabeledNode,
	"r": decodeResistor,
	"c": decodeCapacitor,
	"l": decodeInductor,
	"v": decodeVoltageSource,
	"i": decodeCurrentSource,
	"s": decodeSwitch,
	"d": decodeDiode,
	"q": decodeBjt,
	"m": decodeMosfet,
	"k":  decodeVCCS, // SPICE reserves "g" for VCCS too, but this format's "g" already names Ground.
	"e":  decodeVCVS,
	"f":  decodeCCCS,
	"h":  decodeCCVS,
	"x":  decodeOpAmp,
	"A":  decodeAdder,
	"U":  decodeMultiplier,
	"/":  decodeDivider,
	"%":  decodePercent,
	"Y":  decodeDifferentiator,
	"J":  decodeIntegrator,
	"N":  decodeEquation,
	"Z":  decodeODE,
	"T":  decodeTable,
}

func decodeWire(x1, y1, x2, y2 int, _ []string, _ DecodeContext) (element.Element, error) {
	return element.NewWire(x1, y1, x2, y2), nil
}

func decodeGround(x1, y1, _, _ int, _ []string, _ DecodeContext) (element.Element, error) {
	return element.NewGround(x1, y1), nil
}

func decodeLabeledNode(x1, y1, _, _ int, params []string, _ DecodeContext) (element.Element, error) {
	name := ""
	if len(params) > 0 {
		name = params[0]
	}
	return element.NewLabeledNode(x1, y1, name), nil
}

func decodeResistor(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	ohms, err := need1(params)
	if err != nil {
		return nil, err
	}
	return element.NewResistor(x1, y1, x2, y2, ohms), nil
}

func decodeCapacitor(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("capacitor: need farads")
	}
	farads, err := parseFloat(params[0])
	if err != nil {
		return nil, err
	}
	method := element.BackwardEuler
	if len(params) > 1 && params[1] == "trapezoidal" {
		method = element.Trapezoidal
	}
	return element.NewCapacitor(x1, y1, x2, y2, farads, method), nil
}

func decodeInductor(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	if len(params) < 1 {
		return nil, fmt.Errorf("inductor: need henries")
	}
	henries, err := parseFloat(params[0])
	if err != nil {
		return nil, err
	}
	method := element.BackwardEuler
	if len(params) > 1 && params[1] == "trapezoidal" {
		method = element.Trapezoidal
	}
	return element.NewInductor(x1, y1, x2, y2, henries, method), nil
}

func decodeWaveform(params []string) (element.WaveformSpec, error) {
	if len(params) < 1 {
		return element.WaveformSpec{}, fmt.Errorf("source: missing waveform kind")
	}
	switch params[0] {
	case "dc":
		if len(params) < 2 {
			return element.WaveformSpec{}, fmt.Errorf("dc source: missing value")
		}
		v, err := parseFloat(params[1])
		if err != nil {
			return element.WaveformSpec{}, err
		}
		return element.DC(v), nil
	case "ac":
		if len(params) < 4 {
			return element.WaveformSpec{}, fmt.Errorf("ac source: need amplitude freqHz phase")
		}
		amp, err := parseFloat(params[1])
		if err != nil {
			return element.WaveformSpec{}, err
		}
		freq, err := parseFloat(params[2])
		if err != nil {
			return element.WaveformSpec{}, err
		}
		phase, err := parseFloat(params[3])
		if err != nil {
			return element.WaveformSpec{}, err
		}
		return element.AC(amp, freq, phase), nil
	default:
		return element.WaveformSpec{}, fmt.Errorf("source: unknown waveform kind %q", params[0])
	}
}

func decodeVoltageSource(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	w, err := decodeWaveform(params)
	if err != nil {
		return nil, err
	}
	return element.NewVoltageSource(x1, y1, x2, y2, w), nil
}

func decodeCurrentSource(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	w, err := decodeWaveform(params)
	if err != nil {
		return nil, err
	}
	return element.NewCurrentSource(x1, y1, x2, y2, w), nil
}

func decodeSwitch(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	closed := len(params) > 0 && params[0] == "1"
	return element.NewSwitch(x1, y1, x2, y2, closed), nil
}

func decodeDiode(x1, y1, x2, y2 int, _ []string, _ DecodeContext) (element.Element, error) {
	return element.NewDiode(x1, y1, x2, y2), nil
}

func decodeBjt(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	// posts packed as collector(x1,y1), base(x2,y2), emitter(param 0,1).
	if len(params) < 2 {
		return nil, fmt.Errorf("bjt: missing emitter coordinate")
	}
	xe, err := parseInt(params[0])
	if err != nil {
		return nil, err
	}
	ye, err := parseInt(params[1])
	if err != nil {
		return nil, err
	}
	return element.NewBjt(x1, y1, x2, y2, xe, ye), nil
}

func decodeMosfet(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	// posts packed as drain(x1,y1), gate(x2,y2), source(param 0,1).
	if len(params) < 3 {
		return nil, fmt.Errorf("mosfet: missing source coordinate/type")
	}
	xs, err := parseInt(params[0])
	if err != nil {
		return nil, err
	}
	ys, err := parseInt(params[1])
	if err != nil {
		return nil, err
	}
	return element.NewMosfet(x1, y1, x2, y2, xs, ys, params[2] == "p"), nil
}

func decodeVCCS(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	x3, y3, x4, y4, gain, err := decodeFourPostGain(params)
	if err != nil {
		return nil, err
	}
	return element.NewVCCS(x1, y1, x2, y2, x3, y3, x4, y4, gain), nil
}

func decodeVCVS(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	x3, y3, x4, y4, gain, err := decodeFourPostGain(params)
	if err != nil {
		return nil, err
	}
	return element.NewVCVS(x1, y1, x2, y2, x3, y3, x4, y4, gain), nil
}

func decodeFourPostGain(params []string) (x3, y3, x4, y4 int, gain float64, err error) {
	if len(params) < 5 {
		return 0, 0, 0, 0, 0, fmt.Errorf("need x3 y3 x4 y4 gain")
	}
	ints := make([]int, 4)
	for i := 0; i < 4; i++ {
		if ints[i], err = parseInt(params[i]); err != nil {
			return
		}
	}
	if gain, err = parseFloat(params[4]); err != nil {
		return
	}
	return ints[0], ints[1], ints[2], ints[3], gain, nil
}

func decodeCCCS(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	ctrl, gain, err := decodeCtrlGain(params)
	if err != nil {
		return nil, err
	}
	return element.NewCCCS(x1, y1, x2, y2, ctrl, gain), nil
}

func decodeCCVS(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	ctrl, gain, err := decodeCtrlGain(params)
	if err != nil {
		return nil, err
	}
	return element.NewCCVS(x1, y1, x2, y2, ctrl, gain), nil
}

func decodeCtrlGain(params []string) (ctrl int, gain float64, err error) {
	if len(params) < 2 {
		return 0, 0, fmt.Errorf("need ctrlVS gain")
	}
	if ctrl, err = parseInt(params[0]); err != nil {
		return
	}
	if gain, err = parseFloat(params[1]); err != nil {
		return
	}
	return
}

func decodeOpAmp(x1, y1, x2, y2 int, params []string, _ DecodeContext) (element.Element, error) {
	// posts packed as in+(x1,y1), in-(x2,y2), out(param 0,1).
	if len(params) < 2 {
		return nil, fmt.Errorf("opamp: missing output coordinate")
	}
	xo, err := parseInt(params[0])
	if err != nil {
		return nil, err
	}
	yo, err := parseInt(params[1])
	if err != nil {
		return nil, err
	}
	gain := 0.0
	if len(params) > 2 {
		if gain, err = parseFloat(params[2]); err != nil {
			return nil, err
		}
	}
	return element.NewOpAmp(x1, y1, x2, y2, xo, yo, gain), nil
}

// decodeInputCoords parses the "<n> <ix:iy>... " prefix every arithmetic
// element's param list starts with (see encodeArith), returning the
// decoded input coordinates and the remaining params.
func decodeInputCoords(params []string) (xs, ys []int, rest []string, err error) {
	if len(params) < 1 {
		return nil, nil, nil, fmt.Errorf("arith element: missing input count")
	}
	n, err := parseInt(params[0])
	if err != nil {
		return nil, nil, nil, err
	}
	if len(params) < 1+n {
		return nil, nil, nil, fmt.Errorf("arith element: expected %d input coordinates", n)
	}
	xs, ys = make([]int, n), make([]int, n)
	for i := 0; i < n; i++ {
		parts := strings.SplitN(params[1+i], ":", 2)
		if len(parts) != 2 {
			return nil, nil, nil, fmt.Errorf("arith element: bad input coordinate %q", params[1+i])
		}
		if xs[i], err = strconv.Atoi(parts[0]); err != nil {
			return nil, nil, nil, err
		}
		if ys[i], err = strconv.Atoi(parts[1]); err != nil {
			return nil, nil, nil, err
		}
	}
	return xs, ys, params[1+n:], nil
}

// outRefCoords assembles the full x,y arrays NewArithBase expects: the
// decoded input coordinates followed by the line's own x1y1/x2y2 pair,
// which this format always uses for an arith element's [out, ref] posts.
func outRefCoords(xs, ys []int, x1, y1, x2, y2 int) ([]int, []int) {
	return append(append([]int(nil), xs...), x1, x2), append(append([]int(nil), ys...), y1, y2)
}

func decodeOutputNamePriority(params []string) (name string, priority int, rest []string, err error) {
	if len(params) < 2 {
		return "", 0, nil, fmt.Errorf("arith element: missing output_name/priority")
	}
	priority, err = parseInt(params[1])
	if err != nil {
		return "", 0, nil, err
	}
	return params[0], priority, params[2:], nil
}

func decodeAdder(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	var weights []float64
	if len(rest) > 0 && rest[0] != "-" {
		for _, tok := range strings.Split(rest[0], ",") {
			w, err := parseFloat(tok)
			if err != nil {
				return nil, err
			}
			weights = append(weights, w)
		}
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewAdder(x, y, ctx.Registry, name, prio, weights), nil
}

func decodeMultiplier(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	gain := 1.0
	if len(rest) > 0 {
		if gain, err = parseFloat(rest[0]); err != nil {
			return nil, err
		}
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewMultiplier(x, y, ctx.Registry, name, prio, gain), nil
}

func decodeDivider(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, _, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewDivider(x, y, ctx.Registry, name, prio), nil
}

func decodePercent(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	pct := 0.0
	if len(rest) > 0 {
		if pct, err = parseFloat(rest[0]); err != nil {
			return nil, err
		}
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewPercent(x, y, ctx.Registry, name, prio, pct), nil
}

func decodeDifferentiator(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, _, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewDifferentiator(x, y, ctx.Registry, name, prio), nil
}

func decodeIntegrator(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	initial := 0.0
	if len(rest) > 0 {
		if initial, err = parseFloat(rest[0]); err != nil {
			return nil, err
		}
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewIntegrator(x, y, ctx.Registry, name, prio, initial), nil
}

func decodeEquation(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, fmt.Errorf("equation: missing formula")
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewEquation(x, y, ctx.Registry, name, prio, rest[0], ctx.Resolver)
}

func decodeODE(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) < 2 {
		return nil, fmt.Errorf("ode: missing formula/initial")
	}
	initial, err := parseFloat(rest[1])
	if err != nil {
		return nil, err
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewODE(x, y, ctx.Registry, name, prio, rest[0], ctx.Resolver, initial)
}

func decodeTable(x1, y1, x2, y2 int, params []string, ctx DecodeContext) (element.Element, error) {
	xs, ys, rest, err := decodeInputCoords(params)
	if err != nil {
		return nil, err
	}
	name, prio, rest, err := decodeOutputNamePriority(rest)
	if err != nil {
		return nil, err
	}
	var pts []element.TablePoint
	if len(rest) > 0 {
		for _, tok := range strings.Split(rest[0], ",") {
			parts := strings.SplitN(tok, ":", 2)
			if len(parts) != 2 {
				continue
			}
			px, err := parseFloat(parts[0])
			if err != nil {
				return nil, err
			}
			py, err := parseFloat(parts[1])
			if err != nil {
				return nil, err
			}
			pts = append(pts, element.TablePoint{X: px, Y: py})
		}
	}
	x, y := outRefCoords(xs, ys, x1, y1, x2, y2)
	return element.NewTable(x, y, ctx.Registry, name, prio, pts), nil
}

func need1(params []string) (float64, error) {
	if len(params) < 1 {
		return 0, fmt.Errorf("missing value")
	}
	return parseFloat(params[0])
}

// encodeByType is the export-side counterpart of decoders: a type switch
// producing (dump-type code, trailing parameters) for every kind
// decoders knows how to read back. Kinds with no case here (GodleyTable,
// CompositeInstance, the test-only stub types) are skipped by Export,
// same as an unrecognized code is skipped by Load.
func encodeByType(e element.Element) (string, []string, bool) {
	switch v := e.(type) {
	case *element.Wire:
		return "w", nil, true
	case *element.Ground:
		return "g", nil, true
	case *element.LabeledNode:
		return "n", []string{v.Name}, true
	case *element.Resistor:
		return "r", []string{fstr(v.Ohms)}, true
	case *element.Capacitor:
		return "c", []string{fstr(v.Farads), methodName(v.Method)}, true
	case *element.Inductor:
		return "l", []string{fstr(v.Henries), methodName(v.Method)}, true
	case *element.VoltageSource:
		return "v", waveformParams(v.Wave), true
	case *element.CurrentSource:
		return "i", waveformParams(v.Wave), true
	case *element.Switch:
		return "s", []string{bstr(v.Closed())}, true
	case *element.Diode:
		return "d", nil, true
	case *element.Bjt:
		xe, ye := v.PostCoord(2)
		return "q", []string{strconv.Itoa(xe), strconv.Itoa(ye)}, true
	case *element.Mosfet:
		xs, ys := v.PostCoord(2)
		t := "n"
		if v.PMOS {
			t = "p"
		}
		return "m", []string{strconv.Itoa(xs), strconv.Itoa(ys), t}, true
	case *element.VCCS:
		x3, y3 := v.PostCoord(2)
		x4, y4 := v.PostCoord(3)
		return "k", fourPostGainParams(x3, y3, x4, y4, v.Gain), true
	case *element.VCVS:
		x3, y3 := v.PostCoord(2)
		x4, y4 := v.PostCoord(3)
		return "e", fourPostGainParams(x3, y3, x4, y4, v.Gain), true
	case *element.CCCS:
		return "f", []string{strconv.Itoa(v.CtrlVS()), fstr(v.Gain)}, true
	case *element.CCVS:
		return "h", []string{strconv.Itoa(v.CtrlVS()), fstr(v.Gain)}, true
	case *element.OpAmp:
		xo, yo := v.PostCoord(2)
		return "x", []string{strconv.Itoa(xo), strconv.Itoa(yo), fstr(v.Gain)}, true
	case *element.Adder:
		return arithEncode("A", &v.ArithBase, weightsParam(v.Weights))
	case *element.Multiplier:
		return arithEncode("U", &v.ArithBase, fstr(v.Gain))
	case *element.Divider:
		return arithEncode("/", &v.ArithBase)
	case *element.Percent:
		return arithEncode("%", &v.ArithBase, fstr(v.Pct))
	case *element.Differentiator:
		return arithEncode("Y", &v.ArithBase)
	case *element.Integrator:
		return arithEncode("J", &v.ArithBase, fstr(v.InitialValue))
	case *element.Equation:
		return arithEncode("N", &v.ArithBase, v.Expr.Source())
	case *element.ODE:
		return arithEncode("Z", &v.ArithBase, v.Formula.Source(), fstr(v.InitialValue))
	case *element.Table:
		return arithEncode("T", &v.ArithBase, tablePointsParam(v.Points))
	default:
		return "", nil, false
	}
}

func methodName(m element.IntegrationMethod) string {
	if m == element.Trapezoidal {
		return "trapezoidal"
	}
	return "backward_euler"
}

func waveformParams(w element.WaveformSpec) []string {
	if w.Kind == element.WaveAC {
		return []string{"ac", fstr(w.Amplitude), fstr(w.FreqHz), fstr(w.Phase)}
	}
	return []string{"dc", fstr(w.Amplitude)}
}

func fourPostGainParams(x3, y3, x4, y4 int, gain float64) []string {
	return []string{strconv.Itoa(x3), strconv.Itoa(y3), strconv.Itoa(x4), strconv.Itoa(y4), fstr(gain)}
}

func weightsParam(weights []float64) string {
	if weights == nil {
		return "-"
	}
	toks := make([]string, len(weights))
	for i, w := range weights {
		toks[i] = fstr(w)
	}
	return strings.Join(toks, ",")
}

func tablePointsParam(pts []element.TablePoint) string {
	toks := make([]string, len(pts))
	for i, p := range pts {
		toks[i] = fstr(p.X) + ":" + fstr(p.Y)
	}
	return strings.Join(toks, ",")
}

// arithEncode renders the "<n> <ix:iy>... <name> <priority> <trailing...>"
// param shape every arithmetic element shares (see decodeInputCoords/
// outRefCoords).
func arithEncode(code string, a *element.ArithBase, trailing ...string) (string, []string, bool) {
	n := a.PostCount() - 2
	params := make([]string, 0, 2+n+len(trailing))
	params = append(params, strconv.Itoa(n))
	for i := 0; i < n; i++ {
		x, y := a.PostCoord(i)
		params = append(params, fmt.Sprintf("%d:%d", x, y))
	}
	params = append(params, a.OutputName, strconv.Itoa(a.Priority))
	params = append(params, trailing...)
	return code, params, true
}
