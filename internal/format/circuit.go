// Package format implements the text serialization surface of spec §6.3
// and §6.4: the flat one-line-per-element circuit dump format and the
// block-structured stock-flow (SFC) format. Grounded on
// other_examples/1d68fd01_RuiCat-circuit__circuit.go.go's Circuit.Load/
// Export — a line-oriented scanner that tokenizes a dump-type code plus
// post coordinates, then hands the remaining fields to a per-element
// decoder — adapted here from that repo's virtual-dispatch CirLoad/
// CirExport methods to a small dispatch table keyed by dump-type code,
// since this module's element.Element implementations don't carry their
// own text-codec methods.
package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/johnnewto/circuitjs1-sub006/internal/element"
	"github.com/johnnewto/circuitjs1-sub006/internal/expr"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
	"github.com/johnnewto/circuitjs1-sub006/internal/schedule"
	"github.com/johnnewto/circuitjs1-sub006/internal/simerr"
)

// Header is the circuit's first "$ ..." line (spec §6.3).
type Header struct {
	SimSpeed     int
	Dt           float64
	CurrentSpeed float64
	Flags        int
	VoltageRange float64
}

// DefaultHeader matches what a freshly-created circuit would export.
func DefaultHeader() Header {
	return Header{SimSpeed: 1, Dt: 5e-5, CurrentSpeed: 1, Flags: 0, VoltageRange: 5}
}

// Document is a fully decoded circuit text file: everything needed to
// reconstruct both the element list and a byte-faithful re-export.
type Document struct {
	Header   Header
	Elements []element.Element
	Schedule *schedule.Scheduler
	Comments []string // opaque "%" lines that aren't an ActionSchedule section, preserved verbatim
}

// DecodeContext supplies the collaborators a handful of element kinds
// need at load time but don't carry in their text line (spec §6.2 "third
// party adds an element"): the computed-value registry every arithmetic
// element publishes through, and the expression resolver Equation/ODE
// elements evaluate named references against.
type DecodeContext struct {
	Registry *registry.Registry
	Resolver expr.Resolver
}

// unescape reverses the \s \\ \n escaping spec §6.3 mandates for literal
// spaces, backslashes and newlines inside a parameter token.
func unescape(tok string) string {
	var b strings.Builder
	for i := 0; i < len(tok); i++ {
		if tok[i] == '\\' && i+1 < len(tok) {
			switch tok[i+1] {
			case 's':
				b.WriteByte(' ')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(tok[i])
	}
	return b.String()
}

// escape is unescape's inverse, applied to every exported parameter
// token.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, " ", `\s`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func parseFloat(tok string) (float64, error) { return strconv.ParseFloat(tok, 64) }
func parseInt(tok string) (int, error)       { v, err := strconv.Atoi(tok); return v, err }

// Load decodes a circuit text document (spec §6.3). Unknown dump-type
// codes are skipped with a warning appended to the returned *simerr.Error
// slice rather than aborting the load, preserving forward compatibility
// per §6.3's explicit contract; a non-nil error return is used for a
// malformed header and for any line of a known kind that fails to decode
// (too few fields, or bad parameters).
func Load(text string, ctx DecodeContext) (*Document, []error, error) {
	doc := &Document{Header: DefaultHeader(), Schedule: schedule.New()}
	var warnings []error

	lines := strings.Split(text, "\n")
	inSchedule := false
	for lineNo, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "$ "):
			h, err := decodeHeader(line)
			if err != nil {
				return nil, warnings, simerr.Parse("line %d: %v", lineNo+1, err)
			}
			doc.Header = h
		case strings.HasPrefix(line, "% ActionSchedule") || strings.HasPrefix(line, "% AS"):
			inSchedule = true
			if strings.HasPrefix(line, "% AS ") {
				a, err := decodeAction(line[5:])
				if err != nil {
					warnings = append(warnings, simerr.Parse("line %d: %v", lineNo+1, err))
					continue
				}
				doc.Schedule.Add(a)
			}
		case strings.HasPrefix(line, "%"):
			if inSchedule && strings.HasPrefix(strings.TrimSpace(line), "% end") {
				inSchedule = false
				continue
			}
			doc.Comments = append(doc.Comments, line)
		default:
			e, err := decodeElementLine(line, ctx)
			if err != nil {
				if _, isUnknown := err.(unknownKindErr); isUnknown {
					warnings = append(warnings, simerr.Parse("line %d: %v", lineNo+1, err))
					continue
				}
				return nil, warnings, simerr.Parse("line %d: %v", lineNo+1, err)
			}
			doc.Elements = append(doc.Elements, e)
		}
	}
	return doc, warnings, nil
}

func decodeHeader(line string) (Header, error) {
	f := strings.Fields(line)
	if len(f) < 6 {
		return Header{}, fmt.Errorf("malformed header %q", line)
	}
	h := Header{}
	var err error
	if h.SimSpeed, err = parseInt(f[1]); err != nil {
		return h, err
	}
	if h.Dt, err = parseFloat(f[2]); err != nil {
		return h, err
	}
	if h.CurrentSpeed, err = parseFloat(f[3]); err != nil {
		return h, err
	}
	if h.Flags, err = parseInt(f[4]); err != nil {
		return h, err
	}
	if h.VoltageRange, err = parseFloat(f[5]); err != nil {
		return h, err
	}
	return h, nil
}

func decodeAction(rest string) (*schedule.Action, error) {
	f := strings.Fields(rest)
	if len(f) < 5 {
		return nil, fmt.Errorf("malformed action line %q", rest)
	}
	a := &schedule.Action{}
	t, err := parseFloat(f[0])
	if err != nil {
		return nil, err
	}
	a.Time = t
	switch f[1] {
	case "slider":
		a.Kind = schedule.Slider
	case "stop":
		a.Kind = schedule.Stop
	default:
		return nil, fmt.Errorf("unknown action kind %q", f[1])
	}
	a.Name = unescape(f[2])
	v, err := parseFloat(f[3])
	if err != nil {
		return nil, err
	}
	a.Value = v
	a.Enabled = f[4] == "1"
	return a, nil
}

type unknownKindErr struct{ code string }

func (e unknownKindErr) Error() string { return fmt.Sprintf("unknown dump type %q", e.code) }

// decodeElementLine parses "<dump_type> <x1> <y1> <x2> <y2> <flags>
// [<param>...]" (spec §6.3). Every element kind needs at least one post
// pair; kinds with fewer posts (Ground, LabeledNode) still consume both
// coordinate pairs on the line, ignoring the second.
func decodeElementLine(line string, ctx DecodeContext) (element.Element, error) {
	f := strings.Fields(line)
	if len(f) < 6 {
		return nil, fmt.Errorf("malformed element line %q", line)
	}
	code := f[0]
	coords := f[1:5]
	xi := make([]int, 4)
	for i, tok := range coords {
		v, err := parseInt(tok)
		if err != nil {
			return nil, fmt.Errorf("coordinate %d: %v", i, err)
		}
		xi[i] = v
	}
	x1, y1, x2, y2 := xi[0], xi[1], xi[2], xi[3]
	params := f[6:]
	for i := range params {
		params[i] = unescape(params[i])
	}

	dec, ok := decoders[code]
	if !ok {
		return nil, unknownKindErr{code}
	}
	return dec(x1, y1, x2, y2, params, ctx)
}

// Export re-serializes a Document as circuit text (spec §6.3, §8
// property 5: export_text(load_from_text(s)) == s modulo whitespace and
// ordering).
func Export(doc *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "$ %d %g %g %d %g\n", doc.Header.SimSpeed, doc.Header.Dt, doc.Header.CurrentSpeed, doc.Header.Flags, doc.Header.VoltageRange)
	for _, e := range doc.Elements {
		line, ok := encodeElement(e)
		if !ok {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, c := range doc.Comments {
		b.WriteString(c)
		b.WriteByte('\n')
	}
	if doc.Schedule != nil && len(doc.Schedule.Actions()) > 0 {
		b.WriteString("% ActionSchedule\n")
		for _, a := range doc.Schedule.Actions() {
			kind := "slider"
			if a.Kind == schedule.Stop {
				kind = "stop"
			}
			enabled := "0"
			if a.Enabled {
				enabled = "1"
			}
			fmt.Fprintf(&b, "%% AS %g %s %s %g %s\n", a.Time, kind, escape(a.Name), a.Value, enabled)
		}
		b.WriteString("% end\n")
	}
	return b.String()
}

func encodeElement(e element.Element) (string, bool) {
	code, params, ok := encodeByType(e)
	if !ok {
		return "", false
	}
	x1, y1, x2, y2 := postPair(e)
	fields := []string{code, strconv.Itoa(x1), strconv.Itoa(y1), strconv.Itoa(x2), strconv.Itoa(y2), "0"}
	for _, p := range params {
		fields = append(fields, escape(p))
	}
	return strings.Join(fields, " "), true
}

// postPair returns the coordinate pair a dump line's x1y1/x2y2 fields
// encode. Arithmetic elements (spec §4.5) anchor on their [out, ref]
// posts, which sit at the end of their post list, not the start — every
// other kind anchors on its first two posts (or repeats its only post).
func postPair(e element.Element) (int, int, int, int) {
	type outReffer interface{ OutRefCoords() (int, int, int, int) }
	if o, ok := e.(outReffer); ok {
		return o.OutRefCoords()
	}
	type coorder interface{ PostCoord(post int) (int, int) }
	c, ok := e.(coorder)
	if !ok {
		return 0, 0, 0, 0
	}
	x1, y1 := c.PostCoord(0)
	x2, y2 := x1, y1
	if e.PostCount() > 1 {
		x2, y2 = c.PostCoord(1)
	}
	return x1, y1, x2, y2
}

func fstr(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
func bstr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
