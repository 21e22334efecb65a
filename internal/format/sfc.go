package format

import (
	"fmt"
	"strings"

	"github.com/johnnewto/circuitjs1-sub006/internal/element"
	"github.com/johnnewto/circuitjs1-sub006/internal/simerr"
)

// SFCDocument is a decoded stock-flow text document (spec §6.4). Unlike
// the flat circuit format, each block maps onto its own slice/map rather
// than a single Elements list, since @matrix/@equations/@parameters are
// structurally distinct and a consumer (internal/engine) typically wants
// to wire them up in a particular order (parameters and hints first,
// then equations and Godley tables, which may reference them by name).
type SFCDocument struct {
	Timestep     float64
	DisplayUnits string

	GodleyTables []*element.GodleyTable
	Equations    []*element.Equation
	Parameters   map[string]float64
	Hints        map[string]string
	ScopeRequests []string

	CircuitElements []element.Element
}

// IsSFC reports whether text looks like the SFC format rather than the
// flat circuit format (spec §6.4: "Auto-detected by the presence of any
// @block keyword").
func IsSFC(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "@") {
			return true
		}
	}
	return false
}

// LoadSFC decodes an SFC document. Blocks are decoded in file order;
// equations and Godley flows look parameter names up when evaluated, not
// when compiled, so @parameters may come before or after them.
func LoadSFC(text string, ctx DecodeContext) (*SFCDocument, []error, error) {
	doc := &SFCDocument{
		Parameters: map[string]float64{},
		Hints:      map[string]string{},
	}
	var warnings []error

	lines := strings.Split(text, "\n")
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			i++
		case strings.HasPrefix(line, "@init"):
			end := findEnd(lines, i+1, "@end")
			if err := decodeInitBlock(lines[i+1:end], doc); err != nil {
				return nil, warnings, simerr.Parse("@init block: %v", err)
			}
			i = end + 1
		case strings.HasPrefix(line, "@matrix"):
			end := findEnd(lines, i+1, "@end_matrix")
			name := strings.TrimSpace(strings.TrimPrefix(line, "@matrix"))
			gt, err := decodeMatrixBlock(name, lines[i+1:end], ctx)
			if err != nil {
				warnings = append(warnings, simerr.Parse("@matrix %s: %v", name, err))
			} else {
				doc.GodleyTables = append(doc.GodleyTables, gt)
			}
			i = end + 1
		case strings.HasPrefix(line, "@equations"):
			end := findEnd(lines, i+1, "@end")
			eqs, errs := decodeEquationsBlock(lines[i+1:end], ctx)
			doc.Equations = append(doc.Equations, eqs...)
			warnings = append(warnings, errs...)
			i = end + 1
		case strings.HasPrefix(line, "@parameters"):
			end := findEnd(lines, i+1, "@end")
			if err := decodeParametersBlock(lines[i+1:end], doc); err != nil {
				warnings = append(warnings, simerr.Parse("@parameters block: %v", err))
			}
			i = end + 1
		case strings.HasPrefix(line, "@hints"):
			end := findEnd(lines, i+1, "@end")
			decodeHintsBlock(lines[i+1:end], doc)
			i = end + 1
		case strings.HasPrefix(line, "@scope"):
			name := strings.TrimSpace(strings.TrimPrefix(line, "@scope"))
			if name != "" {
				doc.ScopeRequests = append(doc.ScopeRequests, name)
			}
			i++
		case strings.HasPrefix(line, "@circuit"):
			end := findEnd(lines, i+1, "@end")
			for lineNo, raw := range lines[i+1 : end] {
				l := strings.TrimSpace(raw)
				if l == "" || strings.HasPrefix(l, "%") {
					continue
				}
				e, err := decodeElementLine(l, ctx)
				if err != nil {
					warnings = append(warnings, simerr.Parse("@circuit line %d: %v", lineNo+1, err))
					continue
				}
				doc.CircuitElements = append(doc.CircuitElements, e)
			}
			i = end + 1
		default:
			i++
		}
	}
	return doc, warnings, nil
}

// findEnd scans forward from start for a trimmed line equal to marker,
// returning len(lines) if the block is unterminated (treated as running
// to end of file rather than erroring, so a truncated file still yields
// whatever was decodable).
func findEnd(lines []string, start int, marker string) int {
	for i := start; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == marker {
			return i
		}
	}
	return len(lines)
}

func decodeInitBlock(lines []string, doc *SFCDocument) error {
	for _, raw := range lines {
		k, v, ok := splitColonLine(raw)
		if !ok {
			continue
		}
		switch k {
		case "timestep":
			dt, err := parseFloat(v)
			if err != nil {
				return fmt.Errorf("timestep: %v", err)
			}
			doc.Timestep = dt
		case "units":
			doc.DisplayUnits = v
		}
	}
	return nil
}

func splitColonLine(raw string) (key, value string, ok bool) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return "", "", false
	}
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func decodeParametersBlock(lines []string, doc *SFCDocument) error {
	for _, raw := range lines {
		k, v, ok := splitColonLine(raw)
		if !ok {
			continue
		}
		f, err := parseFloat(v)
		if err != nil {
			return fmt.Errorf("%s: %v", k, err)
		}
		doc.Parameters[k] = f
	}
	return nil
}

func decodeHintsBlock(lines []string, doc *SFCDocument) {
	for _, raw := range lines {
		k, v, ok := splitColonLine(raw)
		if !ok {
			continue
		}
		doc.Hints[k] = v
	}
}

// decodeEquationsBlock reads "name ~ expr" or "name = expr" lines (spec
// §6.4). Both separators compile identically; "~" is SFC's own flow-style
// notation and "=" the more conventional one, kept as two spellings of
// the same thing rather than two different element shapes.
func decodeEquationsBlock(lines []string, ctx DecodeContext) ([]*element.Equation, []error) {
	var eqs []*element.Equation
	var errs []error
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := "="
		idx := strings.Index(line, "=")
		tildeIdx := strings.Index(line, "~")
		if tildeIdx >= 0 && (idx < 0 || tildeIdx < idx) {
			sep = "~"
			idx = tildeIdx
		}
		if idx < 0 {
			errs = append(errs, fmt.Errorf("equation line %q: missing %q/%q", line, "=", "~"))
			continue
		}
		name := strings.TrimSpace(line[:idx])
		formula := strings.TrimSpace(line[idx+len(sep):])
		// SFC equations have no canvas position; [0,0] posts are fine since
		// Equation's only electrical footprint is its own voltage source,
		// never a shared node other elements connect to (unless an
		// @circuit block's element is later wired to it by name via the
		// registry/Resolver, which happens out of band here).
		eq, err := element.NewEquation([]int{0, 0}, []int{0, 0}, ctx.Registry, name, 0, formula, ctx.Resolver)
		if err != nil {
			errs = append(errs, fmt.Errorf("equation %s: %v", name, err))
			continue
		}
		eqs = append(eqs, eq)
	}
	return eqs, errs
}

// decodeMatrixBlock reads a Godley table: "stock <name> <priority>
// <initial>" declaration lines, followed by a markdown-style pipe table
// whose header row names the declared stocks and whose body rows are
// "| <flow label> | <expr or blank>... |", one cell per stock column, in
// declaration order.
func decodeMatrixBlock(name string, lines []string, ctx DecodeContext) (*element.GodleyTable, error) {
	gt := element.NewGodleyTable(ctx.Registry, ctx.Resolver)
	type stockDecl struct {
		name     string
		priority int
		initial  float64
	}
	var stocks []stockDecl
	var header []string
	flows := map[string][]string{} // stock name -> formulas accumulated across body rows

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "stock ") {
			f := strings.Fields(line)
			if len(f) < 4 {
				return nil, fmt.Errorf("malformed stock declaration %q", line)
			}
			prio, err := parseInt(f[2])
			if err != nil {
				return nil, err
			}
			init, err := parseFloat(f[3])
			if err != nil {
				return nil, err
			}
			stocks = append(stocks, stockDecl{name: f[1], priority: prio, initial: init})
			continue
		}
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := splitPipeRow(line)
		if isSeparatorRow(cells) {
			continue
		}
		if header == nil {
			header = cells[1:] // first column is always the row label
			continue
		}
		if len(cells) < 2 {
			continue
		}
		for ci, col := range header {
			if ci+1 >= len(cells) {
				break
			}
			expr := strings.TrimSpace(cells[ci+1])
			if expr == "" {
				continue
			}
			flows[col] = append(flows[col], expr)
		}
	}

	if len(stocks) == 0 {
		return nil, fmt.Errorf("%s: no stock declarations", name)
	}
	for _, s := range stocks {
		if _, err := gt.AddStock(s.name, s.priority, s.initial, flows[s.name]); err != nil {
			return nil, fmt.Errorf("stock %s: %v", s.name, err)
		}
	}
	return gt, nil
}

func splitPipeRow(line string) []string {
	trimmed := strings.Trim(line, "|")
	parts := strings.Split(trimmed, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}

// ExportSFC re-serializes an SFCDocument. Godley tables round-trip their
// stock declarations and flow values; a stock's flows are written as one
// cell holding their parenthesized sum, so they reload as a single flow.
func ExportSFC(doc *SFCDocument) string {
	var b strings.Builder
	b.WriteString("@init\n")
	fmt.Fprintf(&b, "timestep: %s\n", fstr(doc.Timestep))
	if doc.DisplayUnits != "" {
		fmt.Fprintf(&b, "units: %s\n", doc.DisplayUnits)
	}
	b.WriteString("@end\n")

	if len(doc.Parameters) > 0 {
		b.WriteString("@parameters\n")
		for k, v := range doc.Parameters {
			fmt.Fprintf(&b, "%s: %s\n", k, fstr(v))
		}
		b.WriteString("@end\n")
	}

	if len(doc.Hints) > 0 {
		b.WriteString("@hints\n")
		for k, v := range doc.Hints {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
		b.WriteString("@end\n")
	}

	for _, eq := range doc.Equations {
		b.WriteString("@equations\n")
		fmt.Fprintf(&b, "%s = %s\n", eq.OutputName, eq.Expr.Source())
		b.WriteString("@end\n")
	}

	for i, gt := range doc.GodleyTables {
		fmt.Fprintf(&b, "@matrix table%d\n", i)
		for _, s := range gt.Stocks {
			fmt.Fprintf(&b, "stock %s %d %s\n", s.Name, s.Priority, fstr(s.Initial))
		}
		b.WriteString("|  |")
		for _, s := range gt.Stocks {
			fmt.Fprintf(&b, " %s |", s.Name)
		}
		b.WriteString("\n| flows |")
		for _, s := range gt.Stocks {
			toks := make([]string, len(s.Flows))
			for fi, fl := range s.Flows {
				toks[fi] = "(" + fl.Source() + ")"
			}
			fmt.Fprintf(&b, " %s |", strings.Join(toks, " + "))
		}
		b.WriteString("\n@end_matrix\n")
	}

	for _, name := range doc.ScopeRequests {
		fmt.Fprintf(&b, "@scope %s\n", name)
	}

	if len(doc.CircuitElements) > 0 {
		b.WriteString("@circuit\n")
		for _, e := range doc.CircuitElements {
			line, ok := encodeElement(e)
			if ok {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		b.WriteString("@end\n")
	}
	return b.String()
}
