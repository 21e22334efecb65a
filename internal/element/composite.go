package element

import "fmt"

// PostCoord is a simple (x, y) pair, used here instead of the two parallel
// int slices Base keeps internally because Composite deals in whole
// coordinate pairs when remapping a template onto an instantiation site.
type PostCoord struct{ X, Y int }

// CompositeTemplate is a reusable subcircuit definition (spec §4.5
// "composite.go (sub-circuit recursion)"), grounded on the teacher's
// composite-behavior pattern of composing several simpler element
// behaviors into one reusable unit (ele/porous's solid-liquid-gas.go),
// adapted here from continuum-mechanics phase composition to circuit
// subcircuit expansion: a template's children are flattened into the
// parent circuit's element list at load time, with boundary ports
// translated onto the instantiation site's coordinates so the topology
// analyzer's wire closure (spec §4.1 step 1) merges them with whatever
// the caller wired to those ports.
type CompositeTemplate struct {
	Name  string
	Ports []PostCoord // template-local coordinates of each boundary port, in port order
	Build func() []Element
}

// Instantiate builds a fresh copy of the template's children at the
// given boundary coordinates, recursively expanding any nested
// composites Build returns (spec "sub-circuit recursion"). len(ports)
// must equal len(t.Ports).
func (t *CompositeTemplate) Instantiate(ports []PostCoord) ([]Element, error) {
	if len(ports) != len(t.Ports) {
		return nil, &compositeArityError{t.Name, len(t.Ports), len(ports)}
	}
	children := t.Build()
	var out []Element
	for _, c := range children {
		if nested, ok := c.(*CompositeInstance); ok {
			expanded, err := nested.Template.Instantiate(nested.Ports)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
			continue
		}
		out = append(out, c)
	}
	// Remap every port coordinate that coincides with one of the
	// template's declared boundary coordinates onto the instantiation
	// site's coordinate, so the parent circuit's wires attach correctly.
	for _, c := range out {
		for post := 0; post < c.PostCount(); post++ {
			pc, ok := c.(interface{ PostCoord(int) (int, int) })
			if !ok {
				continue
			}
			x, y := pc.PostCoord(post)
			for i, tp := range t.Ports {
				if x == tp.X && y == tp.Y {
					if setter, ok := c.(interface{ SetPostCoord(int, int, int) }); ok {
						setter.SetPostCoord(post, ports[i].X, ports[i].Y)
					}
				}
			}
		}
	}
	return out, nil
}

// CompositeInstance is a placeholder Element a template's Build function
// can return to nest another template inside it; Instantiate expands it
// away before returning, so it never reaches the topology analyzer.
type CompositeInstance struct {
	Base
	Template *CompositeTemplate
	Ports    []PostCoord
}

type compositeArityError struct {
	name     string
	expected int
	got      int
}

func (e *compositeArityError) Error() string {
	return fmt.Sprintf("element: composite %s expects %d ports, got %d", e.name, e.expected, e.got)
}
