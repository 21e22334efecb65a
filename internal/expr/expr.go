package expr

// Class is the row-expression classification of spec §4.6/§4.9, used to
// minimize matrix size.
type Class int

const (
	ClassAlias Class = iota
	ClassConstant
	ClassLinear
	ClassDynamic
)

func (c Class) String() string {
	switch c {
	case ClassAlias:
		return "alias"
	case ClassConstant:
		return "constant"
	case ClassLinear:
		return "linear"
	default:
		return "dynamic"
	}
}

// Expr is a compiled expression: an AST plus its row classification and
// the bookkeeping needed to commit stateful nodes at step_finished.
type Expr struct {
	root       Node
	stateful   []statefulNode
	class      Class
	aliasName  string
	linCoef    map[string]float64
	linConst   float64
	refs       []string
	src        string
}

// Compile parses src once (spec §4.6: "Pre-compile every expression at
// load time") and classifies it per spec §4.6.
func Compile(src string) (*Expr, error) {
	root, stateful, err := parseExpr(src)
	if err != nil {
		return nil, err
	}
	e := &Expr{root: root, stateful: stateful, src: src}
	e.refs = collectRefs(root)
	e.classify()
	return e, nil
}

// Source returns the original formula text Compile parsed, so a caller
// re-serializing an Equation/ODE element doesn't need to keep its own
// copy alongside the compiled *Expr.
func (e *Expr) Source() string { return e.src }

// Eval evaluates the expression against ctx. Safe to call multiple times
// per timestep (Newton subiterations) without corrupting integrate/diff/
// lag history — see Commit.
func (e *Expr) Eval(ctx *Context) float64 { return e.root.Eval(ctx) }

// Commit advances every stateful node's committed value to its most
// recent pending evaluation. Call exactly once per timestep, from
// step_finished, after the subiteration loop has converged.
func (e *Expr) Commit() {
	for _, s := range e.stateful {
		s.Commit()
	}
}

// Class reports the compile-time classification (spec §4.9).
func (e *Expr) Class() Class { return e.class }

// AliasTarget is valid when Class() == ClassAlias: the bare node/computed
// name this expression aliases.
func (e *Expr) AliasTarget() string { return e.aliasName }

// LinearTerms is valid when Class() == ClassLinear: the constant
// coefficient of each referenced name, plus a constant offset, such that
// value = offset + sum(coef[name] * resolve(name)).
func (e *Expr) LinearTerms() (offset float64, coef map[string]float64) {
	return e.linConst, e.linCoef
}

// References lists every named identifier the expression touches
// (excluding "t"), used to defer linear stamping until all referenced
// nodes exist (spec §4.6 "deferred stamping until all referenced nodes
// exist", §9 Open Question 4).
func (e *Expr) References() []string { return e.refs }

func collectRefs(n Node) []string {
	seen := map[string]bool{}
	var out []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *identNode:
			if !seen[v.name] {
				seen[v.name] = true
				out = append(out, v.name)
			}
		case *unaryNode:
			walk(v.x)
		case *binaryNode:
			walk(v.l)
			walk(v.r)
		case *callNode:
			for _, a := range v.args {
				walk(a)
			}
		case *integrateNode:
			walk(v.x)
		case *diffNode:
			walk(v.x)
		case *lagNode:
			walk(v.x)
			walk(v.tau)
		}
	}
	walk(n)
	return out
}

// classify implements the Alias/Constant/Linear/Dynamic decision tree of
// spec §4.6.
func (e *Expr) classify() {
	if len(e.stateful) > 0 {
		e.class = ClassDynamic
		return
	}
	if id, ok := e.root.(*identNode); ok {
		e.class = ClassAlias
		e.aliasName = id.name
		return
	}
	if len(e.refs) == 0 {
		if hasTime(e.root) {
			e.class = ClassDynamic
			return
		}
		e.class = ClassConstant
		e.linConst = e.root.Eval(&Context{})
		return
	}
	if coef, offset, ok := linearize(e.root, 1.0); ok {
		e.class = ClassLinear
		e.linCoef = coef
		e.linConst = offset
		return
	}
	e.class = ClassDynamic
}

func hasTime(n Node) bool {
	switch v := n.(type) {
	case timeNode:
		return true
	case *unaryNode:
		return hasTime(v.x)
	case *binaryNode:
		return hasTime(v.l) || hasTime(v.r)
	case *callNode:
		for _, a := range v.args {
			if hasTime(a) {
				return true
			}
		}
	}
	return false
}

// linearize attempts to decompose n (scaled by factor) into a sum of
// coef[name]*name plus a constant offset, where coefficients are
// themselves constant (no identifier) subtrees. Returns ok=false for
// anything non-linear (products of two variable subtrees, division by a
// variable, non-additive functions, t).
func linearize(n Node, factor float64) (map[string]float64, float64, bool) {
	switch v := n.(type) {
	case *numberNode:
		return map[string]float64{}, factor * v.v, true
	case timeNode:
		return nil, 0, false
	case *identNode:
		return map[string]float64{v.name: factor}, 0, true
	case *unaryNode:
		f := factor
		if v.neg {
			f = -factor
		}
		return linearize(v.x, f)
	case *binaryNode:
		switch v.op {
		case opAdd:
			c1, o1, ok1 := linearize(v.l, factor)
			c2, o2, ok2 := linearize(v.r, factor)
			if !ok1 || !ok2 {
				return nil, 0, false
			}
			return mergeCoef(c1, c2), o1 + o2, true
		case opSub:
			c1, o1, ok1 := linearize(v.l, factor)
			c2, o2, ok2 := linearize(v.r, -factor)
			if !ok1 || !ok2 {
				return nil, 0, false
			}
			return mergeCoef(c1, c2), o1 + o2, true
		case opMul:
			if isConstSubtree(v.l) {
				k := v.l.Eval(&Context{})
				return linearize(v.r, factor*k)
			}
			if isConstSubtree(v.r) {
				k := v.r.Eval(&Context{})
				return linearize(v.l, factor*k)
			}
			return nil, 0, false
		case opDiv:
			if isConstSubtree(v.r) {
				k := v.r.Eval(&Context{})
				if k == 0 {
					return nil, 0, false
				}
				return linearize(v.l, factor/k)
			}
			return nil, 0, false
		default:
			return nil, 0, false
		}
	case *callNode:
		return nil, 0, false
	}
	return nil, 0, false
}

func isConstSubtree(n Node) bool {
	switch v := n.(type) {
	case *numberNode:
		return true
	case *unaryNode:
		return isConstSubtree(v.x)
	case *binaryNode:
		return isConstSubtree(v.l) && isConstSubtree(v.r)
	default:
		return false
	}
}

func mergeCoef(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}
