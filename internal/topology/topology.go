// Package topology analyzes the element/wire graph into node indices,
// voltage-source indices, and a ground reference, detecting the
// degeneracies spec §4.1 names. It is re-run whenever the engine's
// "analyze flag" is set (element add/delete/move, wire change, switch
// state change, label rename — spec §4.1 Rerun triggers).
package topology

import (
	"github.com/cpmech/gosl/chk"

	"github.com/johnnewto/circuitjs1-sub006/internal/simerr"
)

// GroundPolicy selects what happens when no element declares a ground
// post, per spec §6.6.
type GroundPolicy int

const (
	ImplicitGroundVia1G GroundPolicy = iota
	ExplicitGroundOnly
)

// ImplicitGroundResistance is the 1 GOhm path spec §4.1 step 2 describes.
const ImplicitGroundResistance = 1e9

// Elemental is the minimal view the analyzer needs of each circuit
// element; concrete element.Element implementations satisfy it
// structurally. Kept local to topology (rather than importing the
// element package) to avoid a dependency cycle — element.Assembler-facing
// methods live in a different interface.
type Elemental interface {
	PostCount() int
	PostCoord(post int) (x, y int)
	IsWireEquivalent() bool // shorts all of its posts together for closure
	IsGroundPost(post int) bool
	InternalNodeCount() int
	VoltageSourceCount() int
	LabeledNodeName() (name string, ok bool)
	IsReactive() ReactiveKind // none / capacitor / inductor, for loop checks
}

// ReactiveKind tags capacitive and inductive elements; Analyze does not
// consult it.
type ReactiveKind int

const (
	NotReactive ReactiveKind = iota
	Capacitive
	Inductive
)

// postKey identifies one post globally.
type postKey struct {
	elem int
	post int
}

// Result is the outcome of a successful Analyze call.
type Result struct {
	NodeCount         int // includes ground (node 0)
	VoltageSourceBase []int // per-element first global voltage-source index
	InternalNodeBase  []int // per-element first internal node index
	PostNode          [][]int // PostNode[elem][post] -> node index
	LabeledNodes      map[string]int
	ImplicitGroundNode int // 0 if a real ground post was found
	TotalVoltageSources int
}

// Analyze runs the wire-closure + node-numbering + pathology-detection
// pass of spec §4.1.
func Analyze(elems []Elemental, policy GroundPolicy) (*Result, error) {
	n := len(elems)
	if n == 0 {
		return &Result{NodeCount: 0}, nil
	}

	uf := newUnionFind()
	postCount := make([]int, n)
	for i, e := range elems {
		postCount[i] = e.PostCount()
		for p := 0; p < postCount[i]; p++ {
			uf.add(postKey{i, p})
		}
	}

	// coordinate coincidence
	coordOwner := map[[2]int]postKey{}
	for i, e := range elems {
		for p := 0; p < postCount[i]; p++ {
			x, y := e.PostCoord(p)
			k := [2]int{x, y}
			if owner, ok := coordOwner[k]; ok {
				uf.union(owner, postKey{i, p})
			} else {
				coordOwner[k] = postKey{i, p}
			}
		}
	}

	// wire-equivalent elements short all their posts together
	for i, e := range elems {
		if e.IsWireEquivalent() && postCount[i] > 1 {
			first := postKey{i, 0}
			for p := 1; p < postCount[i]; p++ {
				uf.union(first, postKey{i, p})
			}
		}
	}

	// labeled-node registry: first registrant of a name wins; later
	// elements with the same name are unioned to its representative post.
	labelRep := map[string]postKey{}
	labeledNodes := map[string]int{}
	for i, e := range elems {
		name, ok := e.LabeledNodeName()
		if !ok || name == "" {
			continue
		}
		rep := postKey{i, 0}
		if existing, seen := labelRep[name]; seen {
			uf.union(existing, rep)
		} else {
			labelRep[name] = rep
		}
	}

	// ground selection
	groundRep := postKey{-1, -1}
	haveGround := false
	for i, e := range elems {
		for p := 0; p < postCount[i]; p++ {
			if e.IsGroundPost(p) {
				k := postKey{i, p}
				if !haveGround {
					groundRep = k
					haveGround = true
				} else {
					uf.union(groundRep, k)
				}
			}
		}
	}
	if !haveGround && policy == ExplicitGroundOnly {
		return nil, simerr.Topology("no ground element found and ground_policy is explicit_only")
	}

	// assign node indices: ground's component (if any) is 0; others in
	// first-seen order starting at 1.
	nodeOf := map[postKey]int{} // union-find root -> node index
	nextNode := 1
	if haveGround {
		nodeOf[uf.find(groundRep)] = 0
	}
	implicitGroundNode := 0
	var firstNonGroundRoot = postKey{-1, -1}
	for i := range elems {
		for p := 0; p < postCount[i]; p++ {
			root := uf.find(postKey{i, p})
			if _, ok := nodeOf[root]; ok {
				continue
			}
			nodeOf[root] = nextNode
			if !haveGround && firstNonGroundRoot == (postKey{-1, -1}) {
				firstNonGroundRoot = root
				implicitGroundNode = nextNode
			}
			nextNode++
		}
	}
	if n > 0 && nextNode == 1 && !haveGround {
		// single isolated node and no ground declared: nothing to tie down,
		// still a valid (degenerate) zero-size system.
		implicitGroundNode = 0
	}

	postNode := make([][]int, n)
	for i := range elems {
		postNode[i] = make([]int, postCount[i])
		for p := 0; p < postCount[i]; p++ {
			postNode[i][p] = nodeOf[uf.find(postKey{i, p})]
		}
	}
	for name, rep := range labelRep {
		labeledNodes[name] = nodeOf[uf.find(rep)]
	}

	// internal nodes, one block per element, appended after post nodes
	internalBase := make([]int, n)
	for i, e := range elems {
		internalBase[i] = nextNode
		nextNode += e.InternalNodeCount()
	}

	// voltage-source global indices
	vsBase := make([]int, n)
	totalVS := 0
	for i, e := range elems {
		vsBase[i] = totalVS
		totalVS += e.VoltageSourceCount()
	}

	if err := detectPathologies(elems, postNode, postCount, totalVS); err != nil {
		return nil, err
	}

	return &Result{
		NodeCount:            nextNode,
		VoltageSourceBase:    vsBase,
		InternalNodeBase:     internalBase,
		PostNode:             postNode,
		LabeledNodes:         labeledNodes,
		ImplicitGroundNode:   implicitGroundNode,
		TotalVoltageSources:  totalVS,
	}, nil
}

// detectPathologies reports voltage-source loops only: a union-find over
// wire-equivalent elements and each source's posts 0 and 1 flags a source
// whose posts are already joined. Posts that merely share coordinates are
// not joined here. Capacitor loops and inductor/voltage-source pairings
// are not checked.
func detectPathologies(elems []Elemental, postNode [][]int, postCount []int, totalVS int) error {
	if totalVS == 0 {
		return nil
	}
	zuf := newUnionFind()
	for i, e := range elems {
		for p := 0; p < postCount[i]; p++ {
			zuf.add(postKey{i, p})
		}
		if e.IsWireEquivalent() {
			for p := 1; p < postCount[i]; p++ {
				zuf.union(postKey{i, 0}, postKey{i, p})
			}
		}
	}
	for i, e := range elems {
		if e.VoltageSourceCount() == 0 || postCount[i] < 2 {
			continue
		}
		a, b := postKey{i, 0}, postKey{i, 1}
		if zuf.connected(a, b) {
			return simerr.Analysis("voltage source loop without resistance at element %d", i)
		}
		zuf.union(a, b)
	}
	return nil
}

// panicIfOutOfRange mirrors the StampViolation contract: callers that
// index PostNode out of range have a programmer bug, not a user error.
func panicIfOutOfRange(elem, post, count int) {
	if post < 0 || post >= count {
		chk.Panic("topology: post %d out of range for element %d (count=%d)", post, elem, count)
	}
}
