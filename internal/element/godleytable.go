package element

import (
	"github.com/johnnewto/circuitjs1-sub006/internal/expr"
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
)

// GodleyStock is one column of a GodleyTable: an accumulated quantity
// whose rate of change is the sum of its flow expressions (spec Glossary
// "Stock / Flow (SFC)").
type GodleyStock struct {
	Name     string
	Priority int
	Initial  float64
	Flows    []*expr.Expr

	acc       float64
	accStart  float64
	value     float64
	lastValue float64
	started   bool
}

// GodleyTable is a stock-flow accounting table: it owns no MNA posts or
// voltage sources — every stock is a pure registry computed value (spec
// Glossary: "stock ... modeled as a node voltage or computed value";
// this element always takes the computed-value form) — and is the
// element exercising the scenario in spec §7 Scenario E, where two
// GodleyTables both declare a stock named "Cash" and priority decides
// which one's writes reach the converged buffer.
type GodleyTable struct {
	Base
	ownerID  int
	Registry *registry.Registry
	Resolver expr.Resolver
	Stocks   []*GodleyStock

	dt float64
	t  float64
}

func NewGodleyTable(reg *registry.Registry, resolver expr.Resolver) *GodleyTable {
	return &GodleyTable{
		Base:     NewBase(0, 0, 0, nil, nil),
		ownerID:  allocOwnerID(),
		Registry: reg,
		Resolver: resolver,
	}
}

// AddStock compiles each flow formula and appends a new stock column.
func (g *GodleyTable) AddStock(name string, priority int, initial float64, flowFormulas []string) (*GodleyStock, error) {
	s := &GodleyStock{Name: name, Priority: priority, Initial: initial}
	for _, f := range flowFormulas {
		compiled, err := expr.Compile(f)
		if err != nil {
			return nil, err
		}
		s.Flows = append(s.Flows, compiled)
	}
	g.Stocks = append(g.Stocks, s)
	return s, nil
}

func (g *GodleyTable) Nonlinear() bool { return true }

func (g *GodleyTable) SetTimeStep(dt float64) { g.dt = dt }
func (g *GodleyTable) SetTime(t float64)      { g.t = t }

func (g *GodleyTable) Stamp(_ *mna.Assembler) {
	if g.Registry == nil {
		return
	}
	for _, s := range g.Stocks {
		g.Registry.RegisterMaster(g.ownerID, s.Name, s.Priority)
	}
}

func (g *GodleyTable) stockResolver(current *GodleyStock) expr.Resolver {
	return stockResolverFn(func(name string) (float64, bool) {
		if name == current.Name {
			return current.value, true
		}
		for _, s := range g.Stocks {
			if s.Name == name {
				return s.value, true
			}
		}
		if g.Resolver != nil {
			return g.Resolver.Resolve(name)
		}
		return 0, false
	})
}

type stockResolverFn func(name string) (float64, bool)

func (f stockResolverFn) Resolve(name string) (float64, bool) { return f(name) }

func (g *GodleyTable) StartIteration() {
	for _, s := range g.Stocks {
		if !s.started {
			s.acc = s.Initial
			s.started = true
		}
		s.accStart = s.acc
	}
}

func (g *GodleyTable) DoStep(_ *mna.Assembler) {
	for _, s := range g.Stocks {
		ctx := &expr.Context{T: g.t, Dt: g.dt, Resolver: g.stockResolver(s)}
		sum := 0.0
		for _, f := range s.Flows {
			sum += f.Eval(ctx)
		}
		s.lastValue = s.value
		if g.dt > 0 {
			s.value = s.accStart + g.dt*sum
		} else {
			s.value = s.accStart
		}
		if g.Registry != nil {
			g.Registry.Set(g.ownerID, s.Name, s.value)
		}
	}
}

func (g *GodleyTable) StepFinished() {
	for _, s := range g.Stocks {
		s.acc = s.value
		for _, f := range s.Flows {
			f.Commit()
		}
	}
}

func (g *GodleyTable) CheckConverged() bool {
	for _, s := range g.Stocks {
		if !Converged(s.lastValue, s.value) {
			return false
		}
	}
	return true
}
