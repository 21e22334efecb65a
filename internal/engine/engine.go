// Package engine is the public facade of spec §6.1: it owns the
// topology/matrix/solver pipeline and every collaborator (registry,
// scheduler, scope, config), and is the only package a UI or CLI needs to
// import to drive a circuit. Grounded on the teacher's fem.Start/fem.Run/
// fem.End globals (fem/main.go) — gofem drives an entire simulation
// through three package-level entry points backed by package-level
// state; here that shrinks to one struct and its methods, since this
// module has no MPI ranks or multiple-stage input files to coordinate.
package engine

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/johnnewto/circuitjs1-sub006/internal/config"
	"github.com/johnnewto/circuitjs1-sub006/internal/element"
	"github.com/johnnewto/circuitjs1-sub006/internal/format"
	"github.com/johnnewto/circuitjs1-sub006/internal/mna"
	"github.com/johnnewto/circuitjs1-sub006/internal/registry"
	"github.com/johnnewto/circuitjs1-sub006/internal/schedule"
	"github.com/johnnewto/circuitjs1-sub006/internal/scope"
	"github.com/johnnewto/circuitjs1-sub006/internal/simerr"
	"github.com/johnnewto/circuitjs1-sub006/internal/solver"
	"github.com/johnnewto/circuitjs1-sub006/internal/topology"
)

// FrameReport is run_frame's return value (spec §6.1).
type FrameReport struct {
	Steps     int
	T         float64
	Converged bool
	Error     error
}

// Engine is the single-threaded simulator described in spec §5: every
// field below is touched only between or during run_frame calls, never
// concurrently.
type Engine struct {
	Config    *config.Config
	Registry  *registry.Registry
	Scheduler *schedule.Scheduler
	Scope     *scope.Scope
	Log       zerolog.Logger

	elems     []element.Element
	Topology  *topology.Result
	Assembler *mna.Assembler
	Solver    *solver.Solver

	Dt      float64
	Running bool

	isSFC    bool
	flatDoc  *format.Document
	sfcDoc   *format.SFCDocument
	lastText string
	loaded   bool

	loggedErrors map[string]bool
}

// New builds an Engine against cfg. Pass config.New() for defaults.
func New(cfg *config.Config) *Engine {
	return &Engine{
		Config:       cfg,
		Registry:     registry.New(),
		Scheduler:    schedule.New(),
		Scope:        scope.New(),
		Log:          zerolog.Nop(),
		loggedErrors: map[string]bool{},
	}
}

// engineResolver is the expr.Resolver every Equation/ODE/GodleyTable flow
// formula resolves named references against: labeled nodes first (live
// solved voltage), then the computed-value registry's current buffer,
// then scheduler-assigned slider parameters (spec §4.6 "named references
// resolving against labeled nodes or the computed-value registry").
type engineResolver struct{ eng *Engine }

func (r *engineResolver) Resolve(name string) (float64, bool) {
	e := r.eng
	if e.Topology != nil && e.Assembler != nil {
		if node, ok := e.Topology.LabeledNodes[name]; ok {
			return e.Assembler.NodeVoltage(node), true
		}
	}
	if e.Registry != nil {
		if v, ok := e.Registry.Get(name); ok {
			return v, true
		}
	}
	if e.Scheduler != nil {
		if v, ok := e.Scheduler.Params[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// LoadFromText decodes text (auto-detecting the flat circuit format of
// spec §6.3 versus the SFC block format of spec §6.4 via format.IsSFC),
// replaces the current circuit, and runs a fresh topology analysis. The
// loaded circuit starts paused; call SetRunning(true) to start it.
func (e *Engine) LoadFromText(text string) error {
	e.Registry.Reset()
	ctx := format.DecodeContext{Registry: e.Registry, Resolver: &engineResolver{eng: e}}

	if format.IsSFC(text) {
		doc, warnings, err := format.LoadSFC(text, ctx)
		if err != nil {
			return err
		}
		e.logWarnings(warnings)

		elems := make([]element.Element, 0, len(doc.GodleyTables)+len(doc.Equations)+len(doc.CircuitElements))
		for _, gt := range doc.GodleyTables {
			elems = append(elems, gt)
		}
		for _, eq := range doc.Equations {
			elems = append(elems, eq)
		}
		elems = append(elems, doc.CircuitElements...)

		e.isSFC = true
		e.sfcDoc = doc
		e.flatDoc = nil
		e.elems = elems
		e.Dt = doc.Timestep
		e.Scheduler = schedule.New()
		for k, v := range doc.Parameters {
			e.Scheduler.Params[k] = v
		}
	} else {
		doc, warnings, err := format.Load(text, ctx)
		if err != nil {
			return err
		}
		e.logWarnings(warnings)

		e.isSFC = false
		e.flatDoc = doc
		e.sfcDoc = nil
		e.elems = doc.Elements
		e.Dt = doc.Header.Dt
		e.Scheduler = doc.Schedule
	}

	e.Running = false
	e.loggedErrors = map[string]bool{}
	e.lastText = text
	e.loaded = true
	return e.analyze(false)
}

func (e *Engine) logWarnings(warnings []error) {
	for _, w := range warnings {
		e.Log.Warn().Err(w).Msg("skipped element while loading circuit")
	}
}

// ExportText re-serializes whichever format was last loaded (spec §6.3/
// §6.4, §8 property 5). Returns "" if nothing has been loaded.
func (e *Engine) ExportText() string {
	switch {
	case e.isSFC && e.sfcDoc != nil:
		return format.ExportSFC(e.sfcDoc)
	case e.flatDoc != nil:
		return format.Export(e.flatDoc)
	default:
		return ""
	}
}

// analyze runs topology.Analyze over the current element list, pushes the
// resulting node/voltage-source/internal-node assignments back into each
// element, and rebuilds the matrix, assembler and solver. preserveTime
// keeps the existing solver's simulated time (an in-place topology change,
// e.g. a switch toggling per spec §4.5); a fresh load always starts at
// t=0.
func (e *Engine) analyze(preserveTime bool) error {
	view := make([]topology.Elemental, len(e.elems))
	for i, el := range e.elems {
		te, ok := el.(topology.Elemental)
		if !ok {
			return simerr.Topology("element %d does not implement the topology contract", i)
		}
		view[i] = te
	}

	policy := e.Config.TopologyGroundPolicy()
	res, err := topology.Analyze(view, policy)
	if err != nil {
		return err
	}

	for i, el := range e.elems {
		for p := 0; p < el.PostCount(); p++ {
			el.SetNode(p, res.PostNode[i][p])
		}
		for v := 0; v < el.VoltageSourceCount(); v++ {
			el.SetVoltageSource(v, res.VoltageSourceBase[i]+v)
		}
		for n := 0; n < el.InternalNodeCount(); n++ {
			el.SetInternalNode(n, res.InternalNodeBase[i]+n)
		}
	}

	size := res.NodeCount - 1 + res.TotalVoltageSources
	if size < 0 {
		size = 0
	}
	sys := mna.NewSystem(size)
	asm := mna.NewAssembler(sys, res.NodeCount, res.TotalVoltageSources)

	sv := solver.New(e.elems, asm, e.Registry)
	sv.MaxSubIterations = e.Config.SubiterationCap
	sv.Scheduler = e.Scheduler
	if policy == topology.ImplicitGroundVia1G {
		sv.ImplicitGroundNode = res.ImplicitGroundNode
	}
	if preserveTime && e.Solver != nil {
		sv.Time = e.Solver.Time
	}

	e.Topology = res
	e.Assembler = asm
	e.Solver = sv
	return nil
}

// Reanalyze re-runs topology analysis in place, preserving simulated
// time, for a caller that mutated an element returned by ElementMut in a
// way that changes the graph (spec §4.5: "switches that change conduction
// state ... raise the analyze flag, causing a fresh topology+stamp
// pass").
func (e *Engine) Reanalyze() error {
	return e.analyze(true)
}

// SetRunning starts or pauses the frame loop. Per spec §5, this is the
// only state run_frame reads at frame entry to decide whether to do
// anything at all.
func (e *Engine) SetRunning(running bool) { e.Running = running }

// Reset discards all element state by reloading the last text that was
// passed to LoadFromText — fresh element instances, empty registry
// buffers, t=0 — and schedules a fresh analysis (spec §5 "user 'reset'").
func (e *Engine) Reset() {
	if !e.loaded {
		return
	}
	if err := e.LoadFromText(e.lastText); err != nil {
		e.logOnce(err)
	}
}

// StepOnce runs one simulate_step(dt) using the loaded circuit's own
// timestep and samples every subscribed scope channel.
func (e *Engine) StepOnce() (solver.StepResult, error) {
	if e.Solver == nil {
		return solver.StepResult{}, simerr.Topology("engine: no circuit loaded")
	}
	res, err := e.Solver.Step(e.Dt)
	e.Scope.ObserveAll(e.readScope)
	e.Scope.Flush(e.Solver.Time)
	if err != nil {
		e.logOnce(err)
	}
	return res, err
}

// RunFrame runs up to config.SimSpeed steps, deferring the rest to the
// next frame once wallBudgetMs has elapsed (spec §5 "per-frame wall-clock
// budget ... excess steps are deferred to the next frame"). A halting
// error (anything but NonConvergenceWarning) stops the run and pauses the
// engine; non-convergence is reported but the frame loop continues.
func (e *Engine) RunFrame(wallBudgetMs int) FrameReport {
	report := FrameReport{Converged: true}
	if e.Solver != nil {
		report.T = e.Solver.Time
	}
	if !e.Running || e.Solver == nil {
		return report
	}

	start := time.Now()
	budget := time.Duration(wallBudgetMs) * time.Millisecond
	maxSteps := e.Config.SimSpeed
	if maxSteps <= 0 {
		maxSteps = 1
	}

	for report.Steps < maxSteps {
		if e.Scheduler != nil && e.Scheduler.StopRequested {
			e.Running = false
			break
		}
		if report.Steps > 0 && time.Since(start) >= budget {
			break
		}
		_, err := e.StepOnce()
		report.Steps++
		report.T = e.Solver.Time
		if err != nil {
			report.Error = err
			report.Converged = false
			if isHalting(err) {
				e.Running = false
				break
			}
		}
	}
	return report
}

// isHalting classifies err per spec §7's propagation policy: topology,
// analysis, matrix and parse errors halt; non-convergence does not.
func isHalting(err error) bool {
	var se *simerr.Error
	if errors.As(err, &se) {
		return se.Kind() != simerr.KindNonConvergence
	}
	return true
}

// logOnce implements spec §7's "single error banner per distinct error":
// the same error string is logged at most once per load.
func (e *Engine) logOnce(err error) {
	key := err.Error()
	if e.loggedErrors[key] {
		return
	}
	e.loggedErrors[key] = true
	e.Log.Error().Err(err).Msg("simulation error")
}

// Elements returns the live element list, indexed the same way
// ElementMut expects (spec §6.1 "engine.elements()").
func (e *Engine) Elements() []element.Element { return e.elems }

// ElementMut returns the element at id for in-place editing (spec §6.1
// "engine.element_mut(id)"). id is simply the element's position in
// Elements(), the only identity this module assigns — there is no
// separate ElementId arena since elements are never removed individually,
// only replaced wholesale by LoadFromText/Reset.
func (e *Engine) ElementMut(id int) (element.Element, bool) {
	if id < 0 || id >= len(e.elems) {
		return nil, false
	}
	return e.elems[id], true
}

// NodeVoltage resolves nameOrIdx against the labeled-node map first, then
// as a literal node index, and reads the solved voltage (spec §6.1
// "engine.node_voltage(name_or_idx)").
func (e *Engine) NodeVoltage(nameOrIdx string) (float64, bool) {
	if e.Assembler == nil {
		return 0, false
	}
	if e.Topology != nil {
		if node, ok := e.Topology.LabeledNodes[nameOrIdx]; ok {
			return e.Assembler.NodeVoltage(node), true
		}
	}
	if idx, err := strconv.Atoi(nameOrIdx); err == nil {
		if e.Topology == nil || idx < 0 || idx >= e.Topology.NodeCount {
			return 0, false
		}
		return e.Assembler.NodeVoltage(idx), true
	}
	return 0, false
}

// ComputedValue reads the converged buffer (spec §6.1
// "engine.computed_value(name)").
func (e *Engine) ComputedValue(name string) (float64, bool) {
	if e.Registry == nil {
		return 0, false
	}
	return e.Registry.GetConverged(name)
}

// SubscribeScope opens a scope channel (spec §6.1
// "engine.subscribe_scope(channel_spec)").
func (e *Engine) SubscribeScope(spec scope.Spec) *scope.Channel {
	return e.Scope.Subscribe(spec)
}

// nodeReader is the subset of element.Base's surface readScope needs to
// turn an "<element id>:<post>" scope target into a node id for current/
// power sampling, without widening element.Element.
type nodeReader interface {
	Node(post int) int
}

// readScope is the (target, kind) -> (value, ok) function scope.Scope's
// ObserveAll drives each frame. Voltage and value targets are a label or
// node index and a computed-value name respectively; current and power
// targets address a specific element post as "<element id>:<post>", since
// unlike voltages and computed values neither has its own namespace (spec
// §6.5 leaves the exact target addressing scheme to the engine).
func (e *Engine) readScope(target string, kind scope.Kind) (float64, bool) {
	switch kind {
	case scope.Voltage:
		return e.NodeVoltage(target)
	case scope.Value:
		return e.ComputedValue(target)
	case scope.Current:
		el, post, ok := e.resolveElementPost(target)
		if !ok {
			return 0, false
		}
		return el.CurrentIntoNode(post), true
	case scope.Power:
		el, post, ok := e.resolveElementPost(target)
		if !ok {
			return 0, false
		}
		nr, ok := el.(nodeReader)
		if !ok || e.Assembler == nil {
			return 0, false
		}
		v := e.Assembler.NodeVoltage(nr.Node(post))
		return v * el.CurrentIntoNode(post), true
	default:
		return 0, false
	}
}

func (e *Engine) resolveElementPost(target string) (element.Element, int, bool) {
	idStr, postStr, found := strings.Cut(target, ":")
	if !found {
		return nil, 0, false
	}
	id, err1 := strconv.Atoi(idStr)
	post, err2 := strconv.Atoi(postStr)
	if err1 != nil || err2 != nil {
		return nil, 0, false
	}
	el, ok := e.ElementMut(id)
	if !ok || post < 0 || post >= el.PostCount() {
		return nil, 0, false
	}
	return el, post, true
}
