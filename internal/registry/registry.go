// Package registry implements the double/triple-buffered computed-value
// map of spec §4.7: the mechanism that lets non-MNA table elements (SFC
// stocks, arithmetic elements) publish scalars without caring about
// element iteration order.
package registry

import "sort"

// masterEntry tracks which element currently "owns" a computed-value name
// under the master-table priority rule of spec §4.7.
type masterEntry struct {
	ownerID  int
	priority int
	seq      int // registration order, used to break priority ties
}

// Registry holds the three named buffers: current (read during doStep),
// pending (written during doStep), and converged (read by display/scope
// surfaces after a timestep converges).
type Registry struct {
	current   map[string]float64
	pending   map[string]float64
	converged map[string]float64
	live      map[string]bool // markComputedThisStep bookkeeping
	masters   map[string]masterEntry
	seqCounter int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		current:   map[string]float64{},
		pending:   map[string]float64{},
		converged: map[string]float64{},
		live:      map[string]bool{},
		masters:   map[string]masterEntry{},
	}
}

// Reset clears all buffers and master registrations, e.g. on engine
// reset() or a topology change.
func (r *Registry) Reset() {
	r.current = map[string]float64{}
	r.pending = map[string]float64{}
	r.converged = map[string]float64{}
	r.live = map[string]bool{}
	r.masters = map[string]masterEntry{}
	r.seqCounter = 0
}

// Set writes name into the pending buffer, but only if the calling
// element (ownerID) is the current master for that name at the given
// priority — the conflict-resolution rule of spec §4.7. Call
// RegisterMaster once per element per topology generation before calling
// Set in the same timestep.
func (r *Registry) Set(ownerID int, name string, value float64) {
	if m, ok := r.masters[name]; ok && m.ownerID != ownerID {
		return
	}
	r.pending[name] = value
}

// RegisterMaster attempts to claim name for ownerID at priority. Higher
// priority wins; ties are broken by first registrant (spec §4.7
// default priority is 5, range 0-100).
func (r *Registry) RegisterMaster(ownerID int, name string, priority int) {
	existing, ok := r.masters[name]
	if !ok {
		r.masters[name] = masterEntry{ownerID: ownerID, priority: priority, seq: r.seqCounter}
		r.seqCounter++
		return
	}
	if existing.ownerID == ownerID {
		existing.priority = priority
		r.masters[name] = existing
		return
	}
	if priority > existing.priority {
		r.masters[name] = masterEntry{ownerID: ownerID, priority: priority, seq: r.seqCounter}
		r.seqCounter++
	}
}

// MasterOf reports which element id currently drives name, if any.
func (r *Registry) MasterOf(name string) (int, bool) {
	m, ok := r.masters[name]
	if !ok {
		return 0, false
	}
	return m.ownerID, true
}

// Get reads the current buffer, returning ok=false if name has never been
// committed.
func (r *Registry) Get(name string) (float64, bool) {
	v, ok := r.current[name]
	return v, ok
}

// GetDefault reads the current buffer, returning def if absent.
func (r *Registry) GetDefault(name string, def float64) float64 {
	if v, ok := r.current[name]; ok {
		return v
	}
	return def
}

// GetConverged reads the converged buffer, the one display/scope readers
// see (spec §4.7, §6.1 computed_value).
func (r *Registry) GetConverged(name string) (float64, bool) {
	v, ok := r.converged[name]
	return v, ok
}

// MarkComputedThisStep records that name was written at least once during
// the current step, for diagnostics/tests.
func (r *Registry) MarkComputedThisStep(name string) {
	r.live[name] = true
}

// CommitPendingToCurrent moves pending -> current. Called once per
// timestep after every element's doStep has run for every subiteration
// (spec §3 invariant: "no intra-subiteration visibility of new writes").
func (r *Registry) CommitPendingToCurrent() {
	for k, v := range r.pending {
		r.current[k] = v
	}
	r.pending = map[string]float64{}
	r.live = map[string]bool{}
}

// CommitCurrentToConverged moves current -> converged, called once the
// solver loop has declared the timestep converged.
func (r *Registry) CommitCurrentToConverged() {
	for k, v := range r.current {
		r.converged[k] = v
	}
}

// Names returns the sorted set of names present in current, for
// deterministic iteration in tests and exporters.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.current))
	for k := range r.current {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
