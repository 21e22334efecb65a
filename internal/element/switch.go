package element

// Switch toggles between wire-equivalent (closed) and open. Flipping it
// changes the result of IsWireEquivalent, which the topology analyzer
// only consults during Analyze — so the engine must re-run topology
// analysis after a toggle; ConsumeDirty reports that an unconsumed toggle is
// pending (spec §4.5 "switches").
type Switch struct {
	Base
	closed bool
	dirty  bool
}

func NewSwitch(x1, y1, x2, y2 int, closed bool) *Switch {
	return &Switch{Base: NewBase(2, 0, 0, []int{x1, x2}, []int{y1, y2}), closed: closed}
}

func (s *Switch) IsWireEquivalent() bool { return s.closed }

func (s *Switch) Closed() bool { return s.closed }

func (s *Switch) SetClosed(closed bool) {
	if closed == s.closed {
		return
	}
	s.closed = closed
	s.dirty = true
}

// ConsumeDirty reports and clears whether this switch has toggled since
// the last topology analysis.
func (s *Switch) ConsumeDirty() bool {
	d := s.dirty
	s.dirty = false
	return d
}
