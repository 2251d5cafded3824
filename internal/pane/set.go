package pane

// Side identifies which half of the dual-pane layout a Pane occupies.
type Side int

const (
	Left Side = iota
	Right
)

// Set is the two-pane container the input router dispatches navigation
// and selection actions against.
type Set struct {
	Panes  [2]*Pane
	active Side
}

// NewSet builds a two-pane set from already-constructed panes, left active.
func NewSet(left, right *Pane) *Set {
	return &Set{Panes: [2]*Pane{left, right}}
}

// Active returns the currently focused pane.
func (s *Set) Active() *Pane { return s.Panes[s.active] }

// Inactive returns the pane that is not focused, the conventional
// "other pane" destination for copy/move operations.
func (s *Set) Inactive() *Pane { return s.Panes[1-s.active] }

// ActiveSide reports which side is active.
func (s *Set) ActiveSide() Side { return s.active }

// SwapActive switches focus to the other pane.
func (s *Set) SwapActive() { s.active = 1 - s.active }
