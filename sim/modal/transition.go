package modal

import (
	"fmt"

	"github.com/sarchlab/tempora/sim/timing"
	"github.com/sarchlab/tempora/sim/token"
)

// GuardContext is what a guard sees when it is evaluated at the end of a
// firing of the current refinement.
type GuardContext struct {
	Mode string
	Tag  timing.Tag

	inputs  map[string]token.Token
	outputs map[string]token.Token
}

// Input returns the latest token that arrived at the modal model's input
// port during the current iteration.
func (g GuardContext) Input(port string) (token.Token, bool) {
	tok, ok := g.inputs[port]
	return tok, ok
}

// Output returns the latest token the refinement produced at the modal
// model's output port during the current iteration.
func (g GuardContext) Output(port string) (token.Token, bool) {
	tok, ok := g.outputs[port]
	return tok, ok
}

// InputInt is Input for integer tokens. It reports false if the port has no
// token or the token is not an integer.
func (g GuardContext) InputInt(port string) (int64, bool) {
	tok, ok := g.inputs[port]
	if !ok {
		return 0, false
	}

	v, err := tok.Int()
	if err != nil {
		return 0, false
	}

	return v, true
}

// A Guard decides whether a transition is enabled.
type Guard func(ctx GuardContext) bool

// Always is a guard that is always enabled.
func Always(GuardContext) bool {
	return true
}

// A Transition moves the modal model from one mode to another when its guard
// is enabled. Transitions out of a mode are tried in the order they were
// added.
type Transition struct {
	Name  string
	From  string
	To    string
	Guard Guard

	// Reset re-initializes the refinement of the destination mode on entry.
	Reset bool
}

func (t Transition) String() string {
	if t.Name != "" {
		return t.Name
	}

	return fmt.Sprintf("%s->%s", t.From, t.To)
}

// transitionCommit is the change request body that switches the mode.
type transitionCommit struct {
	d *Director
	t Transition
}

func (c *transitionCommit) Commit() error {
	return c.d.commit(c.t)
}
