package actor

import (
	"sort"
	"strings"
)

// ComputeDepths ranks the children of c so that an actor feeding another
// actor through a zero-delay connection gets a smaller depth. Connections
// out of a CausalityBreaker are ignored. Actors that are not ordered by any
// connection keep the order they were added in. A zero-delay cycle is a
// configuration error.
func ComputeDepths(c *Composite) error {
	children := c.children
	position := make(map[*Base]int, len(children))

	for i, a := range children {
		if b, ok := a.(binder); ok {
			position[b.base()] = i
		}
	}

	inDegree := make([]int, len(children))
	next := make([][]int, len(children))

	for _, e := range c.edges {
		from, okFrom := position[e.src.owner]
		to, okTo := position[e.dst.owner]

		if !okFrom || !okTo || breaksCausality(children[from]) {
			continue
		}

		next[from] = append(next[from], to)
		inDegree[to]++
	}

	ready := make([]int, 0, len(children))

	for i := range children {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	depth := 0

	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]

		c.model.setDepth(children[i], depth)
		depth++

		for _, j := range next[i] {
			inDegree[j]--
			if inDegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	if depth < len(children) {
		var cyclic []string

		for i, a := range children {
			if inDegree[i] > 0 {
				cyclic = append(cyclic, a.Name())
			}
		}

		return NewConfigurationError(c.FullName(),
			"zero-delay cycle through %s", strings.Join(cyclic, ", "))
	}

	return nil
}

func breaksCausality(a Actor) bool {
	cb, ok := a.(CausalityBreaker)
	return ok && cb.BreaksCausality()
}
