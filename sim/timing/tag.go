package timing

import "fmt"

// A Tag is a model time plus a microstep. Events that happen at the same time
// are ordered by microstep.
type Tag struct {
	Time      Time
	Microstep int
}

// Compare orders tags by time first and then by microstep.
func (t Tag) Compare(o Tag) int {
	if c := t.Time.Compare(o.Time); c != 0 {
		return c
	}

	switch {
	case t.Microstep < o.Microstep:
		return -1
	case t.Microstep > o.Microstep:
		return 1
	}

	return 0
}

// Before reports whether t is strictly earlier than o.
func (t Tag) Before(o Tag) bool {
	return t.Compare(o) < 0
}

func (t Tag) String() string {
	return fmt.Sprintf("(%s, %d)", t.Time, t.Microstep)
}
