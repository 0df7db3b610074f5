package eventqueue

import (
	"container/heap"
	"errors"
	"sort"
	"sync"

	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/timing"
)

// ErrEmptyQueue is returned when taking from an empty queue. Directors treat
// it as the natural end of a run, never as a failure.
var ErrEmptyQueue = errors.New("event queue is empty")

// Queue is a min-heap of events. It is safe for concurrent use, although a
// queue belongs to exactly one director.
type Queue struct {
	sync.Mutex
	events  eventHeap
	nextSeq uint64
}

// New creates an empty queue.
func New() *Queue {
	q := new(Queue)
	q.events = make(eventHeap, 0)
	heap.Init(&q.events)

	return q
}

// Put inserts e and returns it with its sequence number assigned.
func (q *Queue) Put(e Event) Event {
	q.Lock()
	defer q.Unlock()

	q.nextSeq++
	e.Seq = q.nextSeq
	heap.Push(&q.events, e)

	return e
}

// TakeSmallest removes and returns the smallest event.
func (q *Queue) TakeSmallest() (Event, error) {
	q.Lock()
	defer q.Unlock()

	if len(q.events) == 0 {
		return Event{}, ErrEmptyQueue
	}

	return heap.Pop(&q.events).(Event), nil
}

// Peek returns the smallest event without removing it.
func (q *Queue) Peek() (Event, error) {
	q.Lock()
	defer q.Unlock()

	if len(q.events) == 0 {
		return Event{}, ErrEmptyQueue
	}

	return q.events[0], nil
}

// PeekTime returns the time of the smallest event, or timing.Infinity.
func (q *Queue) PeekTime() timing.Time {
	q.Lock()
	defer q.Unlock()

	if len(q.events) == 0 {
		return timing.Infinity
	}

	return q.events[0].Tag.Time
}

// PeekTag returns the tag of the smallest event. The boolean is false if the
// queue is empty.
func (q *Queue) PeekTag() (timing.Tag, bool) {
	q.Lock()
	defer q.Unlock()

	if len(q.events) == 0 {
		return timing.Tag{Time: timing.Infinity}, false
	}

	return q.events[0].Tag, true
}

// TakeBatch removes every event for the same actor at the same tag as
// first. The events come back in queue order.
func (q *Queue) TakeBatch(first Event) []Event {
	return q.remove(func(e Event) bool {
		return e.Actor == first.Actor && e.Tag.Compare(first.Tag) == 0
	})
}

// Cancel removes every event of a and returns how many were removed.
func (q *Queue) Cancel(a actor.Actor) int {
	return len(q.remove(func(e Event) bool { return e.Actor == a }))
}

// RemoveIf removes every event matching pred.
func (q *Queue) RemoveIf(pred func(Event) bool) []Event {
	return q.remove(pred)
}

func (q *Queue) remove(pred func(Event) bool) []Event {
	q.Lock()
	defer q.Unlock()

	var removed []Event

	kept := q.events[:0]

	for _, e := range q.events {
		if pred(e) {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}

	for i := len(kept); i < len(q.events); i++ {
		q.events[i] = Event{}
	}

	q.events = kept

	if len(removed) > 0 {
		heap.Init(&q.events)
		sort.Slice(removed, func(i, j int) bool {
			return removed[i].Less(removed[j])
		})
	}

	return removed
}

// Len returns the number of events.
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()

	return len(q.events)
}

// Snapshot returns a sorted copy of the events.
func (q *Queue) Snapshot() []Event {
	q.Lock()
	defer q.Unlock()

	events := make([]Event, len(q.events))
	copy(events, q.events)
	sort.Slice(events, func(i, j int) bool { return events[i].Less(events[j]) })

	return events
}

// Clear drops every event. Sequence numbers keep counting up.
func (q *Queue) Clear() {
	q.Lock()
	defer q.Unlock()

	for i := range q.events {
		q.events[i] = Event{}
	}

	q.events = q.events[:0]
}

type eventHeap []Event

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	return h[i].Less(h[j])
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(Event))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = Event{}
	*h = old[0 : n-1]

	return e
}
