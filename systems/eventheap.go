package systems

import "container/heap"

// ScheduledFunc runs when a scheduled event's tick arrives.
type ScheduledFunc func()

type scheduledEvent struct {
	tick     int64
	seq      int64 // insertion order, breaks ties deterministically
	callback ScheduledFunc
	index    int
}

// eventHeap orders by tick ascending, then insertion order ascending
// (container/heap.Interface), the same min-heap idiom astar.go uses for
// its open set.
type eventHeap []*scheduledEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].tick != h[j].tick {
		return h[i].tick < h[j].tick
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *eventHeap) Push(x any) {
	e := x.(*scheduledEvent)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// EventScheduler is a tick-scheduled min-heap of deferred callbacks,
// keyed by absolute tick number, used for attack damage frames and
// pool-return timers. The container/heap
// usage is the same min-heap idiom astar.go uses for its open set,
// generalized from a pathfinding open-set to a general delayed-callback
// queue.
type EventScheduler struct {
	heap eventHeap
	seq  int64
}

// NewEventScheduler returns an empty scheduler.
func NewEventScheduler() *EventScheduler {
	return &EventScheduler{}
}

// ScheduleAt enqueues fn to run when Advance reaches tick.
func (s *EventScheduler) ScheduleAt(tick int64, fn ScheduledFunc) {
	s.seq++
	heap.Push(&s.heap, &scheduledEvent{tick: tick, seq: s.seq, callback: fn})
}

// ScheduleAfter enqueues fn to run delayTicks after now.
func (s *EventScheduler) ScheduleAfter(now, delayTicks int64, fn ScheduledFunc) {
	s.ScheduleAt(now+delayTicks, fn)
}

// Advance runs every scheduled callback whose tick is <= tick, in
// (tick, insertion-order) order, removing them from the heap.
func (s *EventScheduler) Advance(tick int64) {
	for s.heap.Len() > 0 && s.heap[0].tick <= tick {
		e := heap.Pop(&s.heap).(*scheduledEvent)
		e.callback()
	}
}

// Len reports how many events remain pending.
func (s *EventScheduler) Len() int { return s.heap.Len() }
