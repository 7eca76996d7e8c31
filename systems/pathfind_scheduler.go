package systems

import (
	"container/heap"

	"github.com/pthm-cable/combatcore/components"
)

// PathCallback receives the outcome of an async path request. ok is
// false for both a dropped (timed out / queue-full) and an unreachable
// request: both edge cases collapse to the same null callback at this
// layer.
type PathCallback func(waypoints []components.Position, ok bool)

type pathRequest struct {
	id         int64
	start, end components.Position
	priority   int
	enqueued   int64 // tick
	callback   PathCallback
	index      int
}

// requestHeap orders by priority descending, then by enqueue tick
// ascending (oldest-first among equal priority).
type requestHeap []*pathRequest

func (h requestHeap) Len() int { return len(h) }
func (h requestHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].enqueued < h[j].enqueued
}
func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *requestHeap) Push(x any) {
	r := x.(*pathRequest)
	r.index = len(*h)
	*h = append(*h, r)
}
func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}

type pathCacheEntry struct {
	waypoints []components.Position
	expiresAt int64
}

func roundedEndpointKey(p components.Position, quantum float32) [2]int32 {
	return [2]int32{int32(p.X / quantum), int32(p.Y / quantum)}
}

type pathCacheKey struct {
	sx, sy, ex, ey int32
}

// maxPendingRequests caps the deferred-request queue; pushing past it
// evicts the oldest lowest-priority request with a null callback.
const maxPendingRequests = 256

// Scheduler runs async pathfinding: a priority queue drained within a
// per-tick time budget, a round-endpoint path cache, and
// walkability-change cache invalidation.
type Scheduler struct {
	planner *AStarPlanner

	queue        requestHeap
	nextID       int64
	timeoutTicks int64

	cache        map[pathCacheKey]*pathCacheEntry
	cacheTicks   int64
	cacheQuantum float32

	maxPerTickBudget int // max number of FindPath solves per Advance call
}

// NewScheduler builds a scheduler over planner. timeoutTicks is how
// long (in ticks) a queued request may wait before being dropped with
// a null callback. cacheTicks is how long a cached path stays valid,
// in ticks. maxPerTickBudget approximates a per-frame calculation time
// budget by capping how many solves run per Advance call, since
// wall-clock timing would reintroduce nondeterminism the tick driver
// forbids.
func NewScheduler(planner *AStarPlanner, timeoutTicks, cacheTicks int64, maxPerTickBudget int) *Scheduler {
	if maxPerTickBudget < 1 {
		maxPerTickBudget = 1
	}
	return &Scheduler{
		planner:          planner,
		timeoutTicks:     timeoutTicks,
		cache:            make(map[pathCacheKey]*pathCacheEntry),
		cacheTicks:       cacheTicks,
		cacheQuantum:     planner.grid.CellSize(),
		maxPerTickBudget: maxPerTickBudget,
	}
}

func cacheKeyFor(start, end components.Position, quantum float32) pathCacheKey {
	a := roundedEndpointKey(start, quantum)
	b := roundedEndpointKey(end, quantum)
	return pathCacheKey{sx: a[0], sy: a[1], ex: b[0], ey: b[1]}
}

// FindSync runs A* immediately, consulting and populating the cache
// first: two consecutive identical calls return paths with equal
// waypoints within the cache's validity window.
func (s *Scheduler) FindSync(start, end components.Position, tick int64) ([]components.Position, bool) {
	key := cacheKeyFor(start, end, s.cacheQuantum)
	if e, ok := s.cache[key]; ok && tick <= e.expiresAt {
		return e.waypoints, true
	}
	waypoints, ok := s.planner.FindPath(start, end)
	if !ok {
		return nil, false
	}
	s.cache[key] = &pathCacheEntry{waypoints: waypoints, expiresAt: tick + s.cacheTicks}
	return waypoints, true
}

// Request enqueues an async path request and returns its id. A full
// queue sheds its oldest lowest-priority request first, dropping it
// with a null callback.
func (s *Scheduler) Request(start, end components.Position, priority int, tick int64, callback PathCallback) int64 {
	if s.queue.Len() >= maxPendingRequests {
		s.evictWorst()
	}
	s.nextID++
	heap.Push(&s.queue, &pathRequest{
		id: s.nextID, start: start, end: end, priority: priority,
		enqueued: tick, callback: callback,
	})
	return s.nextID
}

func (s *Scheduler) evictWorst() {
	worst := -1
	for i, r := range s.queue {
		if worst < 0 {
			worst = i
			continue
		}
		w := s.queue[worst]
		if r.priority < w.priority || (r.priority == w.priority && r.enqueued < w.enqueued) {
			worst = i
		}
	}
	if worst < 0 {
		return
	}
	dropped := heap.Remove(&s.queue, worst).(*pathRequest)
	if dropped.callback != nil {
		dropped.callback(nil, false)
	}
}

// Advance drains up to maxPerTickBudget requests from the queue,
// dropping any whose age exceeds timeoutTicks with a null callback
// before it is ever solved.
func (s *Scheduler) Advance(tick int64) {
	solved := 0
	for s.queue.Len() > 0 && solved < s.maxPerTickBudget {
		req := heap.Pop(&s.queue).(*pathRequest)
		if tick-req.enqueued > s.timeoutTicks {
			if req.callback != nil {
				req.callback(nil, false)
			}
			continue
		}
		waypoints, ok := s.FindSync(req.start, req.end, tick)
		if req.callback != nil {
			req.callback(waypoints, ok)
		}
		solved++
	}
}

// QueueLen reports how many requests are still pending.
func (s *Scheduler) QueueLen() int { return s.queue.Len() }

// MarkWalkable updates the grid and invalidates every cached path
// whose waypoints pass within invalidationRadius of pos.
func (s *Scheduler) MarkWalkable(pos components.Position, walkable bool, invalidationRadius float32) {
	gx, gy := s.planner.grid.WorldToGrid(pos)
	s.planner.grid.SetWalkable(gx, gy, walkable)

	radiusSq := invalidationRadius * invalidationRadius
	for key, entry := range s.cache {
		for _, wp := range entry.waypoints {
			dx := wp.X - pos.X
			dy := wp.Y - pos.Y
			if dx*dx+dy*dy <= radiusSq {
				delete(s.cache, key)
				break
			}
		}
	}
}
