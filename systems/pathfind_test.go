package systems

import (
	"math"
	"testing"

	"github.com/pthm-cable/combatcore/components"
)

// wallObstacles blocks a vertical line of world-space cells, matching
// the literal S4 scenario: a 20x20 grid with a wall at x=10 from y=2 to
// y=18 (inclusive), cellSize 1 for direct grid-to-cell correspondence.
type wallObstacles struct {
	cellSize   float32
	wallCol    int
	yFrom, yTo int
}

func (w wallObstacles) IsBlocked(pos components.Position) bool {
	gx := int(pos.X / w.cellSize)
	gy := int(pos.Y / w.cellSize)
	return gx == w.wallCol && gy >= w.yFrom && gy <= w.yTo
}

func TestAStarFindPathAroundWall(t *testing.T) {
	const cellSize = 1
	obstacles := wallObstacles{cellSize: cellSize, wallCol: 10, yFrom: 2, yTo: 18}
	grid := NewNavGrid(20, 20, cellSize, obstacles)
	planner := NewAStarPlanner(grid, true, true)

	start := grid.GridToWorld(0, 10)
	end := grid.GridToWorld(19, 10)

	path, ok := planner.FindPath(start, end)
	if !ok {
		t.Fatal("expected a path around the wall")
	}
	if len(path) < 2 {
		t.Fatalf("expected at least 2 waypoints, got %d", len(path))
	}

	var dist float64
	for i := 1; i < len(path); i++ {
		dx := float64(path[i].X - path[i-1].X)
		dy := float64(path[i].Y - path[i-1].Y)
		dist += math.Sqrt(dx*dx + dy*dy)
	}
	if dist <= 19*cellSize {
		t.Fatalf("expected path distance to exceed a straight 19-cell line (wall detour), got %f", dist)
	}
}

func TestAStarSmoothingReducesWaypoints(t *testing.T) {
	const cellSize = 1
	obstacles := wallObstacles{cellSize: cellSize, wallCol: 10, yFrom: 2, yTo: 18}
	grid := NewNavGrid(20, 20, cellSize, obstacles)
	raw := NewAStarPlanner(grid, true, false)
	smooth := NewAStarPlanner(grid, true, true)

	start := grid.GridToWorld(0, 10)
	end := grid.GridToWorld(19, 10)

	rawPath, ok := raw.FindPath(start, end)
	if !ok {
		t.Fatal("expected an unsmoothed path")
	}
	smoothed, ok := smooth.FindPath(start, end)
	if !ok {
		t.Fatal("expected a smoothed path")
	}
	if len(smoothed) >= len(rawPath) {
		t.Fatalf("expected smoothing to drop waypoints: smoothed %d vs raw %d", len(smoothed), len(rawPath))
	}
}

func TestSchedulerCachesIdenticalFindSync(t *testing.T) {
	grid := NewNavGrid(10, 10, 1, nil)
	planner := NewAStarPlanner(grid, true, true)
	sched := NewScheduler(planner, 600, 600, 4)

	start := grid.GridToWorld(0, 0)
	end := grid.GridToWorld(9, 9)

	p1, ok1 := sched.FindSync(start, end, 0)
	p2, ok2 := sched.FindSync(start, end, 1)
	if !ok1 || !ok2 {
		t.Fatal("expected both calls to succeed")
	}
	if len(p1) != len(p2) {
		t.Fatalf("expected cached path to be returned unchanged, got lengths %d and %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("expected identical waypoints at index %d", i)
		}
	}
}

func TestSchedulerDropsTimedOutRequests(t *testing.T) {
	grid := NewNavGrid(10, 10, 1, nil)
	planner := NewAStarPlanner(grid, true, true)
	sched := NewScheduler(planner, 5, 100, 4)

	var got []components.Position
	var gotOK bool
	called := false
	sched.Request(grid.GridToWorld(0, 0), grid.GridToWorld(9, 9), 0, 0, func(wp []components.Position, ok bool) {
		called = true
		got = wp
		gotOK = ok
	})

	sched.Advance(10) // well past the timeout of 5 ticks
	if !called {
		t.Fatal("expected the timed-out request's callback to fire")
	}
	if gotOK || got != nil {
		t.Fatal("expected a null result for a timed-out request")
	}
}

func TestMarkWalkableInvalidatesNearbyCache(t *testing.T) {
	grid := NewNavGrid(10, 10, 1, nil)
	// Smoothing off: the cached path keeps a waypoint in every cell it
	// crosses, so the changed middle cell is one of its waypoints.
	planner := NewAStarPlanner(grid, true, false)
	sched := NewScheduler(planner, 600, 600, 4)

	start := grid.GridToWorld(0, 5)
	end := grid.GridToWorld(9, 5)
	if _, ok := sched.FindSync(start, end, 0); !ok {
		t.Fatal("expected initial path to succeed")
	}

	mid := grid.GridToWorld(5, 5)
	sched.MarkWalkable(mid, false, 2)

	key := cacheKeyFor(start, end, sched.cacheQuantum)
	if _, stillCached := sched.cache[key]; stillCached {
		t.Fatal("expected the cache entry to be invalidated by a nearby walkability change")
	}
}
