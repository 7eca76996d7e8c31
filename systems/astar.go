package systems

import (
	"container/heap"
	"math"

	"github.com/pthm-cable/combatcore/components"
)

// AStarPlanner computes paths over a NavGrid: a heap-based A* search
// with an exact octile heuristic, configurable 4-/8-neighborhood, and
// lower-h tie-break.
type AStarPlanner struct {
	grid          *NavGrid
	allowDiagonal bool
	smoothing     bool
	openHeap      *astarHeap
	cameFrom      map[int]int
	gScore        map[int]float32
	visited       map[int]bool
}

// NewAStarPlanner builds a planner over grid. allowDiagonal selects
// 8-neighborhood search when true, 4-neighborhood otherwise; smoothing
// drops redundant middle waypoints from reconstructed paths.
func NewAStarPlanner(grid *NavGrid, allowDiagonal, smoothing bool) *AStarPlanner {
	return &AStarPlanner{
		grid:          grid,
		allowDiagonal: allowDiagonal,
		smoothing:     smoothing,
		openHeap:      &astarHeap{},
		cameFrom:      make(map[int]int, 256),
		gScore:        make(map[int]float32, 256),
		visited:       make(map[int]bool, 256),
	}
}

type astarNode struct {
	id     int
	gx, gy int
	f, h   float32
	index  int
}

// astarHeap orders by f ascending, breaking ties toward lower h.
type astarHeap []*astarNode

func (h astarHeap) Len() int { return len(h) }
func (h astarHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].h < h[j].h
}
func (h astarHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *astarHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *astarHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[:n-1]
	return node
}

// octileHeuristic computes 14*min(dx,dy) + 10*|dx-dy|, matching the
// move costs below (10 for a cardinal step, 14 for a diagonal one).
func octileHeuristic(gx1, gy1, gx2, gy2 int) float32 {
	dx := gx2 - gx1
	if dx < 0 {
		dx = -dx
	}
	dy := gy2 - gy1
	if dy < 0 {
		dy = -dy
	}
	minD := dx
	if dy < minD {
		minD = dy
	}
	diff := dx - dy
	if diff < 0 {
		diff = -diff
	}
	return float32(14*minD + 10*diff)
}

var neighborOffsets4 = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
var neighborOffsets8 = [8][2]int{
	{-1, 0}, {1, 0}, {0, -1}, {0, 1},
	{-1, -1}, {1, -1}, {-1, 1}, {1, 1},
}

// FindPath searches from start to end in grid coordinates, returning
// world-space waypoints, or (nil, false) if unreachable or either
// endpoint is off-grid / non-walkable.
func (a *AStarPlanner) FindPath(start, end components.Position) ([]components.Position, bool) {
	sgx, sgy := a.grid.WorldToGrid(start)
	egx, egy := a.grid.WorldToGrid(end)
	if !a.grid.IsWalkable(sgx, sgy) || !a.grid.IsWalkable(egx, egy) {
		return nil, false
	}
	if sgx == egx && sgy == egy {
		return []components.Position{a.grid.GridToWorld(egx, egy)}, true
	}

	*a.openHeap = (*a.openHeap)[:0]
	for k := range a.cameFrom {
		delete(a.cameFrom, k)
	}
	for k := range a.gScore {
		delete(a.gScore, k)
	}
	for k := range a.visited {
		delete(a.visited, k)
	}

	cols := a.grid.cols
	startID := sgy*cols + sgx
	endID := egy*cols + egx

	a.gScore[startID] = 0
	heap.Push(a.openHeap, &astarNode{id: startID, gx: sgx, gy: sgy, f: octileHeuristic(sgx, sgy, egx, egy), h: octileHeuristic(sgx, sgy, egx, egy)})

	offsets := neighborOffsets4[:]
	if a.allowDiagonal {
		offsets = neighborOffsets8[:]
	}

	maxIterations := a.grid.cols * a.grid.rows
	iterations := 0
	for a.openHeap.Len() > 0 && iterations < maxIterations {
		iterations++
		current := heap.Pop(a.openHeap).(*astarNode)
		if a.visited[current.id] {
			continue
		}
		a.visited[current.id] = true
		if current.id == endID {
			return a.reconstructAndSmooth(startID, endID, cols), true
		}

		for i, off := range offsets {
			ngx, ngy := current.gx+off[0], current.gy+off[1]
			if !a.grid.IsWalkable(ngx, ngy) {
				continue
			}
			if i >= 4 {
				// diagonal: forbid corner-cutting
				if !a.grid.IsWalkable(current.gx+off[0], current.gy) || !a.grid.IsWalkable(current.gx, current.gy+off[1]) {
					continue
				}
			}
			neighborID := ngy*cols + ngx
			if a.visited[neighborID] {
				continue
			}
			moveCost := float32(10)
			if i >= 4 {
				moveCost = 14
			}
			tentativeG := a.gScore[current.id] + moveCost
			existingG, exists := a.gScore[neighborID]
			if exists && tentativeG >= existingG {
				continue
			}
			a.cameFrom[neighborID] = current.id
			a.gScore[neighborID] = tentativeG
			h := octileHeuristic(ngx, ngy, egx, egy)
			heap.Push(a.openHeap, &astarNode{id: neighborID, gx: ngx, gy: ngy, f: tentativeG + h, h: h})
		}
	}
	return nil, false
}

func (a *AStarPlanner) reconstructAndSmooth(startID, endID, cols int) []components.Position {
	var ids []int
	current := endID
	for current != startID {
		ids = append(ids, current)
		prev, ok := a.cameFrom[current]
		if !ok {
			break
		}
		current = prev
	}
	ids = append(ids, startID)

	path := make([]components.Position, len(ids))
	for i, id := range ids {
		gx := id % cols
		gy := id / cols
		path[len(ids)-1-i] = a.grid.GridToWorld(gx, gy)
	}
	if !a.smoothing {
		return path
	}
	return smoothPath(path, a.grid)
}

// smoothPath drops redundant middle waypoints whenever two non-adjacent
// waypoints have clear, step-sampled walkability between them.
func smoothPath(path []components.Position, grid *NavGrid) []components.Position {
	if len(path) <= 2 {
		return path
	}
	out := make([]components.Position, 0, len(path))
	out = append(out, path[0])
	anchor := 0
	for i := 2; i < len(path); i++ {
		if !walkableLOS(path[anchor], path[i], grid) {
			out = append(out, path[i-1])
			anchor = i - 1
		}
	}
	out = append(out, path[len(path)-1])
	return out
}

func walkableLOS(a, b components.Position, grid *NavGrid) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if dist < 1e-6 {
		return true
	}
	stepSize := grid.cellSize * 0.5
	steps := int(dist/stepSize) + 1
	dx /= dist
	dy /= dist
	for i := 0; i <= steps; i++ {
		p := components.Position{X: a.X + dx*stepSize*float32(i), Y: a.Y + dy*stepSize*float32(i)}
		if !grid.IsWalkableWorld(p) {
			return false
		}
	}
	return true
}
