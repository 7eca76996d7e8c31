package systems

import "github.com/pthm-cable/combatcore/components"

// NavGrid is a fixed-cell-size walkability grid over a rectangular
// map, seeded by sampling 5 points per cell against a generic
// Obstacles check.
type NavGrid struct {
	walkable []bool
	cellSize float32
	cols     int
	rows     int
	mapW     float32
	mapH     float32
}

// NewNavGrid builds a grid of cols x rows cells covering
// [0,mapW]x[0,mapH] and seeds each cell's walkability by sampling its
// four corners and center against obstacles.
func NewNavGrid(cols, rows int, cellSize float32, obstacles Obstacles) *NavGrid {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	g := &NavGrid{
		walkable: make([]bool, cols*rows),
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		mapW:     float32(cols) * cellSize,
		mapH:     float32(rows) * cellSize,
	}
	for gy := 0; gy < rows; gy++ {
		for gx := 0; gx < cols; gx++ {
			g.walkable[gy*cols+gx] = sampleCellWalkable(gx, gy, cellSize, obstacles)
		}
	}
	return g
}

func sampleCellWalkable(gx, gy int, cellSize float32, obstacles Obstacles) bool {
	if obstacles == nil {
		return true
	}
	x0 := float32(gx) * cellSize
	y0 := float32(gy) * cellSize
	x1 := x0 + cellSize
	y1 := y0 + cellSize
	cx := x0 + cellSize/2
	cy := y0 + cellSize/2
	samples := [5]components.Position{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: cx, Y: cy},
	}
	for _, p := range samples {
		if obstacles.IsBlocked(p) {
			return false
		}
	}
	return true
}

// Cols and Rows expose the grid's dimensions.
func (g *NavGrid) Cols() int { return g.cols }
func (g *NavGrid) Rows() int { return g.rows }

// InBounds reports whether a grid cell coordinate is within the map.
func (g *NavGrid) InBounds(gx, gy int) bool {
	return gx >= 0 && gx < g.cols && gy >= 0 && gy < g.rows
}

// IsWalkable reports whether a grid cell is walkable. Off-grid cells are
// never walkable.
func (g *NavGrid) IsWalkable(gx, gy int) bool {
	if !g.InBounds(gx, gy) {
		return false
	}
	return g.walkable[gy*g.cols+gx]
}

// IsWalkableWorld reports whether the cell containing the world position
// is walkable.
func (g *NavGrid) IsWalkableWorld(pos components.Position) bool {
	gx, gy := g.WorldToGrid(pos)
	return g.IsWalkable(gx, gy)
}

// SetWalkable updates a single cell's walkability. Off-grid coordinates
// are ignored.
func (g *NavGrid) SetWalkable(gx, gy int, walkable bool) {
	if !g.InBounds(gx, gy) {
		return
	}
	g.walkable[gy*g.cols+gx] = walkable
}

// WorldToGrid converts a world position to grid coordinates.
func (g *NavGrid) WorldToGrid(pos components.Position) (gx, gy int) {
	return int(pos.X / g.cellSize), int(pos.Y / g.cellSize)
}

// GridToWorld converts grid coordinates to the world-space center of
// that cell.
func (g *NavGrid) GridToWorld(gx, gy int) components.Position {
	return components.Position{X: (float32(gx) + 0.5) * g.cellSize, Y: (float32(gy) + 0.5) * g.cellSize}
}

// CellSize returns the grid's fixed cell size.
func (g *NavGrid) CellSize() float32 { return g.cellSize }
