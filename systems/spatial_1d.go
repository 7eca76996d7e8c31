package systems

import "github.com/pthm-cable/combatcore/components"

// Grid1D is a single row of N columns. QueryThreeColumns scans
// {col-1, col, col+1} and re-distances hits by true Euclidean world
// distance rather than grid distance, since a "column" is a wide band.
type Grid1D struct {
	cols     int
	worldW   float32
	colWidth float32

	cells    map[int][]components.Handle
	entities map[components.Handle]entityRecord
	batch    moveBatcher
	alive    AliveLookup
}

// NewGrid1D creates a single-row grid with the given column count over [0,worldW].
func NewGrid1D(cols int, worldW float32, updateIntervalSeconds float64, alive AliveLookup) *Grid1D {
	if cols < 1 {
		cols = 1
	}
	return &Grid1D{
		cols:     cols,
		worldW:   worldW,
		colWidth: worldW / float32(cols),
		cells:    make(map[int][]components.Handle),
		entities: make(map[components.Handle]entityRecord),
		batch:    newMoveBatcher(updateIntervalSeconds),
		alive:    alive,
	}
}

func (g *Grid1D) colOf(pos components.Position) int {
	col := int(pos.X / g.colWidth)
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	return col
}

// ColumnOf exposes the column index for a world position, used by the
// brain's three-column detection scan.
func (g *Grid1D) ColumnOf(pos components.Position) int { return g.colOf(pos) }

func (g *Grid1D) addToCell(idx int, h components.Handle) { g.cells[idx] = append(g.cells[idx], h) }

func (g *Grid1D) removeFromCell(idx int, h components.Handle) {
	list := g.cells[idx]
	for i, e := range list {
		if e == h {
			list[i] = list[len(list)-1]
			g.cells[idx] = list[:len(list)-1]
			return
		}
	}
}

func (g *Grid1D) Register(h components.Handle, faction components.Faction, etype components.EntityType, pos components.Position) {
	if rec, ok := g.entities[h]; ok {
		g.removeFromCell(rec.cell, h)
	}
	col := g.colOf(pos)
	g.entities[h] = entityRecord{faction: faction, etype: etype, pos: pos, cell: col}
	g.addToCell(col, h)
}

func (g *Grid1D) Unregister(h components.Handle) {
	rec, ok := g.entities[h]
	if !ok {
		delete(g.batch.pending, h)
		return
	}
	g.removeFromCell(rec.cell, h)
	delete(g.entities, h)
	delete(g.batch.pending, h)
}

func (g *Grid1D) Move(h components.Handle, pos components.Position) {
	if _, ok := g.entities[h]; !ok {
		return
	}
	g.batch.enqueue(h, pos)
}

func (g *Grid1D) Flush() {
	for h, pos := range g.batch.pending {
		rec, ok := g.entities[h]
		if !ok {
			continue
		}
		newCol := g.colOf(pos)
		if newCol != rec.cell {
			g.removeFromCell(rec.cell, h)
			g.addToCell(newCol, h)
			rec.cell = newCol
		}
		rec.pos = pos
		g.entities[h] = rec
	}
	g.batch.pending = make(map[components.Handle]components.Position)
}

func (g *Grid1D) Advance(dt float64) {
	if g.batch.advance(dt) {
		g.Flush()
	}
}

func (g *Grid1D) matches(rec entityRecord, h components.Handle, opts QueryOptions) bool {
	if opts.HasIgnore && h == opts.Ignore {
		return false
	}
	if !opts.matchesFaction(rec.faction) || !opts.matchesType(rec.etype) {
		return false
	}
	if opts.OnlyAlive && g.alive != nil && !g.alive.IsAlive(h) {
		return false
	}
	return true
}

func (g *Grid1D) hitsInColumns(pos components.Position, cols []int, opts QueryOptions, radius float32, limit int) []Hit {
	radiusSq := float32(-1)
	if radius >= 0 {
		radiusSq = radius * radius
	}
	seen := make(map[int]bool, len(cols))
	var hits []Hit
	for _, col := range cols {
		if col < 0 || col >= g.cols || seen[col] {
			continue
		}
		seen[col] = true
		for _, h := range g.cells[col] {
			rec, ok := g.entities[h]
			if !ok || !g.matches(rec, h, opts) {
				continue
			}
			dx := rec.pos.X - pos.X
			dy := rec.pos.Y - pos.Y
			distSq := dx*dx + dy*dy
			if radiusSq >= 0 && distSq > radiusSq {
				continue
			}
			if opts.MaxDistance > 0 && distSq > opts.MaxDistance*opts.MaxDistance {
				continue
			}
			hits = append(hits, Hit{Entity: h, Pos: rec.pos, Faction: rec.faction, Type: rec.etype, DX: dx, DY: dy, DistSq: distSq})
			if limit > 0 && len(hits) >= limit {
				return hits
			}
		}
	}
	return hits
}

func (g *Grid1D) QueryRadius(pos components.Position, r float32, opts QueryOptions) []Hit {
	colRadius := int(r/g.colWidth) + 1
	center := g.colOf(pos)
	var cols []int
	for dc := -colRadius; dc <= colRadius; dc++ {
		cols = append(cols, center+dc)
	}
	return g.hitsInColumns(pos, cols, opts, r, MaxQueryResults)
}

func (g *Grid1D) QueryNearest(pos components.Position, opts QueryOptions) (Hit, bool) {
	searchRadius := opts.MaxDistance
	if searchRadius <= 0 {
		searchRadius = g.worldW
	}
	hits := g.QueryRadius(pos, searchRadius, opts)
	best := Hit{}
	found := false
	for _, h := range hits {
		if !found || h.DistSq < best.DistSq {
			best = h
			found = true
		}
	}
	return best, found
}

// QueryThreeColumns scans {col-1, col, col+1}, re-distancing hits by true
// Euclidean distance from the column's center line.
func (g *Grid1D) QueryThreeColumns(col int, opts QueryOptions) []Hit {
	centerX := (float32(col) + 0.5) * g.colWidth
	centerPos := components.Position{X: centerX, Y: 0}
	cols := []int{col - 1, col, col + 1}
	return g.hitsInColumns(centerPos, cols, opts, -1, 0)
}

func (g *Grid1D) PredictCollision(origin components.Position, dir components.Velocity, maxDist float32, opts QueryOptions) (Hit, bool) {
	candidates := g.QueryRadius(origin, maxDist, opts)
	return predictRay(origin, dir, maxDist, opts.BeamRadius, candidates)
}

func (g *Grid1D) FactionCountsAt(pos components.Position) map[components.Faction]int {
	col := g.colOf(pos)
	counts := make(map[components.Faction]int)
	for _, h := range g.cells[col] {
		if rec, ok := g.entities[h]; ok {
			counts[rec.faction]++
		}
	}
	return counts
}
