package systems

import "github.com/pthm-cable/combatcore/components"

// NxThreeGrid tiles the world into N columns and 3 fixed rows; the row
// is chosen by floor((y+H/2)/(H/3)). Used by side-scrolling-band
// scenarios where horizontal resolution matters far more than
// vertical.
type NxThreeGrid struct {
	cols     int
	worldW   float32
	worldH   float32
	colWidth float32
	rowH     float32

	cells    map[int][]components.Handle // key = row*cols+col
	entities map[components.Handle]entityRecord
	batch    moveBatcher
	alive    AliveLookup
}

// NewNxThreeGrid creates a grid with the given column count over
// [0,worldW] x [-worldH/2, worldH/2].
func NewNxThreeGrid(cols int, worldW, worldH float32, updateIntervalSeconds float64, alive AliveLookup) *NxThreeGrid {
	if cols < 1 {
		cols = 1
	}
	return &NxThreeGrid{
		cols:     cols,
		worldW:   worldW,
		worldH:   worldH,
		colWidth: worldW / float32(cols),
		rowH:     worldH / 3,
		cells:    make(map[int][]components.Handle),
		entities: make(map[components.Handle]entityRecord),
		batch:    newMoveBatcher(updateIntervalSeconds),
		alive:    alive,
	}
}

func (g *NxThreeGrid) colRow(pos components.Position) (col, row int) {
	col = int(pos.X / g.colWidth)
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	row = int((pos.Y + g.worldH/2) / g.rowH)
	if row < 0 {
		row = 0
	} else if row > 2 {
		row = 2
	}
	return col, row
}

func (g *NxThreeGrid) idxOf(col, row int) int { return row*g.cols + col }

func (g *NxThreeGrid) addToCell(idx int, h components.Handle) { g.cells[idx] = append(g.cells[idx], h) }

func (g *NxThreeGrid) removeFromCell(idx int, h components.Handle) {
	list := g.cells[idx]
	for i, e := range list {
		if e == h {
			list[i] = list[len(list)-1]
			g.cells[idx] = list[:len(list)-1]
			return
		}
	}
}

func (g *NxThreeGrid) Register(h components.Handle, faction components.Faction, etype components.EntityType, pos components.Position) {
	if rec, ok := g.entities[h]; ok {
		g.removeFromCell(rec.cell, h)
	}
	col, row := g.colRow(pos)
	idx := g.idxOf(col, row)
	g.entities[h] = entityRecord{faction: faction, etype: etype, pos: pos, cell: idx}
	g.addToCell(idx, h)
}

func (g *NxThreeGrid) Unregister(h components.Handle) {
	rec, ok := g.entities[h]
	if !ok {
		delete(g.batch.pending, h)
		return
	}
	g.removeFromCell(rec.cell, h)
	delete(g.entities, h)
	delete(g.batch.pending, h)
}

func (g *NxThreeGrid) Move(h components.Handle, pos components.Position) {
	if _, ok := g.entities[h]; !ok {
		return
	}
	g.batch.enqueue(h, pos)
}

func (g *NxThreeGrid) Flush() {
	for h, pos := range g.batch.pending {
		rec, ok := g.entities[h]
		if !ok {
			continue
		}
		col, row := g.colRow(pos)
		newIdx := g.idxOf(col, row)
		if newIdx != rec.cell {
			g.removeFromCell(rec.cell, h)
			g.addToCell(newIdx, h)
			rec.cell = newIdx
		}
		rec.pos = pos
		g.entities[h] = rec
	}
	g.batch.pending = make(map[components.Handle]components.Position)
}

func (g *NxThreeGrid) Advance(dt float64) {
	if g.batch.advance(dt) {
		g.Flush()
	}
}

func (g *NxThreeGrid) matches(rec entityRecord, h components.Handle, opts QueryOptions) bool {
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

func (g *NxThreeGrid) collect(pos components.Position, radius float32, opts QueryOptions, limit int) []Hit {
	colRadius := int(radius/g.colWidth) + 1
	centerCol, _ := g.colRow(pos)
	radiusSq := radius * radius

	var hits []Hit
	for row := 0; row < 3; row++ {
		for dc := -colRadius; dc <= colRadius; dc++ {
			col := centerCol + dc
			if col < 0 || col >= g.cols {
				continue
			}
			idx := g.idxOf(col, row)
			for _, h := range g.cells[idx] {
				rec, ok := g.entities[h]
				if !ok || !g.matches(rec, h, opts) {
					continue
				}
				dx := rec.pos.X - pos.X
				dy := rec.pos.Y - pos.Y
				distSq := dx*dx + dy*dy
				if distSq > radiusSq {
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
	}
	return hits
}

func (g *NxThreeGrid) QueryRadius(pos components.Position, r float32, opts QueryOptions) []Hit {
	return g.collect(pos, r, opts, MaxQueryResults)
}

func (g *NxThreeGrid) QueryNearest(pos components.Position, opts QueryOptions) (Hit, bool) {
	searchRadius := opts.MaxDistance
	if searchRadius <= 0 {
		searchRadius = g.worldW
	}
	hits := g.collect(pos, searchRadius, opts, 0)
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

// QueryThreeColumns is Grid1D's query, not this variant's; it returns
// no hits.
func (g *NxThreeGrid) QueryThreeColumns(col int, opts QueryOptions) []Hit { return nil }

func (g *NxThreeGrid) PredictCollision(origin components.Position, dir components.Velocity, maxDist float32, opts QueryOptions) (Hit, bool) {
	candidates := g.collect(origin, maxDist, opts, 0)
	return predictRay(origin, dir, maxDist, opts.BeamRadius, candidates)
}

func (g *NxThreeGrid) FactionCountsAt(pos components.Position) map[components.Faction]int {
	col, row := g.colRow(pos)
	idx := g.idxOf(col, row)
	counts := make(map[components.Faction]int)
	for _, h := range g.cells[idx] {
		if rec, ok := g.entities[h]; ok {
			counts[rec.faction]++
		}
	}
	return counts
}
