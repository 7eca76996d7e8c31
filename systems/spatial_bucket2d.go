package systems

import (
	"math"

	"github.com/pthm-cable/combatcore/components"
)

// Bucket2DGrid tiles the world into square cells of size CellSize and
// scans ceil(r/CellSize) cells in each direction per query. The world is
// bounded and clamped at its edges rather than toroidal.
type Bucket2DGrid struct {
	cellSize float32
	cols     int
	rows     int
	width    float32
	height   float32

	cells    map[int][]components.Handle
	entities map[components.Handle]entityRecord
	batch    moveBatcher
	alive    AliveLookup
}

// NewBucket2DGrid creates a grid covering [0,width]x[0,height].
func NewBucket2DGrid(width, height, cellSize float32, updateIntervalSeconds float64, alive AliveLookup) *Bucket2DGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int(width/cellSize) + 1
	rows := int(height/cellSize) + 1
	return &Bucket2DGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		width:    width,
		height:   height,
		cells:    make(map[int][]components.Handle),
		entities: make(map[components.Handle]entityRecord),
		batch:    newMoveBatcher(updateIntervalSeconds),
		alive:    alive,
	}
}

func (g *Bucket2DGrid) cellOf(pos components.Position) (col, row, idx int) {
	col = int(pos.X / g.cellSize)
	row = int(pos.Y / g.cellSize)
	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return col, row, row*g.cols + col
}

func (g *Bucket2DGrid) addToCell(idx int, h components.Handle) {
	g.cells[idx] = append(g.cells[idx], h)
}

func (g *Bucket2DGrid) removeFromCell(idx int, h components.Handle) {
	list := g.cells[idx]
	for i, e := range list {
		if e == h {
			list[i] = list[len(list)-1]
			g.cells[idx] = list[:len(list)-1]
			return
		}
	}
}

// Register adds a new entity, or relocates a known one in place:
// registering the same handle twice is a no-op update.
func (g *Bucket2DGrid) Register(h components.Handle, faction components.Faction, etype components.EntityType, pos components.Position) {
	if rec, ok := g.entities[h]; ok {
		g.removeFromCell(rec.cell, h)
	}
	_, _, idx := g.cellOf(pos)
	g.entities[h] = entityRecord{faction: faction, etype: etype, pos: pos, cell: idx}
	g.addToCell(idx, h)
}

// Unregister removes the entity; unregistering an unknown handle is a no-op.
func (g *Bucket2DGrid) Unregister(h components.Handle) {
	rec, ok := g.entities[h]
	if !ok {
		delete(g.batch.pending, h)
		return
	}
	g.removeFromCell(rec.cell, h)
	delete(g.entities, h)
	delete(g.batch.pending, h)
}

// Move enqueues a position update; it is applied on the next Flush.
func (g *Bucket2DGrid) Move(h components.Handle, pos components.Position) {
	if _, ok := g.entities[h]; !ok {
		return
	}
	g.batch.enqueue(h, pos)
}

// Flush applies every pending move. Stale handles (unregistered since
// being enqueued) are skipped rather than causing a panic.
func (g *Bucket2DGrid) Flush() {
	for h, pos := range g.batch.pending {
		rec, ok := g.entities[h]
		if !ok {
			continue
		}
		_, _, newIdx := g.cellOf(pos)
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

// Advance accumulates elapsed time and flushes once update_interval has
// elapsed.
func (g *Bucket2DGrid) Advance(dt float64) {
	if g.batch.advance(dt) {
		g.Flush()
	}
}

func (g *Bucket2DGrid) matches(rec entityRecord, h components.Handle, opts QueryOptions) bool {
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

func (g *Bucket2DGrid) collect(pos components.Position, radius float32, opts QueryOptions, limit int) []Hit {
	if radius < 0 {
		return nil
	}
	cellRadius := int(radius/g.cellSize) + 1
	centerCol, centerRow, _ := g.cellOf(pos)
	radiusSq := radius * radius

	var hits []Hit
	for dc := -cellRadius; dc <= cellRadius; dc++ {
		col := centerCol + dc
		if col < 0 || col >= g.cols {
			continue
		}
		for dr := -cellRadius; dr <= cellRadius; dr++ {
			row := centerRow + dr
			if row < 0 || row >= g.rows {
				continue
			}
			idx := row*g.cols + col
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

// MaxQueryResults caps the number of hits returned by an unbounded query,
// preventing a density spike from causing unbounded per-tick work.
const MaxQueryResults = 256

func (g *Bucket2DGrid) QueryRadius(pos components.Position, r float32, opts QueryOptions) []Hit {
	return g.collect(pos, r, opts, MaxQueryResults)
}

func (g *Bucket2DGrid) QueryNearest(pos components.Position, opts QueryOptions) (Hit, bool) {
	searchRadius := opts.MaxDistance
	if searchRadius <= 0 {
		searchRadius = float32(math.Max(float64(g.width), float64(g.height)))
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

// QueryThreeColumns is not meaningful for a 2D bucket grid; it returns no
// hits, since queries never fail; they return empty instead.
func (g *Bucket2DGrid) QueryThreeColumns(col int, opts QueryOptions) []Hit {
	return nil
}

func (g *Bucket2DGrid) PredictCollision(origin components.Position, dir components.Velocity, maxDist float32, opts QueryOptions) (Hit, bool) {
	candidates := g.collect(origin, maxDist, opts, 0)
	return predictRay(origin, dir, maxDist, opts.BeamRadius, candidates)
}

func (g *Bucket2DGrid) FactionCountsAt(pos components.Position) map[components.Faction]int {
	_, _, idx := g.cellOf(pos)
	counts := make(map[components.Faction]int)
	for _, h := range g.cells[idx] {
		if rec, ok := g.entities[h]; ok {
			counts[rec.faction]++
		}
	}
	return counts
}
