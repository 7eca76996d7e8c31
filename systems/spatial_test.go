package systems

import (
	"testing"

	"github.com/pthm-cable/combatcore/components"
)

// S2: Bucket2D(cell=50). Register H1 at (10,10) and H2 at (60,10).
// query_radius((10,10), 40) returns {H1 only}; query_radius((10,10), 60)
// returns {H1, H2}.
func TestBucket2DQueryRadiusScenarioS2(t *testing.T) {
	ids := testEntities(2)
	h1, h2 := ids[0], ids[1]
	grid := NewBucket2DGrid(500, 500, 50, 0, nil)

	grid.Register(h1, components.FactionRed, components.TypeNormal, components.Position{X: 10, Y: 10})
	grid.Register(h2, components.FactionRed, components.TypeNormal, components.Position{X: 60, Y: 10})

	near := grid.QueryRadius(components.Position{X: 10, Y: 10}, 40, QueryOptions{})
	if len(near) != 1 || near[0].Entity != h1 {
		t.Fatalf("expected {H1} within radius 40, got %+v", near)
	}

	far := grid.QueryRadius(components.Position{X: 10, Y: 10}, 60, QueryOptions{})
	if len(far) != 2 {
		t.Fatalf("expected {H1, H2} within radius 60, got %+v", far)
	}
	seen := map[components.Handle]bool{}
	for _, h := range far {
		seen[h.Entity] = true
	}
	if !seen[h1] || !seen[h2] {
		t.Fatalf("expected both H1 and H2 in result, got %+v", far)
	}
}

// Invariant 1: grid.cell_of(a) = floor_cell(a.pos) after flush(). Moving
// more than cell_size in one tick still relocates the entity to the
// correct cell once flushed.
func TestBucket2DFlushRelocatesAcrossMultipleCells(t *testing.T) {
	h := testEntities(1)[0]
	grid := NewBucket2DGrid(1000, 1000, 50, 0, nil)
	grid.Register(h, components.FactionRed, components.TypeNormal, components.Position{X: 5, Y: 5})

	startCol, startRow, startIdx := grid.cellOf(components.Position{X: 5, Y: 5})
	_ = startCol
	_ = startRow

	grid.Move(h, components.Position{X: 305, Y: 5})
	grid.Flush()

	_, _, newIdx := grid.cellOf(components.Position{X: 305, Y: 5})
	rec := grid.entities[h]
	if rec.cell != newIdx {
		t.Fatalf("expected entity cell to match position-derived cell after flush, got cell=%d want=%d", rec.cell, newIdx)
	}
	if rec.cell == startIdx {
		t.Fatal("expected the entity to have actually relocated cells")
	}

	hits := grid.QueryRadius(components.Position{X: 305, Y: 5}, 1, QueryOptions{})
	if len(hits) != 1 || hits[0].Entity != h {
		t.Fatalf("expected to find the relocated entity near its new position, got %+v", hits)
	}
}

// Round-trip: register then unregister leaves the grid empty for that handle.
func TestBucket2DRegisterUnregisterRoundTrip(t *testing.T) {
	h := testEntities(1)[0]
	grid := NewBucket2DGrid(500, 500, 50, 0, nil)
	grid.Register(h, components.FactionBlue, components.TypeNormal, components.Position{X: 10, Y: 10})
	grid.Unregister(h)

	if hits := grid.QueryRadius(components.Position{X: 10, Y: 10}, 1000, QueryOptions{}); len(hits) != 0 {
		t.Fatalf("expected no hits after unregister, got %+v", hits)
	}
	if _, ok := grid.entities[h]; ok {
		t.Fatal("expected entity record removed after unregister")
	}
}

// Unregistering an unknown handle is a no-op, not a panic.
func TestBucket2DUnregisterUnknownHandleIsNoop(t *testing.T) {
	ids := testEntities(1)
	grid := NewBucket2DGrid(500, 500, 50, 0, nil)
	grid.Unregister(ids[0])
}

// Flushing after an entity has been freed (unregistered) must not panic:
// stale pending moves are skipped.
func TestBucket2DFlushSkipsStaleHandles(t *testing.T) {
	h := testEntities(1)[0]
	grid := NewBucket2DGrid(500, 500, 50, 0, nil)
	grid.Register(h, components.FactionRed, components.TypeNormal, components.Position{X: 0, Y: 0})
	grid.Move(h, components.Position{X: 10, Y: 10})
	grid.Unregister(h)
	grid.Flush()
}

// Registering the same handle twice is a no-op update: the entity keeps
// a single record at its latest position, not a duplicate.
func TestBucket2DRegisterTwiceUpdatesInPlace(t *testing.T) {
	h := testEntities(1)[0]
	grid := NewBucket2DGrid(500, 500, 50, 0, nil)
	grid.Register(h, components.FactionRed, components.TypeNormal, components.Position{X: 0, Y: 0})
	grid.Register(h, components.FactionRed, components.TypeNormal, components.Position{X: 200, Y: 200})

	if hits := grid.QueryRadius(components.Position{X: 0, Y: 0}, 5, QueryOptions{}); len(hits) != 0 {
		t.Fatalf("expected no stale entry at the original position, got %+v", hits)
	}
	hits := grid.QueryRadius(components.Position{X: 200, Y: 200}, 5, QueryOptions{})
	if len(hits) != 1 || hits[0].Entity != h {
		t.Fatalf("expected exactly one hit at the updated position, got %+v", hits)
	}
}

func TestBucket2DOnlyAliveFiltersViaCallback(t *testing.T) {
	alive := &fakeAgentQuery{dead: map[components.Handle]bool{}, pos: map[components.Handle]components.Position{}, faction: map[components.Handle]components.Faction{}, etype: map[components.Handle]components.EntityType{}, stats: map[components.Handle]components.Stats{}}
	ids := testEntities(2)
	h1, h2 := ids[0], ids[1]
	grid := NewBucket2DGrid(500, 500, 50, 0, alive)
	grid.Register(h1, components.FactionRed, components.TypeNormal, components.Position{X: 0, Y: 0})
	grid.Register(h2, components.FactionRed, components.TypeNormal, components.Position{X: 5, Y: 5})
	alive.dead[h2] = true

	hits := grid.QueryRadius(components.Position{X: 0, Y: 0}, 100, QueryOptions{OnlyAlive: true})
	if len(hits) != 1 || hits[0].Entity != h1 {
		t.Fatalf("expected only the live entity, got %+v", hits)
	}
}

func TestNxThreeGridRowSelectionAndQuery(t *testing.T) {
	ids := testEntities(2)
	h1, h2 := ids[0], ids[1]
	grid := NewNxThreeGrid(10, 1000, 300, 0, nil)

	grid.Register(h1, components.FactionRed, components.TypeNormal, components.Position{X: 50, Y: 0})
	grid.Register(h2, components.FactionBlue, components.TypeNormal, components.Position{X: 50, Y: 140})

	midCol, midRow := grid.colRow(components.Position{X: 50, Y: 0})
	topCol, topRow := grid.colRow(components.Position{X: 50, Y: 140})
	if midRow == topRow {
		t.Fatalf("expected entities at y=0 and y=140 to land in different rows, got %d and %d", midRow, topRow)
	}
	if midCol != topCol {
		t.Fatalf("expected both entities in the same column, got %d and %d", midCol, topCol)
	}

	hits := grid.QueryRadius(components.Position{X: 50, Y: 0}, 500, QueryOptions{})
	if len(hits) != 2 {
		t.Fatalf("expected both entities within a wide radius, got %+v", hits)
	}
}

// Grid1D's QueryThreeColumns scans {col-1,col,col+1} and re-distances by
// true euclidean distance rather than grid distance.
func TestGrid1DQueryThreeColumnsScansAdjacentBandsWithEuclideanDistance(t *testing.T) {
	ids := testEntities(3)
	h1, h2, h3 := ids[0], ids[1], ids[2]
	grid := NewGrid1D(30, 3000, 0, nil)

	grid.Register(h1, components.FactionRed, components.TypeNormal, components.Position{X: 700, Y: 0})   // col 7
	grid.Register(h2, components.FactionBlue, components.TypeNormal, components.Position{X: 800, Y: 50}) // col 8
	grid.Register(h3, components.FactionBlue, components.TypeNormal, components.Position{X: 2900, Y: 0}) // col 29, far away

	hits := grid.QueryThreeColumns(7, QueryOptions{})
	seen := map[components.Handle]bool{}
	for _, h := range hits {
		seen[h.Entity] = true
		if h.Dist() <= 0 && h.Entity == h2 {
			t.Fatalf("expected nonzero euclidean distance for an off-axis hit, got %+v", h)
		}
	}
	if !seen[h1] || !seen[h2] {
		t.Fatalf("expected both col 7 and col 8 entities in the three-column scan, got %+v", hits)
	}
	if seen[h3] {
		t.Fatalf("expected the far-away entity to be excluded, got %+v", hits)
	}
}

func TestGrid1DColumnOfAndMoveAcrossColumns(t *testing.T) {
	h := testEntities(1)[0]
	grid := NewGrid1D(10, 1000, 0, nil)
	grid.Register(h, components.FactionRed, components.TypeNormal, components.Position{X: 5, Y: 0})
	if col := grid.ColumnOf(components.Position{X: 5, Y: 0}); col != 0 {
		t.Fatalf("expected column 0, got %d", col)
	}

	grid.Move(h, components.Position{X: 955, Y: 0})
	grid.Flush()
	if col := grid.ColumnOf(components.Position{X: 955, Y: 0}); col != 9 {
		t.Fatalf("expected column 9, got %d", col)
	}
	rec := grid.entities[h]
	if rec.cell != 9 {
		t.Fatalf("expected the entity's recorded cell to match its new column, got %d", rec.cell)
	}
}

func TestPredictCollisionIgnoresOffBeamHits(t *testing.T) {
	ids := testEntities(2)
	inBeam, offBeam := ids[0], ids[1]
	grid := NewBucket2DGrid(1000, 1000, 50, 0, nil)
	grid.Register(inBeam, components.FactionBlue, components.TypeNormal, components.Position{X: 100, Y: 0})
	grid.Register(offBeam, components.FactionBlue, components.TypeNormal, components.Position{X: 100, Y: 100})

	hit, ok := grid.PredictCollision(components.Position{X: 0, Y: 0}, components.Velocity{X: 1, Y: 0}, 200, QueryOptions{BeamRadius: 5})
	if !ok || hit.Entity != inBeam {
		t.Fatalf("expected the in-beam entity to be hit, got hit=%+v ok=%v", hit, ok)
	}
}
