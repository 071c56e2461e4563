package game

import (
	"math"
	"math/rand"
	"testing"

	"gridsync/grid"
	"gridsync/vec"
)

func newIdlePlayer(tile grid.TilePos) (Transform, Player) {
	return Transform{Position: tile.Center()}, Player{GridPos: tile, MoveTarget: tile}
}

func TestMoveOneTileScenario(t *testing.T) {
	m := grid.NewWalledMap(16, 16)
	tr, p := newIdlePlayer(grid.TilePos{X: 5, Y: 5})

	ApplyInput(&p, vec.Vec2i{X: 1})
	UpdateMovement(&tr, &p, m, TickInterval)

	if !p.IsMoving {
		t.Fatalf("expected moving after first tick")
	}
	if p.MoveTarget != (grid.TilePos{X: 6, Y: 5}) {
		t.Fatalf("move target = %v", p.MoveTarget)
	}
	if tr.Position.X <= 5.5 || tr.Position.X >= 6.5 || tr.Position.Y != 5.5 {
		t.Fatalf("expected partial progress toward (6.5,5.5), got %v", tr.Position)
	}
	wantStep := float32(gridSpeed * TickInterval)
	if d := tr.Position.X - 5.5 - wantStep; d > 1e-5 || d < -1e-5 {
		t.Fatalf("expected advance of %v, got %v", wantStep, tr.Position.X-5.5)
	}
	if tr.Velocity != (vec.Vec2f{X: gridSpeed}) {
		t.Fatalf("velocity = %v, want %v", tr.Velocity, gridSpeed)
	}

	// 松开按键，剩余时间内走完这一格
	ApplyInput(&p, vec.Vec2i{})
	ticks := int(math.Round(float64(MoveDuration / TickInterval)))
	for i := 1; i < ticks; i++ {
		UpdateMovement(&tr, &p, m, TickInterval)
	}
	if p.IsMoving {
		t.Fatalf("expected move to complete after %d ticks, pos=%v", ticks, tr.Position)
	}
	if tr.Position != (vec.Vec2f{X: 6.5, Y: 5.5}) {
		t.Fatalf("expected exact snap to (6.5,5.5), got %v", tr.Position)
	}
	if p.GridPos != (grid.TilePos{X: 6, Y: 5}) || !tr.Velocity.IsZero() || p.MoveProgress != 0 {
		t.Fatalf("unexpected idle state: %+v %+v", p, tr)
	}
}

func TestBlockedMoveDoesNotStart(t *testing.T) {
	m := grid.NewWalledMap(8, 8)
	tr, p := newIdlePlayer(grid.TilePos{X: 1, Y: 1})
	ApplyInput(&p, vec.Vec2i{X: -1})
	UpdateMovement(&tr, &p, m, TickInterval)
	if p.IsMoving || tr.Position != (grid.TilePos{X: 1, Y: 1}).Center() {
		t.Fatalf("wall should block the move: %+v %+v", p, tr)
	}
}

func TestDiagonalFallbackOrder(t *testing.T) {
	m := grid.NewWalledMap(8, 8)
	start := grid.TilePos{X: 3, Y: 3}
	// 只有横向邻居可通行
	m.SetTile(grid.TilePos{X: 4, Y: 4}, grid.Tile{Flags: grid.FlagSolid})
	m.SetTile(grid.TilePos{X: 3, Y: 4}, grid.Tile{Flags: grid.FlagSolid})

	rec := &recordingMap{inner: m}
	tr, p := newIdlePlayer(start)
	ApplyInput(&p, vec.Vec2i{X: 1, Y: 1})
	UpdateMovement(&tr, &p, rec, TickInterval)

	if p.MoveTarget != (grid.TilePos{X: 4, Y: 3}) {
		t.Fatalf("expected fallback to east, got %v", p.MoveTarget)
	}
	want := []grid.TilePos{{X: 4, Y: 4}, {X: 3, Y: 4}, {X: 4, Y: 3}}
	if len(rec.queries) < len(want) {
		t.Fatalf("queries = %v", rec.queries)
	}
	for i, q := range want {
		if rec.queries[i] != q {
			t.Fatalf("query %d = %v, want %v (all %v)", i, rec.queries[i], q, rec.queries)
		}
	}
}

func TestDiagonalRejectedWhenCuttingCorner(t *testing.T) {
	m := grid.NewWalledMap(8, 8)
	m.SetTile(grid.TilePos{X: 4, Y: 3}, grid.Tile{Flags: grid.FlagSolid})
	tr, p := newIdlePlayer(grid.TilePos{X: 3, Y: 3})
	ApplyInput(&p, vec.Vec2i{X: 1, Y: 1})
	UpdateMovement(&tr, &p, m, TickInterval)
	if p.MoveTarget != (grid.TilePos{X: 3, Y: 4}) {
		t.Fatalf("expected fallback to south, got %v", p.MoveTarget)
	}
}

func TestDiagonalMoveSpeedIsNormalized(t *testing.T) {
	m := grid.NewWalledMap(8, 8)
	tr, p := newIdlePlayer(grid.TilePos{X: 3, Y: 3})
	ApplyInput(&p, vec.Vec2i{X: 1, Y: 1})
	UpdateMovement(&tr, &p, m, TickInterval)
	if p.MoveTarget != (grid.TilePos{X: 4, Y: 4}) {
		t.Fatalf("expected diagonal target, got %v", p.MoveTarget)
	}
	speed := tr.Velocity.Length()
	if d := speed - gridSpeed; d > 1e-4 || d < -1e-4 {
		t.Fatalf("diagonal speed %v exceeds axis speed %v", speed, gridSpeed)
	}
}

func TestQueuedDirectionAppliesAfterMove(t *testing.T) {
	m := grid.NewWalledMap(16, 16)
	tr, p := newIdlePlayer(grid.TilePos{X: 5, Y: 5})
	ApplyInput(&p, vec.Vec2i{X: 1})
	UpdateMovement(&tr, &p, m, TickInterval)

	// 移动途中点一下向下，随后松开
	ApplyInput(&p, vec.Vec2i{Y: 1})
	ApplyInput(&p, vec.Vec2i{})
	if p.QueuedDirection != (vec.Vec2i{Y: 1}) {
		t.Fatalf("expected queued south, got %v", p.QueuedDirection)
	}

	for i := 0; i < 20 && p.GridPos != (grid.TilePos{X: 6, Y: 5}); i++ {
		UpdateMovement(&tr, &p, m, TickInterval)
	}
	if p.GridPos != (grid.TilePos{X: 6, Y: 5}) {
		t.Fatalf("first move never completed")
	}
	if !p.IsMoving || p.MoveTarget != (grid.TilePos{X: 6, Y: 6}) {
		t.Fatalf("queued direction should start the next move, got %+v", p)
	}
	if !p.QueuedDirection.IsZero() {
		t.Fatalf("queue should be cleared")
	}
}

func TestFreeMode(t *testing.T) {
	tr := Transform{Position: vec.Vec2f{X: 2, Y: 2}}
	p := Player{Mode: Free}
	ApplyInput(&p, vec.Vec2i{X: 1, Y: 1})
	UpdateMovement(&tr, &p, nil, 0.5)
	if !p.IsMoving {
		t.Fatalf("free mode should be moving")
	}
	if d := tr.Velocity.Length() - FreeMoveSpeed; d > 1e-4 || d < -1e-4 {
		t.Fatalf("free speed = %v", tr.Velocity.Length())
	}
	if p.GridPos != grid.FromWorld(tr.Position) {
		t.Fatalf("grid pos not derived from position")
	}
	ApplyInput(&p, vec.Vec2i{})
	UpdateMovement(&tr, &p, nil, 0.5)
	if p.IsMoving || !tr.Velocity.IsZero() {
		t.Fatalf("free mode should stop without input")
	}
}

func TestApplyInputClampsAndIgnoresNil(t *testing.T) {
	ApplyInput(nil, vec.Vec2i{X: 1})
	UpdateMovement(nil, nil, nil, TickInterval)

	var p Player
	ApplyInput(&p, vec.Vec2i{X: 5, Y: -9})
	if p.InputDirection != (vec.Vec2i{X: 1, Y: -1}) {
		t.Fatalf("expected clamped direction, got %v", p.InputDirection)
	}
	if !p.QueuedDirection.IsZero() {
		t.Fatalf("idle player must not queue")
	}
}

type step struct {
	dir vec.Vec2i
	dt  float32
}

func randomScript(seed int64, n int) []step {
	r := rand.New(rand.NewSource(seed))
	out := make([]step, n)
	for i := range out {
		out[i] = step{
			dir: vec.Vec2i{X: int32(r.Intn(3) - 1), Y: int32(r.Intn(3) - 1)},
			dt:  TickInterval,
		}
		if r.Intn(5) == 0 {
			out[i].dt = float32(r.Float64() * 0.05)
		}
	}
	return out
}

func runScript(m Passability, script []step) (Transform, Player) {
	tr, p := newIdlePlayer(grid.TilePos{X: 8, Y: 8})
	for _, s := range script {
		ApplyInput(&p, s.dir)
		UpdateMovement(&tr, &p, m, s.dt)
	}
	return tr, p
}

func TestDeterministicAcrossRuns(t *testing.T) {
	m := grid.NewWalledMap(16, 16)
	m.SetTile(grid.TilePos{X: 9, Y: 8}, grid.Tile{Flags: grid.FlagSolid})
	for seed := int64(1); seed <= 5; seed++ {
		script := randomScript(seed, 600)
		t1, p1 := runScript(m, script)
		t2, p2 := runScript(m, script)
		if t1 != t2 || p1 != p2 {
			t.Fatalf("seed %d diverged:\n%+v %+v\n%+v %+v", seed, t1, p1, t2, p2)
		}
		if math.Float32bits(t1.Position.X) != math.Float32bits(t2.Position.X) {
			t.Fatalf("seed %d not bit-identical", seed)
		}
	}
}

func TestGridInvariantHolds(t *testing.T) {
	m := grid.NewWalledMap(16, 16)
	m.SetTile(grid.TilePos{X: 7, Y: 7}, grid.Tile{Flags: grid.FlagSolid})
	tr, p := newIdlePlayer(grid.TilePos{X: 8, Y: 8})
	for i, s := range randomScript(42, 2000) {
		ApplyInput(&p, s.dir)
		UpdateMovement(&tr, &p, m, s.dt)
		if p.IsMoving {
			if p.MoveProgress < 0 || p.MoveProgress >= 1 {
				t.Fatalf("step %d: progress %v out of range", i, p.MoveProgress)
			}
			if p.GridPos.Chebyshev(p.MoveTarget) > 1 {
				t.Fatalf("step %d: grid %v and target %v not adjacent", i, p.GridPos, p.MoveTarget)
			}
			continue
		}
		if p.MoveProgress != 0 {
			t.Fatalf("step %d: idle progress %v", i, p.MoveProgress)
		}
		if tr.Position != p.GridPos.Center() {
			t.Fatalf("step %d: idle position %v != center %v", i, tr.Position, p.GridPos.Center())
		}
		if !m.IsPassable(p.GridPos) {
			t.Fatalf("step %d: standing in a wall at %v", i, p.GridPos)
		}
	}
}

func TestSyncProgress(t *testing.T) {
	p := Player{GridPos: grid.TilePos{X: 1, Y: 1}, MoveTarget: grid.TilePos{X: 2, Y: 1}, IsMoving: true}
	tr := Transform{Position: vec.Vec2f{X: 1.75, Y: 1.5}}
	SyncProgress(&tr, &p)
	if p.MoveProgress != 0.25 {
		t.Fatalf("progress = %v, want 0.25", p.MoveProgress)
	}
	p.IsMoving = false
	SyncProgress(&tr, &p)
	if p.MoveProgress != 0 {
		t.Fatalf("idle progress should reset")
	}
}

type recordingMap struct {
	inner   Passability
	queries []grid.TilePos
}

func (r *recordingMap) IsPassable(p grid.TilePos) bool {
	r.queries = append(r.queries, p)
	return r.inner.IsPassable(p)
}
