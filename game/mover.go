package game

import (
	"math"

	"gridsync/grid"
	"gridsync/vec"
)

// Passability Mover 唯一需要的地图查询
type Passability interface {
	IsPassable(p grid.TilePos) bool
}

// gridSpeed 网格模式速度（格/秒）
const gridSpeed = 1 / MoveDuration

var progressCeil = math.Nextafter32(1, 0)

// 八方向朝向（弧度，0 朝右，y 轴向下），查表避免三角函数
var facing = map[vec.Vec2i]float32{
	{X: 1, Y: 0}:   0,
	{X: 1, Y: 1}:   math.Pi / 4,
	{X: 0, Y: 1}:   math.Pi / 2,
	{X: -1, Y: 1}:  3 * math.Pi / 4,
	{X: -1, Y: 0}:  math.Pi,
	{X: -1, Y: -1}: -3 * math.Pi / 4,
	{X: 0, Y: -1}:  -math.Pi / 2,
	{X: 1, Y: -1}:  -math.Pi / 4,
}

// ApplyInput 记录输入方向；网格模式移动途中的非零方向进入队列，本格走完后生效。
// 与时间无关，每个输入调用一次。
func ApplyInput(p *Player, dir vec.Vec2i) {
	if p == nil {
		return
	}
	dir = clampDirection(dir)
	p.InputDirection = dir
	if p.Mode == GridLocked && p.IsMoving && !dir.IsZero() {
		p.QueuedDirection = dir
	}
}

// UpdateMovement 推进一个时间步。只读取参数，不读墙钟、不用随机数，
// 相同输入历史在客户端与服务端得到逐位相同的结果。
func UpdateMovement(t *Transform, p *Player, m Passability, dt float32) {
	if t == nil || p == nil || dt <= 0 {
		return
	}
	if p.Mode == Free {
		updateFree(t, p, dt)
		return
	}
	updateGrid(t, p, m, dt)
}

func updateFree(t *Transform, p *Player, dt float32) {
	v := p.InputDirection.Float().Normalized().Scale(FreeMoveSpeed)
	t.Velocity = v
	t.Position = t.Position.Add(v.Scale(dt))
	p.GridPos = grid.FromWorld(t.Position)
	p.MoveTarget = p.GridPos
	p.IsMoving = !v.IsZero()
	p.MoveProgress = 0
}

func updateGrid(t *Transform, p *Player, m Passability, dt float32) {
	step := float32(gridSpeed * dt)

	if p.IsMoving {
		advance(t, p, step)
	}
	if p.IsMoving {
		return
	}
	t.Velocity = vec.Vec2f{}
	if p.InputDirection.IsZero() {
		return
	}
	if startMove(t, p, m) {
		advance(t, p, step)
	}
}

// advance 朝目标格中心匀速前进一步；本步可达或剩余可忽略时精确吸附到中心
func advance(t *Transform, p *Player, step float32) {
	target := p.MoveTarget.Center()
	delta := target.Sub(t.Position)
	dist := delta.Length()

	if dist <= step || dist-step < ArriveEpsilon {
		t.Position = target
		t.Velocity = vec.Vec2f{}
		p.GridPos = p.MoveTarget
		p.IsMoving = false
		p.MoveProgress = 0
		if !p.QueuedDirection.IsZero() {
			p.InputDirection = p.QueuedDirection
			p.QueuedDirection = vec.Vec2i{}
		}
		return
	}

	dir := delta.Scale(1 / dist)
	t.Velocity = dir.Scale(gridSpeed)
	t.Position = t.Position.Add(dir.Scale(step))
	p.MoveProgress = progress(p, dist-step)
}

// startMove 尝试开始新的一格移动。对角输入依次尝试：对角（两条直边均可通行，禁止切角）、纵向、横向。
func startMove(t *Transform, p *Player, m Passability) bool {
	d := p.InputDirection
	candidates := []vec.Vec2i{d}
	if d.X != 0 && d.Y != 0 {
		candidates = append(candidates, vec.Vec2i{Y: d.Y}, vec.Vec2i{X: d.X})
	}
	for _, c := range candidates {
		target := p.GridPos.Offset(c)
		if !passable(m, target) {
			continue
		}
		if c.X != 0 && c.Y != 0 {
			if !passable(m, p.GridPos.Offset(vec.Vec2i{X: c.X})) || !passable(m, p.GridPos.Offset(vec.Vec2i{Y: c.Y})) {
				continue
			}
		}
		p.MoveTarget = target
		p.IsMoving = true
		p.MoveProgress = 0
		t.Velocity = target.Center().Sub(t.Position).Normalized().Scale(gridSpeed)
		if r, ok := facing[c]; ok {
			t.Rotation = r
		}
		return true
	}
	return false
}

// SyncProgress 按当前位置重算移动进度（权威状态覆盖后使用）
func SyncProgress(t *Transform, p *Player) {
	if t == nil || p == nil {
		return
	}
	if !p.IsMoving || p.Mode != GridLocked {
		p.MoveProgress = 0
		return
	}
	p.MoveProgress = progress(p, p.MoveTarget.Center().Distance(t.Position))
}

func progress(p *Player, remaining float32) float32 {
	total := p.GridPos.Center().Distance(p.MoveTarget.Center())
	if total <= 0 {
		return 0
	}
	v := 1 - remaining/total
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return progressCeil
	}
	return v
}

func passable(m Passability, p grid.TilePos) bool {
	if m == nil {
		return true
	}
	return m.IsPassable(p)
}

func clampDirection(d vec.Vec2i) vec.Vec2i {
	return vec.Vec2i{X: clampUnit(d.X), Y: clampUnit(d.Y)}
}

func clampUnit(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
