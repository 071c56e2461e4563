package prediction

import (
	"gridsync/ecs"
	"gridsync/game"
	"gridsync/grid"
	"gridsync/vec"
)

const (
	// ErrorBlendRate 视觉误差每秒衰减速率
	ErrorBlendRate float32 = 10
	// ErrorEpsilon 误差长度低于该值直接归零
	ErrorEpsilon float32 = 0.001
	// MinErrorSq 以下的误差不做平滑（抖动）
	MinErrorSq float32 = 0.01
	// MaxErrorSq 以上的误差视为瞬移，立即吸附
	MaxErrorSq float32 = 4.0
)

// EntityState 服务端对单个实体的权威快照
type EntityState struct {
	NetID           ecs.NetEntityID
	Position        vec.Vec2f
	Velocity        vec.Vec2f
	HasPlayer       bool
	GridPos         grid.TilePos
	MoveTarget      grid.TilePos
	InputDirection  vec.Vec2i
	QueuedDirection vec.Vec2i
	IsMoving        bool
	LastInputTick   uint32
}

// System 本地玩家的预测与和解。只在客户端模拟线程中使用。
type System struct {
	world *ecs.World
	comps game.Components
	tiles game.Passability

	buffer         *InputBuffer
	localPlayer    ecs.NetEntityID
	positionError  vec.Vec2f
	lastServerTick uint32
}

func NewSystem(w *ecs.World, c game.Components, tiles game.Passability) *System {
	return &System{
		world:  w,
		comps:  c,
		tiles:  tiles,
		buffer: NewInputBuffer(),
	}
}

// SetLocalPlayer 指定本地玩家的网络 ID（来自 ServerHello）
func (s *System) SetLocalPlayer(id ecs.NetEntityID) {
	if id != s.localPlayer {
		s.buffer.Clear()
		s.positionError = vec.Vec2f{}
		s.lastServerTick = 0
	}
	s.localPlayer = id
}

func (s *System) LocalPlayer() ecs.NetEntityID { return s.localPlayer }

// Buffer 输入缓冲（只读用途）
func (s *System) Buffer() *InputBuffer { return s.buffer }

// PositionError 当前叠加在渲染位置上的视觉误差
func (s *System) PositionError() vec.Vec2f { return s.positionError }

// LastServerTick 最近一次确认的 Tick
func (s *System) LastServerTick() uint32 { return s.lastServerTick }

func (s *System) local() (*game.Transform, *game.Player) {
	if s.localPlayer == ecs.InvalidNetEntityID {
		return nil, nil
	}
	e, ok := s.world.EntityByNetID(s.localPlayer)
	if !ok {
		return nil, nil
	}
	t, p := s.comps.Transform.Get(e), s.comps.Player.Get(e)
	if t == nil || p == nil {
		return nil, nil
	}
	return t, p
}

// RecordInput 缓存输入并立即应用，不等待 Tick 边界
func (s *System) RecordInput(in game.InputSnapshot) {
	s.buffer.Add(in)
	if _, p := s.local(); p != nil {
		game.ApplyInput(p, in.Direction())
	}
}

// Update 每帧推进本地玩家，并让视觉误差指数衰减
func (s *System) Update(dt float32) {
	t, p := s.local()
	if t == nil {
		return
	}
	t.Position = t.Position.Sub(s.positionError)
	game.UpdateMovement(t, p, s.tiles, dt)
	// 误差加减会引入舍入，静止时回到格子中心
	if p.Mode == game.GridLocked && !p.IsMoving {
		t.Position = p.GridPos.Center()
	}

	factor := float32(ErrorBlendRate * dt)
	if factor > 1 {
		factor = 1
	}
	if factor > 0 {
		s.positionError = s.positionError.Scale(1 - factor)
	}
	if s.positionError.LengthSquared() < float32(ErrorEpsilon*ErrorEpsilon) {
		s.positionError = vec.Vec2f{}
	}
	t.Position = t.Position.Add(s.positionError)
}

// OnServerState 处理一次权威快照。ackTick 为服务端已应用的本地输入 Tick。
// 非本地玩家的条目由调用方交给插值。
func (s *System) OnServerState(ackTick uint32, states []EntityState) {
	for i := range states {
		if states[i].NetID == s.localPlayer && states[i].HasPlayer {
			s.Reconcile(ackTick, states[i])
			break
		}
	}
	s.buffer.Acknowledge(ackTick)
	s.lastServerTick = ackTick
}

// Reconcile 重置为权威状态，按固定 Tick 重放 ackTick 之后的输入，
// 新旧预测之差作为视觉误差平滑掉
func (s *System) Reconcile(ackTick uint32, auth EntityState) {
	t, p := s.local()
	if t == nil {
		return
	}
	predicted := t.Position.Sub(s.positionError)

	t.Position = auth.Position
	t.Velocity = auth.Velocity
	p.GridPos = auth.GridPos
	p.MoveTarget = auth.MoveTarget
	p.IsMoving = auth.IsMoving
	p.InputDirection = auth.InputDirection
	p.QueuedDirection = auth.QueuedDirection
	game.SyncProgress(t, p)

	for _, in := range s.buffer.InputsAfter(ackTick) {
		game.ApplyInput(p, in.Direction())
		game.UpdateMovement(t, p, s.tiles, game.TickInterval)
	}

	errv := predicted.Sub(t.Position)
	if d := errv.LengthSquared(); d >= MinErrorSq && d <= MaxErrorSq {
		s.positionError = errv
	} else {
		s.positionError = vec.Vec2f{}
	}
	t.Position = t.Position.Add(s.positionError)
}

// PredictedPosition 实体当前位置（本地玩家含视觉误差）
func (s *System) PredictedPosition(id ecs.NetEntityID) (vec.Vec2f, bool) {
	e, ok := s.world.EntityByNetID(id)
	if !ok {
		return vec.Vec2f{}, false
	}
	t := s.comps.Transform.Get(e)
	if t == nil {
		return vec.Vec2f{}, false
	}
	return t.Position, true
}
