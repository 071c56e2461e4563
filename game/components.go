package game

import (
	"gridsync/ecs"
	"gridsync/grid"
	"gridsync/vec"
)

const (
	// TickRate 服务端与客户端共同的模拟频率
	TickRate = 60
	// TickInterval 单个 Tick 的秒数，重放输入必须使用该固定值
	TickInterval float32 = 1.0 / TickRate
	// MaxFrameDelta 单帧墙钟增量上限，防止卡顿后的死亡螺旋
	MaxFrameDelta = 0.25

	MoveDuration  float32 = 0.15 // 网格模式下移动一格所需秒数
	FreeMoveSpeed float32 = 8.0  // 自由模式速度（格/秒）
	ArriveEpsilon float32 = 0.001
)

// MovementMode 玩家移动模式
type MovementMode uint8

const (
	GridLocked MovementMode = iota // 格到格移动
	Free
)

// Transform 位置、速度、朝向
type Transform struct {
	Position vec.Vec2f
	Velocity vec.Vec2f
	Rotation float32
}

// Tile 当前所在格子
func (t Transform) Tile() grid.TilePos { return grid.FromWorld(t.Position) }

// Player 玩家组件
type Player struct {
	Name      string
	SessionID uint32
	Team      uint8
	IsLocal   bool // 仅客户端区分本地玩家

	Mode MovementMode

	GridPos      grid.TilePos
	MoveTarget   grid.TilePos
	IsMoving     bool
	MoveProgress float32

	InputDirection  vec.Vec2i
	QueuedDirection vec.Vec2i // 移动途中收到的方向，本格走完后生效
}

// InputSnapshot 客户端每个 Tick 采样一次的输入
type InputSnapshot struct {
	Tick       uint32
	MoveX      int8
	MoveY      int8
	Interact   bool
	Secondary  bool
	TargetTile grid.TilePos
}

// Direction 输入方向，分量裁剪到 {-1,0,1}
func (in InputSnapshot) Direction() vec.Vec2i {
	return vec.Vec2i{X: int32(sign8(in.MoveX)), Y: int32(sign8(in.MoveY))}
}

func sign8(v int8) int8 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Components 组件池注册表，客户端与服务端启动时各自创建一份
type Components struct {
	Transform *ecs.Pool[Transform]
	Player    *ecs.Pool[Player]
}

// RegisterComponents 为 world 注册全部组件池
func RegisterComponents(w *ecs.World) Components {
	return Components{
		Transform: ecs.NewPool[Transform](w),
		Player:    ecs.NewPool[Player](w),
	}
}

// SpawnPlayer 在格子中心创建玩家实体（不分配网络 ID）
func SpawnPlayer(w *ecs.World, c Components, tile grid.TilePos, p Player) ecs.Entity {
	e := w.Create()
	c.Transform.Set(e, Transform{Position: tile.Center()})
	p.GridPos = tile
	p.MoveTarget = tile
	p.IsMoving = false
	p.MoveProgress = 0
	c.Player.Set(e, p)
	return e
}
