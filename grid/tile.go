package grid

import (
	"math"

	"gridsync/vec"
)

// TileFlags 格子属性位
type TileFlags uint8

const (
	FlagNone   TileFlags = 0
	FlagSolid  TileFlags = 1 << 0 // 阻挡移动
	FlagOpaque TileFlags = 1 << 1 // 阻挡视线
	FlagRoof   TileFlags = 1 << 2
	FlagLiquid TileFlags = 1 << 3
	FlagStairs TileFlags = 1 << 4
)

func (f TileFlags) Has(flag TileFlags) bool { return f&flag != 0 }

// Tile 单个格子
type Tile struct {
	FloorID   uint16
	WallID    uint16 // 0 表示无墙
	OverlayID uint16
	Flags     TileFlags
}

func (t Tile) Passable() bool { return !t.Flags.Has(FlagSolid) }
func (t Tile) Opaque() bool { return t.Flags.Has(FlagOpaque) }
func (t Tile) HasWall() bool { return t.WallID != 0 }

// TilePos 整数格子坐标
type TilePos struct {
	X int32
	Y int32
}

// FromWorld 世界坐标向下取整得到所在格子
func FromWorld(p vec.Vec2f) TilePos {
	return TilePos{
		X: int32(math.Floor(float64(p.X))),
		Y: int32(math.Floor(float64(p.Y))),
	}
}

// Center 格子中心的世界坐标
func (p TilePos) Center() vec.Vec2f {
	return vec.Vec2f{X: float32(p.X) + 0.5, Y: float32(p.Y) + 0.5}
}

// Corner 格子左上角的世界坐标
func (p TilePos) Corner() vec.Vec2f {
	return vec.Vec2f{X: float32(p.X), Y: float32(p.Y)}
}

func (p TilePos) Add(o TilePos) TilePos { return TilePos{X: p.X + o.X, Y: p.Y + o.Y} }
func (p TilePos) Sub(o TilePos) TilePos { return TilePos{X: p.X - o.X, Y: p.Y - o.Y} }

// Offset 按方向向量平移
func (p TilePos) Offset(d vec.Vec2i) TilePos { return TilePos{X: p.X + d.X, Y: p.Y + d.Y} }

func (p TilePos) Manhattan(o TilePos) int32 { return abs32(p.X-o.X) + abs32(p.Y-o.Y) }

func (p TilePos) Chebyshev(o TilePos) int32 {
	dx, dy := abs32(p.X-o.X), abs32(p.Y-o.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

var (
	North     = TilePos{X: 0, Y: -1}
	South     = TilePos{X: 0, Y: 1}
	East      = TilePos{X: 1, Y: 0}
	West      = TilePos{X: -1, Y: 0}
	NorthEast = TilePos{X: 1, Y: -1}
	NorthWest = TilePos{X: -1, Y: -1}
	SouthEast = TilePos{X: 1, Y: 1}
	SouthWest = TilePos{X: -1, Y: 1}

	Cardinal   = [4]TilePos{North, East, South, West}
	Directions = [8]TilePos{North, NorthEast, East, SouthEast, South, SouthWest, West, NorthWest}
)
