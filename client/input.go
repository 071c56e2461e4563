package client

import (
	"math/rand"

	"github.com/rotisserie/eris"

	"gridsync/vec"
)

// InputSource 每个客户端 Tick 采样一次移动方向
type InputSource interface {
	Direction(tick uint32) vec.Vec2i
}

// Idle 不移动
type Idle struct{}

func (Idle) Direction(uint32) vec.Vec2i { return vec.Vec2i{} }

// Scripted 按顺序循环给出方向，每个方向保持 Hold 个 Tick
type Scripted struct {
	Dirs []vec.Vec2i
	Hold uint32
}

func (s Scripted) Direction(tick uint32) vec.Vec2i {
	if len(s.Dirs) == 0 {
		return vec.Vec2i{}
	}
	hold := max(s.Hold, 1)
	return s.Dirs[(tick/hold)%uint32(len(s.Dirs))]
}

// Square 沿正方形巡逻：东、南、西、北各 side 格
func Square(side uint32) Scripted {
	// 一格约 9 个 Tick
	return Scripted{
		Dirs: []vec.Vec2i{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}},
		Hold: side * 9,
	}
}

// Random 每隔 Hold 个 Tick 随机换一个八方向（含停止）
type Random struct {
	Hold uint32
	rng  *rand.Rand
	cur  vec.Vec2i
}

func NewRandom(seed int64, hold uint32) *Random {
	return &Random{Hold: max(hold, 1), rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Direction(tick uint32) vec.Vec2i {
	if tick%r.Hold == 0 {
		r.cur = vec.Vec2i{X: int32(r.rng.Intn(3) - 1), Y: int32(r.rng.Intn(3) - 1)}
	}
	return r.cur
}

// NewBot 按名称创建输入源：idle | square | random
func NewBot(name string, seed int64) (InputSource, error) {
	switch name {
	case "idle":
		return Idle{}, nil
	case "square":
		return Square(4), nil
	case "random":
		return NewRandom(seed, 20), nil
	}
	return nil, eris.Errorf("unknown bot %q", name)
}
