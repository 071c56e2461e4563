package prediction

import (
	"gridsync/ecs"
	"gridsync/vec"
)

// InterpolationDuration 两次快照之间的平滑时长（秒），与快照频率一致
const InterpolationDuration float32 = 1.0 / 20

type interpState struct {
	previous vec.Vec2f
	target   vec.Vec2f
	t        float32 // [0,1]
}

func (s *interpState) position() vec.Vec2f {
	if s.t >= 1 {
		return s.target
	}
	return s.previous.Lerp(s.target, s.t)
}

// Interpolation 远端实体在快照之间的线性插值
type Interpolation struct {
	states map[ecs.NetEntityID]*interpState
}

func NewInterpolation() *Interpolation {
	return &Interpolation{states: make(map[ecs.NetEntityID]*interpState)}
}

// SetTarget 设定新目标；以当前插值位置为起点，首次出现的实体直接就位
func (in *Interpolation) SetTarget(id ecs.NetEntityID, pos vec.Vec2f) {
	s, ok := in.states[id]
	if !ok {
		in.states[id] = &interpState{previous: pos, target: pos, t: 1}
		return
	}
	s.previous = s.position()
	s.target = pos
	s.t = 0
}

func (in *Interpolation) Update(dt float32) {
	if dt <= 0 {
		return
	}
	step := float32(dt / InterpolationDuration)
	for _, s := range in.states {
		s.t += step
		if s.t > 1 {
			s.t = 1
		}
	}
}

// Position 插值位置；未跟踪的实体返回 fallback
func (in *Interpolation) Position(id ecs.NetEntityID, fallback vec.Vec2f) vec.Vec2f {
	s, ok := in.states[id]
	if !ok {
		return fallback
	}
	return s.position()
}

func (in *Interpolation) Remove(id ecs.NetEntityID) { delete(in.states, id) }

func (in *Interpolation) IsTracking(id ecs.NetEntityID) bool {
	_, ok := in.states[id]
	return ok
}

func (in *Interpolation) Len() int { return len(in.states) }
