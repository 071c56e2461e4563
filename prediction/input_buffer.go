package prediction

import (
	"cmp"
	"slices"

	"gridsync/game"
)

// BufferSize 环形缓冲容量，需覆盖最大往返延迟对应的 Tick 数
const BufferSize = 128

type slot struct {
	input game.InputSnapshot
	ok    bool
}

// InputBuffer 按 tick%BufferSize 存放本地输入，供重放使用。
// 槽位可能残留一圈之前的旧数据，读取时总是校验存储的 Tick。
type InputBuffer struct {
	slots         [BufferSize]slot
	latestTick    uint32
	lastAckedTick uint32
	oldestTick    uint32
	empty         bool
}

func NewInputBuffer() *InputBuffer {
	return &InputBuffer{empty: true}
}

// Add 写入一个 Tick 的输入
func (b *InputBuffer) Add(in game.InputSnapshot) {
	s := &b.slots[in.Tick%BufferSize]
	if b.empty {
		b.oldestTick = in.Tick
		b.latestTick = in.Tick
		b.empty = false
	}
	// 覆盖了更早一圈的数据，最旧可用 Tick 随之前移
	if s.ok && s.input.Tick < in.Tick {
		oldest := uint32(1)
		if in.Tick > BufferSize {
			oldest = in.Tick - BufferSize + 1
		}
		if oldest > b.oldestTick {
			b.oldestTick = oldest
		}
	}
	if in.Tick < b.oldestTick {
		b.oldestTick = in.Tick
	}
	*s = slot{input: in, ok: true}
	if in.Tick > b.latestTick {
		b.latestTick = in.Tick
	}
}

// Clear 清空（重新同步 Tick 时使用）
func (b *InputBuffer) Clear() {
	*b = InputBuffer{empty: true}
}

// Acknowledge 记录服务端已处理到 tick；只增不减，数据保留到被覆盖
func (b *InputBuffer) Acknowledge(tick uint32) {
	if tick > b.lastAckedTick {
		b.lastAckedTick = tick
	}
}

// Get 读取指定 Tick 的输入；越界或槽位已被复用时返回 false
func (b *InputBuffer) Get(tick uint32) (game.InputSnapshot, bool) {
	if b.empty || tick < b.oldestTick || tick > b.latestTick {
		return game.InputSnapshot{}, false
	}
	s := b.slots[tick%BufferSize]
	if !s.ok || s.input.Tick != tick {
		return game.InputSnapshot{}, false
	}
	return s.input, true
}

// InputsAfter 按 Tick 升序返回 tick+1 .. latest 的输入，缺失的 Tick 跳过
func (b *InputBuffer) InputsAfter(tick uint32) []game.InputSnapshot {
	if b.empty || tick >= b.latestTick {
		return nil
	}
	var out []game.InputSnapshot
	for i := range b.slots {
		s := &b.slots[i]
		if !s.ok || s.input.Tick <= tick {
			continue
		}
		if in, ok := b.Get(s.input.Tick); ok {
			out = append(out, in)
		}
	}
	slices.SortFunc(out, func(a, c game.InputSnapshot) int { return cmp.Compare(a.Tick, c.Tick) })
	return out
}

// Unacknowledged 服务端尚未确认的输入
func (b *InputBuffer) Unacknowledged() []game.InputSnapshot {
	return b.InputsAfter(b.lastAckedTick)
}

func (b *InputBuffer) LatestTick() uint32 { return b.latestTick }
func (b *InputBuffer) LastAckedTick() uint32 { return b.lastAckedTick }
func (b *InputBuffer) OldestTick() uint32 { return b.oldestTick }
