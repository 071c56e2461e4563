package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount        int64 // 统计的 Tick 次数
	InputsAccepted   int64 // 被接受的输入数
	InputsSuperseded int64 // 同一 Tick 前被更新输入覆盖的输入数
	OldSeqIgnored    int64 // 因旧 Tick 被忽略的输入数
	UnknownEntity    int64 // 引用不存在实体的输入数
	Malformed        int64 // 解码失败被丢弃的消息数
	DropsSimulated   int64 // 因模拟丢包未发送的消息数
	SendQueueFull    int64 // 因发送队列满被丢弃的消息数
	Joins            int64
	Leaves           int64
	TotalTickNs      int64 // Tick 累计耗时（纳秒）
}

func (m *RoomMetrics) IncAccepted() { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncSuperseded() { atomic.AddInt64(&m.InputsSuperseded, 1) }
func (m *RoomMetrics) IncOldSeqIgnored() { atomic.AddInt64(&m.OldSeqIgnored, 1) }
func (m *RoomMetrics) IncUnknownEntity() { atomic.AddInt64(&m.UnknownEntity, 1) }
func (m *RoomMetrics) IncMalformed() { atomic.AddInt64(&m.Malformed, 1) }
func (m *RoomMetrics) IncDropsSimulated() { atomic.AddInt64(&m.DropsSimulated, 1) }
func (m *RoomMetrics) IncSendQueueFull() { atomic.AddInt64(&m.SendQueueFull, 1) }
func (m *RoomMetrics) IncJoins() { atomic.AddInt64(&m.Joins, 1) }
func (m *RoomMetrics) IncLeaves() { atomic.AddInt64(&m.Leaves, 1) }
func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"inputs_accepted":   atomic.LoadInt64(&m.InputsAccepted),
		"inputs_superseded": atomic.LoadInt64(&m.InputsSuperseded),
		"old_seq_ignored":   atomic.LoadInt64(&m.OldSeqIgnored),
		"unknown_entity":    atomic.LoadInt64(&m.UnknownEntity),
		"malformed":         atomic.LoadInt64(&m.Malformed),
		"drops_simulated":   atomic.LoadInt64(&m.DropsSimulated),
		"send_queue_full":   atomic.LoadInt64(&m.SendQueueFull),
		"joins":             atomic.LoadInt64(&m.Joins),
		"leaves":            atomic.LoadInt64(&m.Leaves),
		"avg_tick_ms":       avgMs,
	}
}
