package server

import (
	"gridsync/ecs"
	"gridsync/game"
	"gridsync/protocol"
)

// InputProcessor 每个网络实体最多保留一条未消费的输入（新输入覆盖旧输入），
// 由服务端在 Tick 中解释并驱动世界状态
type InputProcessor struct {
	world   *ecs.World
	comps   game.Components
	tiles   game.Passability
	metrics *RoomMetrics

	pending  map[ecs.NetEntityID]protocol.PlayerInput
	lastTick map[ecs.NetEntityID]uint32 // 已应用的最新客户端 Tick
}

func NewInputProcessor(w *ecs.World, c game.Components, tiles game.Passability, m *RoomMetrics) *InputProcessor {
	if m == nil {
		m = &RoomMetrics{}
	}
	return &InputProcessor{
		world:    w,
		comps:    c,
		tiles:    tiles,
		metrics:  m,
		pending:  make(map[ecs.NetEntityID]protocol.PlayerInput),
		lastTick: make(map[ecs.NetEntityID]uint32),
	}
}

// SetInput 记录入站输入（不立即改变位置），等下一次 Tick 处理
func (p *InputProcessor) SetInput(id ecs.NetEntityID, in protocol.PlayerInput) {
	if last, ok := p.lastTick[id]; ok && in.Tick <= last {
		p.metrics.IncOldSeqIgnored()
		return
	}
	if prev, ok := p.pending[id]; ok {
		if in.Tick <= prev.Tick {
			p.metrics.IncOldSeqIgnored()
			return
		}
		p.metrics.IncSuperseded()
	}
	p.pending[id] = in
	p.metrics.IncAccepted()
}

// Update 先应用待处理输入，再以固定 dt 推进所有玩家
func (p *InputProcessor) Update(dt float32) {
	for id, in := range p.pending {
		delete(p.pending, id)
		e, ok := p.world.EntityByNetID(id)
		if !ok {
			p.metrics.IncUnknownEntity()
			continue
		}
		pl := p.comps.Player.Get(e)
		if pl == nil {
			p.metrics.IncUnknownEntity()
			continue
		}
		game.ApplyInput(pl, in.Direction())
		p.lastTick[id] = in.Tick
	}

	ecs.Each2(p.comps.Transform, p.comps.Player, func(_ ecs.Entity, t *game.Transform, pl *game.Player) {
		game.UpdateMovement(t, pl, p.tiles, dt)
	})
}

// LastInputTick 该实体已应用的最新客户端输入 Tick，未收到过输入返回 0
func (p *InputProcessor) LastInputTick(id ecs.NetEntityID) uint32 { return p.lastTick[id] }

// Pending 是否有尚未应用的输入
func (p *InputProcessor) Pending(id ecs.NetEntityID) bool {
	_, ok := p.pending[id]
	return ok
}

// Forget 玩家离开时清理
func (p *InputProcessor) Forget(id ecs.NetEntityID) {
	delete(p.pending, id)
	delete(p.lastTick, id)
}
