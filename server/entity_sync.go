package server

import (
	"gridsync/ecs"
	"gridsync/game"
	"gridsync/protocol"
)

// BuildDelta 汇总所有带 Transform 的实体；玩家附带网格状态与已应用的输入 Tick
func (r *Room) BuildDelta() protocol.DeltaState {
	ds := protocol.DeltaState{
		Tick:     r.tick.Load(),
		Entities: make([]protocol.EntityDelta, 0, r.comps.Transform.Len()),
	}
	r.comps.Transform.Each(func(e ecs.Entity, t *game.Transform) {
		id := r.world.NetID(e)
		if id == ecs.InvalidNetEntityID {
			return
		}
		d := protocol.EntityDelta{NetID: id, Position: t.Position, Velocity: t.Velocity}
		if p := r.comps.Player.Get(e); p != nil {
			d.HasPlayer = true
			d.IsMoving = p.IsMoving
			d.GridPos = p.GridPos
			d.MoveTarget = p.MoveTarget
			d.InputDirection = p.InputDirection
			d.QueuedDirection = p.QueuedDirection
			d.LastInputTick = r.inputs.LastInputTick(id)
		}
		ds.Entities = append(ds.Entities, d)
	})
	return ds
}

// BroadcastDelta 将当前世界状态广播给所有已握手的玩家
func (r *Room) BroadcastDelta() {
	if r.clients.Load() == 0 {
		return
	}
	m := protocol.NewMessage(protocol.MsgDeltaState, r.BuildDelta())
	st := r.Settings()
	for _, s := range r.sessions {
		if s.Ready() {
			r.sendUnreliable(s, m, st)
		}
	}
}
