package client

import (
	"gridsync/ecs"
	"gridsync/game"
	"gridsync/grid"
	"gridsync/prediction"
	"gridsync/protocol"
)

// ProcessNetwork 取出所有已到达的消息并在当前协程处理
func (c *Client) ProcessNetwork() {
	for {
		m, ok := c.conn.Receive()
		if !ok {
			return
		}
		if err := c.handle(m); err != nil {
			c.malformed++
			c.log.Debugf("drop %s: %v", m.Type, err)
		}
	}
}

func (c *Client) handle(m protocol.Message) error {
	switch m.Type {
	case protocol.MsgChunkData:
		var cd protocol.ChunkData
		if err := protocol.Unmarshal(m.Payload, &cd); err != nil {
			return err
		}
		c.tiles.SetBounds(cd.MapWidth, cd.MapHeight)
		c.tiles.PutChunk(cd.Chunk)
	case protocol.MsgServerHello:
		var sh protocol.ServerHello
		if err := protocol.Unmarshal(m.Payload, &sh); err != nil {
			return err
		}
		c.onHello(sh)
	case protocol.MsgEntitySpawn:
		var sp protocol.EntitySpawn
		if err := protocol.Unmarshal(m.Payload, &sp); err != nil {
			return err
		}
		c.onSpawn(sp)
	case protocol.MsgEntityDespawn:
		var d protocol.EntityDespawn
		if err := protocol.Unmarshal(m.Payload, &d); err != nil {
			return err
		}
		c.onDespawn(d.EntityID)
	case protocol.MsgDeltaState:
		var ds protocol.DeltaState
		if err := protocol.Unmarshal(m.Payload, &ds); err != nil {
			return err
		}
		c.onDelta(ds)
	case protocol.MsgDisconnect:
		var d protocol.Disconnect
		if err := protocol.Unmarshal(m.Payload, &d); err != nil {
			return err
		}
		c.closed = &d
		c.log.Infof("disconnected by server: reason=%d %s", d.Reason, d.Message)
	default:
		return protocol.ErrUnknownMessage
	}
	return nil
}

// onHello 记录本地玩家 ID；若实体已先到达则立即标记
func (c *Client) onHello(sh protocol.ServerHello) {
	c.localID = sh.PlayerEntityID
	c.sessionID = sh.SessionID
	c.serverName = sh.ServerName
	c.tick = 0
	c.pred.SetLocalPlayer(sh.PlayerEntityID)
	if e, ok := c.world.EntityByNetID(sh.PlayerEntityID); ok {
		if p := c.comps.Player.Get(e); p != nil {
			p.IsLocal = true
		}
		c.interp.Remove(sh.PlayerEntityID)
	}
	c.log.Infof("joined %q as entity %d (session %d)", sh.ServerName, sh.PlayerEntityID, sh.SessionID)
}

func (c *Client) onSpawn(sp protocol.EntitySpawn) {
	if _, exists := c.world.EntityByNetID(sp.EntityID); exists {
		return
	}
	local := sp.EntityID == c.localID
	var e ecs.Entity
	if sp.IsPlayer {
		e = game.SpawnPlayer(c.world, c.comps, grid.FromWorld(sp.Position), game.Player{Name: sp.Name, IsLocal: local})
	} else {
		e = c.world.Create()
	}
	c.comps.Transform.Set(e, game.Transform{Position: sp.Position})
	c.world.AssignNetID(e, sp.EntityID)
	if !local {
		c.interp.SetTarget(sp.EntityID, sp.Position)
	}
}

func (c *Client) onDespawn(id ecs.NetEntityID) {
	e, ok := c.world.EntityByNetID(id)
	if !ok {
		return
	}
	c.world.Destroy(e)
	c.interp.Remove(id)
}

func toState(d protocol.EntityDelta) prediction.EntityState {
	return prediction.EntityState{
		NetID:           d.NetID,
		Position:        d.Position,
		Velocity:        d.Velocity,
		HasPlayer:       d.HasPlayer,
		GridPos:         d.GridPos,
		MoveTarget:      d.MoveTarget,
		InputDirection:  d.InputDirection,
		QueuedDirection: d.QueuedDirection,
		IsMoving:        d.IsMoving,
		LastInputTick:   d.LastInputTick,
	}
}

// onDelta 本地玩家条目交给和解，其余实体交给插值；未知实体本 Tick 忽略
func (c *Client) onDelta(ds protocol.DeltaState) {
	if ds.Tick <= c.serverTick {
		return
	}
	c.serverTick = ds.Tick

	states := make([]prediction.EntityState, 0, len(ds.Entities))
	for _, d := range ds.Entities {
		states = append(states, toState(d))
	}
	for _, s := range states {
		if s.NetID == c.localID {
			if s.HasPlayer {
				c.pred.OnServerState(s.LastInputTick, states)
			}
			continue
		}
		e, ok := c.world.EntityByNetID(s.NetID)
		if !ok {
			continue
		}
		c.interp.SetTarget(s.NetID, s.Position)
		if t := c.comps.Transform.Get(e); t != nil {
			t.Velocity = s.Velocity
		}
		if p := c.comps.Player.Get(e); p != nil && s.HasPlayer {
			p.GridPos = s.GridPos
			p.MoveTarget = s.MoveTarget
			p.IsMoving = s.IsMoving
			p.InputDirection = s.InputDirection
		}
	}
}
