package server

import (
	"testing"

	"gridsync/config"
	"gridsync/ecs"
	"gridsync/grid"
	"gridsync/protocol"
	"gridsync/transport"
)

func testConfig() config.ServerConfig {
	return config.ServerConfig{
		ServerName: "test-arena",
		ServerID:   "t1",
		RoomID:     "room-1",
		MapWidth:   64,
		MapHeight:  64,
		SpawnX:     32,
		SpawnY:     32,
	}
}

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	r, err := NewRoom("room-1", testConfig())
	if err != nil {
		t.Fatalf("new room: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func drain(c transport.Conn) []protocol.Message {
	var out []protocol.Message
	for {
		m, ok := c.Receive()
		if !ok {
			return out
		}
		out = append(out, m)
	}
}

// joinClient 完成握手并返回客户端连接与分配到的网络 ID
func joinClient(t *testing.T, r *Room, name string) (transport.Conn, ecs.NetEntityID, []protocol.Message) {
	t.Helper()
	c, err := ServeLocal(r)
	if err != nil {
		t.Fatalf("serve local: %v", err)
	}
	if err := c.Send(protocol.NewMessage(protocol.MsgClientHello, protocol.ClientHello{
		ProtocolVersion: protocol.Version, ClientVersion: "test", PlayerName: name,
	})); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	r.Frame(0)
	msgs := drain(c)
	for _, m := range msgs {
		if m.Type == protocol.MsgServerHello {
			var sh protocol.ServerHello
			if err := protocol.Unmarshal(m.Payload, &sh); err != nil {
				t.Fatalf("decode hello: %v", err)
			}
			return c, sh.PlayerEntityID, msgs
		}
	}
	t.Fatalf("no ServerHello among %d messages", len(msgs))
	return nil, 0, nil
}

func TestJoinHandshakeOrder(t *testing.T) {
	r := newTestRoom(t)
	_, firstID, _ := joinClient(t, r, "alice")
	_, secondID, msgs := joinClient(t, r, "bob")

	if firstID == secondID || firstID == ecs.InvalidNetEntityID {
		t.Fatalf("ids %d and %d", firstID, secondID)
	}
	// ChunkData×N → ServerHello → 已有玩家 → 自己
	chunks := len(r.Tiles().ChunkOrigins())
	if len(msgs) != chunks+3 {
		t.Fatalf("got %d messages, want %d", len(msgs), chunks+3)
	}
	for i := 0; i < chunks; i++ {
		if msgs[i].Type != protocol.MsgChunkData {
			t.Fatalf("message %d is %s, want ChunkData", i, msgs[i].Type)
		}
	}
	if msgs[chunks].Type != protocol.MsgServerHello {
		t.Fatalf("expected ServerHello after chunks, got %s", msgs[chunks].Type)
	}
	var spawns []protocol.EntitySpawn
	for _, m := range msgs[chunks+1:] {
		var sp protocol.EntitySpawn
		if m.Type != protocol.MsgEntitySpawn || protocol.Unmarshal(m.Payload, &sp) != nil {
			t.Fatalf("expected EntitySpawn, got %s", m.Type)
		}
		spawns = append(spawns, sp)
	}
	if spawns[0].EntityID != firstID || spawns[0].Name != "alice" || spawns[1].EntityID != secondID {
		t.Fatalf("unexpected spawns %+v", spawns)
	}
	if spawns[1].Position != (grid.TilePos{X: 32, Y: 32}).Center() {
		t.Fatalf("spawned at %v", spawns[1].Position)
	}
	if r.Clients() != 2 || r.World().Count() != 2 {
		t.Fatalf("clients=%d entities=%d", r.Clients(), r.World().Count())
	}
}

func TestInputDrivesDelta(t *testing.T) {
	r := newTestRoom(t)
	r.UpdateSettings(func(s *Settings) { s.SnapshotEvery = 1 })
	c, id, _ := joinClient(t, r, "alice")

	if err := c.Send(protocol.NewMessage(protocol.MsgPlayerInput, protocol.PlayerInput{Tick: 5, MoveX: 1})); err != nil {
		t.Fatalf("send input: %v", err)
	}
	if steps := r.Frame(tickSeconds); steps != 1 {
		t.Fatalf("steps = %d", steps)
	}

	var delta protocol.DeltaState
	found := false
	for _, m := range drain(c) {
		if m.Type == protocol.MsgDeltaState {
			if err := protocol.Unmarshal(m.Payload, &delta); err != nil {
				t.Fatalf("decode delta: %v", err)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("no DeltaState broadcast")
	}
	if delta.Tick != 1 || len(delta.Entities) != 1 {
		t.Fatalf("delta %+v", delta)
	}
	e := delta.Entities[0]
	if e.NetID != id || !e.HasPlayer || !e.IsMoving || e.LastInputTick != 5 {
		t.Fatalf("entity state %+v", e)
	}
	if e.MoveTarget != (grid.TilePos{X: 33, Y: 32}) || e.Position.X <= 32.5 {
		t.Fatalf("player did not start moving east: %+v", e)
	}
}

func TestSnapshotRate(t *testing.T) {
	r := newTestRoom(t)
	c, _, _ := joinClient(t, r, "alice")
	for i := 0; i < 6; i++ {
		r.Frame(tickSeconds)
	}
	n := 0
	for _, m := range drain(c) {
		if m.Type == protocol.MsgDeltaState {
			n++
		}
	}
	if n != 6/DefaultSnapshotEvery {
		t.Fatalf("got %d snapshots in 6 ticks", n)
	}
}

func TestMalformedMessageDropped(t *testing.T) {
	r := newTestRoom(t)
	c, _, _ := joinClient(t, r, "alice")
	_ = c.Send(protocol.Message{Type: protocol.MsgPlayerInput, Payload: []byte{1, 2}})
	_ = c.Send(protocol.Message{Type: protocol.MessageType(0x7E)})
	r.Frame(0)
	if got := r.Metrics().Snapshot()["malformed"].(int64); got != 2 {
		t.Fatalf("malformed = %d", got)
	}
	if transport.Closed(c) || r.Clients() != 1 {
		t.Fatalf("malformed input must not drop the connection")
	}
}

func TestLeaveBroadcastsDespawn(t *testing.T) {
	r := newTestRoom(t)
	a, aID, _ := joinClient(t, r, "alice")
	b, _, _ := joinClient(t, r, "bob")
	drain(a)

	_ = b.Close()
	r.Frame(0)

	var despawned []ecs.NetEntityID
	for _, m := range drain(a) {
		if m.Type == protocol.MsgEntityDespawn {
			var d protocol.EntityDespawn
			if err := protocol.Unmarshal(m.Payload, &d); err != nil {
				t.Fatalf("decode: %v", err)
			}
			despawned = append(despawned, d.EntityID)
		}
	}
	if len(despawned) != 1 || despawned[0] == aID {
		t.Fatalf("despawned %v", despawned)
	}
	if r.Clients() != 1 || r.World().Count() != 1 {
		t.Fatalf("clients=%d entities=%d", r.Clients(), r.World().Count())
	}
}

func TestVersionMismatchRejected(t *testing.T) {
	r := newTestRoom(t)
	c, err := ServeLocal(r)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Send(protocol.NewMessage(protocol.MsgClientHello, protocol.ClientHello{ProtocolVersion: protocol.Version + 1}))
	r.Frame(0)
	msgs := drain(c)
	if len(msgs) != 1 || msgs[0].Type != protocol.MsgDisconnect {
		t.Fatalf("expected a single Disconnect, got %v", msgs)
	}
	var d protocol.Disconnect
	if err := protocol.Unmarshal(msgs[0].Payload, &d); err != nil || d.Reason != protocol.ReasonVersionMismatch {
		t.Fatalf("disconnect %+v %v", d, err)
	}
	if !transport.Closed(c) || r.Clients() != 0 {
		t.Fatalf("session should be closed")
	}
}

func TestTileEditBroadcastsChunk(t *testing.T) {
	r := newTestRoom(t)
	c, _, _ := joinClient(t, r, "alice")
	pos := grid.TilePos{X: 40, Y: 20}
	if err := r.EditTile(TileEdit{Pos: pos, Tile: grid.Tile{WallID: 2, Flags: grid.FlagSolid}}); err != nil {
		t.Fatal(err)
	}
	r.Frame(0)

	if r.Tiles().IsPassable(pos) {
		t.Fatalf("edit not applied")
	}
	var got *grid.Chunk
	for _, m := range drain(c) {
		if m.Type == protocol.MsgChunkData {
			var cd protocol.ChunkData
			if err := protocol.Unmarshal(m.Payload, &cd); err != nil {
				t.Fatal(err)
			}
			got = cd.Chunk
		}
	}
	if got == nil || got.Origin() != grid.ChunkOrigin(pos) {
		t.Fatalf("no ChunkData for edited chunk")
	}
	if tile := got.AtWorld(pos); tile == nil || tile.Passable() || tile.WallID != 2 {
		t.Fatalf("broadcast chunk has stale tile %+v", tile)
	}
}

func TestFrameClampsWallDelta(t *testing.T) {
	r := newTestRoom(t)
	steps := r.Frame(10)
	if steps < 14 || steps > 15 {
		t.Fatalf("clamped frame ran %d steps", steps)
	}
	if r.Frame(-1) != 0 {
		t.Fatalf("negative delta should not step")
	}
}

func TestSimulatedDrop(t *testing.T) {
	r := newTestRoom(t)
	r.UpdateSettings(func(s *Settings) {
		s.SnapshotEvery = 1
		s.SimulateDropProb = 1
	})
	c, _, _ := joinClient(t, r, "alice")
	r.Frame(tickSeconds)
	for _, m := range drain(c) {
		if m.Type == protocol.MsgDeltaState {
			t.Fatalf("delta should have been dropped")
		}
	}
	if r.Metrics().Snapshot()["drops_simulated"].(int64) == 0 {
		t.Fatalf("drop not counted")
	}
}
