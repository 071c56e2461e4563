package client

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"gridsync/ecs"
	"gridsync/game"
	"gridsync/grid"
	"gridsync/logging"
	"gridsync/prediction"
	"gridsync/protocol"
	"gridsync/transport"
	"gridsync/vec"
)

// ErrDisconnected 服务端断开或连接关闭
var ErrDisconnected = eris.New("disconnected")

// ClientVersion 握手时上报的客户端版本
const ClientVersion = "gridsync-0.1"

const tickSeconds = 1.0 / game.TickRate

// Client 无界面客户端：固定步长预测本地玩家，插值远端实体。
// 所有方法都应在同一个协程中调用（Run 或测试驱动的 Frame）。
type Client struct {
	conn   transport.Conn
	name   string
	source InputSource

	world  *ecs.World
	comps  game.Components
	tiles  *grid.TileMap
	pred   *prediction.System
	interp *prediction.Interpolation

	tick        uint32 // 本地输入 Tick
	serverTick  uint32 // 收到的最新快照 Tick
	localID     ecs.NetEntityID
	sessionID   uint32
	serverName  string
	accumulator float64
	closed      *protocol.Disconnect
	malformed   int

	log *zap.SugaredLogger
}

// New 创建客户端并发送 ClientHello
func New(conn transport.Conn, name string, source InputSource) (*Client, error) {
	if source == nil {
		source = Idle{}
	}
	c := &Client{
		conn:   conn,
		name:   name,
		source: source,
		world:  ecs.NewWorld(),
		tiles:  grid.NewTileMap(),
		interp: prediction.NewInterpolation(),
		log:    logging.Named("client").With("player", name),
	}
	c.comps = game.RegisterComponents(c.world)
	c.pred = prediction.NewSystem(c.world, c.comps, c.tiles)

	err := conn.Send(protocol.NewMessage(protocol.MsgClientHello, protocol.ClientHello{
		ProtocolVersion: protocol.Version,
		ClientVersion:   ClientVersion,
		PlayerName:      name,
	}))
	if err != nil {
		return nil, eris.Wrap(err, "send hello")
	}
	return c, nil
}

// Ready 是否已收到 ServerHello
func (c *Client) Ready() bool { return c.localID != ecs.InvalidNetEntityID }

func (c *Client) LocalID() ecs.NetEntityID { return c.localID }
func (c *Client) SessionID() uint32 { return c.sessionID }
func (c *Client) ServerName() string { return c.serverName }
func (c *Client) ServerTick() uint32 { return c.serverTick }
func (c *Client) InputTick() uint32 { return c.tick }
func (c *Client) Tiles() *grid.TileMap { return c.tiles }
func (c *Client) Prediction() *prediction.System { return c.pred }
func (c *Client) Interpolation() *prediction.Interpolation { return c.interp }
func (c *Client) Malformed() int { return c.malformed }

// Position 渲染用位置：本地玩家为平滑后的预测位置，远端为插值位置
func (c *Client) Position(id ecs.NetEntityID) (vec.Vec2f, bool) {
	e, ok := c.world.EntityByNetID(id)
	if !ok {
		return vec.Vec2f{}, false
	}
	t := c.comps.Transform.Get(e)
	if t == nil {
		return vec.Vec2f{}, false
	}
	return t.Position, true
}

// Positions 所有已知实体的渲染位置
func (c *Client) Positions() map[ecs.NetEntityID]vec.Vec2f {
	out := make(map[ecs.NetEntityID]vec.Vec2f, c.comps.Transform.Len())
	c.comps.Transform.Each(func(e ecs.Entity, t *game.Transform) {
		if id := c.world.NetID(e); id != ecs.InvalidNetEntityID {
			out[id] = t.Position
		}
	})
	return out
}

// Player 实体的玩家组件（只读用途）
func (c *Client) Player(id ecs.NetEntityID) (game.Player, bool) {
	e, ok := c.world.EntityByNetID(id)
	if !ok {
		return game.Player{}, false
	}
	p := c.comps.Player.Get(e)
	if p == nil {
		return game.Player{}, false
	}
	return *p, true
}

// Frame 推进一帧：处理网络消息，按固定 Tick 预测本地玩家，再推进远端插值
func (c *Client) Frame(wall float64) error {
	if wall > game.MaxFrameDelta {
		wall = game.MaxFrameDelta
	}
	if wall < 0 {
		wall = 0
	}
	c.ProcessNetwork()
	if c.closed != nil {
		return eris.Wrapf(ErrDisconnected, "reason %d: %s", c.closed.Reason, c.closed.Message)
	}
	if transport.Closed(c.conn) {
		return eris.Wrap(ErrDisconnected, "connection closed")
	}

	c.accumulator += wall
	for c.accumulator >= tickSeconds {
		c.Step()
		c.accumulator -= tickSeconds
	}

	c.interp.Update(float32(wall))
	c.applyInterpolation()
	return nil
}

// Step 一个客户端 Tick：采样输入，发送，立即预测
func (c *Client) Step() {
	if !c.Ready() {
		return
	}
	c.tick++
	dir := c.source.Direction(c.tick)
	in := game.InputSnapshot{Tick: c.tick, MoveX: int8(dir.X), MoveY: int8(dir.Y)}
	c.pred.RecordInput(in)

	err := c.conn.Send(protocol.NewMessage(protocol.MsgPlayerInput, protocol.PlayerInput{
		Tick:             in.Tick,
		LastReceivedTick: c.serverTick,
		MoveX:            in.MoveX,
		MoveY:            in.MoveY,
	}))
	if err != nil {
		c.log.Debugf("send input %d: %v", in.Tick, err)
	}
	c.pred.Update(game.TickInterval)
}

// applyInterpolation 把插值位置写回所有远端实体（含非玩家实体）的 Transform
func (c *Client) applyInterpolation() {
	c.comps.Transform.Each(func(e ecs.Entity, t *game.Transform) {
		id := c.world.NetID(e)
		if id == ecs.InvalidNetEntityID || id == c.localID {
			return
		}
		t.Position = c.interp.Position(id, t.Position)
	})
}

// Close 通知服务端后关闭连接
func (c *Client) Close() {
	if transport.Closed(c.conn) {
		return
	}
	_ = c.conn.Send(protocol.NewMessage(protocol.MsgDisconnect, protocol.Disconnect{
		Reason: protocol.ReasonClientQuit, Message: "bye",
	}))
	_ = c.conn.Close()
}

// Run 以固定帧节拍运行直到 ctx 取消或连接断开
func (c *Client) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / game.TickRate)
	defer ticker.Stop()
	status := time.NewTicker(5 * time.Second)
	defer status.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case now := <-ticker.C:
			if err := c.Frame(now.Sub(last).Seconds()); err != nil {
				_ = c.conn.Close()
				return err
			}
			last = now
		case <-status.C:
			pos, _ := c.Position(c.localID)
			c.log.Infow("status",
				"tick", c.tick,
				"server_tick", c.serverTick,
				"pos", pos,
				"error", c.pred.PositionError(),
				"entities", c.world.Count())
		}
	}
}
