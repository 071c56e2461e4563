package protocol

import (
	"github.com/rotisserie/eris"

	"gridsync/ecs"
	"gridsync/grid"
	"gridsync/vec"
)

// Decoder 可从负载读取的结构
type Decoder interface {
	Decode(r *Reader)
}

// Unmarshal 解码负载；截断等错误统一在末尾返回
func Unmarshal(data []byte, d Decoder) error {
	r := NewReader(data)
	d.Decode(r)
	if err := r.Err(); err != nil {
		return eris.Wrapf(err, "decode %T", d)
	}
	return nil
}

// 按键位
const (
	ButtonInteract  uint8 = 0x01
	ButtonSecondary uint8 = 0x02
)

// ClientHello 客户端 -> 服务端：连接握手
type ClientHello struct {
	ProtocolVersion uint32
	ClientVersion   string
	PlayerName      string
}

func (p ClientHello) Encode(w *Writer) {
	w.U32(p.ProtocolVersion)
	w.Str(p.ClientVersion)
	w.Str(p.PlayerName)
}

func (p *ClientHello) Decode(r *Reader) {
	p.ProtocolVersion = r.U32()
	p.ClientVersion = r.Str()
	p.PlayerName = r.Str()
}

// ServerHello 服务端 -> 客户端：分配会话与本地玩家实体
type ServerHello struct {
	ProtocolVersion uint32
	ServerID        string
	ServerName      string
	SessionID       uint32
	PlayerEntityID  ecs.NetEntityID
}

func (p ServerHello) Encode(w *Writer) {
	w.U32(p.ProtocolVersion)
	w.Str(p.ServerID)
	w.Str(p.ServerName)
	w.U32(p.SessionID)
	w.U32(uint32(p.PlayerEntityID))
}

func (p *ServerHello) Decode(r *Reader) {
	p.ProtocolVersion = r.U32()
	p.ServerID = r.Str()
	p.ServerName = r.Str()
	p.SessionID = r.U32()
	p.PlayerEntityID = ecs.NetEntityID(r.U32())
}

// DisconnectReason 断开原因
type DisconnectReason uint8

const (
	ReasonUnknown DisconnectReason = iota
	ReasonClientQuit
	ReasonServerShutdown
	ReasonTimeout
	ReasonKicked
	ReasonBanned
	ReasonVersionMismatch
	ReasonAuthFailed
	ReasonServerFull
)

type Disconnect struct {
	Reason  DisconnectReason
	Message string
}

func (p Disconnect) Encode(w *Writer) {
	w.U8(uint8(p.Reason))
	w.Str(p.Message)
}

func (p *Disconnect) Decode(r *Reader) {
	p.Reason = DisconnectReason(r.U8())
	p.Message = r.Str()
}

// PlayerInput 客户端 -> 服务端，每个客户端 Tick 一条
type PlayerInput struct {
	Tick             uint32
	LastReceivedTick uint32 // 客户端见到的最新服务端 Tick
	MoveX            int8
	MoveY            int8
	Buttons          uint8
	TargetTile       grid.TilePos
}

func (p PlayerInput) Encode(w *Writer) {
	w.U32(p.Tick)
	w.U32(p.LastReceivedTick)
	w.I8(p.MoveX)
	w.I8(p.MoveY)
	w.U8(p.Buttons)
	w.TilePos(p.TargetTile)
}

func (p *PlayerInput) Decode(r *Reader) {
	p.Tick = r.U32()
	p.LastReceivedTick = r.U32()
	p.MoveX = r.I8()
	p.MoveY = r.I8()
	p.Buttons = r.U8()
	p.TargetTile = r.TilePos()
}

// Direction 移动方向
func (p PlayerInput) Direction() vec.Vec2i {
	return vec.Vec2i{X: int32(p.MoveX), Y: int32(p.MoveY)}
}

// EntitySpawn 实体出生（可靠）
type EntitySpawn struct {
	EntityID ecs.NetEntityID
	Position vec.Vec2f
	Name     string // 非玩家为空
	IsPlayer bool
}

func (p EntitySpawn) Encode(w *Writer) {
	w.U32(uint32(p.EntityID))
	w.Vec2f(p.Position)
	w.Str(p.Name)
	w.Bool(p.IsPlayer)
}

func (p *EntitySpawn) Decode(r *Reader) {
	p.EntityID = ecs.NetEntityID(r.U32())
	p.Position = r.Vec2f()
	p.Name = r.Str()
	p.IsPlayer = r.Bool()
}

// EntityDespawn 实体移除（可靠）
type EntityDespawn struct {
	EntityID ecs.NetEntityID
}

func (p EntityDespawn) Encode(w *Writer) { w.U32(uint32(p.EntityID)) }

func (p *EntityDespawn) Decode(r *Reader) { p.EntityID = ecs.NetEntityID(r.U32()) }

// EntityDelta DeltaState 中单个实体的状态
type EntityDelta struct {
	NetID     ecs.NetEntityID
	Position  vec.Vec2f
	Velocity  vec.Vec2f
	HasPlayer bool

	// 以下仅 HasPlayer 时有效
	IsMoving        bool
	GridPos         grid.TilePos
	MoveTarget      grid.TilePos
	InputDirection  vec.Vec2i
	QueuedDirection vec.Vec2i
	LastInputTick   uint32 // 服务端已应用的该玩家最新输入 Tick
}

// DeltaState 服务端 -> 客户端快照（不可靠有序）
type DeltaState struct {
	Tick     uint32
	Entities []EntityDelta
}

func (p DeltaState) Encode(w *Writer) {
	w.U32(p.Tick)
	w.U32(uint32(len(p.Entities)))
	for _, e := range p.Entities {
		w.U32(uint32(e.NetID))
		w.Vec2f(e.Position)
		w.Vec2f(e.Velocity)
		w.Bool(e.HasPlayer)
		if !e.HasPlayer {
			continue
		}
		w.Bool(e.IsMoving)
		w.TilePos(e.GridPos)
		w.TilePos(e.MoveTarget)
		w.I8(int8(e.InputDirection.X))
		w.I8(int8(e.InputDirection.Y))
		w.I8(int8(e.QueuedDirection.X))
		w.I8(int8(e.QueuedDirection.Y))
		w.U32(e.LastInputTick)
	}
}

// 每个实体最少 21 字节，用于在分配前拦截伪造的 count
const minEntityDeltaSize = 4 + 8 + 8 + 1

func (p *DeltaState) Decode(r *Reader) {
	p.Tick = r.U32()
	n := r.U32()
	if uint64(n)*minEntityDeltaSize > uint64(r.Remaining()) {
		r.need(int(min(uint64(n)*minEntityDeltaSize, uint64(MaxMessageSize)+1)))
		return
	}
	p.Entities = make([]EntityDelta, 0, n)
	for i := uint32(0); i < n && r.Err() == nil; i++ {
		var e EntityDelta
		e.NetID = ecs.NetEntityID(r.U32())
		e.Position = r.Vec2f()
		e.Velocity = r.Vec2f()
		e.HasPlayer = r.Bool()
		if e.HasPlayer {
			e.IsMoving = r.Bool()
			e.GridPos = r.TilePos()
			e.MoveTarget = r.TilePos()
			e.InputDirection = vec.Vec2i{X: int32(r.I8()), Y: int32(r.I8())}
			e.QueuedDirection = vec.Vec2i{X: int32(r.I8()), Y: int32(r.I8())}
			e.LastInputTick = r.U32()
		}
		p.Entities = append(p.Entities, e)
	}
}

// ChunkData 地图区块（可靠有序），附带地图边界
type ChunkData struct {
	MapWidth  int32
	MapHeight int32
	Chunk     *grid.Chunk
}

func (p ChunkData) Encode(w *Writer) {
	w.I32(p.MapWidth)
	w.I32(p.MapHeight)
	w.TilePos(p.Chunk.Origin())
	for _, t := range p.Chunk.Tiles() {
		w.U16(t.FloorID)
		w.U16(t.WallID)
		w.U16(t.OverlayID)
		w.U8(uint8(t.Flags))
	}
}

func (p *ChunkData) Decode(r *Reader) {
	p.MapWidth = r.I32()
	p.MapHeight = r.I32()
	c := grid.NewChunk(r.TilePos())
	tiles := c.Tiles()
	for i := range tiles {
		tiles[i] = grid.Tile{
			FloorID:   r.U16(),
			WallID:    r.U16(),
			OverlayID: r.U16(),
			Flags:     grid.TileFlags(r.U8()),
		}
	}
	p.Chunk = c
}
