package server

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"gridsync/config"
	"gridsync/ecs"
	"gridsync/game"
	"gridsync/grid"
	"gridsync/logging"
	"gridsync/protocol"
	"gridsync/transport"
)

// Settings 可在运行时通过 /admin/config 热更新的房间参数
type Settings struct {
	SnapshotEvery    int     `json:"snapshotEvery"` // 每隔多少 Tick 广播一次 DeltaState
	SimulateDropProb float64 `json:"simulateDropProb"`
	SimulateDelayMs  int     `json:"simulateDelayMs"`
}

// DefaultSnapshotEvery 60Hz 模拟下 20Hz 快照
const DefaultSnapshotEvery = 3

// TileEdit 一次运行时格子修改
type TileEdit struct {
	Pos  grid.TilePos
	Tile grid.Tile
}

// Room 房间世界：权威状态维护在内存，单协程 Tick 推进。
// World/TileMap/sessions 只在模拟协程中访问，其他协程经通道交互。
type Room struct {
	ID string

	cfg    config.ServerConfig
	world  *ecs.World
	comps  game.Components
	tiles  *grid.TileMap
	spawn  grid.TilePos
	inputs *InputProcessor
	chunks *ChunkCache

	sessions    map[uint32]*Session
	nextSession uint32

	joinChan chan transport.Conn
	editChan chan TileEdit

	settingsMu deadlock.RWMutex
	settings   Settings

	tick        atomic.Uint32
	clients     atomic.Int32
	accumulator float64
	lastFrame   time.Time
	started     atomic.Bool

	metrics *RoomMetrics
	rng     *rand.Rand
	log     *zap.SugaredLogger
}

// NewRoom 创建房间，初始化带边界墙的地图
func NewRoom(id string, cfg config.ServerConfig) (*Room, error) {
	chunks, err := NewChunkCache()
	if err != nil {
		return nil, err
	}
	r := &Room{
		ID:       id,
		cfg:      cfg,
		world:    ecs.NewWorld(),
		tiles:    grid.NewWalledMap(cfg.MapWidth, cfg.MapHeight),
		spawn:    grid.TilePos{X: cfg.SpawnX, Y: cfg.SpawnY},
		chunks:   chunks,
		sessions: make(map[uint32]*Session),
		joinChan: make(chan transport.Conn, 64), // 足够缓冲，避免 HTTP 协程阻塞
		editChan: make(chan TileEdit, 64),
		settings: Settings{
			SnapshotEvery:    DefaultSnapshotEvery,
			SimulateDropProb: cfg.SimulateDropProb,
			SimulateDelayMs:  cfg.SimulateDelayMs,
		},
		metrics: &RoomMetrics{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     logging.Named("room").With("room", id),
	}
	r.comps = game.RegisterComponents(r.world)
	r.inputs = NewInputProcessor(r.world, r.comps, r.tiles, r.metrics)
	return r, nil
}

// Join 接入新连接（任意协程调用）。队列满时直接拒绝。
func (r *Room) Join(c transport.Conn) error {
	select {
	case r.joinChan <- c:
		return nil
	default:
		r.reject(c, protocol.ReasonServerFull, "join queue full")
		return eris.New("join queue full")
	}
}

// EditTile 请求在模拟协程中修改格子并广播
func (r *Room) EditTile(e TileEdit) error {
	select {
	case r.editChan <- e:
		return nil
	default:
		return eris.New("edit queue full")
	}
}

func (r *Room) Settings() Settings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

// UpdateSettings 原子地修改参数
func (r *Room) UpdateSettings(fn func(s *Settings)) Settings {
	r.settingsMu.Lock()
	defer r.settingsMu.Unlock()
	fn(&r.settings)
	if r.settings.SnapshotEvery < 1 {
		r.settings.SnapshotEvery = 1
	}
	return r.settings
}

func (r *Room) Tick() uint32 { return r.tick.Load() }
func (r *Room) Clients() int { return int(r.clients.Load()) }
func (r *Room) Metrics() *RoomMetrics { return r.metrics }
func (r *Room) Tiles() *grid.TileMap { return r.tiles }
func (r *Room) World() *ecs.World { return r.world }
func (r *Room) Comps() game.Components { return r.comps }

// ProcessNetwork 处理本帧的接入、格子修改与所有连接上的消息（非阻塞 drain）
func (r *Room) ProcessNetwork() {
	for {
		select {
		case c := <-r.joinChan:
			r.accept(c)
		case e := <-r.editChan:
			r.applyEdit(e)
		default:
			r.pollSessions()
			return
		}
	}
}

func (r *Room) accept(c transport.Conn) {
	if len(r.sessions) >= protocol.MaxPlayers {
		r.reject(c, protocol.ReasonServerFull, "server full")
		return
	}
	r.nextSession++
	s := &Session{ID: r.nextSession, Conn: c}
	r.sessions[s.ID] = s
	r.clients.Store(int32(len(r.sessions)))
	r.log.Debugf("connection %d from %s", s.ID, c.RemoteAddr())
}

func (r *Room) reject(c transport.Conn, reason protocol.DisconnectReason, msg string) {
	_ = c.Send(protocol.NewMessage(protocol.MsgDisconnect, protocol.Disconnect{Reason: reason, Message: msg}))
	_ = c.Close()
}

func (r *Room) pollSessions() {
	for id, s := range r.sessions {
		for {
			m, ok := s.Conn.Receive()
			if !ok {
				break
			}
			if !r.handleMessage(s, m) {
				break
			}
		}
		if _, still := r.sessions[id]; still && transport.Closed(s.Conn) {
			r.leave(s)
		}
	}
}

// handleMessage 返回 false 表示会话已移除
func (r *Room) handleMessage(s *Session, m protocol.Message) bool {
	switch m.Type {
	case protocol.MsgClientHello:
		var hello protocol.ClientHello
		if err := protocol.Unmarshal(m.Payload, &hello); err != nil {
			r.malformed(s, m, err)
			return true
		}
		return r.handshake(s, hello)
	case protocol.MsgPlayerInput:
		var in protocol.PlayerInput
		if err := protocol.Unmarshal(m.Payload, &in); err != nil {
			r.malformed(s, m, err)
			return true
		}
		if !s.Ready() {
			return true
		}
		if in.LastReceivedTick > s.LastReceivedTick {
			s.LastReceivedTick = in.LastReceivedTick
		}
		r.inputs.SetInput(s.NetID, in)
	case protocol.MsgDisconnect:
		r.leave(s)
		return false
	default:
		r.malformed(s, m, eris.Wrapf(protocol.ErrUnknownMessage, "%s", m.Type))
	}
	return true
}

func (r *Room) malformed(s *Session, m protocol.Message, err error) {
	r.metrics.IncMalformed()
	r.log.Debugw("drop message", "session", s.ID, "type", m.Type.String(), "err", err)
}

// handshake 校验版本，生成玩家，按序发送 ChunkData、ServerHello、已有实体的 EntitySpawn，
// 然后向所有人广播新玩家
func (r *Room) handshake(s *Session, hello protocol.ClientHello) bool {
	if s.Ready() {
		return true
	}
	if hello.ProtocolVersion != protocol.Version {
		r.log.Infof("session %d version mismatch: %d", s.ID, hello.ProtocolVersion)
		r.reject(s.Conn, protocol.ReasonVersionMismatch, "protocol version mismatch")
		r.remove(s)
		return false
	}

	s.Name = hello.PlayerName
	s.Entity = game.SpawnPlayer(r.world, r.comps, r.spawn, game.Player{Name: s.Name, SessionID: s.ID})
	s.NetID = r.world.AllocateNetID()
	r.world.AssignNetID(s.Entity, s.NetID)

	for _, origin := range r.tiles.ChunkOrigins() {
		if payload, ok := r.chunks.Payload(r.tiles, origin); ok {
			r.send(s, protocol.Message{Type: protocol.MsgChunkData, Payload: payload})
		}
	}
	r.send(s, protocol.NewMessage(protocol.MsgServerHello, protocol.ServerHello{
		ProtocolVersion: protocol.Version,
		ServerID:        r.cfg.ServerID,
		ServerName:      r.cfg.ServerName,
		SessionID:       s.ID,
		PlayerEntityID:  s.NetID,
	}))
	for _, other := range r.sessions {
		if other == s || !other.Ready() {
			continue
		}
		r.send(s, r.spawnMessage(other))
	}
	r.broadcast(r.spawnMessage(s))

	r.metrics.IncJoins()
	r.log.Infof("player %q joined as entity %d (session %d)", s.Name, s.NetID, s.ID)
	return true
}

func (r *Room) spawnMessage(s *Session) protocol.Message {
	pos := r.spawn.Center()
	if t := r.comps.Transform.Get(s.Entity); t != nil {
		pos = t.Position
	}
	return protocol.NewMessage(protocol.MsgEntitySpawn, protocol.EntitySpawn{
		EntityID: s.NetID,
		Position: pos,
		Name:     s.Name,
		IsPlayer: true,
	})
}

// leave 在模拟协程中移除玩家并通知其他人
func (r *Room) leave(s *Session) {
	_ = s.Conn.Close()
	if s.Ready() {
		r.inputs.Forget(s.NetID)
		r.world.Destroy(s.Entity)
		r.broadcast(protocol.NewMessage(protocol.MsgEntityDespawn, protocol.EntityDespawn{EntityID: s.NetID}))
		r.metrics.IncLeaves()
		r.log.Infof("player %q (entity %d) left", s.Name, s.NetID)
	}
	r.remove(s)
}

func (r *Room) remove(s *Session) {
	delete(r.sessions, s.ID)
	r.clients.Store(int32(len(r.sessions)))
}

func (r *Room) applyEdit(e TileEdit) {
	if !r.tiles.InBounds(e.Pos) {
		r.log.Debugf("ignore edit outside map at %v", e.Pos)
		return
	}
	r.tiles.SetTile(e.Pos, e.Tile)
	origin := grid.ChunkOrigin(e.Pos)
	r.chunks.Invalidate(origin)
	if payload, ok := r.chunks.Payload(r.tiles, origin); ok {
		r.broadcast(protocol.Message{Type: protocol.MsgChunkData, Payload: payload})
	}
	r.log.Infof("tile %v set to %+v", e.Pos, e.Tile)
}

// Step 推进一个固定 Tick：应用输入并移动，按频率广播快照
func (r *Room) Step() {
	start := time.Now()
	tick := r.tick.Add(1)
	r.inputs.Update(game.TickInterval)
	if every := r.Settings().SnapshotEvery; every <= 1 || tick%uint32(every) == 0 {
		r.BroadcastDelta()
	}
	r.metrics.AddTick(time.Since(start).Nanoseconds())
}

// send 可靠消息，直接入队
func (r *Room) send(s *Session, m protocol.Message) {
	if err := s.Conn.Send(m); err != nil {
		if eris.Is(err, transport.ErrQueueFull) {
			r.metrics.IncSendQueueFull()
		}
		r.log.Debugf("send %s to session %d: %v", m.Type, s.ID, err)
	}
}

// broadcast 发给所有已握手的会话
func (r *Room) broadcast(m protocol.Message) {
	for _, s := range r.sessions {
		if s.Ready() {
			r.send(s, m)
		}
	}
}

// sendUnreliable 不可靠消息，受模拟丢包与延迟影响
func (r *Room) sendUnreliable(s *Session, m protocol.Message, st Settings) {
	if st.SimulateDropProb > 0 && r.rng.Float64() < st.SimulateDropProb {
		r.metrics.IncDropsSimulated()
		return
	}
	if st.SimulateDelayMs > 0 {
		conn := s.Conn
		time.AfterFunc(time.Duration(st.SimulateDelayMs)*time.Millisecond, func() {
			_ = conn.Send(m)
		})
		return
	}
	r.send(s, m)
}

// Close 关闭所有连接
func (r *Room) Close() {
	for _, s := range r.sessions {
		r.reject(s.Conn, protocol.ReasonServerShutdown, "server shutting down")
		r.remove(s)
	}
	r.chunks.Close()
}
