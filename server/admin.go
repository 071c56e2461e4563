package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gridsync/grid"
	"gridsync/logging"
)

// roomFromQuery ?room=room-1，缺省为配置中的默认房间。
// 只有默认房间可按需创建，其余房间必须已存在
func (m *RoomManager) roomFromQuery(c *gin.Context) (*Room, bool) {
	id := c.DefaultQuery("room", m.cfg.RoomID)
	if id != m.cfg.RoomID {
		room, ok := m.Room(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown room " + id})
		}
		return room, ok
	}
	room, err := m.GetOrCreateRoom(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return room, true
}

// HandleGetConfig 返回房间当前配置
// GET /admin/config?room=room-1
func (m *RoomManager) HandleGetConfig(c *gin.Context) {
	room, ok := m.roomFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room.Settings())
}

// HandleUpdateConfig 以 JSON 载荷更新部分字段（热更新）
// POST /admin/config?room=room-1
func (m *RoomManager) HandleUpdateConfig(c *gin.Context) {
	room, ok := m.roomFromQuery(c)
	if !ok {
		return
	}
	var body struct {
		SnapshotEvery    *int     `json:"snapshotEvery,omitempty"`
		SimulateDropProb *float64 `json:"simulateDropProb,omitempty"`
		SimulateDelayMs  *int     `json:"simulateDelayMs,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.SimulateDropProb != nil && (*body.SimulateDropProb < 0 || *body.SimulateDropProb > 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "simulateDropProb must be in [0,1]"})
		return
	}
	if body.SimulateDelayMs != nil && *body.SimulateDelayMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "simulateDelayMs must be >= 0"})
		return
	}
	st := room.UpdateSettings(func(s *Settings) {
		if body.SnapshotEvery != nil {
			s.SnapshotEvery = *body.SnapshotEvery
		}
		if body.SimulateDropProb != nil {
			s.SimulateDropProb = *body.SimulateDropProb
		}
		if body.SimulateDelayMs != nil {
			s.SimulateDelayMs = *body.SimulateDelayMs
		}
	})
	logging.Log.Infof("config updated: room=%s snapshotEvery=%d delay=%dms drop=%.2f",
		room.ID, st.SnapshotEvery, st.SimulateDelayMs, st.SimulateDropProb)
	c.JSON(http.StatusOK, gin.H{"ok": true, "settings": st})
}

type tileRequest struct {
	X       int32  `json:"x"`
	Y       int32  `json:"y"`
	Floor   uint16 `json:"floor"`
	Wall    uint16 `json:"wall"`
	Overlay uint16 `json:"overlay"`
	Solid   bool   `json:"solid"`
	Opaque  bool   `json:"opaque"`
}

func (t tileRequest) tile() grid.Tile {
	tile := grid.Tile{FloorID: t.Floor, WallID: t.Wall, OverlayID: t.Overlay}
	if t.Solid {
		tile.Flags |= grid.FlagSolid
	}
	if t.Opaque {
		tile.Flags |= grid.FlagOpaque
	}
	return tile
}

// HandleEditTile 运行时修改一个格子，修改后的区块以 ChunkData 广播
// POST /admin/tile?room=room-1 {"x":10,"y":12,"solid":true,"wall":1}
func (m *RoomManager) HandleEditTile(c *gin.Context) {
	room, ok := m.roomFromQuery(c)
	if !ok {
		return
	}
	var req tileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	pos := grid.TilePos{X: req.X, Y: req.Y}
	if !room.Tiles().InBounds(pos) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tile outside map"})
		return
	}
	if err := room.EditTile(TileEdit{Pos: pos, Tile: req.tile()}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

// HandleMetrics 输出指定房间的运行指标
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(c *gin.Context) {
	room, ok := m.roomFromQuery(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":    room.ID,
		"tick":    room.Tick(),
		"clients": room.Clients(),
		"metrics": room.Metrics().Snapshot(),
	})
}

// NewRouter 注册 WebSocket、管理与监控接口
func NewRouter(m *RoomManager) *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())

	e.GET("/ws", m.HandleWS)
	e.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	e.GET("/metrics", m.HandleMetrics)

	admin := e.Group("/admin")
	admin.GET("/config", m.HandleGetConfig)
	admin.POST("/config", m.HandleUpdateConfig)
	admin.POST("/tile", m.HandleEditTile)
	return e
}
