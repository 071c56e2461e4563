package server

import (
	"github.com/gin-gonic/gin"

	"gridsync/logging"
	"gridsync/transport"
)

// HandleWS WebSocket 接入：/ws?room=room-1，握手消息由房间处理
func (m *RoomManager) HandleWS(c *gin.Context) {
	room, ok := m.roomFromQuery(c)
	if !ok {
		return
	}
	conn, err := transport.Upgrade(c.Writer, c.Request)
	if err != nil {
		logging.Log.Warnf("upgrade error: %v", err)
		return
	}
	if err := room.Join(conn); err != nil {
		logging.Log.Warnf("join %s: %v", room.ID, err)
	}
}

// ServeLocal 进程内接入（本地模式），返回客户端一侧的连接
func ServeLocal(room *Room) (transport.Conn, error) {
	client, server := transport.Pipe()
	if err := room.Join(server); err != nil {
		return nil, err
	}
	return client, nil
}
