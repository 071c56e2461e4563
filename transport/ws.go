package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"gridsync/logging"
	"gridsync/protocol"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSConn 基于 WebSocket 的 Conn：每个二进制帧承载一条消息，
// 读写各自一个协程，只与队列交互
type WSConn struct {
	ws   *websocket.Conn
	send chan []byte
	recv chan protocol.Message
	done chan struct{}
	once sync.Once

	mu  deadlock.Mutex // 保护 seq
	seq *sequencer
	log *zap.SugaredLogger
}

// NewWSConn 包装已建立的连接并启动读写协程
func NewWSConn(ws *websocket.Conn) *WSConn {
	c := &WSConn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		recv: make(chan protocol.Message, recvQueueSize),
		done: make(chan struct{}),
		seq:  newSequencer(),
		log:  logging.Named("ws").With("remote", ws.RemoteAddr().String()),
	}
	go c.writePump()
	go c.readPump()
	return c
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 无浏览器客户端，不校验来源
		return true
	},
}

// Upgrade 在 HTTP 处理函数中接入 WebSocket
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, eris.Wrap(err, "websocket upgrade")
	}
	return NewWSConn(ws), nil
}

// Dial 客户端连接服务端，如 ws://localhost:8080/ws
func Dial(ctx context.Context, url string) (*WSConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "dial %s", url)
	}
	return NewWSConn(ws), nil
}

// Send 编码并入队（非阻塞，满则丢弃）
func (c *WSConn) Send(m protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	c.seq.stamp(&m)
	c.mu.Unlock()
	b, err := m.Encode()
	if err != nil {
		return err
	}
	select {
	case c.send <- b:
		return nil
	default:
		// 为了实时性，丢弃新消息（防止阻塞 Tick）
		return eris.Wrapf(ErrQueueFull, "drop %s", m.Type)
	}
}

func (c *WSConn) Receive() (protocol.Message, bool) {
	select {
	case m := <-c.recv:
		return m, true
	default:
		return protocol.Message{}, false
	}
}

// Close 通知写协程发送关闭帧并释放底层连接
func (c *WSConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *WSConn) Done() <-chan struct{} { return c.done }

func (c *WSConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.done:
			// 关闭前尽量写出已入队的消息（如 Disconnect）
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			for len(c.send) > 0 {
				if err := c.ws.WriteMessage(websocket.BinaryMessage, <-c.send); err != nil {
					return
				}
			}
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				c.log.Debugf("write: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取帧，解析头部后放入接收队列；畸形帧只丢弃不断开
func (c *WSConn) readPump() {
	defer c.Close()
	c.ws.SetReadLimit(protocol.MaxMessageSize + protocol.HeaderSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Infof("read: %v", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		m, err := protocol.Parse(payload)
		if err != nil {
			c.log.Debugf("drop malformed frame: %v", err)
			continue
		}
		if !c.seq.accept(m) {
			continue
		}
		select {
		case c.recv <- m:
		default:
			c.log.Debugf("receive queue full, drop %s", m.Type)
		}
	}
}
