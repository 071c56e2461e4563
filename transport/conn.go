package transport

import (
	"github.com/rotisserie/eris"

	"gridsync/protocol"
)

var (
	// ErrQueueFull 发送队列已满，消息被丢弃
	ErrQueueFull = eris.New("send queue full")
	// ErrClosed 连接已关闭
	ErrClosed = eris.New("connection closed")
)

const (
	sendQueueSize = 256
	recvQueueSize = 256
)

// Conn 消息通道。Send/Receive 均不阻塞，供模拟线程每帧轮询。
type Conn interface {
	// Send 入队一条消息，序号由连接分配
	Send(m protocol.Message) error
	// Receive 取出一条已到达的消息，没有时返回 false
	Receive() (protocol.Message, bool)
	Close() error
	// Done 连接关闭（任一端）时关闭
	Done() <-chan struct{}
	RemoteAddr() string
}

// Closed 非阻塞地判断连接是否已关闭
func Closed(c Conn) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
