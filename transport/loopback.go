package transport

import (
	"github.com/rotisserie/eris"
	"github.com/sasha-s/go-deadlock"

	"gridsync/protocol"
)

// pipe 一对 LoopConn 共享的关闭状态
type pipe struct {
	mu     deadlock.Mutex
	closed bool
	done   chan struct{}
}

func (p *pipe) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

// LoopConn 进程内回环连接，用于本地模式与测试。消息经过编码再解析，
// 与网络路径走同样的字节格式。
type LoopConn struct {
	p    *pipe
	in   chan []byte
	out  chan []byte
	seq  *sequencer
	name string
}

// Pipe 创建一对相连的回环连接
func Pipe() (*LoopConn, *LoopConn) {
	p := &pipe{done: make(chan struct{})}
	ab := make(chan []byte, sendQueueSize)
	ba := make(chan []byte, sendQueueSize)
	a := &LoopConn{p: p, in: ba, out: ab, seq: newSequencer(), name: "loopback-a"}
	b := &LoopConn{p: p, in: ab, out: ba, seq: newSequencer(), name: "loopback-b"}
	return a, b
}

func (c *LoopConn) Send(m protocol.Message) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if c.p.closed {
		return ErrClosed
	}
	c.seq.stamp(&m)
	b, err := m.Encode()
	if err != nil {
		return err
	}
	select {
	case c.out <- b:
		return nil
	default:
		return eris.Wrapf(ErrQueueFull, "drop %s", m.Type)
	}
}

// Receive 关闭后仍会交付已在队列中的消息
func (c *LoopConn) Receive() (protocol.Message, bool) {
	for {
		select {
		case b := <-c.in:
			m, err := protocol.Parse(b)
			if err != nil || !c.seq.accept(m) {
				continue
			}
			return m, true
		default:
			return protocol.Message{}, false
		}
	}
}

func (c *LoopConn) Close() error {
	c.p.close()
	return nil
}

func (c *LoopConn) Done() <-chan struct{} { return c.p.done }

func (c *LoopConn) RemoteAddr() string { return c.name }
