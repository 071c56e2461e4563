package transport

import "gridsync/protocol"

// seqNewer 16 位序号回绕比较：a 是否比 b 新
func seqNewer(a, b uint16) bool {
	return a != b && uint16(a-b) < 0x8000
}

// sequencer 发送端分配序号，接收端丢弃过期的不可靠有序消息
type sequencer struct {
	next   uint16
	lastIn map[protocol.MessageType]uint16
}

func newSequencer() *sequencer {
	return &sequencer{lastIn: make(map[protocol.MessageType]uint16)}
}

func (s *sequencer) stamp(m *protocol.Message) {
	m.Sequence = s.next
	s.next++
}

// accept 是否交付该消息；同类型中序号更旧的 UnreliableSequenced 消息被丢弃
func (s *sequencer) accept(m protocol.Message) bool {
	if protocol.ReliabilityOf(m.Type) != protocol.UnreliableSequenced {
		return true
	}
	last, ok := s.lastIn[m.Type]
	if ok && !seqNewer(m.Sequence, last) {
		return false
	}
	s.lastIn[m.Type] = m.Sequence
	return true
}
