package protocol

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
)

// Version 协议版本，握手时校验
const Version uint32 = 1

const (
	DefaultPort     = 7777
	MaxPlayers      = 100
	MaxPacketSize   = 1400
	MaxMessageSize  = 65536
	HeaderSize      = 5
	maxPayloadBytes = math.MaxUint16
)

// MessageType 消息类型
type MessageType uint8

const (
	// 连接
	MsgClientHello MessageType = 0x01
	MsgServerHello MessageType = 0x02
	MsgDisconnect  MessageType = 0x03
	MsgPing        MessageType = 0x04
	MsgPong        MessageType = 0x05
	MsgKick        MessageType = 0x06

	// 游戏状态
	MsgFullState     MessageType = 0x20
	MsgDeltaState    MessageType = 0x21
	MsgEntitySpawn   MessageType = 0x22
	MsgEntityDespawn MessageType = 0x23
	MsgEntityUpdate  MessageType = 0x24
	MsgChunkData     MessageType = 0x25

	// 玩家输入
	MsgPlayerInput MessageType = 0x30
	MsgInputAck    MessageType = 0x31
)

var messageNames = map[MessageType]string{
	MsgClientHello:   "ClientHello",
	MsgServerHello:   "ServerHello",
	MsgDisconnect:    "Disconnect",
	MsgPing:          "Ping",
	MsgPong:          "Pong",
	MsgKick:          "Kick",
	MsgFullState:     "FullState",
	MsgDeltaState:    "DeltaState",
	MsgEntitySpawn:   "EntitySpawn",
	MsgEntityDespawn: "EntityDespawn",
	MsgEntityUpdate:  "EntityUpdate",
	MsgChunkData:     "ChunkData",
	MsgPlayerInput:   "PlayerInput",
	MsgInputAck:      "InputAck",
}

func (t MessageType) String() string {
	if n, ok := messageNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MessageType(0x%02x)", uint8(t))
}

// Known 是否为已定义类型
func (t MessageType) Known() bool {
	_, ok := messageNames[t]
	return ok
}

// Reliability 传输可靠性等级
type Reliability uint8

const (
	Unreliable          Reliability = iota // 发出即忘
	UnreliableSequenced                    // 丢弃过期包
	Reliable                               // 保证送达
	ReliableOrdered                        // 保证送达且有序
)

// ReliabilityOf 各消息类型的默认可靠性
func ReliabilityOf(t MessageType) Reliability {
	switch t {
	case MsgPlayerInput, MsgEntityUpdate, MsgDeltaState:
		return UnreliableSequenced
	case MsgPing, MsgPong:
		return Unreliable
	case MsgClientHello, MsgServerHello, MsgEntitySpawn, MsgEntityDespawn:
		return Reliable
	default:
		return ReliableOrdered
	}
}

// Message 一条完整消息：类型 + 序号 + 负载
type Message struct {
	Type     MessageType
	Sequence uint16
	Payload  []byte
}

// Encoder 可写入负载的结构
type Encoder interface {
	Encode(w *Writer)
}

// NewMessage 序列化负载构造消息
func NewMessage(t MessageType, payload Encoder) Message {
	w := NewWriter(64)
	if payload != nil {
		payload.Encode(w)
	}
	return Message{Type: t, Payload: w.Data()}
}

// Encode 头部（type u8, seq u16, len u16）+ 负载
func (m Message) Encode() ([]byte, error) {
	if len(m.Payload) > maxPayloadBytes {
		return nil, eris.Wrapf(ErrMessageTooLarge, "%s payload of %d bytes", m.Type, len(m.Payload))
	}
	w := NewWriter(HeaderSize + len(m.Payload))
	w.U8(uint8(m.Type))
	w.U16(m.Sequence)
	w.U16(uint16(len(m.Payload)))
	w.Bytes(m.Payload)
	return w.Data(), nil
}

// Parse 解析一条消息；数据不足返回 ErrTruncated
func Parse(data []byte) (Message, error) {
	if len(data) < HeaderSize {
		return Message{}, eris.Wrapf(ErrTruncated, "header needs %d bytes, have %d", HeaderSize, len(data))
	}
	r := NewReader(data)
	t := MessageType(r.U8())
	seq := r.U16()
	n := int(r.U16())
	payload := r.Bytes(n)
	if err := r.Err(); err != nil {
		return Message{}, eris.Wrapf(err, "parse %s", t)
	}
	return Message{Type: t, Sequence: seq, Payload: payload}, nil
}

// PeekSize 数据中第一条消息的完整长度；头部不完整返回 false
func PeekSize(data []byte) (int, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	r := NewReader(data[3:HeaderSize])
	return HeaderSize + int(r.U16()), true
}

// Reader 负载读取器
func (m Message) Reader() *Reader { return NewReader(m.Payload) }
