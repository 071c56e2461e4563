package server

import (
	"gridsync/ecs"
	"gridsync/transport"
)

// Session 一个已接入的连接。握手完成前没有实体。
type Session struct {
	ID     uint32
	Conn   transport.Conn
	Name   string
	Entity ecs.Entity
	NetID  ecs.NetEntityID

	// 客户端确认收到的最新服务端 Tick
	LastReceivedTick uint32
}

// Ready 是否已完成握手并生成玩家
func (s *Session) Ready() bool { return s.NetID != ecs.InvalidNetEntityID }
