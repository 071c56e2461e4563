package server

import (
	"context"
	"sort"

	"github.com/sasha-s/go-deadlock"

	"gridsync/config"
	"gridsync/logging"
)

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu    deadlock.RWMutex
	rooms map[string]*Room
	cfg   config.ServerConfig
	ctx   context.Context
}

// NewRoomManager 创建管理器；新房间的 Tick 协程随 ctx 结束
func NewRoomManager(ctx context.Context, cfg config.ServerConfig) *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room), cfg: cfg, ctx: ctx}
}

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return r, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	r, err := NewRoom(id, m.cfg)
	if err != nil {
		return nil, err
	}
	m.rooms[id] = r
	go r.Run(m.ctx)
	logging.Named("manager").Infof("room %s created", id)
	return r, nil
}

// Room 仅查询，不创建
func (m *RoomManager) Room(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs 已创建的房间，按名称排序
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
