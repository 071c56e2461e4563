package ecs

// World 持有实体代数表、空闲下标与网络 ID 映射；组件池通过 NewPool 显式注册
type World struct {
	generations []uint32
	free        []uint32
	alive       int

	netToEntity map[NetEntityID]Entity
	entityToNet map[uint32]NetEntityID // entity.Index -> net id
	nextNetID   NetEntityID
}

// NewWorld 创建空世界
func NewWorld() *World {
	return &World{
		netToEntity: make(map[NetEntityID]Entity),
		entityToNet: make(map[uint32]NetEntityID),
		nextNetID:   1,
	}
}

// Create 优先复用空闲下标（代数已在销毁时递增），否则追加新下标（代数 0）
func (w *World) Create() Entity {
	if n := len(w.free); n > 0 {
		idx := w.free[n-1]
		w.free = w.free[:n-1]
		w.alive++
		return Entity{Index: idx, Generation: w.generations[idx]}
	}
	idx := uint32(len(w.generations))
	w.generations = append(w.generations, 0)
	w.alive++
	return Entity{Index: idx, Generation: 0}
}

// Destroy 使所有旧句柄失效、移除网络映射、回收下标。
// 组件惰性清理：池中残留条目带有旧句柄，读取时按代数过滤。
func (w *World) Destroy(e Entity) {
	if !w.IsAlive(e) {
		return
	}
	w.generations[e.Index]++
	if id, ok := w.entityToNet[e.Index]; ok {
		delete(w.netToEntity, id)
		delete(w.entityToNet, e.Index)
	}
	w.free = append(w.free, e.Index)
	w.alive--
}

// IsAlive 句柄代数与当前代数一致即存活
func (w *World) IsAlive(e Entity) bool {
	if int(e.Index) >= len(w.generations) {
		return false
	}
	return w.generations[e.Index] == e.Generation
}

// Count 存活实体数
func (w *World) Count() int { return w.alive }

// AssignNetID 绑定网络 ID，覆盖该实体已有的映射
func (w *World) AssignNetID(e Entity, id NetEntityID) {
	if !w.IsAlive(e) || id == InvalidNetEntityID {
		return
	}
	if old, ok := w.entityToNet[e.Index]; ok {
		delete(w.netToEntity, old)
	}
	// 该 ID 之前指向别的实体时，断开对方的反向映射
	if prev, ok := w.netToEntity[id]; ok && prev.Index != e.Index {
		delete(w.entityToNet, prev.Index)
	}
	w.netToEntity[id] = e
	w.entityToNet[e.Index] = id
}

// EntityByNetID 按网络 ID 查实体，不存在或已失效返回 (Null, false)
func (w *World) EntityByNetID(id NetEntityID) (Entity, bool) {
	e, ok := w.netToEntity[id]
	if !ok || !w.IsAlive(e) {
		return Null, false
	}
	return e, true
}

// NetID 查实体的网络 ID，未分配返回 InvalidNetEntityID
func (w *World) NetID(e Entity) NetEntityID {
	if !w.IsAlive(e) {
		return InvalidNetEntityID
	}
	return w.entityToNet[e.Index]
}

// AllocateNetID 单调递增分配（仅服务端调用）
func (w *World) AllocateNetID() NetEntityID {
	id := w.nextNetID
	w.nextNetID++
	return id
}
