package ecs

import "math"

// Entity 实体句柄：下标 + 代数，代数不匹配即为失效句柄
type Entity struct {
	Index      uint32
	Generation uint32
}

// Null 空句柄
var Null = Entity{Index: math.MaxUint32}

// Valid 仅判断是否为空句柄，存活请用 World.IsAlive
func (e Entity) Valid() bool { return e.Index != Null.Index }

// NetEntityID 服务端分配、所有参与方一致的网络实体 ID
type NetEntityID uint32

// InvalidNetEntityID 保留值
const InvalidNetEntityID NetEntityID = 0
