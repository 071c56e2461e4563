package grid

import "sort"

// TileMap 稀疏区块集合。宽高为 0 表示无边界。
type TileMap struct {
	width  int32
	height int32
	chunks map[TilePos]*Chunk
}

// NewTileMap 创建空地图
func NewTileMap() *TileMap {
	return &TileMap{chunks: make(map[TilePos]*Chunk)}
}

func (m *TileMap) SetBounds(width, height int32) {
	m.width = width
	m.height = height
}

func (m *TileMap) Width() int32 { return m.width }
func (m *TileMap) Height() int32 { return m.height }
func (m *TileMap) HasBounds() bool { return m.width > 0 && m.height > 0 }
func (m *TileMap) ChunkCount() int { return len(m.chunks) }

func (m *TileMap) InBounds(p TilePos) bool {
	if !m.HasBounds() {
		return true
	}
	return p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height
}

// Tile 读取格子；越界或区块未加载返回 false
func (m *TileMap) Tile(p TilePos) (Tile, bool) {
	if !m.InBounds(p) {
		return Tile{}, false
	}
	c, ok := m.chunks[ChunkOrigin(p)]
	if !ok {
		return Tile{}, false
	}
	return *c.AtWorld(p), true
}

// SetTile 写入格子（必要时创建区块），越界忽略
func (m *TileMap) SetTile(p TilePos, t Tile) {
	if !m.InBounds(p) {
		return
	}
	c := m.ChunkOrCreate(ChunkOrigin(p))
	*c.AtWorld(p) = t
}

// IsPassable 未加载或越界一律视为不可通行
func (m *TileMap) IsPassable(p TilePos) bool {
	t, ok := m.Tile(p)
	return ok && t.Passable()
}

// IsOpaque 越界视为不透明
func (m *TileMap) IsOpaque(p TilePos) bool {
	t, ok := m.Tile(p)
	return !ok || t.Opaque()
}

// PassableNeighbors 可通行邻居；对角方向要求两条直边都可通行（禁止切角）
func (m *TileMap) PassableNeighbors(p TilePos, diagonal bool) []TilePos {
	dirs := Cardinal[:]
	if diagonal {
		dirs = Directions[:]
	}
	out := make([]TilePos, 0, len(dirs))
	for _, d := range dirs {
		n := p.Add(d)
		if !m.IsPassable(n) {
			continue
		}
		if d.X != 0 && d.Y != 0 {
			if !m.IsPassable(p.Add(TilePos{X: d.X})) || !m.IsPassable(p.Add(TilePos{Y: d.Y})) {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

// Chunk 按原点取区块
func (m *TileMap) Chunk(origin TilePos) (*Chunk, bool) {
	c, ok := m.chunks[origin]
	return c, ok
}

func (m *TileMap) ChunkOrCreate(origin TilePos) *Chunk {
	if c, ok := m.chunks[origin]; ok {
		return c
	}
	c := NewChunk(origin)
	m.chunks[origin] = c
	return c
}

// PutChunk 整块替换（客户端接收 ChunkData 时使用）
func (m *TileMap) PutChunk(c *Chunk) {
	m.chunks[c.Origin()] = c
}

// ChunkOrigins 所有区块原点，按 (Y, X) 排序保证遍历顺序稳定
func (m *TileMap) ChunkOrigins() []TilePos {
	out := make([]TilePos, 0, len(m.chunks))
	for o := range m.chunks {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Clear 卸载全部区块
func (m *TileMap) Clear() {
	m.chunks = make(map[TilePos]*Chunk)
}

// HasLineOfSight 两端点之间（不含端点）没有不透明格子
func (m *TileMap) HasLineOfSight(from, to TilePos) bool {
	for _, p := range Line(from, to) {
		if p == from || p == to {
			continue
		}
		if m.IsOpaque(p) {
			return false
		}
	}
	return true
}

// Line Bresenham 直线经过的格子，含两端
func Line(from, to TilePos) []TilePos {
	dx, dy := abs32(to.X-from.X), abs32(to.Y-from.Y)
	sx, sy := int32(-1), int32(-1)
	if from.X < to.X {
		sx = 1
	}
	if from.Y < to.Y {
		sy = 1
	}
	err := dx - dy
	cur := from
	line := make([]TilePos, 0, max(dx, dy)+1)
	for {
		line = append(line, cur)
		if cur == to {
			return line
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			cur.X += sx
		}
		if e2 < dx {
			err += dx
			cur.Y += sy
		}
	}
}

// NewWalledMap 生成带边框墙的矩形测试地图
func NewWalledMap(width, height int32) *TileMap {
	m := NewTileMap()
	m.SetBounds(width, height)
	floor := Tile{FloorID: 1}
	wall := Tile{FloorID: 1, WallID: 1, Flags: FlagSolid | FlagOpaque}
	for y := int32(0); y < height; y++ {
		for x := int32(0); x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				m.SetTile(TilePos{X: x, Y: y}, wall)
			} else {
				m.SetTile(TilePos{X: x, Y: y}, floor)
			}
		}
	}
	return m
}
