package grid

// ChunkSize 区块边长（格）
const ChunkSize = 16

// Chunk 16×16 格子块，origin 为左上角世界格坐标
type Chunk struct {
	origin TilePos
	tiles  [ChunkSize * ChunkSize]Tile
}

// NewChunk 创建空区块
func NewChunk(origin TilePos) *Chunk {
	return &Chunk{origin: origin}
}

func (c *Chunk) Origin() TilePos { return c.origin }

// At 局部坐标访问（0..ChunkSize-1），越界返回 nil
func (c *Chunk) At(lx, ly int32) *Tile {
	if lx < 0 || ly < 0 || lx >= ChunkSize || ly >= ChunkSize {
		return nil
	}
	return &c.tiles[ly*ChunkSize+lx]
}

// AtWorld 世界坐标访问，不在本区块返回 nil
func (c *Chunk) AtWorld(p TilePos) *Tile {
	if !c.Contains(p) {
		return nil
	}
	l := WorldToLocal(p)
	return c.At(l.X, l.Y)
}

func (c *Chunk) Contains(p TilePos) bool {
	return p.X >= c.origin.X && p.X < c.origin.X+ChunkSize &&
		p.Y >= c.origin.Y && p.Y < c.origin.Y+ChunkSize
}

// Fill 用同一格子填满
func (c *Chunk) Fill(t Tile) {
	for i := range c.tiles {
		c.tiles[i] = t
	}
}

// Tiles 行优先的全部格子（编码用）
func (c *Chunk) Tiles() []Tile { return c.tiles[:] }

// floorDiv 负数向下取整除法
func floorDiv(a, b int32) int32 {
	if a >= 0 {
		return a / b
	}
	return (a - b + 1) / b
}

// ChunkOrigin 任意格子所在区块的原点
func ChunkOrigin(p TilePos) TilePos {
	return TilePos{X: floorDiv(p.X, ChunkSize) * ChunkSize, Y: floorDiv(p.Y, ChunkSize) * ChunkSize}
}

// WorldToLocal 世界格坐标转区块内局部坐标
func WorldToLocal(p TilePos) TilePos {
	o := ChunkOrigin(p)
	return TilePos{X: p.X - o.X, Y: p.Y - o.Y}
}
