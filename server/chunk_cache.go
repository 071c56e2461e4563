package server

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/rotisserie/eris"

	"gridsync/grid"
	"gridsync/protocol"
)

// ChunkCache 缓存已编码的 ChunkData 负载，新玩家加入时直接复用；
// 修改格子后按区块失效
type ChunkCache struct {
	cache *ristretto.Cache[uint64, []byte]
}

func NewChunkCache() (*ChunkCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: 10000,
		MaxCost:     8 * 1024 * 1024, // 8MB 约可存数千个区块
		BufferItems: 64,
	})
	if err != nil {
		return nil, eris.Wrap(err, "create chunk cache")
	}
	return &ChunkCache{cache: cache}, nil
}

func chunkKey(origin grid.TilePos) uint64 {
	return uint64(uint32(origin.X))<<32 | uint64(uint32(origin.Y))
}

// Payload 区块的 ChunkData 负载；未命中时编码并写入缓存
func (c *ChunkCache) Payload(m *grid.TileMap, origin grid.TilePos) ([]byte, bool) {
	key := chunkKey(origin)
	if b, ok := c.cache.Get(key); ok {
		return b, true
	}
	chunk, ok := m.Chunk(origin)
	if !ok {
		return nil, false
	}
	b := protocol.NewMessage(protocol.MsgChunkData, protocol.ChunkData{
		MapWidth:  m.Width(),
		MapHeight: m.Height(),
		Chunk:     chunk,
	}).Payload
	c.cache.Set(key, b, int64(len(b)))
	c.cache.Wait()
	return b, true
}

// Invalidate 区块内容变化后调用
func (c *ChunkCache) Invalidate(origin grid.TilePos) {
	c.cache.Del(chunkKey(origin))
	c.cache.Wait()
}

func (c *ChunkCache) Close() { c.cache.Close() }
