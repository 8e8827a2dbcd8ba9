package world

import (
	"sync"

	"github.com/annel0/voxel-world/internal/vec"
)

// ChunkPool переиспользует экземпляры чанков, чтобы не аллоцировать
// массив блоков заново при каждой загрузке. Чанк принадлежит пулу до
// выдачи через Get и вызывающему до возврата через Put.
type ChunkPool struct {
	mu       sync.Mutex
	free     []*Chunk
	created  uint64 // Сколько чанков аллоцировано за всё время
	recycled uint64 // Сколько раз чанк выдан из свободного списка
}

// NewChunkPool создаёт пустой пул чанков
func NewChunkPool() *ChunkPool {
	return &ChunkPool{}
}

// Get выдаёт чанк, привязанный к позиции. Блоки обнулены, состояние READY.
func (p *ChunkPool) Get(pos vec.Vec3) *Chunk {
	p.mu.Lock()
	var c *Chunk
	if n := len(p.free); n > 0 {
		c = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.recycled++
	} else {
		c = newChunk()
		p.created++
	}
	p.mu.Unlock()

	c.reset(pos)
	return c
}

// Put возвращает чанк в пул; использовать его после возврата нельзя
func (p *ChunkPool) Put(c *Chunk) {
	c.retire()

	p.mu.Lock()
	p.free = append(p.free, c)
	p.mu.Unlock()
}

// FreeCount возвращает число чанков в свободном списке
func (p *ChunkPool) FreeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats возвращает счётчики пула: всего создано и переиспользовано
func (p *ChunkPool) Stats() (created, recycled uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created, p.recycled
}
