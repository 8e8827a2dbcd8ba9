package storage

import (
	"sync"
	"time"

	"github.com/annel0/voxel-world/internal/vec"
)

// MemoryChunkRepo реализует ChunkRepo в памяти.
// Используется в тестах и при запуске без каталога данных.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryChunkRepo struct {
	mu   sync.RWMutex
	data map[vec.Vec3]*ChunkSnapshot
}

// NewMemoryChunkRepo создаёт новое хранилище снапшотов в памяти
func NewMemoryChunkRepo() *MemoryChunkRepo {
	return &MemoryChunkRepo{
		data: make(map[vec.Vec3]*ChunkSnapshot),
	}
}

// SaveSnapshot сохраняет снапшот чанка в памяти
func (r *MemoryChunkRepo) SaveSnapshot(snap *ChunkSnapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	// Копируем блоки, чтобы хранилище не делило память с чанком
	blocks := make([]uint16, len(snap.Blocks))
	copy(blocks, snap.Blocks)

	r.mu.Lock()
	r.data[snap.Position] = &ChunkSnapshot{
		Position: snap.Position,
		Blocks:   blocks,
		SavedAt:  snap.SavedAt,
	}
	r.mu.Unlock()
	return nil
}

// LoadSnapshot загружает снапшот чанка по позиции
func (r *MemoryChunkRepo) LoadSnapshot(pos vec.Vec3) (*ChunkSnapshot, error) {
	r.mu.RLock()
	snap, ok := r.data[pos]
	r.mu.RUnlock()

	if !ok {
		return nil, ErrSnapshotNotFound
	}

	blocks := make([]uint16, len(snap.Blocks))
	copy(blocks, snap.Blocks)
	return &ChunkSnapshot{
		Position: snap.Position,
		Blocks:   blocks,
		SavedAt:  snap.SavedAt,
	}, nil
}

// Count возвращает число сохранённых снапшотов (для тестов)
func (r *MemoryChunkRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close закрывает хранилище (no-op для памяти)
func (r *MemoryChunkRepo) Close() error {
	return nil
}
