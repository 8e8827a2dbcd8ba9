package storage

import (
	"errors"
	"time"

	"github.com/annel0/voxel-world/internal/vec"
)

// ErrSnapshotNotFound возвращается, когда для позиции нет снапшота
var ErrSnapshotNotFound = errors.New("снапшот чанка не найден")

// ChunkSnapshot — сериализуемое содержимое чанка на момент выгрузки.
// Блоки хранятся сырой палитрой, без поведений: хранилищу безразлична
// семантика содержимого.
type ChunkSnapshot struct {
	Position vec.Vec3  `json:"position"` // Позиция чанка в сетке мира
	Blocks   []uint16  `json:"blocks"`   // Палитра блоков (16x16x16)
	SavedAt  time.Time `json:"saved_at"` // Время сохранения (UTC)
}

// ChunkRepo определяет интерфейс хранилища снапшотов чанков.
// Реализации: BadgerChunkRepo (локальная БД) и MemoryChunkRepo
// (для тестов и запуска без диска).
type ChunkRepo interface {
	// SaveSnapshot сохраняет снапшот чанка.
	// Параметры:
	//   snap - снапшот для сохранения
	// Возвращает:
	//   error - ошибка при сохранении
	SaveSnapshot(snap *ChunkSnapshot) error

	// LoadSnapshot загружает снапшот чанка по позиции.
	// Возвращает:
	//   *ChunkSnapshot - снапшот чанка
	//   error - ErrSnapshotNotFound, если позиция ещё не сохранялась
	LoadSnapshot(pos vec.Vec3) (*ChunkSnapshot, error)

	// Close закрывает хранилище
	Close() error
}
