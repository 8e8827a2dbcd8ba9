package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/voxel-world/internal/vec"
)

// BadgerChunkRepo хранит снапшоты чанков в локальной BadgerDB.
// Снапшоты сериализуются в JSON и сжимаются zstd перед записью:
// палитра блоков однородна и сжимается на порядок.
type BadgerChunkRepo struct {
	db      *badger.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewBadgerChunkRepo открывает хранилище снапшотов в каталоге dataPath
func NewBadgerChunkRepo(dataPath string) (*BadgerChunkRepo, error) {
	dbPath := filepath.Join(dataPath, "chunks")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd-энкодер: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("не удалось создать zstd-декодер: %w", err)
	}

	return &BadgerChunkRepo{
		db:      db,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// chunkKey упаковывает позицию чанка в ключ BadgerDB
func chunkKey(pos vec.Vec3) []byte {
	return []byte(fmt.Sprintf("chunk:%d:%d:%d", pos.X, pos.Y, pos.Z))
}

// SaveSnapshot сохраняет снапшот чанка
func (r *BadgerChunkRepo) SaveSnapshot(snap *ChunkSnapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("сериализация снапшота %v: %w", snap.Position, err)
	}
	compressed := r.encoder.EncodeAll(raw, nil)

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chunkKey(snap.Position), compressed)
	})
	if err != nil {
		return fmt.Errorf("запись снапшота %v: %w", snap.Position, err)
	}
	return nil
}

// LoadSnapshot загружает снапшот чанка по позиции
func (r *BadgerChunkRepo) LoadSnapshot(pos vec.Vec3) (*ChunkSnapshot, error) {
	var compressed []byte

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chunkKey(pos))
		if err != nil {
			return err
		}
		compressed, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение снапшота %v: %w", pos, err)
	}

	raw, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("распаковка снапшота %v: %w", pos, err)
	}

	var snap ChunkSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("десериализация снапшота %v: %w", pos, err)
	}
	return &snap, nil
}

// Close закрывает хранилище
func (r *BadgerChunkRepo) Close() error {
	r.encoder.Close()
	r.decoder.Close()
	return r.db.Close()
}
