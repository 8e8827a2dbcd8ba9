package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-world/internal/vec"
)

func newTestBadgerRepo(t *testing.T, dir string) *BadgerChunkRepo {
	t.Helper()
	repo, err := NewBadgerChunkRepo(dir)
	require.NoError(t, err, "BadgerDB должна открываться во временном каталоге")
	return repo
}

func TestBadgerChunkRepo_SaveLoad(t *testing.T) {
	repo := newTestBadgerRepo(t, t.TempDir())
	defer repo.Close()

	// Реалистичный объём: полный однородный чанк хорошо сжимается zstd
	blocks := make([]uint16, 4096)
	for i := range blocks {
		blocks[i] = 1
	}
	pos := vec.Vec3{X: -7, Y: 0, Z: 12}

	require.NoError(t, repo.SaveSnapshot(&ChunkSnapshot{Position: pos, Blocks: blocks}))

	loaded, err := repo.LoadSnapshot(pos)
	require.NoError(t, err)
	assert.Equal(t, pos, loaded.Position)
	assert.Equal(t, blocks, loaded.Blocks)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestBadgerChunkRepo_Missing(t *testing.T) {
	repo := newTestBadgerRepo(t, t.TempDir())
	defer repo.Close()

	_, err := repo.LoadSnapshot(vec.Vec3{X: 1})
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestBadgerChunkRepo_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	pos := vec.Vec3{X: 3, Y: 1, Z: -1}

	repo := newTestBadgerRepo(t, dir)
	require.NoError(t, repo.SaveSnapshot(&ChunkSnapshot{Position: pos, Blocks: []uint16{5, 6, 7}}))
	require.NoError(t, repo.Close())

	// Снапшоты переживают перезапуск процесса
	reopened := newTestBadgerRepo(t, dir)
	defer reopened.Close()

	loaded, err := reopened.LoadSnapshot(pos)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5, 6, 7}, loaded.Blocks)
}

func TestBadgerChunkRepo_NegativeCoordinatesKeyed(t *testing.T) {
	repo := newTestBadgerRepo(t, t.TempDir())
	defer repo.Close()

	// Позиции с совпадающими модулями координат не должны путаться в ключах
	a := vec.Vec3{X: -1, Y: 1, Z: 1}
	b := vec.Vec3{X: 1, Y: -1, Z: 1}

	require.NoError(t, repo.SaveSnapshot(&ChunkSnapshot{Position: a, Blocks: []uint16{1}}))
	require.NoError(t, repo.SaveSnapshot(&ChunkSnapshot{Position: b, Blocks: []uint16{2}}))

	la, err := repo.LoadSnapshot(a)
	require.NoError(t, err)
	lb, err := repo.LoadSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1}, la.Blocks)
	assert.Equal(t, []uint16{2}, lb.Blocks)
}
