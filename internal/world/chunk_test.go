package world

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxel-world/internal/vec"
)

func TestChunk_SetBlockGetBlock(t *testing.T) {
	c := newChunk()
	c.reset(vec.Vec3{X: 1})

	assert.Equal(t, BlockAir, c.Block(0, 0, 0), "Свежий чанк заполнен воздухом")

	c.SetBlock(0, 0, 0, BlockStone)
	c.SetBlock(15, 15, 15, BlockWater)
	c.SetBlock(3, 7, 11, BlockGrass)

	assert.Equal(t, BlockStone, c.Block(0, 0, 0))
	assert.Equal(t, BlockWater, c.Block(15, 15, 15))
	assert.Equal(t, BlockGrass, c.Block(3, 7, 11))
	assert.Equal(t, BlockAir, c.Block(1, 0, 0), "Соседние блоки не задеты")
}

func TestChunk_BlocksCopy_Isolated(t *testing.T) {
	c := newChunk()
	c.reset(vec.Vec3{})
	c.SetBlock(5, 5, 5, BlockDirt)

	blocks := c.BlocksCopy()
	assert.Len(t, blocks, ChunkVolume)
	assert.Equal(t, BlockDirt, blocks[blockIndex(5, 5, 5)])

	// Мутация копии не видна чанку
	blocks[blockIndex(5, 5, 5)] = BlockSand
	assert.Equal(t, BlockDirt, c.Block(5, 5, 5))

	// И наоборот: загрузка восстанавливает содержимое
	other := newChunk()
	other.reset(vec.Vec3{X: 1})
	other.LoadBlocks(blocks)
	assert.Equal(t, BlockSand, other.Block(5, 5, 5))
}

func TestChunk_ResetClearsBlocksAndState(t *testing.T) {
	c := newChunk()
	c.reset(vec.Vec3{X: 1})
	c.SetBlock(2, 2, 2, BlockStone)
	c.setState(ChunkActiveStrong)

	c.retire()
	assert.Equal(t, ChunkPooled, c.State())

	c.reset(vec.Vec3{X: -4, Y: 2, Z: 9})
	assert.Equal(t, vec.Vec3{X: -4, Y: 2, Z: 9}, c.Position())
	assert.Equal(t, ChunkReady, c.State())
	assert.Equal(t, BlockAir, c.Block(2, 2, 2), "Сброс обнуляет блоки предыдущего владельца")
}

func TestChunkState_Active(t *testing.T) {
	c := newChunk()

	assert.False(t, c.Active())
	c.setState(ChunkReady)
	assert.False(t, c.Active())
	c.setState(ChunkActiveWeak)
	assert.True(t, c.Active())
	c.setState(ChunkActiveStrong)
	assert.True(t, c.Active())

	assert.Equal(t, "ACTIVE_STRONG", ChunkActiveStrong.String())
	assert.Equal(t, "POOLED", ChunkPooled.String())
}
