package world

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annel0/voxel-world/internal/vec"
)

func generateAt(seed int64, pos vec.Vec3) *Chunk {
	c := newChunk()
	c.reset(pos)
	NewPerlinGenerator(seed).Generate(c)
	return c
}

func TestPerlinGenerator_Deterministic(t *testing.T) {
	pos := vec.Vec3{X: 3, Y: 0, Z: -2}

	a := generateAt(1337, pos)
	b := generateAt(1337, pos)

	assert.Equal(t, a.BlocksCopy(), b.BlocksCopy(),
		"Одинаковые сид и позиция должны давать идентичное содержимое")
}

func TestPerlinGenerator_SeedChangesTerrain(t *testing.T) {
	pos := vec.Vec3{}

	a := generateAt(1, pos)
	b := generateAt(2, pos)

	assert.NotEqual(t, a.BlocksCopy(), b.BlocksCopy(),
		"Разные сиды должны давать разный рельеф")
}

func TestPerlinGenerator_DeepChunkIsStone(t *testing.T) {
	// Глобальные высоты -32..-17 заведомо ниже любой поверхности
	c := generateAt(1337, vec.Vec3{Y: -2})

	for _, b := range c.BlocksCopy() {
		assert.Equal(t, BlockStone, b, "Глубокий чанк целиком каменный")
	}
}

func TestPerlinGenerator_SkyChunkIsAir(t *testing.T) {
	// Глобальные высоты 48..63 выше максимума рельефа и уровня моря
	c := generateAt(1337, vec.Vec3{Y: 3})

	for _, b := range c.BlocksCopy() {
		assert.Equal(t, BlockAir, b, "Высотный чанк целиком воздушный")
	}
}

func TestPerlinGenerator_ColumnsLayered(t *testing.T) {
	// В каждой колонке камень никогда не лежит поверх воздуха
	c := generateAt(1337, vec.Vec3{})

	for x := 0; x < ChunkSize; x++ {
		for z := 0; z < ChunkSize; z++ {
			seenAir := false
			for y := 0; y < ChunkSize; y++ {
				b := c.Block(x, y, z)
				if b == BlockAir {
					seenAir = true
				}
				if seenAir {
					assert.NotEqual(t, BlockStone, b,
						"Камень над воздухом в колонке (%d,%d)", x, z)
				}
			}
		}
	}
}
