package world

import (
	"github.com/annel0/voxel-world/internal/util"
)

// Константы рельефа для генерации
const (
	SeaLevel       = 8    // Глобальная высота уровня воды в блоках
	BaseHeight     = 4    // Минимальная высота рельефа
	HeightAmplitud = 24   // Амплитуда высот рельефа
	DirtDepth      = 3    // Толщина слоя земли под поверхностью
	BeachMax       = 0.35 // Ниже этого значения биом-шума у воды — песок
)

// PerlinGenerator генерирует ландшафт мира по шуму Перлина.
// Детерминирован: одинаковые (сид, позиция чанка) всегда дают
// одинаковое содержимое, что позволяет воспроизводить мир по сиду.
type PerlinGenerator struct {
	seed       int64             // Сид мира
	noise      *util.NoiseSource // Основной шум (высота рельефа)
	biomeNoise *util.NoiseSource // Шум биомов (песок/трава)
	noiseScale float64           // Масштаб основного шума
	biomeScale float64           // Масштаб шума биомов
}

// NewPerlinGenerator создаёт генератор ландшафта для указанного сида
func NewPerlinGenerator(seed int64) *PerlinGenerator {
	return &PerlinGenerator{
		seed:       seed,
		noise:      util.NewNoiseSource(seed),
		biomeNoise: util.NewNoiseSource(seed + 42),
		noiseScale: 0.05, // Сглаженность ландшафта
		biomeScale: 0.02, // Размер биомов
	}
}

// Seed возвращает сид генератора
func (pg *PerlinGenerator) Seed() int64 {
	return pg.seed
}

// Generate наполняет чанк блоками по его позиции в сетке мира.
// Высота рельефа берётся из 2D-шума по колонкам (X, Z); вертикальная
// составляющая позиции чанка выбирает срез колонок по оси Y.
func (pg *PerlinGenerator) Generate(c *Chunk) {
	pos := c.Position()

	baseX := pos.X * ChunkSize
	baseY := pos.Y * ChunkSize
	baseZ := pos.Z * ChunkSize

	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			globalX := baseX + x
			globalZ := baseZ + z

			height := pg.surfaceHeight(globalX, globalZ)
			sandy := pg.biomeNoise.Noise2D(float64(globalX)*pg.biomeScale, float64(globalZ)*pg.biomeScale) < BeachMax

			for y := 0; y < ChunkSize; y++ {
				globalY := baseY + y
				c.SetBlock(x, y, z, pg.blockAt(globalY, height, sandy))
			}
		}
	}
}

// surfaceHeight возвращает высоту поверхности для колонки (x, z)
func (pg *PerlinGenerator) surfaceHeight(x, z int) int {
	n := pg.noise.Noise2D(float64(x)*pg.noiseScale, float64(z)*pg.noiseScale)
	return BaseHeight + int(n*HeightAmplitud)
}

// blockAt выбирает блок для глобальной высоты в колонке с данной
// высотой поверхности
func (pg *PerlinGenerator) blockAt(y, surface int, sandy bool) BlockID {
	switch {
	case y > surface:
		if y <= SeaLevel {
			return BlockWater
		}
		return BlockAir
	case y == surface:
		if surface < SeaLevel {
			return BlockSand // Дно под водой
		}
		if sandy && surface <= SeaLevel+2 {
			return BlockSand // Пляж у кромки воды
		}
		return BlockGrass
	case y > surface-DirtDepth:
		return BlockDirt
	default:
		return BlockStone
	}
}
