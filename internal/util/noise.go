package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseSource инкапсулирует генератор шума Перлина для одного мира.
// Каждый мир создаёт свой источник с собственным сидом — глобального
// состояния здесь нет, чтобы несколько миров не мешали друг другу.
type NoiseSource struct {
	seed   int64
	perlin *perlin.Perlin
}

// NewNoiseSource создаёт источник шума с указанным сидом
func NewNoiseSource(seed int64) *NoiseSource {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &NoiseSource{
		seed:   seed,
		perlin: perlin.NewPerlin(alpha, beta, n, seed),
	}
}

// Seed возвращает сид источника
func (ns *NoiseSource) Seed() int64 {
	return ns.seed
}

// Noise2D возвращает значение шума Перлина для указанных координат (от 0 до 1)
func (ns *NoiseSource) Noise2D(x, y float64) float64 {
	// Получаем значение шума (от -1 до 1) и приводим к диапазону 0..1
	noise := ns.perlin.Noise2D(x, y)
	return (noise + 1.0) / 2.0
}
