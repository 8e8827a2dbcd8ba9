package world

import (
	"sync"

	"github.com/annel0/voxel-world/internal/vec"
)

// Размеры чанка
const (
	ChunkSize   = 16                                // Сторона чанка в блоках
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize // Объём чанка в блоках
)

// BlockID идентифицирует тип блока внутри чанка.
// Планировщику жизненного цикла не нужны поведения блоков —
// достаточно сырой палитры для генерации и снапшотов.
type BlockID uint16

// Базовая палитра блоков генератора
const (
	BlockAir BlockID = iota
	BlockStone
	BlockDirt
	BlockGrass
	BlockSand
	BlockWater
)

// ChunkState описывает состояние жизненного цикла чанка
type ChunkState int

const (
	// ChunkPooled — чанк лежит в пуле и не привязан к позиции
	ChunkPooled ChunkState = iota
	// ChunkReady — чанк инициализирован, но не активен
	ChunkReady
	// ChunkActiveWeak — чанк активирован слабо (по распространённому спросу)
	ChunkActiveWeak
	// ChunkActiveStrong — чанк активирован сильно (по прямому запросу)
	ChunkActiveStrong
)

// String возвращает строковое представление состояния
func (s ChunkState) String() string {
	switch s {
	case ChunkPooled:
		return "POOLED"
	case ChunkReady:
		return "READY"
	case ChunkActiveWeak:
		return "ACTIVE_WEAK"
	case ChunkActiveStrong:
		return "ACTIVE_STRONG"
	default:
		return "UNKNOWN"
	}
}

// Chunk представляет участок мира размером 16x16x16 блоков.
// Чанк принадлежит пулу до выдачи через GetObject и вызывающему после;
// параллельный доступ к блокам защищён мьютексом.
type Chunk struct {
	position vec.Vec3             // Координаты чанка в сетке мира
	blocks   [ChunkVolume]BlockID // Блоки: индекс x + z*16 + y*256
	state    ChunkState           // Текущее состояние жизненного цикла
	mu       sync.RWMutex         // Мьютекс для безопасного доступа
}

// newChunk создаёт пустой чанк для пула
func newChunk() *Chunk {
	return &Chunk{state: ChunkPooled}
}

// Position возвращает координаты чанка
func (c *Chunk) Position() vec.Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

// State возвращает текущее состояние жизненного цикла
func (c *Chunk) State() ChunkState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Active сообщает, активен ли чанк (слабо или сильно)
func (c *Chunk) Active() bool {
	s := c.State()
	return s == ChunkActiveWeak || s == ChunkActiveStrong
}

// setState переводит чанк в новое состояние
func (c *Chunk) setState(s ChunkState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// blockIndex возвращает индекс блока в массиве по локальным координатам
func blockIndex(x, y, z int) int {
	return x + z*ChunkSize + y*ChunkSize*ChunkSize
}

// Block возвращает блок по локальным координатам
func (c *Chunk) Block(x, y, z int) BlockID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocks[blockIndex(x, y, z)]
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(x, y, z int, id BlockID) {
	c.mu.Lock()
	c.blocks[blockIndex(x, y, z)] = id
	c.mu.Unlock()
}

// BlocksCopy возвращает копию всех блоков чанка (для снапшота)
func (c *Chunk) BlocksCopy() []BlockID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]BlockID, ChunkVolume)
	copy(out, c.blocks[:])
	return out
}

// LoadBlocks загружает блоки из снапшота
func (c *Chunk) LoadBlocks(blocks []BlockID) {
	c.mu.Lock()
	copy(c.blocks[:], blocks)
	c.mu.Unlock()
}

// reset подготавливает чанк из пула к новой позиции
func (c *Chunk) reset(pos vec.Vec3) {
	c.mu.Lock()
	c.position = pos
	c.state = ChunkReady
	for i := range c.blocks {
		c.blocks[i] = BlockAir
	}
	c.mu.Unlock()
}

// retire возвращает чанк в состояние пула
func (c *Chunk) retire() {
	c.mu.Lock()
	c.state = ChunkPooled
	c.mu.Unlock()
}
