package world

import (
	"fmt"
	"sync"

	"github.com/annel0/voxel-world/internal/vec"
)

// Имена бюджетов, объявляемых самим фасадом
const (
	// BudgetWeakActivations ограничивает слабые активации за тик
	BudgetWeakActivations = "weak_activations"
)

// TerrainGenerator наполняет чанк содержимым детерминированно по
// (сид мира, позиция чанка). Конкретный алгоритм — внешний коллаборатор.
type TerrainGenerator interface {
	Generate(c *Chunk)
}

// ChunkActivator — хуки жизненного цикла, которые реализует встраивающая
// система (менеджер мира). Фасад вызывает их только из ApplyLevel и
// только после прохождения бюджетных ворот.
type ChunkActivator interface {
	// ActivateStrongly переводит готовый чанк в активное состояние.
	// Всегда успешна: решение о сильной активации уже принято.
	ActivateStrongly(c *Chunk) ChunkState
	// ActivateWeakly пытается активировать чанк по распространённому
	// спросу. Вызывается только при доступном бюджете.
	ActivateWeakly(c *Chunk) ChunkState
	// Deactivate выводит активный чанк из активного состояния.
	Deactivate(c *Chunk)
}

// ChunkContext — фасад жизненного цикла чанков одного мира: владеет
// пулом, генератором ландшафта, бюджетами и внедрёнными хуками
// активации. Создаётся один раз при открытии мира, без глобальных
// синглтонов, и живёт до закрытия сессии мира.
type ChunkContext struct {
	pool      *ChunkPool
	generator TerrainGenerator
	activator ChunkActivator

	budgetsMu sync.Mutex
	budgets   map[string]*Limit

	weakBudget *Limit

	// Гварды, занятые в течение текущего тика; освобождаются
	// встраивающей системой в конце тика через FinishTick.
	guardsMu   sync.Mutex
	tickGuards []*Guard
}

// NewChunkContext создаёт фасад жизненного цикла.
// weakActivationsPerTick задаёт бюджет слабых активаций за тик.
func NewChunkContext(generator TerrainGenerator, activator ChunkActivator, weakActivationsPerTick int) *ChunkContext {
	ctx := &ChunkContext{
		pool:      NewChunkPool(),
		generator: generator,
		activator: activator,
		budgets:   make(map[string]*Limit),
	}
	ctx.weakBudget = ctx.DeclareBudget(BudgetWeakActivations, weakActivationsPerTick)
	return ctx
}

// DeclareBudget регистрирует новый именованный бюджет ёмкости max.
// Повторное объявление того же имени — ошибка программирования.
func (ctx *ChunkContext) DeclareBudget(name string, max int) *Limit {
	ctx.budgetsMu.Lock()
	defer ctx.budgetsMu.Unlock()

	if _, ok := ctx.budgets[name]; ok {
		panic(fmt.Sprintf("бюджет %q уже объявлен", name))
	}

	l := &Limit{name: name, max: int64(max)}
	l.remaining.Store(int64(max))
	ctx.budgets[name] = l
	return l
}

// Budget возвращает объявленный бюджет по имени (nil, если не объявлен)
func (ctx *ChunkContext) Budget(name string) *Limit {
	ctx.budgetsMu.Lock()
	defer ctx.budgetsMu.Unlock()
	return ctx.budgets[name]
}

// HoldGuard откладывает освобождение гварда до конца текущего тика.
// Так бюджет ограничивает число операций за тик, а не одновременных
// вызовов внутри одного синхронного прохода.
func (ctx *ChunkContext) HoldGuard(g *Guard) {
	ctx.guardsMu.Lock()
	ctx.tickGuards = append(ctx.tickGuards, g)
	ctx.guardsMu.Unlock()
}

// FinishTick освобождает все гварды, занятые в течение тика
func (ctx *ChunkContext) FinishTick() {
	ctx.guardsMu.Lock()
	guards := ctx.tickGuards
	ctx.tickGuards = nil
	ctx.guardsMu.Unlock()

	for _, g := range guards {
		g.Release()
	}
}

// GetObject выдаёт инициализированный чанк для позиции: берёт экземпляр
// из пула и наполняет его через генератор ландшафта
func (ctx *ChunkContext) GetObject(pos vec.Vec3) *Chunk {
	c := ctx.pool.Get(pos)
	ctx.generator.Generate(c)
	return c
}

// ReturnObject возвращает чанк в пул; после возврата чанк использовать нельзя
func (ctx *ChunkContext) ReturnObject(c *Chunk) {
	ctx.pool.Put(c)
}

// ActivateStrongly переводит чанк в сильно активное состояние.
// Тотальная операция: спрос подтверждён, отказ невозможен.
func (ctx *ChunkContext) ActivateStrongly(c *Chunk) ChunkState {
	state := ctx.activator.ActivateStrongly(c)
	c.setState(state)
	return state
}

// ActivateWeakly пытается активировать чанк по распространённому спросу.
// Возвращает false при исчерпанном бюджете слабых активаций — это не
// ошибка, а сигнал «повторить на следующем тике».
func (ctx *ChunkContext) ActivateWeakly(c *Chunk) (ChunkState, bool) {
	guard, ok := ctx.weakBudget.TryAllocate()
	if !ok {
		return c.State(), false
	}
	ctx.HoldGuard(guard)

	state := ctx.activator.ActivateWeakly(c)
	c.setState(state)
	return state, true
}

// Deactivate выводит чанк из активного состояния. Тотальная операция.
func (ctx *ChunkContext) Deactivate(c *Chunk) {
	ctx.activator.Deactivate(c)
	c.setState(ChunkReady)
}

// Pool возвращает пул чанков фасада
func (ctx *ChunkContext) Pool() *ChunkPool {
	return ctx.pool
}
