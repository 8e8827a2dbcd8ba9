package world

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-world/internal/eventbus"
	"github.com/annel0/voxel-world/internal/logging"
	"github.com/annel0/voxel-world/internal/storage"
	"github.com/annel0/voxel-world/internal/vec"
)

// BudgetChunkFlushes ограничивает сбросы снапшотов на диск за тик
const BudgetChunkFlushes = "chunk_flushes"

// ManagerConfig — параметры менеджера мира
type ManagerConfig struct {
	Seed                   int64 // Сид мира
	TickRate               int   // Тиков планирования в секунду
	WeakActivationsPerTick int   // Бюджет слабых активаций за тик
	FlushesPerTick         int   // Бюджет сбросов снапшотов за тик
	CompactEvery           int   // Каждые N тиков убирать инертные реестры
}

// withDefaults заполняет нулевые поля значениями по умолчанию
func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.TickRate <= 0 {
		c.TickRate = 20
	}
	if c.WeakActivationsPerTick <= 0 {
		c.WeakActivationsPerTick = 32
	}
	if c.FlushesPerTick <= 0 {
		c.FlushesPerTick = 8
	}
	if c.CompactEvery <= 0 {
		c.CompactEvery = 200
	}
	return c
}

// WorldManager — встраивающая система планировщика: владеет картой
// реестров спроса, буферизует запросы и отзывы от произвольных горутин,
// раз в тик прогоняет движок распространения и реализует хуки активации
// (события жизненного цикла, сброс снапшотов под бюджет).
//
// Создаётся один раз на сессию мира; глобального состояния нет.
type WorldManager struct {
	log *logging.Logger
	cfg ManagerConfig

	chunkCtx  *ChunkContext
	algorithm *RequestAlgorithm
	repo      storage.ChunkRepo
	bus       eventbus.EventBus
	metrics   *Metrics

	// Реестры спроса; карта — единственный владелец реестров,
	// движок получает их только через функции доступа
	ledgers map[vec.Vec3]*Requests

	// Буферы спроса, наполняемые из произвольных горутин
	pendingMu       sync.Mutex
	pendingRequests map[Request]struct{}
	pendingReleases map[Request]struct{}
	submitted       map[Request]struct{} // Дедупликация на границе

	// Состояние тика. Мутирует только горутина Run, но Stats читает
	// его из горутины сборщика метрик, поэтому доступ под мьютексом.
	stateMu     sync.Mutex
	deferred    []*Requests              // Отложенные согласования
	flushQueue  []*storage.ChunkSnapshot // Отложенные сбросы на диск
	flushBudget *Limit
	tick        uint64

	activeChunks int // Текущее число активных чанков

	runCtx context.Context
	tracer trace.Tracer
}

// NewWorldManager создаёт менеджер мира.
// repo и bus — внешние коллабораторы; менеджер их не закрывает.
func NewWorldManager(cfg ManagerConfig, repo storage.ChunkRepo, bus eventbus.EventBus, metrics *Metrics) *WorldManager {
	cfg = cfg.withDefaults()

	wm := &WorldManager{
		log:             logging.GetWorldLogger(),
		cfg:             cfg,
		repo:            repo,
		bus:             bus,
		metrics:         metrics,
		ledgers:         make(map[vec.Vec3]*Requests),
		pendingRequests: make(map[Request]struct{}),
		pendingReleases: make(map[Request]struct{}),
		submitted:       make(map[Request]struct{}),
		runCtx:          context.Background(),
		tracer:          otel.Tracer("world"),
	}

	// Генератор ландшафта с восстановлением из снапшотов
	gen := &persistentGenerator{
		inner: NewPerlinGenerator(cfg.Seed),
		repo:  repo,
		log:   wm.log,
	}

	wm.chunkCtx = NewChunkContext(gen, wm, cfg.WeakActivationsPerTick)
	wm.flushBudget = wm.chunkCtx.DeclareBudget(BudgetChunkFlushes, cfg.FlushesPerTick)
	wm.algorithm = NewRequestAlgorithm(wm.ledgerOptional, wm.ledgerRequired)

	return wm
}

// ChunkContext возвращает фасад жизненного цикла мира
func (wm *WorldManager) ChunkContext() *ChunkContext {
	return wm.chunkCtx
}

//================ Доступ к реестрам (для движка) =================//

// ledgerOptional возвращает реестр позиции или nil
func (wm *WorldManager) ledgerOptional(pos vec.Vec3) *Requests {
	return wm.ledgers[pos]
}

// ledgerRequired возвращает реестр позиции, создавая его при отсутствии
func (wm *WorldManager) ledgerRequired(pos vec.Vec3) *Requests {
	rq, ok := wm.ledgers[pos]
	if !ok {
		rq = newRequests(wm.chunkCtx, pos)
		wm.ledgers[pos] = rq
	}
	return rq
}

//================ Граница подачи спроса =================//

// RequestChunk ставит запрос на чанк в пакет следующего тика.
// Возвращает false, если та же пара (позиция, запрашивающий) уже
// подана и не отозвана — дубликаты отсекаются здесь, чтобы реестры
// могли считать их ошибкой программирования.
func (wm *WorldManager) RequestChunk(requester RequesterID, pos vec.Vec3) bool {
	r := NewRequest(pos, requester)

	wm.pendingMu.Lock()
	defer wm.pendingMu.Unlock()

	if _, ok := wm.pendingReleases[r]; ok {
		// Отзыв ещё не применён — подача его отменяет, итог нейтрален
		delete(wm.pendingReleases, r)
		wm.submitted[r] = struct{}{}
		return true
	}
	if _, ok := wm.submitted[r]; ok {
		wm.log.Warn("повторный запрос чанка %v от %s отклонён", pos, requester)
		return false
	}

	wm.submitted[r] = struct{}{}
	wm.pendingRequests[r] = struct{}{}
	return true
}

// ReleaseChunk ставит отзыв запроса в пакет следующего тика.
// Отзыв неподанного запроса игнорируется (false).
func (wm *WorldManager) ReleaseChunk(requester RequesterID, pos vec.Vec3) bool {
	r := NewRequest(pos, requester)

	wm.pendingMu.Lock()
	defer wm.pendingMu.Unlock()

	if _, ok := wm.submitted[r]; !ok {
		wm.log.Warn("отзыв неподанного запроса %v от %s отклонён", pos, requester)
		return false
	}
	delete(wm.submitted, r)

	if _, ok := wm.pendingRequests[r]; ok {
		// Запрос ещё не применён — отзыв его отменяет, итог нейтрален
		delete(wm.pendingRequests, r)
		return true
	}

	wm.pendingReleases[r] = struct{}{}
	return true
}

// swapPending забирает накопленные пакеты, освобождая буферы
func (wm *WorldManager) swapPending() (requests, releases []Request) {
	wm.pendingMu.Lock()
	defer wm.pendingMu.Unlock()

	requests = make([]Request, 0, len(wm.pendingRequests))
	for r := range wm.pendingRequests {
		requests = append(requests, r)
	}
	releases = make([]Request, 0, len(wm.pendingReleases))
	for r := range wm.pendingReleases {
		releases = append(releases, r)
	}

	wm.pendingRequests = make(map[Request]struct{})
	wm.pendingReleases = make(map[Request]struct{})
	return requests, releases
}

//================ Цикл планирования =================//

// Run крутит цикл планирования до отмены контекста
func (wm *WorldManager) Run(ctx context.Context) {
	wm.runCtx = ctx

	ticker := time.NewTicker(time.Second / time.Duration(wm.cfg.TickRate))
	defer ticker.Stop()

	wm.log.Info("цикл планирования запущен: %d тиков/с", wm.cfg.TickRate)

	for {
		select {
		case <-ctx.Done():
			wm.log.Info("цикл планирования остановлен (тик %d)", wm.tick)
			return
		case <-ticker.C:
			wm.processTick()
		}
	}
}

// processTick выполняет один тик планирования: повтор отложенных
// согласований, прогон движка по накопленному пакету, сброс снапшотов
// под бюджет и периодическая компактизация
func (wm *WorldManager) processTick() {
	wm.stateMu.Lock()
	defer wm.stateMu.Unlock()

	wm.tick++
	start := time.Now()

	_, span := wm.tracer.Start(wm.runCtx, "world.tick",
		trace.WithAttributes(attribute.Int64("tick", int64(wm.tick))))
	defer span.End()

	// 1. Повторяем согласования, отложенные из-за исчерпанного бюджета
	var still []*Requests
	for _, rq := range wm.deferred {
		if !rq.ApplyLevel() {
			still = append(still, rq)
		}
	}
	wm.deferred = still

	// 2. Прогоняем движок по пакету тика
	requests, releases := wm.swapPending()
	if len(requests) > 0 || len(releases) > 0 {
		wm.log.Debug("тик %d: %d запросов, %d отзывов", wm.tick, len(requests), len(releases))
	}
	newDeferred := wm.algorithm.Process(requests, releases)
	wm.deferred = append(wm.deferred, newDeferred...)
	if wm.metrics != nil && len(newDeferred) > 0 {
		wm.metrics.weakDeclined.Add(float64(len(newDeferred)))
	}

	// 3. Сбрасываем отложенные снапшоты, пока позволяет бюджет
	wm.drainFlushQueue()

	// 4. Инертные реестры убираем периодически, а не на каждом тике
	if wm.tick%uint64(wm.cfg.CompactEvery) == 0 {
		wm.compactLocked()
	}

	// 5. Конец тика: возвращаем все занятые бюджеты
	wm.chunkCtx.FinishTick()

	if wm.metrics != nil {
		wm.metrics.processDuration.Observe(time.Since(start).Seconds())
	}
}

// drainFlushQueue сбрасывает снапшоты выгруженных чанков на диск.
// Исчерпание бюджета — не ошибка: остаток очереди ждёт следующего тика.
func (wm *WorldManager) drainFlushQueue() {
	for len(wm.flushQueue) > 0 {
		guard, ok := wm.flushBudget.TryAllocate()
		if !ok {
			if wm.metrics != nil {
				wm.metrics.flushesDeferred.Add(float64(len(wm.flushQueue)))
			}
			wm.log.Debug("бюджет сбросов исчерпан: %d снапшотов ждут следующего тика", len(wm.flushQueue))
			return
		}
		wm.chunkCtx.HoldGuard(guard)

		snap := wm.flushQueue[0]
		wm.flushQueue[0] = nil
		wm.flushQueue = wm.flushQueue[1:]

		if err := wm.repo.SaveSnapshot(snap); err != nil {
			wm.log.Error("сброс снапшота %v: %v", snap.Position, err)
			continue
		}
		if wm.metrics != nil {
			wm.metrics.flushesTotal.Inc()
		}
	}
}

// Compact удаляет инертные реестры (пустые, уровень 0, без чанка)
func (wm *WorldManager) Compact() {
	wm.stateMu.Lock()
	defer wm.stateMu.Unlock()
	wm.compactLocked()
}

func (wm *WorldManager) compactLocked() {
	removed := 0
	for pos, rq := range wm.ledgers {
		if rq.Inert() {
			delete(wm.ledgers, pos)
			removed++
		}
	}
	if removed > 0 {
		wm.log.Debug("компактизация: убрано %d инертных реестров", removed)
	}
}

//================ Хуки активации (ChunkActivator) =================//

// ActivateStrongly переводит чанк в сильно активное состояние
func (wm *WorldManager) ActivateStrongly(c *Chunk) ChunkState {
	if !c.Active() {
		wm.activeChunks++
	}
	wm.publishChunkEvent(eventbus.EventChunkActivated, c, true)
	if wm.metrics != nil {
		wm.metrics.activationsStrong.Inc()
	}
	wm.log.Trace("чанк %v активирован сильно", c.Position())
	return ChunkActiveStrong
}

// ActivateWeakly активирует чанк по распространённому спросу.
// Бюджетные ворота уже пройдены в ChunkContext.
func (wm *WorldManager) ActivateWeakly(c *Chunk) ChunkState {
	if !c.Active() {
		wm.activeChunks++
	}
	wm.publishChunkEvent(eventbus.EventChunkActivated, c, false)
	if wm.metrics != nil {
		wm.metrics.activationsWeak.Inc()
	}
	wm.log.Trace("чанк %v активирован слабо", c.Position())
	return ChunkActiveWeak
}

// Deactivate выводит чанк из активного состояния и ставит его снапшот
// в очередь сброса. Сама деактивация не может отказать: бюджет
// ограничивает только запись на диск.
func (wm *WorldManager) Deactivate(c *Chunk) {
	if !c.Active() {
		// Чанк был материализован, но активации так и не дождался
		// (отказ бюджета): содержимое не менялось, ни события,
		// ни снапшота он не порождает
		wm.log.Trace("чанк %v возвращён без активации", c.Position())
		return
	}
	wm.activeChunks--

	wm.flushQueue = append(wm.flushQueue, &storage.ChunkSnapshot{
		Position: c.Position(),
		Blocks:   blocksToRaw(c.BlocksCopy()),
	})

	wm.publishChunkEvent(eventbus.EventChunkDeactivated, c, false)
	if wm.metrics != nil {
		wm.metrics.deactivations.Inc()
	}
	wm.log.Trace("чанк %v деактивирован", c.Position())
}

// publishChunkEvent публикует событие жизненного цикла в шину
func (wm *WorldManager) publishChunkEvent(eventType string, c *Chunk, strong bool) {
	if wm.bus == nil {
		return
	}

	pos := c.Position()
	level := 0
	if rq := wm.ledgers[pos]; rq != nil {
		level = rq.Level()
	}

	ev, err := eventbus.NewChunkEnvelope("world", eventType, eventbus.ChunkEventPayload{
		X:      pos.X,
		Y:      pos.Y,
		Z:      pos.Z,
		Level:  level,
		Strong: strong,
	})
	if err != nil {
		wm.log.Error("событие %s для %v: %v", eventType, pos, err)
		return
	}
	if err := wm.bus.Publish(wm.runCtx, ev); err != nil {
		wm.log.Warn("публикация события %s для %v: %v", eventType, pos, err)
	}
}

//================ Статистика =================//

// ManagerStats — срез состояния менеджера для метрик и отладки
type ManagerStats struct {
	Tick          uint64 // Номер последнего тика
	Ledgers       int    // Реестров в карте
	Requested     int    // Прямо запрошенных позиций
	ActiveChunks  int    // Активных чанков
	PooledChunks  int    // Чанков в пуле
	DeferredApply int    // Отложенных согласований
	PendingFlush  int    // Снапшотов в очереди сброса
}

// Stats возвращает срез состояния менеджера.
// Безопасен для вызова из горутины сборщика метрик: состояние тика
// читается под тем же мьютексом, под которым его мутирует цикл.
func (wm *WorldManager) Stats() ManagerStats {
	wm.stateMu.Lock()
	defer wm.stateMu.Unlock()

	return ManagerStats{
		Tick:          wm.tick,
		Ledgers:       len(wm.ledgers),
		Requested:     wm.algorithm.RequestedCount(),
		ActiveChunks:  wm.activeChunks,
		PooledChunks:  wm.chunkCtx.Pool().FreeCount(),
		DeferredApply: len(wm.deferred),
		PendingFlush:  len(wm.flushQueue),
	}
}

//================ Генератор с восстановлением =================//

// persistentGenerator сперва пробует восстановить чанк из снапшота,
// и только при его отсутствии генерирует ландшафт заново
type persistentGenerator struct {
	inner TerrainGenerator
	repo  storage.ChunkRepo
	log   *logging.Logger
}

// Generate наполняет чанк из снапшота или генератором
func (pg *persistentGenerator) Generate(c *Chunk) {
	if pg.repo != nil {
		snap, err := pg.repo.LoadSnapshot(c.Position())
		if err == nil {
			c.LoadBlocks(rawToBlocks(snap.Blocks))
			return
		}
		if !errors.Is(err, storage.ErrSnapshotNotFound) {
			pg.log.Warn("восстановление чанка %v: %v", c.Position(), err)
		}
	}
	pg.inner.Generate(c)
}

// blocksToRaw приводит палитру блоков к сырому виду снапшота
func blocksToRaw(blocks []BlockID) []uint16 {
	out := make([]uint16, len(blocks))
	for i, b := range blocks {
		out[i] = uint16(b)
	}
	return out
}

// rawToBlocks восстанавливает палитру блоков из снапшота
func rawToBlocks(raw []uint16) []BlockID {
	out := make([]BlockID, len(raw))
	for i, b := range raw {
		out[i] = BlockID(b)
	}
	return out
}
