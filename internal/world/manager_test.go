package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-world/internal/eventbus"
	"github.com/annel0/voxel-world/internal/storage"
	"github.com/annel0/voxel-world/internal/vec"
)

func newTestManager(cfg ManagerConfig) (*WorldManager, *storage.MemoryChunkRepo) {
	repo := storage.NewMemoryChunkRepo()
	return NewWorldManager(cfg, repo, nil, nil), repo
}

func generousConfig() ManagerConfig {
	return ManagerConfig{
		Seed:                   1337,
		WeakActivationsPerTick: 64,
		FlushesPerTick:         64,
	}
}

func TestWorldManager_RequestDedup(t *testing.T) {
	wm, _ := newTestManager(generousConfig())
	requester := uuid.New()
	pos := vec.Vec3{X: 1}

	assert.True(t, wm.RequestChunk(requester, pos), "Первая подача принимается")
	assert.False(t, wm.RequestChunk(requester, pos), "Дубликат отсекается на границе")

	// Другой запрашивающий — другая пара, дубликатом не считается
	assert.True(t, wm.RequestChunk(uuid.New(), pos))

	assert.False(t, wm.ReleaseChunk(uuid.New(), pos), "Отзыв неподанного запроса игнорируется")
	assert.True(t, wm.ReleaseChunk(requester, pos))
	assert.True(t, wm.RequestChunk(requester, pos), "После отзыва пара снова доступна")
}

func TestWorldManager_SubmitReleaseSameTick_Neutral(t *testing.T) {
	wm, repo := newTestManager(generousConfig())
	requester := uuid.New()
	pos := vec.Vec3{}

	require.True(t, wm.RequestChunk(requester, pos))
	require.True(t, wm.ReleaseChunk(requester, pos))
	wm.processTick()

	stats := wm.Stats()
	assert.Equal(t, 0, stats.Requested, "Подача и отзыв до тика взаимно отменяются")
	assert.Equal(t, 0, stats.ActiveChunks)
	assert.Equal(t, 0, stats.Ledgers)
	assert.Equal(t, 0, repo.Count(), "Снапшотов не возникает")
}

func TestWorldManager_TickActivatesDiamond(t *testing.T) {
	wm, _ := newTestManager(generousConfig())
	origin := vec.Vec3{}

	require.True(t, wm.RequestChunk(uuid.New(), origin))
	wm.processTick()

	stats := wm.Stats()
	assert.Equal(t, 1, stats.Requested)
	assert.Equal(t, diamondVolume, stats.Ledgers)
	assert.Equal(t, diamondVolume, stats.ActiveChunks, "Весь ромб спроса активен")
	assert.Equal(t, 0, stats.DeferredApply)

	center := wm.ledgers[origin]
	require.NotNil(t, center)
	assert.Equal(t, RequestLevelHighest, center.Level())
	assert.Equal(t, ChunkActiveStrong, center.Chunk().State(), "Прямой запрос активирует сильно")

	neighbor := wm.ledgers[vec.Vec3{X: 1}]
	require.NotNil(t, neighbor)
	assert.Equal(t, ChunkActiveWeak, neighbor.Chunk().State(), "Распространённый спрос активирует слабо")
}

func TestWorldManager_ReleaseFlushesSnapshots(t *testing.T) {
	wm, repo := newTestManager(generousConfig())
	requester := uuid.New()
	origin := vec.Vec3{}

	require.True(t, wm.RequestChunk(requester, origin))
	wm.processTick()
	require.True(t, wm.ReleaseChunk(requester, origin))
	wm.processTick()

	stats := wm.Stats()
	assert.Equal(t, 0, stats.ActiveChunks, "Спрос ушёл — активных чанков нет")
	assert.Equal(t, diamondVolume, stats.PooledChunks, "Все чанки вернулись в пул")
	assert.Equal(t, 0, stats.PendingFlush, "Щедрый бюджет сбрасывает всё за один тик")
	assert.Equal(t, diamondVolume, repo.Count(), "Каждый выгруженный чанк оставил снапшот")

	// Инертные реестры убирает компактизация
	wm.Compact()
	assert.Equal(t, 0, wm.Stats().Ledgers)
}

func TestWorldManager_FlushBudgetSpreadsOverTicks(t *testing.T) {
	cfg := generousConfig()
	cfg.FlushesPerTick = 8
	wm, repo := newTestManager(cfg)
	requester := uuid.New()

	require.True(t, wm.RequestChunk(requester, vec.Vec3{}))
	wm.processTick()
	require.True(t, wm.ReleaseChunk(requester, vec.Vec3{}))

	// 25 снапшотов при бюджете 8 занимают четыре тика
	wm.processTick()
	assert.Equal(t, 8, repo.Count())
	assert.Equal(t, diamondVolume-8, wm.Stats().PendingFlush)

	wm.processTick()
	assert.Equal(t, 16, repo.Count())

	wm.processTick()
	wm.processTick()
	assert.Equal(t, diamondVolume, repo.Count(), "Очередь сброса осушена")
	assert.Equal(t, 0, wm.Stats().PendingFlush)
}

func TestWorldManager_DeferredRetriedNextTick(t *testing.T) {
	cfg := generousConfig()
	cfg.WeakActivationsPerTick = 4
	wm, _ := newTestManager(cfg)

	require.True(t, wm.RequestChunk(uuid.New(), vec.Vec3{}))
	wm.processTick()

	// 1 сильная + 4 слабых за тик, остальные 20 ждут бюджета
	stats := wm.Stats()
	assert.Equal(t, 5, stats.ActiveChunks)
	assert.Equal(t, diamondVolume-5, stats.DeferredApply)

	wm.processTick()
	stats = wm.Stats()
	assert.Equal(t, 9, stats.ActiveChunks, "Каждый тик пропускает ещё четыре активации")
	assert.Equal(t, diamondVolume-9, stats.DeferredApply)

	for i := 0; i < 4; i++ {
		wm.processTick()
	}
	stats = wm.Stats()
	assert.Equal(t, diamondVolume, stats.ActiveChunks, "Спрос в итоге удовлетворён полностью")
	assert.Equal(t, 0, stats.DeferredApply)
}

func TestWorldManager_StatsConcurrentWithTicks(t *testing.T) {
	// Сборщик метрик читает Stats из своей горутины, пока цикл крутит
	// тики; под -race здесь не должно быть ни одного предупреждения
	wm, _ := newTestManager(generousConfig())
	requester := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = wm.Stats()
		}
	}()

	for i := 0; i < 50; i++ {
		wm.RequestChunk(requester, vec.Vec3{X: i * 10})
		wm.processTick()
	}
	<-done

	stats := wm.Stats()
	assert.Equal(t, uint64(50), stats.Tick)
	assert.Equal(t, 50, stats.Requested)
}

func TestWorldManager_DeclinedChunksLeaveNoSnapshot(t *testing.T) {
	cfg := generousConfig()
	cfg.WeakActivationsPerTick = 1
	wm, repo := newTestManager(cfg)
	requester := uuid.New()

	require.True(t, wm.RequestChunk(requester, vec.Vec3{}))
	wm.processTick() // 1 сильная + 1 слабая, остальные ждут бюджета

	require.True(t, wm.ReleaseChunk(requester, vec.Vec3{}))
	wm.processTick() // повтор успевает активировать ещё одну до отзыва

	stats := wm.Stats()
	assert.Equal(t, 0, stats.ActiveChunks)
	assert.Equal(t, diamondVolume, stats.PooledChunks, "Все материализованные чанки вернулись в пул")
	assert.Equal(t, 3, repo.Count(), "Снапшоты оставляют только реально активированные чанки")
}

func TestWorldManager_DeclinedChunksEmitNoDeactivationEvent(t *testing.T) {
	cfg := generousConfig()
	cfg.WeakActivationsPerTick = 1
	repo := storage.NewMemoryChunkRepo()
	bus := eventbus.NewMemoryBus(256)
	wm := NewWorldManager(cfg, repo, bus, nil)
	requester := uuid.New()

	require.True(t, wm.RequestChunk(requester, vec.Vec3{}))
	wm.processTick()
	require.True(t, wm.ReleaseChunk(requester, vec.Vec3{}))
	wm.processTick()

	// Активаций было три (1 сильная + 2 слабых), деактиваций столько же;
	// не активированные чанки событий не порождают
	assert.Equal(t, uint64(6), bus.Metrics().Published, "Событий ровно по числу настоящих переходов")
}

func TestWorldManager_SnapshotRestoredOnReactivation(t *testing.T) {
	wm, _ := newTestManager(generousConfig())
	requester := uuid.New()
	origin := vec.Vec3{}

	require.True(t, wm.RequestChunk(requester, origin))
	wm.processTick()

	// Правка мира: блок-маркер, которого генератор на этой высоте не кладёт
	wm.ledgers[origin].Chunk().SetBlock(0, 15, 0, BlockWater)

	require.True(t, wm.ReleaseChunk(requester, origin))
	wm.processTick()
	require.Nil(t, wm.ledgers[origin].Chunk(), "Чанк выгружен")

	require.True(t, wm.RequestChunk(requester, origin))
	wm.processTick()

	c := wm.ledgers[origin].Chunk()
	require.NotNil(t, c)
	assert.Equal(t, BlockWater, c.Block(0, 15, 0), "Правка восстановлена из снапшота, а не перегенерирована")
}
