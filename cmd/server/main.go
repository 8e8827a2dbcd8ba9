package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/voxel-world/internal/config"
	"github.com/annel0/voxel-world/internal/eventbus"
	"github.com/annel0/voxel-world/internal/logging"
	"github.com/annel0/voxel-world/internal/observability"
	"github.com/annel0/voxel-world/internal/storage"
	"github.com/annel0/voxel-world/internal/vec"
	"github.com/annel0/voxel-world/internal/world"
)

func main() {
	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🌍 Запуск сервера мира: планировщик жизненного цикла чанков...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load("config.yml")
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	seed := cfg.World.GetSeed()
	metricsAddr := fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort())
	logging.Info("📡 Конфигурация: seed=%d, tick_rate=%d, metrics=%s", seed, cfg.World.GetTickRate(), metricsAddr)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		serviceName := cfg.Telemetry.ServiceName
		if serviceName == "" {
			serviceName = "voxel-world"
		}
		shutdown, err := observability.InitTelemetry(rootCtx, serviceName)
		if err != nil {
			logging.Warn("Телеметрия недоступна: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Error("Остановка телеметрии: %v", err)
				}
			}()
		}
	}

	// === ХРАНИЛИЩЕ СНАПШОТОВ ===
	var repo storage.ChunkRepo
	if dataDir := cfg.Storage.GetDataDir(); dataDir != "" {
		logging.Debug("Открытие BadgerDB в %s...", dataDir)
		badgerRepo, err := storage.NewBadgerChunkRepo(dataDir)
		if err != nil {
			logging.Error("❌ Ошибка открытия хранилища: %v", err)
			log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
		}
		repo = badgerRepo
		logging.Info("💾 Снапшоты чанков: BadgerDB (%s)", dataDir)
	} else {
		repo = storage.NewMemoryChunkRepo()
		logging.Info("💾 Снапшоты чанков: in-memory (каталог данных не задан)")
	}
	defer repo.Close()

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		retention := time.Duration(cfg.EventBus.Retention) * time.Hour
		if retention <= 0 {
			retention = 24 * time.Hour
		}
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, retention)
		if err != nil {
			logging.Warn("NATS недоступен (%v), используем in-memory шину", err)
			bus = eventbus.NewMemoryBus(1024)
		} else {
			bus = jsBus
			defer jsBus.Close()
			logging.Info("📨 Шина событий: NATS JetStream (%s)", cfg.EventBus.URL)
		}
	} else {
		bus = eventbus.NewMemoryBus(1024)
		logging.Info("📨 Шина событий: in-memory")
	}

	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("LoggingListener не запущен: %v", err)
	}

	busMetrics := eventbus.NewMetricsExporter(bus)
	busMetrics.Start()
	defer busMetrics.Stop()

	// === МИР ===
	metrics := world.NewMetrics()
	metrics.StartHTTP(metricsAddr)

	wm := world.NewWorldManager(world.ManagerConfig{
		Seed:                   seed,
		TickRate:               cfg.World.GetTickRate(),
		WeakActivationsPerTick: cfg.Budgets.WeakActivations,
		FlushesPerTick:         cfg.Budgets.ChunkFlushes,
		CompactEvery:           cfg.World.CompactEvery,
	}, repo, bus, metrics)

	metrics.StartCollector(wm)
	defer metrics.Stop()

	// Область спавна держится загруженной собственным запрашивающим:
	// прямые запросы на чанки вокруг нуля, остальное догружает распространение
	spawnKeeper := uuid.New()
	spawnRadius := cfg.World.GetSpawnRadius()
	spawnChunks := 0
	for dx := -spawnRadius; dx <= spawnRadius; dx++ {
		for dz := -spawnRadius; dz <= spawnRadius; dz++ {
			if wm.RequestChunk(spawnKeeper, vec.Vec3{X: dx, Y: 0, Z: dz}) {
				spawnChunks++
			}
		}
	}
	logging.Info("🏠 Область спавна: %d чанков под прямым запросом", spawnChunks)

	// === ЦИКЛ ПЛАНИРОВАНИЯ ===
	go wm.Run(rootCtx)

	logging.Info("✅ Сервер мира запущен")
	logging.Info("   📈 Метрики: http://localhost%s/metrics", metricsAddr)
	logging.Debug("Ожидание сигналов завершения...")

	<-rootCtx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	// === GRACEFUL SHUTDOWN ===
	// Цикл планирования уже остановлен отменой контекста; хранилище,
	// шина и экспортеры закрываются отложенными вызовами выше
	logging.Info("👋 Сервер мира успешно остановлен")
}
