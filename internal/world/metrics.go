package world

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/voxel-world/internal/logging"
)

// Metrics инкапсулирует Prometheus-метрики планировщика чанков.
// Счётчики обновляет менеджер по ходу тика, gauge-метрики — фоновый
// сборщик раз в секунду (включая системные через gopsutil).
type Metrics struct {
	quit chan struct{}
	done chan struct{}

	// Counters (обновляет менеджер)
	activationsStrong prometheus.Counter
	activationsWeak   prometheus.Counter
	weakDeclined      prometheus.Counter
	deactivations     prometheus.Counter
	flushesTotal      prometheus.Counter
	flushesDeferred   prometheus.Counter
	processDuration   prometheus.Histogram

	// Gauges (обновляет сборщик)
	ledgers         prometheus.Gauge
	requested       prometheus.Gauge
	activeChunks    prometheus.Gauge
	pooledChunks    prometheus.Gauge
	deferredApply   prometheus.Gauge
	pendingFlush    prometheus.Gauge
	budgetRemaining *prometheus.GaugeVec
	memRSS          prometheus.Gauge
	cpuPercent      prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики планировщика
func NewMetrics() *Metrics {
	m := &Metrics{
		quit: make(chan struct{}),
		done: make(chan struct{}),
		activationsStrong: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "chunk_activations_strong_total",
			Help:      "Общее число сильных активаций чанков.",
		}),
		activationsWeak: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "chunk_activations_weak_total",
			Help:      "Общее число слабых активаций чанков.",
		}),
		weakDeclined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "chunk_activations_declined_total",
			Help:      "Слабых активаций, отложенных из-за исчерпанного бюджета.",
		}),
		deactivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "chunk_deactivations_total",
			Help:      "Общее число деактиваций чанков.",
		}),
		flushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "chunk_flushes_total",
			Help:      "Снапшотов чанков, сброшенных в хранилище.",
		}),
		flushesDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "world",
			Name:      "chunk_flushes_deferred_total",
			Help:      "Сбросов, отложенных из-за исчерпанного бюджета.",
		}),
		processDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "world",
			Name:      "tick_duration_seconds",
			Help:      "Длительность тика планирования.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		ledgers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "request_ledgers",
			Help:      "Число реестров спроса в карте мира.",
		}),
		requested: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "requested_positions",
			Help:      "Число прямо запрошенных позиций чанков.",
		}),
		activeChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "active_chunks",
			Help:      "Число активных чанков.",
		}),
		pooledChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "pooled_chunks",
			Help:      "Число чанков в свободном списке пула.",
		}),
		deferredApply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "deferred_reconciliations",
			Help:      "Согласований, ожидающих бюджета следующего тика.",
		}),
		pendingFlush: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "pending_flushes",
			Help:      "Снапшотов в очереди сброса.",
		}),
		budgetRemaining: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "budget_remaining",
			Help:      "Остаток именованного бюджета.",
		}, []string{"budget"}),
		memRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "process_rss_bytes",
			Help:      "Резидентная память процесса.",
		}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "world",
			Name:      "process_cpu_percent",
			Help:      "Загрузка CPU процессом.",
		}),
	}

	// Регистрируем метрики в глобальном регистре Prometheus.
	prometheus.MustRegister(
		m.activationsStrong, m.activationsWeak, m.weakDeclined,
		m.deactivations, m.flushesTotal, m.flushesDeferred,
		m.processDuration, m.ledgers, m.requested, m.activeChunks,
		m.pooledChunks, m.deferredApply, m.pendingFlush,
		m.budgetRemaining, m.memRSS, m.cpuPercent,
	)
	return m
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе
// (например, ":2112"). Метод неблокирующий.
func (m *Metrics) StartHTTP(addr string) {
	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
}

// StartCollector запускает фоновое обновление gauge-метрик из менеджера
func (m *Metrics) StartCollector(wm *WorldManager) {
	go m.collectLoop(wm)
}

// Stop останавливает сборщик
func (m *Metrics) Stop() {
	close(m.quit)
	<-m.done
}

func (m *Metrics) collectLoop(wm *WorldManager) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	defer close(m.done)

	proc, procErr := process.NewProcess(int32(os.Getpid()))

	for {
		select {
		case <-ticker.C:
			stats := wm.Stats()
			m.ledgers.Set(float64(stats.Ledgers))
			m.requested.Set(float64(stats.Requested))
			m.activeChunks.Set(float64(stats.ActiveChunks))
			m.pooledChunks.Set(float64(stats.PooledChunks))
			m.deferredApply.Set(float64(stats.DeferredApply))
			m.pendingFlush.Set(float64(stats.PendingFlush))

			ctx := wm.ChunkContext()
			for _, name := range []string{BudgetWeakActivations, BudgetChunkFlushes} {
				if l := ctx.Budget(name); l != nil {
					m.budgetRemaining.WithLabelValues(name).Set(float64(l.Remaining()))
				}
			}

			// Системные метрики процесса (gopsutil)
			if procErr == nil {
				if mem, err := proc.MemoryInfo(); err == nil {
					m.memRSS.Set(float64(mem.RSS))
				}
				if cpu, err := proc.CPUPercent(); err == nil {
					m.cpuPercent.Set(cpu)
				}
			}
		case <-m.quit:
			return
		}
	}
}
