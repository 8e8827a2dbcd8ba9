package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера мира
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Budgets   BudgetsConfig   `yaml:"budgets"`
	Storage   StorageConfig   `yaml:"storage"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type WorldConfig struct {
	Seed         int64 `yaml:"seed"`
	TickRate     int   `yaml:"tick_rate"`
	SpawnRadius  int   `yaml:"spawn_radius"`
	CompactEvery int   `yaml:"compact_every_ticks"`
}

type BudgetsConfig struct {
	WeakActivations int `yaml:"weak_activations_per_tick"`
	ChunkFlushes    int `yaml:"chunk_flushes_per_tick"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто — in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type MetricsConfig struct {
	Port int `yaml:"port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Load читает конфигурацию из YAML-файла.
// Отсутствующий файл — не ошибка: возвращаются значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	return cfg, nil
}

// GetSeed возвращает сид мира с поддержкой fallback значений
func (w *WorldConfig) GetSeed() int64 {
	if w.Seed != 0 {
		return w.Seed
	}
	if envVal := os.Getenv("WORLD_SEED"); envVal != "" {
		if seed, err := strconv.ParseInt(envVal, 10, 64); err == nil {
			return seed
		}
	}
	return 1337
}

// GetTickRate возвращает частоту тиков с поддержкой fallback значений
func (w *WorldConfig) GetTickRate() int {
	return getIntWithEnvFallback(w.TickRate, "WORLD_TICK_RATE", 20)
}

// GetSpawnRadius возвращает радиус области спавна в чанках
func (w *WorldConfig) GetSpawnRadius() int {
	return getIntWithEnvFallback(w.SpawnRadius, "WORLD_SPAWN_RADIUS", 1)
}

// GetDataDir возвращает каталог данных мира (пусто — без диска)
func (s *StorageConfig) GetDataDir() string {
	if s.DataDir != "" {
		return s.DataDir
	}
	return os.Getenv("WORLD_DATA_DIR")
}

// GetMetricsPort возвращает порт Prometheus с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getIntWithEnvFallback(m.Port, "WORLD_METRICS_PORT", 2112)
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configVal int, envVar string, defaultVal int) int {
	// Если значение задано в конфиге и больше 0, используем его
	if configVal > 0 {
		return configVal
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultVal
}
