package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации дашборда и analytics API.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера дашборда.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr: адрес для http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DashboardConfig: поведение цикла обновления.
type DashboardConfig struct {
	BackendURL      string        `mapstructure:"backend_url" validate:"required,url"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gt=0"`
	// 0: без таймаута запроса
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gte=0"`
	Locale       string        `mapstructure:"locale" validate:"required"`
	Timezone     string        `mapstructure:"timezone"`

	// Circuit Breaker перед бэкендом (0 выключает)
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`

	ManualRefreshRPS   float64 `mapstructure:"manual_refresh_rps" validate:"gt=0"`
	ManualRefreshBurst int     `mapstructure:"manual_refresh_burst" validate:"gte=1"`

	// Печать кадров в терминал
	Terminal bool `mapstructure:"terminal"`
}

// Location разбирает часовой пояс строки статуса. Пусто или "Local" означает системный.
func (d DashboardConfig) Location() (*time.Location, error) {
	if d.Timezone == "" || d.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", d.Timezone, err)
	}
	return loc, nil
}

// AnalyticsConfig: настройки analytics API (источника отчетов).
type AnalyticsConfig struct {
	Addr          string        `mapstructure:"addr" validate:"required"`
	DefaultHours  int           `mapstructure:"default_hours" validate:"gte=1"`
	Version       string        `mapstructure:"version"`
	BatchSize     int           `mapstructure:"batch_size" validate:"gte=1,lte=8191"`
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	BufferSize    int           `mapstructure:"buffer_size" validate:"gte=1"`
}

// SimulatorConfig: генератор трафика для analytics API.
type SimulatorConfig struct {
	TargetURL       string        `mapstructure:"target_url" validate:"required,url"`
	EventsPerSecond float64       `mapstructure:"events_per_second" validate:"gt=0"`
	BatchSize       int           `mapstructure:"batch_size" validate:"gte=1,lte=1000"`
	Duration        time.Duration `mapstructure:"duration" validate:"gte=0"` // 0: до Ctrl+C
	Clients         int           `mapstructure:"clients" validate:"gte=1"`
	// 0: случайное зерно
	Seed uint64 `mapstructure:"seed"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub сигналов обновления).
// Пустой Addr: Redis не используется.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"` // debug, info, warn, error
	Format string `mapstructure:"format" validate:"oneof=json console"`         // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig(paths ...string) (*Config, error) {
	// 0. .env кладет значения в окружение процесса, отсутствие файла не ошибка
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 2. Переменные окружения: DASHBOARD_REFRESH_INTERVAL=15s перекроет dashboard.refresh_interval
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет, работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Проверка значений
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("dashboard.backend_url", "http://localhost:8000")
	v.SetDefault("dashboard.refresh_interval", 30*time.Second)
	v.SetDefault("dashboard.fetch_timeout", 10*time.Second)
	v.SetDefault("dashboard.locale", "en-US")
	v.SetDefault("dashboard.timezone", "Local")
	v.SetDefault("dashboard.breaker_failures", 5)
	v.SetDefault("dashboard.breaker_cooldown", 30*time.Second)
	v.SetDefault("dashboard.manual_refresh_rps", 1.0)
	v.SetDefault("dashboard.manual_refresh_burst", 3)
	v.SetDefault("dashboard.terminal", false)

	v.SetDefault("analytics.addr", ":8000")
	v.SetDefault("analytics.default_hours", 24)
	v.SetDefault("analytics.version", "1.0.0")
	v.SetDefault("analytics.batch_size", 100)
	v.SetDefault("analytics.flush_interval", 500*time.Millisecond)
	v.SetDefault("analytics.buffer_size", 1000)

	v.SetDefault("simulator.target_url", "http://127.0.0.1:8000")
	v.SetDefault("simulator.events_per_second", 2.0)
	v.SetDefault("simulator.batch_size", 10)
	v.SetDefault("simulator.duration", 5*time.Minute)
	v.SetDefault("simulator.clients", 100)
	v.SetDefault("simulator.seed", 0)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}
