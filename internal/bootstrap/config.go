package bootstrap

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// SweepConfig 一个周期任务的定时与锁参数
type SweepConfig struct {
	Interval time.Duration `env:"INTERVAL"`
	MaxHold  time.Duration `env:"MAX_HOLD"`
	MinHold  time.Duration `env:"MIN_HOLD"`
}

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBHost     string `env:"DB_HOST"     envDefault:"127.0.0.1"`
	DBPort     string `env:"DB_PORT"     envDefault:"3306"`
	DBName     string `env:"DB_NAME"     envDefault:"campus_partner"`

	RedisAddr     string `env:"REDIS_ADDR,required,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	// KeyPrefix 默认为空，缓存 key 即 "Room:<id>" / "Session:<openId>"
	KeyPrefix string `env:"CACHE_KEY_PREFIX"`

	JWTSecret  string        `env:"JWT_SECRET,required,notEmpty"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"2h"`

	ServerPort        string        `env:"SERVER_PORT"         envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL"           envDefault:"info"`
	AppEnv            string        `env:"APP_ENV"             envDefault:"development"`
	RateLimitMax      int           `env:"RATE_LIMIT_MAX"      envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW"   envDefault:"1s"`
	CORSAllowedOrigin string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	WorkerConcurrency int         `env:"WORKER_CONCURRENCY" envDefault:"10"`
	CapacitySweep     SweepConfig `envPrefix:"CAPACITY_SWEEP_"`
	ArchivalSweep     SweepConfig `envPrefix:"ARCHIVAL_SWEEP_"`
}

// minHoldSlack MinHold 至多比 Interval 短 1/minHoldSlack。
// asynq 的 Unique 在任务完成后即失效，同一周期内不重复运行完全依赖锁的最短持有时间。
const minHoldSlack = 10

// defaultConfig 两个周期任务默认值不同，无法用 envDefault 表达
func defaultConfig() Config {
	return Config{
		CapacitySweep: SweepConfig{Interval: 20 * time.Second, MaxHold: 20 * time.Second, MinHold: 19 * time.Second},
		ArchivalSweep: SweepConfig{Interval: time.Hour, MaxHold: time.Hour, MinHold: 59 * time.Minute},
	}
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	for name, s := range map[string]SweepConfig{"CAPACITY_SWEEP": c.CapacitySweep, "ARCHIVAL_SWEEP": c.ArchivalSweep} {
		if s.Interval <= 0 || s.MaxHold <= 0 {
			return fmt.Errorf("%s_INTERVAL and %s_MAX_HOLD must be positive", name, name)
		}
		if s.MaxHold > s.Interval {
			return fmt.Errorf("%s_MAX_HOLD must not exceed %s_INTERVAL", name, name)
		}
		if s.MinHold > s.MaxHold {
			return fmt.Errorf("%s_MIN_HOLD must not exceed %s_MAX_HOLD", name, name)
		}
		if floor := s.Interval - s.Interval/minHoldSlack; s.MinHold < floor {
			return fmt.Errorf("%s_MIN_HOLD must be at least %s for a %s interval", name, floor, s.Interval)
		}
	}
	return nil
}
