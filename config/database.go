package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	// Driver is "postgres" or "memory". The memory store is process-local and only
	// useful when http and worker run in the same process.
	Driver string `env:"DRIVER" envDefault:"postgres"`

	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"forecast"`
	Password string `env:"PASSWORD" envDefault:"forecast"`
	Name     string `env:"NAME"     envDefault:"forecast"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // 'require' in production

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`

	// RunMigrationsOnStart applies embedded migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// UseMemory reports whether the in-memory stores replace Postgres.
func (c *DBConfig) UseMemory() bool {
	return strings.EqualFold(strings.TrimSpace(c.Driver), "memory")
}

// RedisConfig configures the optional Redis connection used for job wake-ups.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`

	// Channel is the pub/sub channel carrying "job enqueued" signals.
	Channel string `env:"CHANNEL" envDefault:"forecast:jobs:enqueued"`
}
