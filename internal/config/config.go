package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Reservation ReservationConfig `mapstructure:"reservation"`
	Stock       StockConfig       `mapstructure:"stock"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddr                string        `mapstructure:"http_addr"`
	GRPCAddr                string        `mapstructure:"grpc_addr"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type StoreConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JournalConfig struct {
	Backend      string        `mapstructure:"backend"` // "mysql" | "sqlite" | "none"
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	SQLitePath   string        `mapstructure:"sqlite_path"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	SeedFromDB   bool          `mapstructure:"seed_from_db"`
}

type ReservationConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

type StockConfig struct {
	// Seed initialises counters that are absent at startup. A list keeps
	// stock IDs case-sensitive; viper lowercases map keys.
	Seed []StockSeed `mapstructure:"seed"`
}

type StockSeed struct {
	ID       string `mapstructure:"id"`
	Quantity int64  `mapstructure:"quantity"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.graceful_shutdown_timeout", 5*time.Second)
	v.SetDefault("store.backend", "redis")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("journal.backend", "none")
	v.SetDefault("journal.mysql_dsn", "root:root@tcp(localhost:3306)/reservations?parseTime=true")
	v.SetDefault("journal.sqlite_path", "reservations.db")
	v.SetDefault("journal.workers", 4)
	v.SetDefault("journal.queue_size", 10000)
	v.SetDefault("journal.write_timeout", 5*time.Second)
	v.SetDefault("reservation.default_ttl", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads the yaml file at path, overlays environment variables, and
// returns Config. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variable override: REDIS_ADDR -> redis.addr
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Journal.Backend {
	case "mysql", "sqlite", "none":
	default:
		return fmt.Errorf("unknown journal backend %q", c.Journal.Backend)
	}

	if c.Journal.Backend != "none" && c.Journal.Workers <= 0 {
		return errors.New("journal.workers must be positive")
	}
	if c.Reservation.DefaultTTL < time.Second {
		return errors.New("reservation.default_ttl must be at least 1s")
	}
	for i, seed := range c.Stock.Seed {
		if seed.ID == "" {
			return fmt.Errorf("stock.seed[%d].id is required", i)
		}
		if seed.Quantity < 0 {
			return fmt.Errorf("stock.seed[%d] (%s) must not be negative", i, seed.ID)
		}
	}
	return nil
}
