package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	ServiceName       string        `env:"SERVICE_NAME" envDefault:"theater-api"`
	Environment       string        `env:"ENVIRONMENT" envDefault:"development"`
	Port              string        `env:"PORT" envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON           bool          `env:"LOG_JSON" envDefault:"false"`
	DBURL             string        `env:"DB_URL"`
	AutoMigrate       bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	ReadTimeoutSecs   int           `env:"SERVER_READ_TIMEOUT" envDefault:"15"`
	WriteTimeoutSecs  int           `env:"SERVER_WRITE_TIMEOUT" envDefault:"15"`
	IdleTimeoutSecs   int           `env:"SERVER_IDLE_TIMEOUT" envDefault:"60"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	DBMaxConns        int           `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxIdleSecs     int           `env:"DB_MAX_CONN_IDLE_SECS" envDefault:"300"`
	DBMaxLifeSecs     int           `env:"DB_MAX_CONN_LIFETIME_SECS" envDefault:"3600"`
	DBConnTimeoutSecs int           `env:"DB_CONN_TIMEOUT_SECS" envDefault:"10"`
	DBStatementCache  int           `env:"DB_STATEMENT_CACHE_CAPACITY" envDefault:"256"`
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT must not be empty")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return ":" + c.Port
}
