// Package config loads server configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr      string `env:"VOID_HTTP_ADDR" envDefault:":8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"voidthreat.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	TokenSecret   string `env:"WEBSOCKET_TOKEN_SECRET" envDefault:"dev-secret-change-in-production"`
	// RateLimitPerMinute is per client IP for create/join and per player for moves. 0 disables.
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"20"`
	CORSOrigins        []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	FirstNightKills    bool     `env:"FIRST_NIGHT_KILLS" envDefault:"false"`
	BalanceTolerance   int      `env:"BALANCE_TOLERANCE" envDefault:"2"`
}

// Load reads an optional .env file, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the environment into a Config and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for store driver %q", cfg.StoreDriver)
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return Config{}, fmt.Errorf("SQLITE_PATH is required for store driver %q", cfg.StoreDriver)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.BalanceTolerance < 0 {
		return Config{}, fmt.Errorf("BALANCE_TOLERANCE must not be negative")
	}
	return cfg, nil
}

// RulesOverrides is the rules section in the shape games.LoadConfigFromMap reads.
func (c Config) RulesOverrides() map[string]interface{} {
	return map[string]interface{}{
		"balance_tolerance": float64(c.BalanceTolerance),
		"first_night_kills": c.FirstNightKills,
	}
}
