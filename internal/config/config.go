// Package config loads process configuration from environment
// variables (optionally preceded by a local .env file), following the
// same caarlos0/env + godotenv pattern the teacher uses for its
// websocket servers.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every environment-driven knob the server reads at
// startup. Tags: env is the variable name, envDefault its fallback.
type Config struct {
	DumpPath      string        `env:"SWEC_DUMP_PATH" envDefault:"./swec.json"`
	HistoryLength int           `env:"SWEC_HISTORY_LENGTH" envDefault:"50"`
	PublicAddr    string        `env:"SWEC_PUBLIC_ADDR" envDefault:":8080"`
	PrivateAddr   string        `env:"SWEC_PRIVATE_ADDR" envDefault:"127.0.0.1:8081"`
	APIPrefix     string        `env:"SWEC_API_PREFIX" envDefault:"/api/v1"`
	DumpInterval  time.Duration `env:"SWEC_DUMP_INTERVAL" envDefault:"30s"`
	BroadcastBuf  int           `env:"SWEC_BROADCAST_BUFFER" envDefault:"16"`
	WriteRatePS   int           `env:"SWEC_WRITE_RATE_PER_SEC" envDefault:"20"`
	LogLevel      string        `env:"SWEC_LOG_LEVEL" envDefault:"info"`
	LogFormat     string        `env:"SWEC_LOG_FORMAT" envDefault:"json"`
	TruncateOnLoad bool         `env:"SWEC_TRUNCATE_ON_LOAD" envDefault:"false"`
	MetricsInterval time.Duration `env:"SWEC_METRICS_INTERVAL" envDefault:"15s"`
}

// Load reads a local .env file if present (never an error if absent),
// then parses the environment into a Config. logger may be nil before
// the real logger exists; in that case nothing is logged.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
