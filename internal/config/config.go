package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"scala40-server/internal/scala40"
)

type Config struct {
	Port             int
	StoreDriver      string
	SQLitePath       string
	DatabaseURL      string
	RedisAddr        string
	RedisTTL         time.Duration
	NATSURL          string
	EliminationScore int
	ShuffleSeed      *uint64 // nil means cryptographic shuffling
	FinishedGameTTL  time.Duration
	LogLevel         logrus.Level
	LogFormat        string
}

func Default() Config {
	return Config{
		Port:             8080,
		StoreDriver:      "memory",
		SQLitePath:       "scala40.db",
		RedisTTL:         7 * 24 * time.Hour,
		EliminationScore: scala40.DefaultEliminationScore,
		FinishedGameTTL:  24 * time.Hour,
		LogLevel:         logrus.InfoLevel,
		LogFormat:        "text",
	}
}

// Load reads the process environment over the defaults.
func Load() (Config, error) {
	cfg := Default()
	var err error

	if cfg.Port, err = intVar("PORT", cfg.Port); err != nil {
		return cfg, err
	}
	if cfg.EliminationScore, err = intVar("ELIMINATION_SCORE", cfg.EliminationScore); err != nil {
		return cfg, err
	}
	if cfg.EliminationScore <= 0 {
		return cfg, fmt.Errorf("ELIMINATION_SCORE must be positive, got %d", cfg.EliminationScore)
	}
	if cfg.RedisTTL, err = durationVar("REDIS_TTL", cfg.RedisTTL); err != nil {
		return cfg, err
	}
	if cfg.FinishedGameTTL, err = durationVar("FINISHED_GAME_TTL", cfg.FinishedGameTTL); err != nil {
		return cfg, err
	}

	if v := env("SHUFFLE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("SHUFFLE_SEED: %w", err)
		}
		cfg.ShuffleSeed = &seed
	}

	if v := env("STORE_DRIVER"); v != "" {
		cfg.StoreDriver = strings.ToLower(v)
	}
	switch cfg.StoreDriver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return cfg, fmt.Errorf("STORE_DRIVER %q is not one of memory, sqlite, postgres, redis", cfg.StoreDriver)
	}
	if v := env("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.RedisAddr = env("REDIS_ADDR")
	cfg.NATSURL = env("NATS_URL")
	if cfg.StoreDriver == "postgres" && cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("STORE_DRIVER=postgres needs DATABASE_URL")
	}
	if cfg.StoreDriver == "redis" && cfg.RedisAddr == "" {
		return cfg, fmt.Errorf("STORE_DRIVER=redis needs REDIS_ADDR")
	}

	if v := env("LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = logrus.ParseLevel(v); err != nil {
			return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	return cfg, nil
}

// Logger builds the process logger from the log settings.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intVar(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationVar(key string, fallback time.Duration) (time.Duration, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
