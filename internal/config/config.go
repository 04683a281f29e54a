package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CAR_PICKER_API_URL.
const EnvPrefix = "CAR_PICKER_"

type Config struct {
	API struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	State struct {
		Dir     string `yaml:"dir"`
		Backend string `yaml:"backend"` // file, redis or memory
		History string `yaml:"history"` // memory, redis or postgres
		Limit   int    `yaml:"limit"`
	} `yaml:"state"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Serve struct {
		Port string `yaml:"port"`
	} `yaml:"serve"`
	Log struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.API.URL = "http://localhost:8000"
	cfg.State.Dir = defaultStateDir()
	cfg.State.Backend = "file"
	cfg.State.History = "memory"
	cfg.State.Limit = 100
	cfg.Serve.Port = "8090"
	cfg.Log.Level = "info"
	cfg.Log.Console = true
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// CAR_PICKER_* environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

func applyEnv(cfg *Config) {
	setString(&cfg.API.URL, "API_URL")
	setString(&cfg.API.Timeout, "API_TIMEOUT")
	setString(&cfg.State.Dir, "STATE_DIR")
	setString(&cfg.State.Backend, "STATE_BACKEND")
	setString(&cfg.State.History, "HISTORY_BACKEND")
	setInt(&cfg.State.Limit, "HISTORY_LIMIT")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setString(&cfg.Redis.Prefix, "REDIS_PREFIX")
	setString(&cfg.Redis.TTL, "REDIS_TTL")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.Serve.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if raw := os.Getenv(EnvPrefix + "LOG_CONSOLE"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Log.Console = v
		}
	}
}

func setString(dst *string, key string) {
	if raw := os.Getenv(EnvPrefix + key); raw != "" {
		*dst = raw
	}
}

func setInt(dst *int, key string) {
	if raw := os.Getenv(EnvPrefix + key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			*dst = v
		}
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "car-picker")
	}
	return ".car-picker"
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
