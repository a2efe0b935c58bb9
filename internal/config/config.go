package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	SourceStatic   = "static"
	SourceStore    = "store"
	SourcePostgres = "postgres"
	SourceMongo    = "mongo"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

type Config struct {
	Server    Server    `yaml:"server"`
	Auth      Auth      `yaml:"auth"`
	Store     Store     `yaml:"store"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Mongo     Mongo     `yaml:"mongo"`
	Broker    Broker    `yaml:"broker"`
	Questions Questions `yaml:"questions"`
	Battle    Battle    `yaml:"battle"`
}

type Server struct {
	Port string `yaml:"port" env:"SERVER_PORT"`
}

type Auth struct {
	// JWTSecret empty means callers identify with the X-User-ID header.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER"`
	DSN    string `yaml:"dsn" env:"STORE_DSN"`
}

type Postgres struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	TTL      string `yaml:"ttl" env:"REDIS_TTL"`
}

type Mongo struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE"`
}

type Broker struct {
	Driver string `yaml:"driver" env:"BROKER_DRIVER"`
}

type Questions struct {
	Source          string `yaml:"source" env:"QUESTIONS_SOURCE"`
	TTL             string `yaml:"ttl" env:"QUESTIONS_TTL"`
	FallbackSubject string `yaml:"fallback_subject" env:"QUESTIONS_FALLBACK_SUBJECT"`
}

type Battle struct {
	QuestionCount     int    `yaml:"question_count" env:"BATTLE_QUESTION_COUNT"`
	QuestionTimeout   string `yaml:"question_timeout" env:"BATTLE_QUESTION_TIMEOUT"`
	ReconcileInterval string `yaml:"reconcile_interval" env:"BATTLE_RECONCILE_INTERVAL"`
	RequireReady      bool   `yaml:"require_ready" env:"BATTLE_REQUIRE_READY"`
	OpenListLimit     int    `yaml:"open_list_limit" env:"BATTLE_OPEN_LIST_LIMIT"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:    Server{Port: "8080"},
		Store:     Store{Driver: StoreMemory},
		Redis:     Redis{TTL: "10m"},
		Mongo:     Mongo{Database: "quiz"},
		Broker:    Broker{Driver: BrokerMemory},
		Questions: Questions{Source: SourceStatic, TTL: "10m", FallbackSubject: "general"},
		Battle: Battle{
			QuestionCount:     10,
			QuestionTimeout:   "20s",
			ReconcileInterval: "5s",
			OpenListLimit:     20,
		},
	}
}

// Load reads YAML config from path, then overlays .env and process environment
// variables. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// .env is optional; variables already set in the process win.
	_ = godotenv.Load()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and sources.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Questions.Source {
	case SourceStatic, SourceStore, SourcePostgres, SourceMongo:
	default:
		return fmt.Errorf("unknown question source %q", c.Questions.Source)
	}
	if c.Questions.Source == SourceStore && c.Store.Driver == StoreMemory {
		return fmt.Errorf("question source %q needs a sql store driver", SourceStore)
	}
	switch c.Broker.Driver {
	case BrokerMemory, BrokerRedis:
	default:
		return fmt.Errorf("unknown broker driver %q", c.Broker.Driver)
	}
	if c.Broker.Driver == BrokerRedis && c.Redis.Addr == "" {
		return fmt.Errorf("broker %q needs redis.addr", BrokerRedis)
	}
	return nil
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
