package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration for the exam engine.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"exam-engine"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Bank  Bank
	Exam  Exam
	Redis Redis
}

// Bank points at the question bank and optional blueprint files.
type Bank struct {
	QuestionsPath string `env:"BANK_QUESTIONS_PATH" envDefault:"data/questions.json"`
	BlueprintPath string `env:"BANK_BLUEPRINT_PATH" envDefault:"data/blueprint.json"`
}

// Exam groups exam-mode defaults; all are overridable per start request.
type Exam struct {
	DefaultDuration  time.Duration `env:"EXAM_DEFAULT_DURATION" envDefault:"60m"`
	DefaultPassLine  int           `env:"EXAM_DEFAULT_PASS_LINE" envDefault:"60"`
	DefaultPoolLimit int           `env:"EXAM_DEFAULT_POOL_LIMIT" envDefault:"100"`
	ClockInterval    time.Duration `env:"EXAM_CLOCK_INTERVAL" envDefault:"1s"`
}

// Redis holds the optional progress snapshot cache configuration. An empty
// addr disables Redis and falls back to the in-memory store.
type Redis struct {
	Addr        string        `env:"REDIS_ADDR"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	PoolSize    int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	SnapshotTTL time.Duration `env:"REDIS_SNAPSHOT_TTL" envDefault:"720h"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
