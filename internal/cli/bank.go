package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"quiz-arena/internal/app"
	"quiz-arena/internal/config"
	"quiz-arena/internal/infra/file"
	"quiz-arena/internal/infra/memory"
	"quiz-arena/internal/infra/postgres"
	infraredis "quiz-arena/internal/infra/redis"
)

// loadConfig reads the config file; a missing file means defaults.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config: file not found, using defaults", "path", path)
		return config.Default(), nil
	}
	if err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// stores holds the optional backing services named in the config.
type stores struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

func openStores(ctx context.Context, cfg config.Config) (*stores, error) {
	s := &stores{}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pool = pool
	}
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := s.redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}
	return s, nil
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

// questionSource picks the loader (Postgres, else the question directory) and
// the cache in front of it (Redis, else in-process).
func questionSource(cfg config.Config, s *stores, log *slog.Logger) app.QuestionSource {
	var loader memory.BankLoader = file.NewDirLoader(cfg.Quiz.Dir, log)
	if s.pool != nil {
		loader = postgres.NewTopicStore(s.pool)
	}

	if s.redis != nil {
		return infraredis.NewQuestionBank(s.redis, loader, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	}
	return memory.NewQuestionBank(loader, config.TTLDuration(cfg.Quiz.TTL, time.Minute))
}

func roomTiming(cfg config.Config) app.Timing {
	def := app.DefaultTiming()
	return app.Timing{
		TimeLimit: config.TTLDuration(cfg.Quiz.TimeLimit, def.TimeLimit),
		Grace:     config.TTLDuration(cfg.Quiz.Grace, def.Grace),
		Pause:     config.TTLDuration(cfg.Quiz.Pause, def.Pause),
	}
}
