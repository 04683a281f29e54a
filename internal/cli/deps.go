package cli

import (
	"context"
	"fmt"
	"time"

	"car-picker/internal/app"
	"car-picker/internal/config"
	"car-picker/internal/infra/file"
	"car-picker/internal/infra/memory"
	"car-picker/internal/infra/postgres"
	redisstore "car-picker/internal/infra/redis"
	"car-picker/internal/transport/api"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backends holds the stores selected by configuration and the connections
// they own.
type backends struct {
	prefs   app.PreferenceStore
	history app.HistoryRecorder

	redis *redis.Client
	pool  *pgxpool.Pool
}

func (b *backends) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	if cfg.State.Backend == "redis" || cfg.State.History == "redis" {
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr not configured")
		}
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	switch cfg.State.Backend {
	case "memory":
		b.prefs = memory.NewPrefsStore()
	case "redis":
		ttl := config.TTLDuration(cfg.Redis.TTL, 0)
		b.prefs = redisstore.NewPrefsStore(b.redis, cfg.Redis.Prefix, ttl)
	case "file", "":
		store, err := file.NewPrefsStore(cfg.State.Dir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.prefs = store
	default:
		b.Close()
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}

	switch cfg.State.History {
	case "memory", "":
		b.history = memory.NewHistoryStore(cfg.State.Limit)
	case "redis":
		b.history = redisstore.NewHistoryStore(b.redis, cfg.Redis.Prefix, cfg.State.Limit)
	case "postgres":
		if cfg.Postgres.URL == "" {
			b.Close()
			return nil, fmt.Errorf("postgres url not configured")
		}
		if _, err := postgres.Migrate(ctx, cfg.Postgres.URL); err != nil {
			b.Close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.history = postgres.NewHistoryStore(pool)
	default:
		b.Close()
		return nil, fmt.Errorf("unknown history backend %q", cfg.State.History)
	}
	return b, nil
}

func newAPIClient(cfg config.Config) (*api.Client, error) {
	return api.NewClient(cfg.API.URL, config.TTLDuration(cfg.API.Timeout, 0))
}

// newSession builds a controller over the configured collaborators.
func (rt *runtime) newSession(client *api.Client, b *backends) *app.Controller {
	return app.NewController(client, b.prefs, b.history, app.WithLogger(rt.log), app.WithTick(time.Second))
}
