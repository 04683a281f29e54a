package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"car-picker/internal/domain"
	"github.com/redis/go-redis/v9"
)

// PrefsStore keeps preferences in Redis strings so several machines can
// share one profile. Settings are stored as JSON.
//
//	GET {prefix}car-picker-settings
//	GET {prefix}car-picker-player
type PrefsStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPrefsStore namespaces keys with prefix (for example a profile name).
// ttl <= 0 keeps keys forever.
func NewPrefsStore(client *redis.Client, prefix string, ttl time.Duration) *PrefsStore {
	return &PrefsStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *PrefsStore) LoadSettings(ctx context.Context) (domain.Settings, error) {
	raw, err := s.client.Get(ctx, s.key("car-picker-settings")).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.DefaultSettings(), fmt.Errorf("load settings: %w", err)
	}
	settings := domain.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		// malformed values are ignored, not fatal
		return domain.DefaultSettings(), nil
	}
	return settings.Normalize(), nil
}

func (s *PrefsStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.client.Set(ctx, s.key("car-picker-settings"), data, s.expiry()).Err()
}

func (s *PrefsStore) LoadPlayer(ctx context.Context) (string, error) {
	name, err := s.client.Get(ctx, s.key("car-picker-player")).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load player: %w", err)
	}
	return name, nil
}

func (s *PrefsStore) SavePlayer(ctx context.Context, name string) error {
	return s.client.Set(ctx, s.key("car-picker-player"), name, s.expiry()).Err()
}

func (s *PrefsStore) key(name string) string {
	return s.prefix + name
}

func (s *PrefsStore) expiry() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return s.ttl
}
