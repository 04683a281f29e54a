package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"car-picker/internal/domain"
	"github.com/redis/go-redis/v9"
)

// HistoryStore keeps attempts as a capped Redis list, newest first:
// LPUSH {prefix}car-picker:history {json}; LTRIM 0 limit-1.
type HistoryStore struct {
	client *redis.Client
	key    string
	limit  int64
}

func NewHistoryStore(client *redis.Client, prefix string, limit int) *HistoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &HistoryStore{client: client, key: prefix + "car-picker:history", limit: int64(limit)}
}

func (s *HistoryStore) Record(ctx context.Context, attempt domain.Attempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, 0, s.limit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.Attempt, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	attempts := make([]domain.Attempt, 0, len(raw))
	for _, item := range raw {
		var a domain.Attempt
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			continue
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}
