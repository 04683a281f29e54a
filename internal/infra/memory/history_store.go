package memory

import (
	"context"
	"sync"

	"car-picker/internal/domain"
)

// HistoryStore keeps the most recent attempts in memory, newest first.
type HistoryStore struct {
	limit int

	mu       sync.RWMutex
	attempts []domain.Attempt
}

// NewHistoryStore keeps at most limit attempts; limit <= 0 keeps 100.
func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &HistoryStore{limit: limit}
}

func (s *HistoryStore) Record(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append([]domain.Attempt{attempt}, s.attempts...)
	if len(s.attempts) > s.limit {
		s.attempts = s.attempts[:s.limit]
	}
	return nil
}

func (s *HistoryStore) Recent(_ context.Context, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.attempts) {
		limit = len(s.attempts)
	}
	return append([]domain.Attempt(nil), s.attempts[:limit]...), nil
}
