package memory

import (
	"context"
	"sync"

	"car-picker/internal/domain"
)

// PrefsStore is an in-memory implementation of app.PreferenceStore.
type PrefsStore struct {
	mu       sync.RWMutex
	settings *domain.Settings
	player   string
}

func NewPrefsStore() *PrefsStore {
	return &PrefsStore{}
}

func (s *PrefsStore) LoadSettings(_ context.Context) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return domain.DefaultSettings(), nil
	}
	return s.settings.Normalize(), nil
}

func (s *PrefsStore) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &settings
	return nil
}

func (s *PrefsStore) LoadPlayer(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.player, nil
}

func (s *PrefsStore) SavePlayer(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = name
	return nil
}
