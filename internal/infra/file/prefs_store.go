package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"car-picker/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	SettingsKey = "car-picker-settings"
	PlayerKey   = "car-picker-player"
)

// PrefsStore keeps preferences as small files in a state directory so they
// survive restarts. Unreadable or malformed files fall back to defaults.
type PrefsStore struct {
	dir string
}

func NewPrefsStore(dir string) (*PrefsStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &PrefsStore{dir: dir}, nil
}

func (s *PrefsStore) LoadSettings(_ context.Context) (domain.Settings, error) {
	data, err := os.ReadFile(s.path(SettingsKey + ".yaml"))
	if err != nil {
		return domain.DefaultSettings(), nil
	}
	// overlay onto defaults so missing keys keep their default value
	settings := domain.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return domain.DefaultSettings(), nil
	}
	return settings.Normalize(), nil
}

func (s *PrefsStore) SaveSettings(_ context.Context, settings domain.Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.write(SettingsKey+".yaml", data)
}

func (s *PrefsStore) LoadPlayer(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path(PlayerKey))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read player: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *PrefsStore) SavePlayer(_ context.Context, name string) error {
	return s.write(PlayerKey, []byte(name+"\n"))
}

func (s *PrefsStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// write replaces the file atomically.
func (s *PrefsStore) write(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
