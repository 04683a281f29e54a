package domain

import "math"

const (
	MinTimer     = 10
	MaxTimer     = 60
	DefaultTimer = 20

	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Settings are the user preferences persisted on the client.
type Settings struct {
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Theme      string     `json:"theme" yaml:"theme"`
	Font       string     `json:"font" yaml:"font"`
	Timer      int        `json:"timer" yaml:"timer"`
}

func DefaultSettings() Settings {
	return Settings{
		Difficulty: DifficultyMakeModelYear,
		Theme:      ThemeDark,
		Font:       "pretendard",
		Timer:      DefaultTimer,
	}
}

// ClampTimer bounds a countdown length to [MinTimer, MaxTimer].
func ClampTimer(seconds float64) int {
	if math.IsNaN(seconds) {
		return DefaultTimer
	}
	v := int(math.Round(seconds))
	if v < MinTimer {
		return MinTimer
	}
	if v > MaxTimer {
		return MaxTimer
	}
	return v
}

// Normalize replaces invalid fields with defaults and clamps the timer.
// A zero timer is treated as unset.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	if _, err := ParseDifficulty(string(s.Difficulty)); err != nil {
		s.Difficulty = def.Difficulty
	}
	if s.Theme != ThemeDark && s.Theme != ThemeLight {
		s.Theme = def.Theme
	}
	if s.Font == "" {
		s.Font = def.Font
	}
	if s.Timer == 0 {
		s.Timer = def.Timer
	} else {
		s.Timer = ClampTimer(float64(s.Timer))
	}
	return s
}

// ToggleTheme flips between dark and light.
func (s Settings) ToggleTheme() Settings {
	if s.Theme == ThemeDark {
		s.Theme = ThemeLight
	} else {
		s.Theme = ThemeDark
	}
	return s
}
