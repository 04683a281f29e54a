package domain

import (
	"math"
	"time"
)

// Difficulty is the strictness tier of a question.
type Difficulty string

const (
	DifficultyMake          Difficulty = "make"
	DifficultyMakeModel     Difficulty = "make_model"
	DifficultyMakeModelYear Difficulty = "make_model_year"
)

// ParseDifficulty validates a raw tier name.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(raw); d {
	case DifficultyMake, DifficultyMakeModel, DifficultyMakeModelYear:
		return d, nil
	}
	return "", ErrInvalidDifficulty
}

// Prompt is the instruction shown above the options for this tier.
func (d Difficulty) Prompt() string {
	switch d {
	case DifficultyMake:
		return "Pick the correct manufacturer for this car."
	case DifficultyMakeModel:
		return "Pick the correct manufacturer and model."
	case DifficultyMakeModelYear:
		return "Pick the correct manufacturer, model, and year."
	}
	return "Identify the car shown."
}

// Option is one answer choice. Label is what the user sees; the remaining
// fields identify the vehicle to the server.
type Option struct {
	Make  string  `json:"make"`
	Model *string `json:"model,omitempty"`
	Year  *string `json:"year,omitempty"`
	Label string  `json:"label"`
}

// Question is a single quiz item as issued by the quiz server.
type Question struct {
	ID         string     `json:"qid"`
	Difficulty Difficulty `json:"difficulty"`
	ImageURL   string     `json:"imageUrl"`
	Prompt     string     `json:"prompt,omitempty"`
	Correct    Option     `json:"correct"`
	Options    []Option   `json:"options"`
	Timeout    int        `json:"timeout"`
}

// Validate checks that exactly one option carries the correct label.
func (q Question) Validate() error {
	if q.ID == "" || len(q.Options) == 0 {
		return ErrInvalidQuestion
	}
	matches := 0
	for _, opt := range q.Options {
		if opt.Label == q.Correct.Label {
			matches++
		}
	}
	if matches != 1 {
		return ErrInvalidQuestion
	}
	return nil
}

// CorrectIndex returns the position of the correct option, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Label == q.Correct.Label {
			return i
		}
	}
	return -1
}

// AnswerSubmission is the body posted to the answer endpoint.
type AnswerSubmission struct {
	QuestionID string     `json:"qid"`
	Difficulty Difficulty `json:"difficulty"`
	Answer     Option     `json:"answer"`
	Player     *string    `json:"player"`
	Timeout    bool       `json:"timeout"`
}

// AnswerResult is the server verdict for a submission.
type AnswerResult struct {
	Correct       bool         `json:"correct"`
	CorrectAnswer Option       `json:"correctAnswer"`
	Message       string       `json:"message,omitempty"`
	Score         *ServerScore `json:"score,omitempty"`
}

// ServerScore is the cumulative score the server keeps for a named player.
type ServerScore struct {
	Player        string `json:"player"`
	Points        int    `json:"points"`
	Streak        int    `json:"streak"`
	TotalCorrect  int    `json:"total_correct"`
	TotalAttempts int    `json:"total_attempts"`
}

func (s ServerScore) AccuracyPercent() int {
	return percent(s.TotalCorrect, s.TotalAttempts)
}

// LeaderboardEntry is one ranked player. Accuracy is a ratio in [0,1].
type LeaderboardEntry struct {
	Player   string  `json:"player"`
	Points   int     `json:"points"`
	Accuracy float64 `json:"accuracy"`
}

func (e LeaderboardEntry) AccuracyPercent() int {
	return int(math.Round(e.Accuracy * 100))
}

// Leaderboard is ordered by the server.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
}

// Attempt is one resolved question kept in the answer history.
type Attempt struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"sessionId"`
	QuestionID    string     `json:"questionId"`
	Difficulty    Difficulty `json:"difficulty"`
	Answer        string     `json:"answer"`
	CorrectAnswer string     `json:"correctAnswer"`
	Correct       bool       `json:"correct"`
	TimedOut      bool       `json:"timedOut"`
	Player        string     `json:"player,omitempty"`
	AnsweredAt    time.Time  `json:"answeredAt"`
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
