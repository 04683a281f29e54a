package domain

// Stats are the per-session counters kept by the client.
type Stats struct {
	Correct  int `json:"correct"`
	Attempts int `json:"attempts"`
	Streak   int `json:"streak"`
}

// Record applies one resolved question.
func (s *Stats) Record(correct bool) {
	s.Attempts++
	if correct {
		s.Correct++
		s.Streak++
		return
	}
	s.Streak = 0
}

// Accuracy is the rounded percentage of correct answers, 0 before the first attempt.
func (s Stats) Accuracy() int {
	return percent(s.Correct, s.Attempts)
}
