// Package apitest provides an in-process quiz server for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"car-picker/internal/domain"
)

// Server mimics the quiz HTTP API: it issues questions, grades answers and
// keeps an in-memory scoreboard.
type Server struct {
	*httptest.Server

	mu               sync.Mutex
	queue            []domain.Question
	issued           map[string]domain.Question
	answers          []domain.AnswerSubmission
	scores           map[string]*domain.ServerScore
	seq              int
	failQuestion     int
	failAnswer       int
	failLeaderboard  bool
	answerGate       chan struct{}
	questionCalls    int
	leaderboardCalls int
	lastTimer        string
}

func NewServer() *Server {
	s := &Server{
		issued: make(map[string]domain.Question),
		scores: make(map[string]*domain.ServerScore),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/question", s.handleQuestion)
	mux.HandleFunc("/api/answer", s.handleAnswer)
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/api/leaderboard/reset", s.handleReset)
	s.Server = httptest.NewServer(mux)
	return s
}

// Enqueue makes the next question requests return these questions in order.
func (s *Server) Enqueue(qs ...domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, qs...)
}

// FailQuestions makes the next n question requests fail with 503.
func (s *Server) FailQuestions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQuestion = n
}

// FailAnswers makes the next n answer requests fail with 503.
func (s *Server) FailAnswers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAnswer = n
}

// FailLeaderboard toggles leaderboard failures.
func (s *Server) FailLeaderboard(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLeaderboard = fail
}

// HoldAnswers blocks answer requests until the returned release func is called.
func (s *Server) HoldAnswers() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.answerGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Answers returns every answer submission received so far.
func (s *Server) Answers() []domain.AnswerSubmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AnswerSubmission(nil), s.answers...)
}

func (s *Server) QuestionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionCalls
}

func (s *Server) LeaderboardCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardCalls
}

// LastTimer is the timer query parameter of the latest question request.
func (s *Server) LastTimer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTimer
}

// SampleQuestion builds a make-tier question whose correct answer is at index correct.
func SampleQuestion(id string, timeout, correct int) domain.Question {
	makes := []string{"Audi", "Toyota", "BMW", "Kia"}
	opts := make([]domain.Option, len(makes))
	for i, m := range makes {
		opts[i] = domain.Option{Make: m, Label: m}
	}
	return domain.Question{
		ID:         id,
		Difficulty: domain.DifficultyMake,
		ImageURL:   "/static/cars/" + id + ".jpg",
		Prompt:     "Guess the vehicle information.",
		Correct:    opts[correct],
		Options:    opts,
		Timeout:    timeout,
	}
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	difficulty, err := domain.ParseDifficulty(r.URL.Query().Get("difficulty"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.questionCalls++
	s.lastTimer = r.URL.Query().Get("timer")
	if s.failQuestion > 0 {
		s.failQuestion--
		s.mu.Unlock()
		writeDetail(w, http.StatusServiceUnavailable, "dataset unavailable")
		return
	}
	var q domain.Question
	if len(s.queue) > 0 {
		q = s.queue[0]
		s.queue = s.queue[1:]
	} else {
		s.seq++
		q = SampleQuestion("q"+strconv.Itoa(s.seq), 20, s.seq%4)
		q.Difficulty = difficulty
		if t, err := strconv.Atoi(r.URL.Query().Get("timer")); err == nil {
			q.Timeout = t
		}
	}
	s.issued[q.ID] = q
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var sub domain.AnswerSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	gate := s.answerGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, sub)
	if s.failAnswer > 0 {
		s.failAnswer--
		writeDetail(w, http.StatusServiceUnavailable, "try again later")
		return
	}
	q, ok := s.issued[sub.QuestionID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Invalid question id.")
		return
	}
	if q.Difficulty != sub.Difficulty {
		writeDetail(w, http.StatusBadRequest, "Difficulty mismatch.")
		return
	}
	delete(s.issued, sub.QuestionID)

	correct := !sub.Timeout && strings.EqualFold(q.Correct.Label, sub.Answer.Label)
	res := domain.AnswerResult{Correct: correct, CorrectAnswer: q.Correct}
	switch {
	case sub.Timeout:
		res.Message = "Timed out."
	case correct:
		res.Message = "Correct."
	default:
		res.Message = "Incorrect."
	}
	if sub.Player != nil && *sub.Player != "" {
		score := s.registerLocked(*sub.Player, q.Difficulty, correct)
		res.Score = &score
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) registerLocked(player string, difficulty domain.Difficulty, correct bool) domain.ServerScore {
	rec, ok := s.scores[player]
	if !ok {
		rec = &domain.ServerScore{Player: player}
		s.scores[player] = rec
	}
	rec.TotalAttempts++
	if correct {
		rec.TotalCorrect++
		rec.Streak++
		points := 10
		switch difficulty {
		case domain.DifficultyMakeModel:
			points += 5
		case domain.DifficultyMakeModelYear:
			points += 10
		}
		if rec.Streak >= 3 {
			points += 5
		}
		rec.Points += points
	} else {
		rec.Streak = 0
	}
	return *rec
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.leaderboardCalls++
	if s.failLeaderboard {
		s.mu.Unlock()
		writeDetail(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	entries := make([]domain.LeaderboardEntry, 0, len(s.scores))
	for _, rec := range s.scores {
		acc := 0.0
		if rec.TotalAttempts > 0 {
			acc = float64(rec.TotalCorrect) / float64(rec.TotalAttempts)
		}
		entries = append(entries, domain.LeaderboardEntry{Player: rec.Player, Points: rec.Points, Accuracy: acc})
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].Accuracy > entries[j].Accuracy
	})
	if len(entries) > 10 {
		entries = entries[:10]
	}
	writeJSON(w, http.StatusOK, domain.Leaderboard{Entries: entries})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.mu.Lock()
	cleared := len(s.scores)
	s.scores = make(map[string]*domain.ServerScore)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Println("apitest: encode response:", err)
	}
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
