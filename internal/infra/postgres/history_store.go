package postgres

import (
	"context"
	"fmt"

	"car-picker/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// HistoryStore persists attempts in the attempts table.
type HistoryStore struct {
	pool *pgxpool.Pool
}

func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

func (s *HistoryStore) Record(ctx context.Context, a domain.Attempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO attempts (id, session_id, question_id, difficulty, answer, correct_answer, correct, timed_out, player, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`,
		a.ID, a.SessionID, a.QuestionID, string(a.Difficulty), a.Answer, a.CorrectAnswer, a.Correct, a.TimedOut, a.Player, a.AnsweredAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]domain.Attempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, session_id::text, question_id, difficulty, answer, correct_answer, correct, timed_out, player, answered_at
		FROM attempts
		ORDER BY answered_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		var (
			a          domain.Attempt
			difficulty string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.QuestionID, &difficulty, &a.Answer, &a.CorrectAnswer,
			&a.Correct, &a.TimedOut, &a.Player, &a.AnsweredAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Difficulty = domain.Difficulty(difficulty)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}
