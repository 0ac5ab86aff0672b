package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// EventSink makes room transitions durable in Postgres. Rows mirror the
// in-memory aggregate; they are written after the transition is already
// observable and are never read back for guard decisions.
type EventSink struct {
	pool *pgxpool.Pool
}

func NewEventSink(pool *pgxpool.Pool) *EventSink {
	return &EventSink{pool: pool}
}

func (s *EventSink) RoomCreated(ctx context.Context, snap domain.RoomSnapshot, questions []domain.Question) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, organizer, token_symbol, reward_per_question, status, current_question)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		snap.ID, snap.Name, snap.Organizer, snap.TokenSymbol, snap.RewardPerQuestion, string(snap.Status), snap.CurrentQuestion)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	for i, q := range questions {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO questions (id, room_id, order_index, text, options, correct_index, time_limit_sec)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			q.ID, snap.ID, i, q.Text, q.Options, q.CorrectIndex, q.TimeLimitSec)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return nil
}

func (s *EventSink) ParticipantJoined(ctx context.Context, roomID string, participant domain.ParticipantEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO participants (room_id, address, name, score, tokens_earned)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, address) DO NOTHING`,
		roomID, participant.Address, participant.Name, participant.Score, participant.TokensEarned)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *EventSink) AnswerRecorded(ctx context.Context, roomID string, participant domain.ParticipantEntry, answer domain.Answer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (room_id, address, question_id, selected_option, time_to_answer_ms, correct)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room_id, address, question_id) DO NOTHING`,
		roomID, participant.Address, answer.QuestionID, answer.SelectedOption, answer.TimeToAnswerMs, answer.Correct)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE participants SET score = $3, tokens_earned = $4
		WHERE room_id = $1 AND address = $2`,
		roomID, participant.Address, participant.Score, participant.TokensEarned)
	if err != nil {
		return fmt.Errorf("update participant totals: %w", err)
	}
	return nil
}

func (s *EventSink) StatusChanged(ctx context.Context, roomID string, status domain.RoomStatus, currentQuestion int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rooms SET
			status = $2,
			current_question = $3,
			started_at = CASE WHEN $2 = 'active' AND started_at IS NULL THEN now() ELSE started_at END,
			ended_at = CASE WHEN $2 IN ('completed', 'cancelled') AND ended_at IS NULL THEN now() ELSE ended_at END,
			updated_at = now()
		WHERE id = $1`,
		roomID, string(status), currentQuestion)
	if err != nil {
		return fmt.Errorf("update room status: %w", err)
	}
	return nil
}
