package memory

import (
	"context"
	"sync"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// EventSink records outbound persistence events in memory. It serves the
// offline/demo mode and doubles as a test double for asserting what the
// service tried to persist.
type EventSink struct {
	mu       sync.Mutex
	Rooms    []domain.RoomSnapshot
	Joins    []JoinEvent
	Answers  []AnswerEvent
	Statuses []StatusEvent
}

type JoinEvent struct {
	RoomID      string
	Participant domain.ParticipantEntry
}

type AnswerEvent struct {
	RoomID      string
	Participant domain.ParticipantEntry
	Answer      domain.Answer
}

type StatusEvent struct {
	RoomID          string
	Status          domain.RoomStatus
	CurrentQuestion int
}

func NewEventSink() *EventSink {
	return &EventSink{}
}

func (s *EventSink) RoomCreated(_ context.Context, snap domain.RoomSnapshot, _ []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Rooms = append(s.Rooms, snap)
	return nil
}

func (s *EventSink) ParticipantJoined(_ context.Context, roomID string, participant domain.ParticipantEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Joins = append(s.Joins, JoinEvent{RoomID: roomID, Participant: participant})
	return nil
}

func (s *EventSink) AnswerRecorded(_ context.Context, roomID string, participant domain.ParticipantEntry, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Answers = append(s.Answers, AnswerEvent{RoomID: roomID, Participant: participant, Answer: answer})
	return nil
}

func (s *EventSink) StatusChanged(_ context.Context, roomID string, status domain.RoomStatus, currentQuestion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statuses = append(s.Statuses, StatusEvent{RoomID: roomID, Status: status, CurrentQuestion: currentQuestion})
	return nil
}

// AnswerEvents returns a copy of the recorded answer events.
func (s *EventSink) AnswerEvents() []AnswerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AnswerEvent(nil), s.Answers...)
}
