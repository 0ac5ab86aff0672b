package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// RoomRepository abstracts how live room aggregates are stored (in-memory,
// Redis-backed, etc).
type RoomRepository interface {
	Put(room *Room)
	Get(roomID string) (*Room, bool)
	Delete(roomID string)
}

// EventSink is the outbound persistence/real-time collaborator. Writes are
// best-effort reflections of transitions that already happened in memory;
// the sink is never consulted for guards.
type EventSink interface {
	RoomCreated(ctx context.Context, snap domain.RoomSnapshot, questions []domain.Question) error
	ParticipantJoined(ctx context.Context, roomID string, participant domain.ParticipantEntry) error
	AnswerRecorded(ctx context.Context, roomID string, participant domain.ParticipantEntry, answer domain.Answer) error
	StatusChanged(ctx context.Context, roomID string, status domain.RoomStatus, currentQuestion int) error
}

// QuestionSpec is the creation-time shape of one question.
type QuestionSpec struct {
	Text         string
	Options      []string
	CorrectIndex int
	TimeLimitSec int
}

// CreateRoomSpec is the organizer's room definition.
type CreateRoomSpec struct {
	Name              string
	Organizer         string
	TokenSymbol       string
	RewardPerQuestion int64
	Questions         []QuestionSpec
}

// GameService is the exposed surface of the trivia core: room creation,
// joining, starting, answering, cancellation, and settlement wiring.
type GameService struct {
	rooms    RoomRepository
	settler  *Settler
	custody  CustodyLedger
	sink     EventSink
	now      func() time.Time
	schedule Scheduler
	newID    func() string
}

func NewGameService(rooms RoomRepository, custody CustodyLedger, receipts ReceiptStore, sink EventSink) *GameService {
	return &GameService{
		rooms:    rooms,
		settler:  NewSettler(custody, receipts),
		custody:  custody,
		sink:     sink,
		now:      time.Now,
		schedule: time.AfterFunc,
		newID:    uuid.NewString,
	}
}

// WithClock replaces the service clock for deterministic tests.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	s.settler.now = now
	return s
}

// WithScheduler replaces the deadline scheduler so tests can fire question
// timeouts manually.
func (s *GameService) WithScheduler(schedule Scheduler) *GameService {
	s.schedule = schedule
	return s
}

// CreateRoom validates the definition, escrows the stake, and opens the room
// for joins. Validation and escrow failures both leave nothing behind: a
// room only ever becomes visible in the waiting state with a funded pool.
func (s *GameService) CreateRoom(ctx context.Context, spec CreateRoomSpec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", err
	}

	stake := spec.RewardPerQuestion * int64(len(spec.Questions))
	balance, err := s.custody.BalanceOf(ctx, spec.Organizer)
	if err != nil {
		return "", err
	}
	if balance < stake {
		return "", domain.ErrInsufficientBalance
	}

	questions := make([]domain.Question, len(spec.Questions))
	for i, q := range spec.Questions {
		questions[i] = domain.Question{
			ID:           s.newID(),
			Text:         q.Text,
			Options:      append([]string(nil), q.Options...),
			CorrectIndex: q.CorrectIndex,
			TimeLimitSec: q.TimeLimitSec,
		}
	}

	roomID := s.newID()
	if stake > 0 {
		if err := s.settler.Stake(ctx, roomID, spec.Organizer, stake); err != nil {
			return "", err
		}
	}

	room := newRoom(roomID, spec, questions, s.now, s.schedule)
	room.onCompleted = func(snap domain.RoomSnapshot) { s.settle(snap) }
	room.onExpired = func(snap domain.RoomSnapshot, sentinels map[string]domain.Answer) {
		s.persistExpiry(snap, sentinels)
	}
	s.rooms.Put(room)

	if err := s.sink.RoomCreated(ctx, room.Snapshot(), questions); err != nil {
		log.Printf("persist room %s: %v", roomID, err)
	}
	return roomID, nil
}

// JoinRoom registers a player in a waiting room.
func (s *GameService) JoinRoom(ctx context.Context, roomID, address, name string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	snap, err := room.join(s.newID(), address, name)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	if err := s.sink.ParticipantJoined(ctx, roomID, entryFor(snap, address)); err != nil {
		log.Printf("persist join %s/%s: %v", roomID, address, err)
	}
	return snap, nil
}

// StartRoom activates the room and puts the first question in play.
func (s *GameService) StartRoom(ctx context.Context, roomID, caller string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	snap, err := room.start(caller)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	s.persistStatus(ctx, snap)
	return snap, nil
}

// CancelRoom aborts a waiting room and refunds the full stake to the
// organizer. The room is cancelled locally even if the refund leg fails;
// the failed receipt carries the reconciliation.
func (s *GameService) CancelRoom(ctx context.Context, roomID, caller string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	snap, err := room.cancel(caller)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	s.persistStatus(ctx, snap)
	if stake := room.StakeAmount(); stake > 0 {
		if _, err := s.settler.RefundStake(ctx, roomID, snap.Organizer, stake); err != nil {
			log.Printf("refund stake for %s: %v", roomID, err)
		}
	}
	return snap, nil
}

// SubmitAnswer scores one answer for the room's current question. Advancing
// and completion happen inside the room aggregate; settlement is triggered
// through the completion hook.
func (s *GameService) SubmitAnswer(ctx context.Context, roomID, address string, sub domain.AnswerSubmission) (domain.RoomSnapshot, domain.AnswerResult, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.AnswerResult{}, domain.ErrRoomNotFound
	}
	snap, result, answer, err := room.submitAnswer(address, sub)
	if err != nil {
		return domain.RoomSnapshot{}, domain.AnswerResult{}, err
	}
	if err := s.sink.AnswerRecorded(ctx, roomID, entryFor(snap, address), answer); err != nil {
		log.Printf("persist answer %s/%s: %v", roomID, address, err)
	}
	s.persistStatus(ctx, snap)
	return snap, result, nil
}

// CompleteRoom force-completes an active room on the organizer's request.
func (s *GameService) CompleteRoom(ctx context.Context, roomID, caller string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	snap, err := room.forceComplete(caller)
	if err != nil {
		return domain.RoomSnapshot{}, err
	}
	s.persistStatus(ctx, snap)
	return snap, nil
}

// GetRoom returns a consistent snapshot of the room.
func (s *GameService) GetRoom(roomID string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// Receipts lists the custody receipts recorded for a room.
func (s *GameService) Receipts(ctx context.Context, roomID string) ([]domain.PayoutReceipt, error) {
	if _, ok := s.rooms.Get(roomID); !ok {
		return nil, domain.ErrRoomNotFound
	}
	return s.settler.receipts.List(ctx, roomID)
}

// Subscribe returns a channel receiving room snapshots on every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *GameService) Subscribe(roomID string) (<-chan domain.RoomSnapshot, func(), error) {
	room, ok := s.rooms.Get(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}

// Balance exposes the custody balance for the presentation layer's wallet
// display. It is a read-only view, never an authoritative guard input.
func (s *GameService) Balance(ctx context.Context, address string) (int64, error) {
	return s.custody.BalanceOf(ctx, address)
}

// settle runs at the completed transition. The room is already terminal and
// frozen in memory, so payout failures cannot corrupt scoring state.
func (s *GameService) settle(snap domain.RoomSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.persistStatus(ctx, snap)
	receipts := s.settler.Settle(ctx, snap)
	for _, receipt := range receipts {
		log.Printf("settlement %s: %s %d -> %s (%s)", snap.ID, receipt.Address, receipt.Amount, receipt.Status, receipt.Ref)
	}
}

// persistExpiry records the sentinel answers written at a question deadline.
func (s *GameService) persistExpiry(snap domain.RoomSnapshot, sentinels map[string]domain.Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for address, answer := range sentinels {
		if err := s.sink.AnswerRecorded(ctx, snap.ID, entryFor(snap, address), answer); err != nil {
			log.Printf("persist timeout answer %s/%s: %v", snap.ID, address, err)
		}
	}
	s.persistStatus(ctx, snap)
}

func (s *GameService) persistStatus(ctx context.Context, snap domain.RoomSnapshot) {
	if err := s.sink.StatusChanged(ctx, snap.ID, snap.Status, snap.CurrentQuestion); err != nil {
		log.Printf("persist status %s=%s: %v", snap.ID, snap.Status, err)
	}
}

func entryFor(snap domain.RoomSnapshot, address string) domain.ParticipantEntry {
	for _, entry := range snap.Participants {
		if entry.Address == address {
			return entry
		}
	}
	return domain.ParticipantEntry{Address: address}
}
