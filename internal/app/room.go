package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// Scheduler plants a callback after a delay. Production rooms use
// time.AfterFunc; tests substitute a manual trigger.
type Scheduler func(d time.Duration, fn func()) *time.Timer

// Room is the in-memory aggregate for one trivia session: lifecycle state,
// the participation ledger, subscriber fan-out, and the per-question
// deadline timer. All mutation happens under r.mu, so guard checks always
// observe a consistent view of who has answered.
type Room struct {
	id                string
	name              string
	organizer         string
	tokenSymbol       string
	rewardPerQuestion int64
	questions         []domain.Question

	now      func() time.Time
	schedule Scheduler

	// onCompleted and onExpired run outside the lock, after the
	// transition is already observable in-memory.
	onCompleted func(domain.RoomSnapshot)
	onExpired   func(snap domain.RoomSnapshot, sentinels map[string]domain.Answer)

	mu           sync.RWMutex
	status       domain.RoomStatus
	current      int
	startedAt    time.Time
	endedAt      time.Time
	participants map[string]*domain.Participant
	subscribers  map[chan domain.RoomSnapshot]struct{}
	timer        *time.Timer
	timerGen     int
}

func newRoom(id string, spec CreateRoomSpec, questions []domain.Question, now func() time.Time, schedule Scheduler) *Room {
	return &Room{
		id:                id,
		name:              spec.Name,
		organizer:         spec.Organizer,
		tokenSymbol:       spec.TokenSymbol,
		rewardPerQuestion: spec.RewardPerQuestion,
		questions:         questions,
		now:               now,
		schedule:          schedule,
		status:            domain.StatusWaiting,
		participants:      make(map[string]*domain.Participant),
		subscribers:       make(map[chan domain.RoomSnapshot]struct{}),
	}
}

// NewRoom is exported for infrastructure layers and tests that need to
// seed room stores directly; the service builds rooms itself.
func NewRoom(id string, spec CreateRoomSpec, questions []domain.Question) *Room {
	return newRoom(id, spec, questions, time.Now, time.AfterFunc)
}

// ID returns the room's identity.
func (r *Room) ID() string { return r.id }

// StakeAmount is the total escrowed by the organizer at creation.
func (r *Room) StakeAmount() int64 {
	return r.rewardPerQuestion * int64(len(r.questions))
}

func (r *Room) join(id, address, name string) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != domain.StatusWaiting {
		return domain.RoomSnapshot{}, domain.ErrRoomNotWaiting
	}
	if address == r.organizer {
		return domain.RoomSnapshot{}, domain.ErrIsOrganizer
	}
	if _, ok := r.participants[address]; ok {
		return domain.RoomSnapshot{}, domain.ErrAlreadyJoined
	}

	r.participants[address] = &domain.Participant{
		ID:          id,
		Address:     address,
		Name:        name,
		LastUpdated: r.now(),
	}
	return r.broadcastLocked(), nil
}

func (r *Room) start(caller string) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.organizer {
		return domain.RoomSnapshot{}, domain.ErrNotOrganizer
	}
	if r.status != domain.StatusWaiting {
		return domain.RoomSnapshot{}, domain.ErrRoomNotWaiting
	}
	if len(r.participants) == 0 {
		return domain.RoomSnapshot{}, domain.ErrNoParticipants
	}

	r.status = domain.StatusActive
	r.startedAt = r.now()
	r.current = 0
	r.scheduleDeadlineLocked()
	return r.broadcastLocked(), nil
}

func (r *Room) cancel(caller string) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.organizer {
		return domain.RoomSnapshot{}, domain.ErrNotOrganizer
	}
	if r.status != domain.StatusWaiting {
		return domain.RoomSnapshot{}, domain.ErrRoomNotWaiting
	}

	r.status = domain.StatusCancelled
	r.endedAt = r.now()
	return r.broadcastLocked(), nil
}

// submitAnswer records one answer for the current question, applies the
// scoring engine, and advances the question pointer once every participant
// has answered. The participant's score, tokens, and answer list are
// mutated as one unit under the lock.
func (r *Room) submitAnswer(address string, sub domain.AnswerSubmission) (domain.RoomSnapshot, domain.AnswerResult, domain.Answer, error) {
	r.mu.Lock()

	if r.status != domain.StatusActive {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.AnswerResult{}, domain.Answer{}, domain.ErrRoomNotActive
	}
	participant, ok := r.participants[address]
	if !ok {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.AnswerResult{}, domain.Answer{}, domain.ErrUnknownParticipant
	}
	if sub.QuestionIndex != r.current {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.AnswerResult{}, domain.Answer{}, domain.ErrQuestionMismatch
	}
	if len(participant.Answers) > r.current {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.AnswerResult{}, domain.Answer{}, domain.ErrAlreadyAnswered
	}

	question := r.questions[r.current]
	correct := sub.SelectedOption == question.CorrectIndex
	answer := domain.Answer{
		QuestionID:     question.ID,
		SelectedOption: sub.SelectedOption,
		TimeToAnswerMs: sub.TimeToAnswerMs,
		Correct:        correct,
	}
	scoreDelta, tokenDelta := Score(correct, sub.TimeToAnswerMs, r.rewardPerQuestion)

	participant.Answers = append(participant.Answers, answer)
	participant.Score += scoreDelta
	participant.TokensEarned += tokenDelta
	participant.LastUpdated = r.now()

	result := domain.AnswerResult{
		QuestionIndex: sub.QuestionIndex,
		Correct:       correct,
		ScoreAwarded:  scoreDelta,
		TokensAwarded: tokenDelta,
		TotalScore:    participant.Score,
		TotalTokens:   participant.TokensEarned,
	}

	if r.allAnsweredLocked(r.current) {
		r.advanceLocked()
	}
	snap := r.broadcastLocked()
	completed := r.status == domain.StatusCompleted
	r.mu.Unlock()

	if completed {
		r.fireCompleted(snap)
	}
	return snap, result, answer, nil
}

// forceComplete ends an active room immediately, without waiting for the
// remaining questions. Organizer only.
func (r *Room) forceComplete(caller string) (domain.RoomSnapshot, error) {
	r.mu.Lock()
	if caller != r.organizer {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.ErrNotOrganizer
	}
	if r.status != domain.StatusActive {
		r.mu.Unlock()
		return domain.RoomSnapshot{}, domain.ErrRoomNotActive
	}
	r.completeLocked()
	snap := r.broadcastLocked()
	r.mu.Unlock()

	r.fireCompleted(snap)
	return snap, nil
}

// expireQuestion is the deadline callback. A stale generation means the
// round already advanced, so the firing is ignored. Every participant
// without an answer for the expired question gets the no-answer sentinel
// before the advance check runs, which keeps the room from stalling on a
// disconnected player.
func (r *Room) expireQuestion(gen int) {
	r.mu.Lock()
	if r.status != domain.StatusActive || gen != r.timerGen {
		r.mu.Unlock()
		return
	}

	question := r.questions[r.current]
	limitMs := int64(question.TimeLimitSec) * 1000
	sentinels := make(map[string]domain.Answer)
	for address, participant := range r.participants {
		if len(participant.Answers) > r.current {
			continue
		}
		answer := domain.Answer{
			QuestionID:     question.ID,
			SelectedOption: domain.NoAnswer,
			TimeToAnswerMs: limitMs,
			Correct:        false,
		}
		participant.Answers = append(participant.Answers, answer)
		participant.LastUpdated = r.now()
		sentinels[address] = answer
	}

	r.advanceLocked()
	snap := r.broadcastLocked()
	completed := r.status == domain.StatusCompleted
	r.mu.Unlock()

	if r.onExpired != nil && len(sentinels) > 0 {
		r.onExpired(snap, sentinels)
	}
	if completed {
		r.fireCompleted(snap)
	}
}

// advanceLocked moves to the next question or completes the room when the
// current question was the last one.
func (r *Room) advanceLocked() {
	if r.current+1 >= len(r.questions) {
		r.completeLocked()
		return
	}
	r.current++
	r.scheduleDeadlineLocked()
}

func (r *Room) completeLocked() {
	r.stopTimerLocked()
	r.status = domain.StatusCompleted
	r.endedAt = r.now()
}

func (r *Room) scheduleDeadlineLocked() {
	r.stopTimerLocked()
	question := r.questions[r.current]
	gen := r.timerGen
	r.timer = r.schedule(time.Duration(question.TimeLimitSec)*time.Second, func() {
		r.expireQuestion(gen)
	})
}

// stopTimerLocked invalidates any in-flight deadline. Bumping the
// generation covers the window where the timer already fired but its
// callback has not taken the lock yet.
func (r *Room) stopTimerLocked() {
	r.timerGen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) allAnsweredLocked(index int) bool {
	for _, participant := range r.participants {
		if len(participant.Answers) <= index {
			return false
		}
	}
	return true
}

func (r *Room) fireCompleted(snap domain.RoomSnapshot) {
	if r.onCompleted != nil {
		r.onCompleted(snap)
	}
}

// Snapshot returns a consistent read-only view of the room.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Room) subscribe() (<-chan domain.RoomSnapshot, func()) {
	ch := make(chan domain.RoomSnapshot, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	ch <- r.snapshotLocked()
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Room) broadcastLocked() domain.RoomSnapshot {
	snap := r.snapshotLocked()
	for ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow client never blocks
			// the room's lock holder.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	entries := make([]domain.ParticipantEntry, 0, len(r.participants))
	for _, participant := range r.participants {
		entries = append(entries, domain.ParticipantEntry{
			Address:      participant.Address,
			Name:         participant.Name,
			Score:        participant.Score,
			TokensEarned: participant.TokensEarned,
			Answered:     len(participant.Answers),
		})
	}

	// Leaderboard order: score desc, then whoever reached it first, then name.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := r.participants[entries[i].Address]
		pj := r.participants[entries[j].Address]
		if pi != nil && pj != nil && !pi.LastUpdated.Equal(pj.LastUpdated) {
			return pi.LastUpdated.Before(pj.LastUpdated)
		}
		return entries[i].Name < entries[j].Name
	})

	snap := domain.RoomSnapshot{
		ID:                r.id,
		Name:              r.name,
		Organizer:         r.organizer,
		TokenSymbol:       r.tokenSymbol,
		RewardPerQuestion: r.rewardPerQuestion,
		Status:            r.status,
		QuestionCount:     len(r.questions),
		CurrentQuestion:   r.current,
		Participants:      entries,
		UpdatedAt:         r.now(),
	}
	if r.status == domain.StatusActive {
		question := r.questions[r.current]
		snap.Question = &domain.QuestionView{
			ID:           question.ID,
			Text:         question.Text,
			Options:      question.Options,
			TimeLimitSec: question.TimeLimitSec,
		}
	}
	if !r.startedAt.IsZero() {
		t := r.startedAt
		snap.StartedAt = &t
	}
	if !r.endedAt.IsZero() {
		t := r.endedAt
		snap.EndedAt = &t
	}
	return snap
}

func validateSpec(spec CreateRoomSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: name is empty", domain.ErrInvalidRoom)
	}
	if spec.Organizer == "" {
		return fmt.Errorf("%w: organizer is empty", domain.ErrInvalidRoom)
	}
	if len(spec.Questions) == 0 {
		return fmt.Errorf("%w: at least one question required", domain.ErrInvalidRoom)
	}
	if spec.RewardPerQuestion < 0 {
		return fmt.Errorf("%w: negative reward", domain.ErrInvalidRoom)
	}
	for i, q := range spec.Questions {
		if q.Text == "" {
			return fmt.Errorf("%w: question %d has empty text", domain.ErrInvalidRoom, i)
		}
		if len(q.Options) != domain.OptionsPerQuestion {
			return fmt.Errorf("%w: question %d needs exactly %d options", domain.ErrInvalidRoom, i, domain.OptionsPerQuestion)
		}
		for j, opt := range q.Options {
			if opt == "" {
				return fmt.Errorf("%w: question %d option %d is empty", domain.ErrInvalidRoom, i, j)
			}
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("%w: question %d correct index out of range", domain.ErrInvalidRoom, i)
		}
		if q.TimeLimitSec <= 0 {
			return fmt.Errorf("%w: question %d time limit must be positive", domain.ErrInvalidRoom, i)
		}
	}
	return nil
}
