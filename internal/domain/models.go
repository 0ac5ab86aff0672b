package domain

import "time"

// RoomStatus is the lifecycle state of a game room.
type RoomStatus string

const (
	// StatusSetup marks a room that has not been escrowed/persisted yet.
	StatusSetup RoomStatus = "setup"
	// StatusWaiting marks a room open for joins.
	StatusWaiting RoomStatus = "waiting"
	// StatusActive marks a room with a question in play.
	StatusActive RoomStatus = "active"
	// StatusCompleted and StatusCancelled are terminal.
	StatusCompleted RoomStatus = "completed"
	StatusCancelled RoomStatus = "cancelled"
)

// NoAnswer is the sentinel option index recorded when a participant misses
// the question deadline. It never equals a valid option index, so it always
// scores as incorrect.
const NoAnswer = -1

// OptionsPerQuestion is current product policy, enforced at creation.
const OptionsPerQuestion = 4

// Question is one trivia item. Immutable after room creation.
type Question struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// Answer records one participant's response to one question.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedOption int    `json:"selectedOption"` // NoAnswer on timeout
	TimeToAnswerMs int64  `json:"timeToAnswerMs"`
	Correct        bool   `json:"correct"`
}

// Participant is one joined player within a room.
type Participant struct {
	ID           string
	Address      string
	Name         string
	Score        int
	TokensEarned int64
	Answers      []Answer
	LastUpdated  time.Time
}

// AnswerSubmission models the answer signal from clients. QuestionIndex must
// match the room's current question or the submission is rejected.
type AnswerSubmission struct {
	QuestionIndex  int
	SelectedOption int
	TimeToAnswerMs int64
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	QuestionIndex int   `json:"questionIndex"`
	Correct       bool  `json:"correct"`
	ScoreAwarded  int   `json:"scoreAwarded"`
	TokensAwarded int64 `json:"tokensAwarded"`
	TotalScore    int   `json:"totalScore"`
	TotalTokens   int64 `json:"totalTokens"`
}

// ParticipantEntry is a snapshot-friendly view of a participant, ordered
// leaderboard-style in RoomSnapshot.
type ParticipantEntry struct {
	Address      string `json:"address"`
	Name         string `json:"name"`
	Score        int    `json:"score"`
	TokensEarned int64  `json:"tokensEarned"`
	Answered     int    `json:"answered"`
}

// QuestionView is the question as shipped to players: no correct index.
type QuestionView struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	TimeLimitSec int      `json:"timeLimitSec"`
}

// RoomSnapshot is a consistent, read-only view of a room, suitable for
// fan-out to connected clients.
type RoomSnapshot struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Organizer         string             `json:"organizer"`
	TokenSymbol       string             `json:"tokenSymbol"`
	RewardPerQuestion int64              `json:"rewardPerQuestion"`
	Status            RoomStatus         `json:"status"`
	QuestionCount     int                `json:"questionCount"`
	CurrentQuestion   int                `json:"currentQuestion"`
	Question          *QuestionView      `json:"question,omitempty"` // only while active
	Participants      []ParticipantEntry `json:"participants"`
	StartedAt         *time.Time         `json:"startedAt,omitempty"`
	EndedAt           *time.Time         `json:"endedAt,omitempty"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

// ReceiptStatus tracks the outcome of one custody request.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
)

// ReceiptKind distinguishes the custody legs recorded for a room.
type ReceiptKind string

const (
	ReceiptStake  ReceiptKind = "stake"
	ReceiptReward ReceiptKind = "reward"
	ReceiptRefund ReceiptKind = "refund"
)

// PayoutReceipt is the durable record of one custody request attempt. A
// confirmed receipt is never re-attempted; failed ones support later
// reconciliation.
type PayoutReceipt struct {
	RoomID    string        `json:"roomId"`
	Kind      ReceiptKind   `json:"kind"`
	Address   string        `json:"address"`
	Amount    int64         `json:"amount"`
	Status    ReceiptStatus `json:"status"`
	Ref       string        `json:"ref,omitempty"` // custody transaction reference
	UpdatedAt time.Time     `json:"updatedAt"`
}
