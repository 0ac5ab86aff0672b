package app

import (
	"context"
	"log"
	"time"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// CustodyLedger is the external token-custody collaborator. Every call is a
// network boundary and may fail independently; the caller treats each as
// at-least-once-attempted, never guaranteed-delivered.
type CustodyLedger interface {
	Escrow(ctx context.Context, from string, amount int64) (string, error)
	Release(ctx context.Context, to string, amount int64) (string, error)
	Refund(ctx context.Context, to string, amount int64) (string, error)
	BalanceOf(ctx context.Context, address string) (int64, error)
}

// ReceiptStore persists one durable receipt per custody attempt, keyed by
// room + kind + address. Save overwrites the previous attempt's record.
type ReceiptStore interface {
	Save(ctx context.Context, receipt domain.PayoutReceipt) error
	List(ctx context.Context, roomID string) ([]domain.PayoutReceipt, error)
}

// Settler owns the custody legs of the room lifecycle: the stake escrow at
// creation, the per-participant reward releases at completion, and the
// whole-stake refund on cancellation.
type Settler struct {
	custody  CustodyLedger
	receipts ReceiptStore
	now      func() time.Time
}

func NewSettler(custody CustodyLedger, receipts ReceiptStore) *Settler {
	return &Settler{custody: custody, receipts: receipts, now: time.Now}
}

// Stake escrows the prize pool from the organizer. A failed escrow is
// returned to the caller: the room must never become joinable without a
// funded pool.
func (s *Settler) Stake(ctx context.Context, roomID, organizer string, amount int64) error {
	receipt := domain.PayoutReceipt{
		RoomID:    roomID,
		Kind:      domain.ReceiptStake,
		Address:   organizer,
		Amount:    amount,
		Status:    domain.ReceiptPending,
		UpdatedAt: s.now(),
	}
	s.save(ctx, receipt)

	ref, err := s.custody.Escrow(ctx, organizer, amount)
	if err != nil {
		receipt.Status = domain.ReceiptFailed
		receipt.UpdatedAt = s.now()
		s.save(ctx, receipt)
		return err
	}
	receipt.Status = domain.ReceiptConfirmed
	receipt.Ref = ref
	receipt.UpdatedAt = s.now()
	s.save(ctx, receipt)
	return nil
}

// Settle releases each participant's earned tokens. The releases are
// independent: one failure is recorded and the loop moves on, so a flaky
// custody call never blocks other winners or unwinds local scores.
// Participants with an already-confirmed reward receipt are skipped, which
// makes re-running settlement safe after a partial failure.
func (s *Settler) Settle(ctx context.Context, snap domain.RoomSnapshot) []domain.PayoutReceipt {
	confirmed := s.confirmedRewards(ctx, snap.ID)

	results := make([]domain.PayoutReceipt, 0, len(snap.Participants))
	for _, participant := range snap.Participants {
		if participant.TokensEarned <= 0 {
			continue
		}
		if confirmed[participant.Address] {
			continue
		}

		receipt := domain.PayoutReceipt{
			RoomID:    snap.ID,
			Kind:      domain.ReceiptReward,
			Address:   participant.Address,
			Amount:    participant.TokensEarned,
			Status:    domain.ReceiptPending,
			UpdatedAt: s.now(),
		}
		s.save(ctx, receipt)

		ref, err := s.custody.Release(ctx, participant.Address, participant.TokensEarned)
		if err != nil {
			log.Printf("settlement: release to %s failed: %v", participant.Address, err)
			receipt.Status = domain.ReceiptFailed
		} else {
			receipt.Status = domain.ReceiptConfirmed
			receipt.Ref = ref
		}
		receipt.UpdatedAt = s.now()
		s.save(ctx, receipt)
		results = append(results, receipt)
	}
	return results
}

// RefundStake returns the entire escrowed stake to the organizer. Cancel is
// only legal before start, so there are no participant rewards to consider.
func (s *Settler) RefundStake(ctx context.Context, roomID, organizer string, amount int64) (domain.PayoutReceipt, error) {
	receipt := domain.PayoutReceipt{
		RoomID:    roomID,
		Kind:      domain.ReceiptRefund,
		Address:   organizer,
		Amount:    amount,
		Status:    domain.ReceiptPending,
		UpdatedAt: s.now(),
	}
	s.save(ctx, receipt)

	ref, err := s.custody.Refund(ctx, organizer, amount)
	if err != nil {
		receipt.Status = domain.ReceiptFailed
		receipt.UpdatedAt = s.now()
		s.save(ctx, receipt)
		return receipt, err
	}
	receipt.Status = domain.ReceiptConfirmed
	receipt.Ref = ref
	receipt.UpdatedAt = s.now()
	s.save(ctx, receipt)
	return receipt, nil
}

func (s *Settler) confirmedRewards(ctx context.Context, roomID string) map[string]bool {
	confirmed := make(map[string]bool)
	receipts, err := s.receipts.List(ctx, roomID)
	if err != nil {
		log.Printf("settlement: list receipts for %s: %v", roomID, err)
		return confirmed
	}
	for _, receipt := range receipts {
		if receipt.Kind == domain.ReceiptReward && receipt.Status == domain.ReceiptConfirmed {
			confirmed[receipt.Address] = true
		}
	}
	return confirmed
}

func (s *Settler) save(ctx context.Context, receipt domain.PayoutReceipt) {
	if err := s.receipts.Save(ctx, receipt); err != nil {
		log.Printf("settlement: save receipt %s/%s/%s: %v", receipt.RoomID, receipt.Kind, receipt.Address, err)
	}
}
