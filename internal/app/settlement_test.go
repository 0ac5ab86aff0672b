package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/SweetVinegar/021up-game/internal/app"
	"github.com/SweetVinegar/021up-game/internal/domain"
	"github.com/SweetVinegar/021up-game/internal/infra/memory"
)

// flakyCustody fails Release for one address and delegates the rest.
type flakyCustody struct {
	app.CustodyLedger
	failFor string
}

func (f *flakyCustody) Release(ctx context.Context, to string, amount int64) (string, error) {
	if to == f.failFor {
		return "", errors.New("custody unavailable")
	}
	return f.CustodyLedger.Release(ctx, to, amount)
}

type countingCustody struct {
	app.CustodyLedger
	releases int
}

func (c *countingCustody) Release(ctx context.Context, to string, amount int64) (string, error) {
	c.releases++
	return c.CustodyLedger.Release(ctx, to, amount)
}

func completedSnapshot() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		ID:     "room-1",
		Status: domain.StatusCompleted,
		Participants: []domain.ParticipantEntry{
			{Address: alice, Name: "Alice", TokensEarned: 300},
			{Address: bob, Name: "Bob", TokensEarned: 200},
			{Address: "0xcarol", Name: "Carol", TokensEarned: 0},
		},
	}
}

func TestSettleSkipsZeroEarners(t *testing.T) {
	custody := &countingCustody{CustodyLedger: memory.NewCustody(0)}
	settler := app.NewSettler(custody, memory.NewReceiptStore())

	receipts := settler.Settle(context.Background(), completedSnapshot())
	if len(receipts) != 2 {
		t.Fatalf("expected 2 payout attempts, got %d", len(receipts))
	}
	if custody.releases != 2 {
		t.Fatalf("expected 2 release calls, got %d", custody.releases)
	}
}

func TestSettlePartialFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	custody := &flakyCustody{CustodyLedger: memory.NewCustody(0), failFor: bob}
	store := memory.NewReceiptStore()
	settler := app.NewSettler(custody, store)

	receipts := settler.Settle(ctx, completedSnapshot())

	statuses := map[string]domain.ReceiptStatus{}
	for _, receipt := range receipts {
		statuses[receipt.Address] = receipt.Status
	}
	if statuses[alice] != domain.ReceiptConfirmed {
		t.Fatalf("expected alice confirmed, got %s", statuses[alice])
	}
	if statuses[bob] != domain.ReceiptFailed {
		t.Fatalf("expected bob failed, got %s", statuses[bob])
	}

	// The failed receipt is durable for reconciliation.
	saved, err := store.List(ctx, "room-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var failedSaved bool
	for _, receipt := range saved {
		if receipt.Address == bob && receipt.Status == domain.ReceiptFailed {
			failedSaved = true
		}
	}
	if !failedSaved {
		t.Fatalf("expected failed receipt persisted, got %+v", saved)
	}
}

func TestSettleNeverReattemptsConfirmedPayout(t *testing.T) {
	ctx := context.Background()
	custody := &countingCustody{CustodyLedger: memory.NewCustody(0)}
	settler := app.NewSettler(custody, memory.NewReceiptStore())

	_ = settler.Settle(ctx, completedSnapshot())
	again := settler.Settle(ctx, completedSnapshot())

	if len(again) != 0 {
		t.Fatalf("expected no payouts on re-settlement, got %d", len(again))
	}
	if custody.releases != 2 {
		t.Fatalf("expected releases to stay at 2, got %d", custody.releases)
	}
}

func TestSettleRetriesFailedPayout(t *testing.T) {
	ctx := context.Background()
	store := memory.NewReceiptStore()
	flaky := &flakyCustody{CustodyLedger: memory.NewCustody(0), failFor: bob}
	settler := app.NewSettler(flaky, store)

	_ = settler.Settle(ctx, completedSnapshot())

	// Custody recovers; only bob's leg is re-attempted.
	healthy := &countingCustody{CustodyLedger: memory.NewCustody(0)}
	retry := app.NewSettler(healthy, store)
	receipts := retry.Settle(ctx, completedSnapshot())

	if len(receipts) != 1 || receipts[0].Address != bob || receipts[0].Status != domain.ReceiptConfirmed {
		t.Fatalf("expected one confirmed retry for bob, got %+v", receipts)
	}
}

func TestRefundStakeRecordsFailure(t *testing.T) {
	ctx := context.Background()
	custody := &refusingCustody{}
	store := memory.NewReceiptStore()
	settler := app.NewSettler(custody, store)

	receipt, err := settler.RefundStake(ctx, "room-1", organizer, 500)
	if err == nil {
		t.Fatalf("expected refund error")
	}
	if receipt.Status != domain.ReceiptFailed {
		t.Fatalf("expected failed receipt, got %s", receipt.Status)
	}
}

// refusingCustody rejects every call.
type refusingCustody struct{}

func (refusingCustody) Escrow(context.Context, string, int64) (string, error) {
	return "", errors.New("custody unavailable")
}
func (refusingCustody) Release(context.Context, string, int64) (string, error) {
	return "", errors.New("custody unavailable")
}
func (refusingCustody) Refund(context.Context, string, int64) (string, error) {
	return "", errors.New("custody unavailable")
}
func (refusingCustody) BalanceOf(context.Context, string) (int64, error) {
	return 0, errors.New("custody unavailable")
}
