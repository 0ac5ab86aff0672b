package memory

import (
	"context"
	"testing"
	"time"
)

type countingLedger struct {
	*Custody
	calls int
}

func (l *countingLedger) BalanceOf(ctx context.Context, address string) (int64, error) {
	l.calls++
	return l.Custody.BalanceOf(ctx, address)
}

func TestCachedCustodyCachesBalances(t *testing.T) {
	ctx := context.Background()
	ledger := &countingLedger{Custody: NewCustody(1000)}
	cached := NewCachedCustody(ledger, time.Minute)

	if _, err := cached.BalanceOf(ctx, "0xa"); err != nil {
		t.Fatalf("balance: %v", err)
	}
	if ledger.calls != 1 {
		t.Fatalf("expected one ledger read, got %d", ledger.calls)
	}

	if _, err := cached.BalanceOf(ctx, "0xa"); err != nil {
		t.Fatalf("balance 2: %v", err)
	}
	if ledger.calls != 1 {
		t.Fatalf("expected cache hit, ledger reads %d", ledger.calls)
	}
}

func TestCachedCustodyInvalidatesOnEscrow(t *testing.T) {
	ctx := context.Background()
	ledger := &countingLedger{Custody: NewCustody(1000)}
	cached := NewCachedCustody(ledger, time.Minute)

	before, _ := cached.BalanceOf(ctx, "0xa")
	if before != 1000 {
		t.Fatalf("expected 1000, got %d", before)
	}

	if _, err := cached.Escrow(ctx, "0xa", 400); err != nil {
		t.Fatalf("escrow: %v", err)
	}

	after, _ := cached.BalanceOf(ctx, "0xa")
	if after != 600 {
		t.Fatalf("expected fresh read of 600 after escrow, got %d", after)
	}
}
