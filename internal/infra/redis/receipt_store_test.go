package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

func TestReceiptStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewReceiptStore(client, time.Minute)

	receipt := domain.PayoutReceipt{
		RoomID:    "room-1",
		Kind:      domain.ReceiptReward,
		Address:   "0xa",
		Amount:    250,
		Status:    domain.ReceiptPending,
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Save(ctx, receipt); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A second attempt for the same leg overwrites, never duplicates.
	receipt.Status = domain.ReceiptConfirmed
	receipt.Ref = "tx-123"
	if err := store.Save(ctx, receipt); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	receipts, err := store.List(ctx, "room-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(receipts) != 1 {
		t.Fatalf("expected 1 receipt, got %d", len(receipts))
	}
	got := receipts[0]
	if got.Status != domain.ReceiptConfirmed || got.Ref != "tx-123" || got.Amount != 250 {
		t.Fatalf("unexpected receipt %+v", got)
	}

	if !mr.Exists("room:room-1:receipts") {
		t.Fatalf("expected receipts hash in redis")
	}
}

func TestReceiptStoreListEmptyRoom(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewReceiptStore(client, time.Minute)

	receipts, err := store.List(context.Background(), "room-unknown")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(receipts) != 0 {
		t.Fatalf("expected no receipts, got %d", len(receipts))
	}
}
