package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// ReceiptStore keeps payout receipts in a Redis hash per room:
// HSET room:{roomID}:receipts {kind}:{address} {json}. One field per
// custody leg means a retried attempt overwrites its predecessor, which is
// exactly the reconciliation record settlement needs.
type ReceiptStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReceiptStore(client *redis.Client, ttl time.Duration) *ReceiptStore {
	return &ReceiptStore{client: client, ttl: ttl}
}

func (s *ReceiptStore) Save(ctx context.Context, receipt domain.PayoutReceipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	key := s.key(receipt.RoomID)
	field := string(receipt.Kind) + ":" + receipt.Address

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, field, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *ReceiptStore) List(ctx context.Context, roomID string) ([]domain.PayoutReceipt, error) {
	fields, err := s.client.HGetAll(ctx, s.key(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	receipts := make([]domain.PayoutReceipt, 0, len(fields))
	for _, raw := range fields {
		var receipt domain.PayoutReceipt
		if err := json.Unmarshal([]byte(raw), &receipt); err != nil {
			return nil, fmt.Errorf("unmarshal receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (s *ReceiptStore) key(roomID string) string {
	return "room:" + roomID + ":receipts"
}
