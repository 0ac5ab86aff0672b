package memory

import (
	"context"
	"sync"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// ReceiptStore keeps payout receipts in memory, one slot per
// room/kind/address so a retried attempt overwrites its predecessor.
type ReceiptStore struct {
	mu       sync.RWMutex
	receipts map[string]map[string]domain.PayoutReceipt
}

func NewReceiptStore() *ReceiptStore {
	return &ReceiptStore{receipts: make(map[string]map[string]domain.PayoutReceipt)}
}

func (s *ReceiptStore) Save(_ context.Context, receipt domain.PayoutReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.receipts[receipt.RoomID]
	if !ok {
		room = make(map[string]domain.PayoutReceipt)
		s.receipts[receipt.RoomID] = room
	}
	room[receiptKey(receipt)] = receipt
	return nil
}

func (s *ReceiptStore) List(_ context.Context, roomID string) ([]domain.PayoutReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room := s.receipts[roomID]
	out := make([]domain.PayoutReceipt, 0, len(room))
	for _, receipt := range room {
		out = append(out, receipt)
	}
	return out, nil
}

func receiptKey(receipt domain.PayoutReceipt) string {
	return string(receipt.Kind) + ":" + receipt.Address
}
