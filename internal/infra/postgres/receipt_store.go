package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/SweetVinegar/021up-game/internal/domain"
)

// ReceiptStore persists payout receipts in Postgres, one row per
// room/kind/address upserted on every attempt.
type ReceiptStore struct {
	pool *pgxpool.Pool
}

func NewReceiptStore(pool *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

func (s *ReceiptStore) Save(ctx context.Context, receipt domain.PayoutReceipt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payout_receipts (room_id, kind, address, amount, status, ref, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, kind, address) DO UPDATE SET
			amount = EXCLUDED.amount,
			status = EXCLUDED.status,
			ref = EXCLUDED.ref,
			updated_at = EXCLUDED.updated_at`,
		receipt.RoomID, string(receipt.Kind), receipt.Address, receipt.Amount, string(receipt.Status), receipt.Ref, receipt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *ReceiptStore) List(ctx context.Context, roomID string) ([]domain.PayoutReceipt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT room_id, kind, address, amount, status, ref, updated_at
		FROM payout_receipts WHERE room_id = $1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []domain.PayoutReceipt
	for rows.Next() {
		var receipt domain.PayoutReceipt
		var kind, status string
		if err := rows.Scan(&receipt.RoomID, &kind, &receipt.Address, &receipt.Amount, &status, &receipt.Ref, &receipt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipt.Kind = domain.ReceiptKind(kind)
		receipt.Status = domain.ReceiptStatus(status)
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}
