package payment

import (
	"context"

	"bookstore-pos/internal/domain"
)

// Repository is the append-only journal of settled payment sessions.
type Repository interface {
	Record(ctx context.Context, rec domain.PaymentRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.PaymentRecord, error)
}
