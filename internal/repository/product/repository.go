package product

import (
	"context"

	"bookstore-pos/internal/domain"
)

// ListFilter narrows a catalog listing. Query matches code or title.
type ListFilter struct {
	Query string
	Limit int
}

type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]domain.Product, error)
	GetByCode(ctx context.Context, code string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
