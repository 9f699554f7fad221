package catalog

import (
	"context"
	"errors"
	"strings"

	"bookstore-pos/internal/domain"
	productrepo "bookstore-pos/internal/repository/product"
)

var ErrInvalidProduct = errors.New("invalid product")

type productStore interface {
	List(ctx context.Context, filter productrepo.ListFilter) ([]domain.Product, error)
	GetByCode(ctx context.Context, code string) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type Service struct {
	repo productStore
}

func New(repo productStore) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	return s.repo.List(ctx, productrepo.ListFilter{Query: query, Limit: limit})
}

// Get looks a book up by its code, as scanned or typed at the counter.
func (s *Service) Get(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByCode(ctx, code)
}

// Save validates and upserts a book by code.
func (s *Service) Save(ctx context.Context, p domain.Product) (*domain.Product, error) {
	p.Code = strings.TrimSpace(p.Code)
	p.Title = strings.TrimSpace(p.Title)
	p.Author = strings.TrimSpace(p.Author)
	p.PromotionCode = strings.TrimSpace(p.PromotionCode)
	switch {
	case p.Code == "":
		return nil, errors.Join(ErrInvalidProduct, errors.New("code is required"))
	case p.Title == "":
		return nil, errors.Join(ErrInvalidProduct, errors.New("title is required"))
	case p.Price < 0:
		return nil, errors.Join(ErrInvalidProduct, errors.New("price must not be negative"))
	case p.PromotionValue < 0:
		return nil, errors.Join(ErrInvalidProduct, errors.New("promotion value must not be negative"))
	}
	return s.repo.Upsert(ctx, p)
}
