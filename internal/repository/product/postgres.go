package product

import (
	"context"
	"errors"
	"strings"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("product_repo")}
}

const productColumns = `id::text, code, title, COALESCE(author, ''), price, COALESCE(promotion_code, ''), promotion_value, created_at`

func scanProduct(row pgx.Row, p *domain.Product) error {
	return row.Scan(&p.ID, &p.Code, &p.Title, &p.Author, &p.Price, &p.PromotionCode, &p.PromotionValue, &p.CreatedAt)
}

func (r *postgresRepo) List(ctx context.Context, filter ListFilter) ([]domain.Product, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q := `SELECT ` + productColumns + `
FROM products
WHERE $1 = '' OR code ILIKE '%' || $1 || '%' OR title ILIKE '%' || $1 || '%'
ORDER BY title, code
LIMIT $2
`
	query := strings.TrimSpace(filter.Query)
	rows, err := r.pool.Query(ctx, q, query, limit)
	if err != nil {
		r.logger.Error("list products", zap.String("query", query), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.Error(err))
		return nil, err
	}
	r.logger.Debug("listed products", zap.String("query", query), zap.Int("count", len(result)))
	return result, nil
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE code = $1`
	var p domain.Product
	if err := scanProduct(r.pool.QueryRow(ctx, q, code), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("product not found", zap.String("code", code))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("code", code), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

// Upsert inserts the book or updates the existing row with the same code.
func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (code, title, author, price, promotion_code, promotion_value)
VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6)
ON CONFLICT (code) DO UPDATE SET
    title = EXCLUDED.title,
    author = EXCLUDED.author,
    price = EXCLUDED.price,
    promotion_code = EXCLUDED.promotion_code,
    promotion_value = EXCLUDED.promotion_value
RETURNING id::text, created_at
`
	res := product
	err := r.pool.QueryRow(ctx, q,
		product.Code,
		product.Title,
		product.Author,
		product.Price,
		product.PromotionCode,
		product.PromotionValue,
	).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Error("upsert product", zap.String("code", product.Code), zap.Error(err))
		return nil, err
	}
	r.logger.Debug("upserted product", zap.String("code", res.Code), zap.String("id", res.ID))
	return &res, nil
}
