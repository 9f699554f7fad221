package payment

import (
	"context"
	"errors"

	"bookstore-pos/internal/domain"
	"bookstore-pos/internal/logging"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger).Named("payment_repo")}
}

func (r *postgresRepo) Record(ctx context.Context, rec domain.PaymentRecord) error {
	const q = `
INSERT INTO payment_sessions (id, order_code, method, state, amount, employee_code, reason, started_at, ended_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
`
	_, err := r.pool.Exec(ctx, q,
		rec.SessionID,
		rec.OrderCode,
		string(rec.Method),
		string(rec.State),
		rec.Amount,
		rec.EmployeeCode,
		rec.Reason,
		rec.StartedAt,
		rec.EndedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		r.logger.Error("record payment session", zap.String("session_id", rec.SessionID), zap.Error(err))
		return err
	}
	r.logger.Debug("recorded payment session",
		zap.String("session_id", rec.SessionID),
		zap.String("state", string(rec.State)))
	return nil
}

func (r *postgresRepo) ListRecent(ctx context.Context, limit int) ([]domain.PaymentRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	const q = `
SELECT id::text, COALESCE(order_code, ''), method, state, amount, employee_code, COALESCE(reason, ''), started_at, ended_at
FROM payment_sessions
ORDER BY ended_at DESC
LIMIT $1
`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		r.logger.Error("list payment sessions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.PaymentRecord, 0)
	for rows.Next() {
		var (
			rec    domain.PaymentRecord
			method string
			state  string
		)
		if err := rows.Scan(&rec.SessionID, &rec.OrderCode, &method, &state, &rec.Amount, &rec.EmployeeCode, &rec.Reason, &rec.StartedAt, &rec.EndedAt); err != nil {
			return nil, err
		}
		rec.Method = domain.PaymentMethod(method)
		rec.State = domain.PaymentState(state)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
