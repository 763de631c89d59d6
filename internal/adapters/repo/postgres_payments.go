package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

// CreatePayment реализует domain.PaymentRepo. Уникальный индекс по request_id
// закрывает гонку двух одновременных checkout: второй получает ErrPaymentExists.
func (p *Postgres) CreatePayment(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO payments (request_id, provider, link, status)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at
`, payment.RequestID, payment.Provider, payment.Link, payment.Status).Scan(&payment.ID, &payment.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "payments_insert", "payments", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.Payment{}, domain.ErrPaymentExists
		}
		return domain.Payment{}, err
	}
	payment.CreatedAt = payment.CreatedAt.UTC()
	return payment, nil
}

// SetPaymentStatus реализует domain.PaymentRepo.
func (p *Postgres) SetPaymentStatus(ctx context.Context, requestID, status string) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE payments
SET status = $2
WHERE request_id = $1
`, requestID, status)
	metrics.ObserveNetworkRequest("postgres", "payments_status", "payments", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
