package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

const uniqueViolation = "23505"

// InsertPromo реализует domain.PromoRepo. Уникальность «один непогашенный
// код на email» обеспечивает частичный уникальный индекс: проверка и вставка
// сериализуются самим хранилищем, гонка двух выдач невозможна.
func (p *Postgres) InsertPromo(ctx context.Context, promo domain.PromoCode) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO promocodes (code, discount_percent, expires_at, reason, redeemed, issued_to_email)
VALUES ($1, $2, $3, $4, $5, $6)
`, promo.Code, promo.DiscountPercent, promo.ExpiresAt, promo.Reason, promo.Redeemed, promo.IssuedToEmail)
	metrics.ObserveNetworkRequest("postgres", "promocodes_insert", "promocodes", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "uq_promos_outstanding_email" {
			return domain.ErrPromoAlreadyIssued
		}
		return err
	}
	return nil
}

// GetPromo реализует domain.PromoRepo.
func (p *Postgres) GetPromo(ctx context.Context, code string) (domain.PromoCode, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var promo domain.PromoCode
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT code, discount_percent, expires_at, reason, redeemed, issued_to_email
FROM promocodes
WHERE code = $1
`, code).Scan(&promo.Code, &promo.DiscountPercent, &promo.ExpiresAt, &promo.Reason, &promo.Redeemed, &promo.IssuedToEmail)
	metrics.ObserveNetworkRequest("postgres", "promocodes_get", "promocodes", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PromoCode{}, domain.ErrPromoNotFound
		}
		return domain.PromoCode{}, err
	}
	// Значение без явной зоны трактуем как UTC, иначе сравнение сроков
	// в сервисе поедет на величину смещения.
	promo.ExpiresAt = promo.ExpiresAt.UTC()
	return promo, nil
}

// RedeemPromo реализует domain.PromoRepo. Условный UPDATE вместо
// read-then-write: из конкурентных гашений ровно одно затронет строку.
func (p *Postgres) RedeemPromo(ctx context.Context, code string, now time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE promocodes
SET redeemed = TRUE
WHERE code = $1
  AND NOT redeemed
  AND expires_at > $2
`, code, now)
	metrics.ObserveNetworkRequest("postgres", "promocodes_redeem", "promocodes", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
