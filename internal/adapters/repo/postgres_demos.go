package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

// CreateDemo реализует domain.DemoRepo.
func (p *Postgres) CreateDemo(ctx context.Context, session domain.DemoSession) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO demos (id, expires_at, max_items)
VALUES ($1, $2, $3)
`, session.ID, session.ExpiresAt, session.MaxItems)
	metrics.ObserveNetworkRequest("postgres", "demos_insert", "demos", start, err)
	return err
}

// GetDemo реализует domain.DemoRepo.
func (p *Postgres) GetDemo(ctx context.Context, id string) (domain.DemoSession, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var session domain.DemoSession
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, expires_at, max_items
FROM demos
WHERE id = $1
`, id).Scan(&session.ID, &session.ExpiresAt, &session.MaxItems)
	metrics.ObserveNetworkRequest("postgres", "demos_get", "demos", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DemoSession{}, domain.ErrDemoNotFound
		}
		return domain.DemoSession{}, err
	}
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}
