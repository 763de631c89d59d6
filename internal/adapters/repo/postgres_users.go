package repo

import (
	"context"
	"time"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

// UpsertUser реализует domain.UserRepo. Заявки ссылаются на users по
// внешнему ключу, поэтому строка пользователя обязана существовать до
// первой авторизованной заявки.
func (p *Postgres) UpsertUser(ctx context.Context, user domain.User) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO users (id, email)
VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING
`, user.ID, user.Email)
	metrics.ObserveNetworkRequest("postgres", "users_upsert", "users", start, err)
	return err
}
