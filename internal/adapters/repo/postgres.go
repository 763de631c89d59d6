package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.UserRepo             = (*Postgres)(nil)
	_ domain.RequestRepo          = (*Postgres)(nil)
	_ domain.PublicationRepo      = (*Postgres)(nil)
	_ domain.PromoRepo            = (*Postgres)(nil)
	_ domain.DemoRepo             = (*Postgres)(nil)
	_ domain.PaymentRepo          = (*Postgres)(nil)
	_ domain.CollectJobStatusRepo = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateRequest реализует domain.RequestRepo.
func (p *Postgres) CreateRequest(ctx context.Context, req domain.Request) (domain.Request, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var eta sql.NullInt32
	if req.ETASeconds != nil {
		eta = sql.NullInt32{Int32: int32(*req.ETASeconds), Valid: true}
	}

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
INSERT INTO requests (id, owner_id, query, language, sources, period_start, period_end, status, progress, eta_seconds, applied_promo)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, owner_id, query, language, sources, period_start, period_end, status, progress, eta_seconds, applied_promo, created_at, updated_at
`, req.ID, req.OwnerID, req.Query, req.Language, strings.Join(req.Sources, ","),
		req.Period.StartDate, req.Period.EndDate, string(req.Status), req.Progress, eta, req.AppliedPromo)
	created, err := scanRequest(row)
	metrics.ObserveNetworkRequest("postgres", "requests_insert", "requests", start, err)
	if err != nil {
		return domain.Request{}, err
	}
	return created, nil
}

// GetRequest реализует domain.RequestRepo.
func (p *Postgres) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `
SELECT id, owner_id, query, language, sources, period_start, period_end, status, progress, eta_seconds, applied_promo, created_at, updated_at
FROM requests
WHERE id = $1
`, id)
	req, err := scanRequest(row)
	metrics.ObserveNetworkRequest("postgres", "requests_get", "requests", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.ErrRequestNotFound
		}
		return domain.Request{}, err
	}
	return req, nil
}

// ListByOwner реализует domain.RequestRepo.
func (p *Postgres) ListByOwner(ctx context.Context, ownerID string) ([]domain.Request, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, owner_id, query, language, sources, period_start, period_end, status, progress, eta_seconds, applied_promo, created_at, updated_at
FROM requests
WHERE owner_id = $1
ORDER BY created_at DESC
`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "requests_by_owner", "requests", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

// UpdateProgress реализует domain.RequestRepo. Прогресс строго не убывает,
// запись в терминальном статусе не изменяется.
func (p *Postgres) UpdateProgress(ctx context.Context, id string, progress, etaSeconds int) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE requests
SET progress = $2, eta_seconds = $3, updated_at = now()
WHERE id = $1
  AND progress <= $2
  AND status NOT IN ('READY', 'NO_DATA', 'FAILED')
`, id, progress, etaSeconds)
	metrics.ObserveNetworkRequest("postgres", "requests_progress", "requests", start, err)
	return err
}

// MarkStatus реализует domain.RequestRepo. Терминальный статус не
// перезаписывается, откат внутри конвейера отклоняется по рангу статуса.
// Условие повторяет domain.CanTransition и применяется атомарно в UPDATE.
func (p *Postgres) MarkStatus(ctx context.Context, id string, status domain.RequestStatus) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE requests
SET status = $2, updated_at = now()
WHERE id = $1
  AND status NOT IN ('READY', 'NO_DATA', 'FAILED')
  AND ($2 IN ('NO_DATA', 'FAILED') OR `+statusRankCase("status")+` < `+statusRankCase("$2")+`)
`, id, string(status))
	metrics.ObserveNetworkRequest("postgres", "requests_status", "requests", start, err)
	return err
}

// statusRankCase строит SQL-выражение ранга статуса из domain.StatusOrder,
// чтобы порядок в запросе не расходился с domain.CanTransition.
func statusRankCase(expr string) string {
	var b strings.Builder
	b.WriteString("CASE " + expr)
	for _, st := range domain.StatusOrder {
		rank, _ := domain.StatusRank(st)
		b.WriteString(" WHEN '" + string(st) + "' THEN " + strconv.Itoa(rank))
	}
	b.WriteString(" ELSE -1 END")
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (domain.Request, error) {
	var (
		req       domain.Request
		ownerID   sql.NullString
		sources   string
		status    string
		eta       sql.NullInt32
		promoCode sql.NullString
	)
	err := row.Scan(&req.ID, &ownerID, &req.Query, &req.Language, &sources,
		&req.Period.StartDate, &req.Period.EndDate, &status, &req.Progress, &eta, &promoCode,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return domain.Request{}, err
	}
	if ownerID.Valid {
		req.OwnerID = &ownerID.String
	}
	if sources != "" {
		req.Sources = strings.Split(sources, ",")
	}
	req.Status = domain.RequestStatus(status)
	if eta.Valid {
		value := int(eta.Int32)
		req.ETASeconds = &value
	}
	if promoCode.Valid {
		req.AppliedPromo = &promoCode.String
	}
	req.Period.StartDate = req.Period.StartDate.UTC()
	req.Period.EndDate = req.Period.EndDate.UTC()
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()
	return req, nil
}
