package repo

import (
	"context"
	"time"

	"repa-backend/internal/infra/metrics"
)

// EnsureCollectJob реализует domain.CollectJobStatusRepo: регистрирует
// попытку обработки задачи и возвращает её текущее состояние. Повторная
// доставка уже завершённой задачи видна по done=true.
func (p *Postgres) EnsureCollectJob(ctx context.Context, jobID string) (bool, int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var (
		done    bool
		attempt int
	)
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO collect_jobs (job_id, attempts, done)
VALUES ($1, 1, FALSE)
ON CONFLICT (job_id) DO UPDATE SET attempts = collect_jobs.attempts + 1, updated_at = now()
RETURNING done, attempts
`, jobID).Scan(&done, &attempt)
	metrics.ObserveNetworkRequest("postgres", "collect_jobs_ensure", "collect_jobs", start, err)
	if err != nil {
		return false, 0, err
	}
	return done, attempt, nil
}

// MarkCollectJobDone реализует domain.CollectJobStatusRepo.
func (p *Postgres) MarkCollectJobDone(ctx context.Context, jobID string) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE collect_jobs
SET done = TRUE, updated_at = now()
WHERE job_id = $1
`, jobID)
	metrics.ObserveNetworkRequest("postgres", "collect_jobs_done", "collect_jobs", start, err)
	return err
}
