package domain

import (
	"context"
	"time"
)

// CollectJob содержит информацию о задаче фонового сбора публикаций.
type CollectJob struct {
	ID          string    `json:"job_id"`
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// CollectAckFunc подтверждает обработку или запрашивает повтор доставки задачи.
type CollectAckFunc func(success bool) error

// CollectQueue описывает очередь задач сбора.
type CollectQueue interface {
	Enqueue(ctx context.Context, job CollectJob) error
	Receive(ctx context.Context) (CollectJob, CollectAckFunc, error)
}

// CollectJobStatusRepo отслеживает доставку задач сбора.
type CollectJobStatusRepo interface {
	// EnsureCollectJob регистрирует попытку обработки и возвращает признак
	// завершённости задачи и номер текущей попытки.
	EnsureCollectJob(ctx context.Context, jobID string) (done bool, attempt int, err error)
	// MarkCollectJobDone помечает задачу окончательно обработанной.
	MarkCollectJobDone(ctx context.Context, jobID string) error
}
