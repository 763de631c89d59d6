package collect

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

// jobRunner обрабатывает одну заявку. Реализуется *Service.
type jobRunner interface {
	Run(ctx context.Context, requestID string) error
	MarkFailed(ctx context.Context, requestID string) error
}

// Worker вычитывает задачи сбора из очереди и ведёт учёт попыток.
// Неудачная задача возвращается в очередь до maxAttempts попыток, после
// чего заявка помечается FAILED, а задача — обработанной: молчаливое
// зависание в PENDING недопустимо.
type Worker struct {
	log         zerolog.Logger
	queue       domain.CollectQueue
	statuses    domain.CollectJobStatusRepo
	runner      jobRunner
	maxAttempts int
}

// NewWorker создаёт воркер очереди сбора.
func NewWorker(log zerolog.Logger, queue domain.CollectQueue, statuses domain.CollectJobStatusRepo, service *Service, maxAttempts int) *Worker {
	return &Worker{log: log, queue: queue, statuses: statuses, runner: service, maxAttempts: maxAttempts}
}

// Run обрабатывает очередь до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("collector: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("request_id", job.RequestID).
			Logger()

		if job.ID == "" || job.RequestID == "" {
			jobLog.Error().Msg("collector: получена неполная задача, подтверждаем и пропускаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить неполную задачу")
			}
			continue
		}

		done, attempt, err := w.statuses.EnsureCollectJob(ctx, job.ID)
		if err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось зарегистрировать задачу")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("collector: не удалось вернуть задачу в очередь")
			}
			time.Sleep(time.Second)
			continue
		}

		jobLog = jobLog.With().Int("attempt", attempt).Logger()

		if done {
			jobLog.Info().Msg("collector: задача уже обработана, подтверждаем")
			if err := ack(true); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось подтвердить обработанную задачу")
			}
			continue
		}

		start := time.Now()
		runErr := w.runner.Run(ctx, job.RequestID)
		metrics.CollectJobSeconds.Observe(time.Since(start).Seconds())

		if runErr != nil {
			metrics.CollectJobFailures.Inc()
			if attempt < w.maxAttempts {
				metrics.CollectJobRetries.Inc()
				jobLog.Warn().Err(runErr).Msg("collector: сбор завершился ошибкой, повторим позже")
				if err := ack(false); err != nil {
					jobLog.Error().Err(err).Msg("collector: не удалось вернуть задачу после ошибки")
				}
				continue
			}
			jobLog.Error().Err(runErr).Msg("collector: достигнут предел попыток, заявка помечается FAILED")
			if err := w.runner.MarkFailed(ctx, job.RequestID); err != nil {
				jobLog.Error().Err(err).Msg("collector: не удалось пометить заявку FAILED")
			}
		}

		if err := w.statuses.MarkCollectJobDone(ctx, job.ID); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось пометить задачу обработанной")
			if ackErr := ack(false); ackErr != nil {
				jobLog.Error().Err(ackErr).Msg("collector: не удалось вернуть задачу после ошибки статуса")
			}
			time.Sleep(time.Second)
			continue
		}

		if err := ack(true); err != nil {
			jobLog.Error().Err(err).Msg("collector: не удалось подтвердить задачу")
		}
	}
}
