package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

// RedisCollectQueue реализует очередь задач сбора на базе Redis lists.
// Невзятые обратно задачи остаются в processing-списке до подтверждения,
// поэтому падение воркера не теряет задачу.
type RedisCollectQueue struct {
	client *redis.Client
	key    string
}

// NewRedisCollectQueue создаёт очередь по указанному ключу.
func NewRedisCollectQueue(client *redis.Client, key string) *RedisCollectQueue {
	return &RedisCollectQueue{client: client, key: key}
}

var _ domain.CollectQueue = (*RedisCollectQueue)(nil)

func (q *RedisCollectQueue) processingKey() string {
	return q.key + ":processing"
}

// Enqueue публикует задачу в очередь.
func (q *RedisCollectQueue) Enqueue(ctx context.Context, job domain.CollectJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.client.LPush(ctx, q.key, payload).Err()
	metrics.ObserveNetworkRequest("redis", "enqueue", q.key, start, err)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди и возвращает ack-функцию.
func (q *RedisCollectQueue) Receive(ctx context.Context) (domain.CollectJob, domain.CollectAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.CollectJob{}, nil, err
		}

		start := time.Now()
		raw, err := q.client.BLMove(ctx, q.key, q.processingKey(), "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			metrics.ObserveNetworkRequest("redis", "receive", q.key, start, err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.CollectJob{}, nil, ctx.Err()
				}
				continue
			}
			return domain.CollectJob{}, nil, err
		}
		metrics.ObserveNetworkRequest("redis", "receive", q.key, start, nil)

		var job domain.CollectJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			_, _ = q.client.LRem(context.Background(), q.processingKey(), 1, raw).Result()
			return domain.CollectJob{}, nil, fmt.Errorf("decode job: %w", err)
		}

		ack := func(success bool) error {
			ackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if success {
				return q.client.LRem(ackCtx, q.processingKey(), 1, raw).Err()
			}
			pipe := q.client.TxPipeline()
			pipe.LRem(ackCtx, q.processingKey(), 1, raw)
			pipe.LPush(ackCtx, q.key, raw)
			_, err := pipe.Exec(ackCtx)
			return err
		}
		return job, ack, nil
	}
}
