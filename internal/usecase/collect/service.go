package collect

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"repa-backend/internal/domain"
)

// progressCheckpoints — фиксированная последовательность контрольных точек прогресса.
// Каждая точка фиксируется в хранилище до перехода к следующей.
var progressCheckpoints = []int{10, 25, 40, 65, 85}

var (
	fakeSources    = []string{"rss", "web"}
	fakeLangs      = []string{"ru", "en"}
	fakeSentiments = []string{"", "neg", "neu", "pos"}
)

// Service выполняет фоновый сбор публикаций по заявке.
// Реальный парсинг заменён эмуляцией: прогресс идёт по контрольным точкам,
// в конце записывается пакет синтезированных публикаций.
type Service struct {
	requests  domain.RequestRepo
	pubs      domain.PublicationRepo
	clock     domain.Clock
	stepDelay time.Duration
	batchSize int
}

// NewService создаёт сервис сбора.
func NewService(requests domain.RequestRepo, pubs domain.PublicationRepo, clock domain.Clock, stepDelay time.Duration, batchSize int) *Service {
	return &Service{requests: requests, pubs: pubs, clock: clock, stepDelay: stepDelay, batchSize: batchSize}
}

// ETAFor считает оценку оставшегося времени по текущему прогрессу.
func ETAFor(progress int) int {
	eta := 10 - progress/10
	if eta < 0 {
		return 0
	}
	return eta
}

// Run обрабатывает одну заявку до терминального статуса. Каждое обновление
// прогресса коммитится до следующего шага, так что чтение статуса в любой
// момент видит согласованный снимок.
func (s *Service) Run(ctx context.Context, requestID string) error {
	if _, err := s.requests.GetRequest(ctx, requestID); err != nil {
		return fmt.Errorf("получение заявки: %w", err)
	}

	for _, progress := range progressCheckpoints {
		if err := s.requests.UpdateProgress(ctx, requestID, progress, ETAFor(progress)); err != nil {
			return fmt.Errorf("обновление прогресса: %w", err)
		}
		if err := s.wait(ctx); err != nil {
			return err
		}
	}

	items := s.synthesize(requestID)
	if err := s.pubs.SavePublications(ctx, requestID, items); err != nil {
		return fmt.Errorf("сохранение публикаций: %w", err)
	}
	if err := s.requests.UpdateProgress(ctx, requestID, 100, 0); err != nil {
		return fmt.Errorf("финальный прогресс: %w", err)
	}
	if err := s.requests.MarkStatus(ctx, requestID, domain.StatusReady); err != nil {
		return fmt.Errorf("перевод в READY: %w", err)
	}
	return nil
}

// MarkFailed переводит заявку в FAILED после исчерпания попыток сбора.
func (s *Service) MarkFailed(ctx context.Context, requestID string) error {
	return s.requests.MarkStatus(ctx, requestID, domain.StatusFailed)
}

func (s *Service) wait(ctx context.Context) error {
	if s.stepDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.stepDelay):
		return nil
	}
}

func (s *Service) synthesize(requestID string) []domain.Publication {
	now := s.clock.Now().UTC()
	items := make([]domain.Publication, 0, s.batchSize)
	for i := 0; i < s.batchSize; i++ {
		publishedAt := now.
			AddDate(0, 0, -rand.Intn(21)).
			Add(-time.Duration(rand.Intn(24)) * time.Hour)
		items = append(items, domain.Publication{
			RequestID:   requestID,
			Title:       fmt.Sprintf("Публикация №%d для %s", i+1, requestID),
			URL:         fmt.Sprintf("https://news.example/%s/%d", requestID, i),
			PublishedAt: publishedAt,
			Source:      fakeSources[rand.Intn(len(fakeSources))],
			Lang:        fakeLangs[rand.Intn(len(fakeLangs))],
			Sentiment:   fakeSentiments[rand.Intn(len(fakeSentiments))],
		})
	}
	return items
}
