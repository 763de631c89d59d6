package requests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

const initialETASeconds = 10

var (
	defaultSources  = []string{"rss", "web"}
	defaultLanguage = "ru"
)

// Service управляет жизненным циклом заявок: создание, статус, валидация фразы.
type Service struct {
	repo     domain.RequestRepo
	queue    domain.CollectQueue
	clock    domain.Clock
	ids      domain.IDGenerator
	currency string
}

// NewService создаёт сервис заявок.
func NewService(repo domain.RequestRepo, queue domain.CollectQueue, clock domain.Clock, ids domain.IDGenerator, currency string) *Service {
	return &Service{repo: repo, queue: queue, clock: clock, ids: ids, currency: currency}
}

// SubmitParams содержит параметры создания заявки.
type SubmitParams struct {
	Query      string
	TariffCode string
	StartDate  *time.Time
	Sources    []string
	Language   string
	OwnerID    *string
	PromoCode  *string
}

// SubmitResult — результат создания заявки.
type SubmitResult struct {
	Request domain.Request
	Price   domain.Price
	Period  domain.Period
}

// Submit валидирует тариф, создаёт заявку в статусе PENDING и ставит задачу
// сбора в очередь. Возвращает сразу, не дожидаясь сбора.
func (s *Service) Submit(ctx context.Context, p SubmitParams) (SubmitResult, error) {
	tariff, err := domain.TariffByCode(p.TariffCode)
	if err != nil {
		return SubmitResult{}, err
	}
	query := strings.TrimSpace(p.Query)
	if len([]rune(query)) < 2 {
		return SubmitResult{}, domain.ErrQueryTooShort
	}

	now := s.clock.Now().UTC()
	period := domain.PeriodForTariff(tariff, p.StartDate, now)

	sources := p.Sources
	if len(sources) == 0 {
		sources = defaultSources
	}
	language := p.Language
	if language == "" {
		language = defaultLanguage
	}

	eta := initialETASeconds
	req := domain.Request{
		ID:           s.ids.NewID("req"),
		OwnerID:      p.OwnerID,
		Query:        query,
		Language:     language,
		Sources:      sources,
		Period:       period,
		Status:       domain.StatusPending,
		Progress:     0,
		ETASeconds:   &eta,
		AppliedPromo: p.PromoCode,
	}
	created, err := s.repo.CreateRequest(ctx, req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("создание заявки: %w", err)
	}

	job := domain.CollectJob{ID: uuid.NewString(), RequestID: created.ID, RequestedAt: now}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// Без задачи сбора заявка зависнет в PENDING навсегда, поэтому
		// сразу помечаем её проваленной.
		_ = s.repo.MarkStatus(ctx, created.ID, domain.StatusFailed)
		return SubmitResult{}, fmt.Errorf("постановка задачи сбора: %w", err)
	}

	metrics.RequestsSubmitted.WithLabelValues(tariff.Code).Inc()
	price := domain.Price{Currency: s.currency, Amount: tariff.Price, Discount: 0}
	return SubmitResult{Request: created, Price: price, Period: period}, nil
}

// Status возвращает статус, прогресс и ETA заявки.
func (s *Service) Status(ctx context.Context, requestID string) (domain.Request, error) {
	return s.repo.GetRequest(ctx, requestID)
}

// ValidateQueryResult — результат проверки поисковой фразы.
type ValidateQueryResult struct {
	NormalizedQuery string
	Tokens          []string
	EstimatedCost   domain.Price
	Warnings        []string
}

// ValidateQuery проверяет и нормализует поисковую фразу.
func (s *Service) ValidateQuery(query string) (ValidateQueryResult, error) {
	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < 2 {
		return ValidateQueryResult{}, domain.ErrQueryTooShort
	}
	var tokens []string
	for _, token := range strings.Fields(strings.ReplaceAll(trimmed, `"`, "")) {
		if len([]rune(token)) > 1 {
			tokens = append(tokens, token)
		}
	}
	return ValidateQueryResult{
		NormalizedQuery: trimmed,
		Tokens:          tokens,
		EstimatedCost:   domain.Price{Currency: s.currency, Amount: 0, Discount: 0},
		Warnings:        []string{},
	}, nil
}

// ProfileSummary — счётчики заявок владельца.
type ProfileSummary struct {
	RequestsTotal int
	Active        int
}

// Summary считает заявки владельца: всего и находящиеся в работе.
func (s *Service) Summary(ctx context.Context, ownerID string) (ProfileSummary, error) {
	reqs, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return ProfileSummary{}, fmt.Errorf("выборка заявок владельца: %w", err)
	}
	active := 0
	for _, req := range reqs {
		for _, st := range domain.ActiveStatuses {
			if req.Status == st {
				active++
				break
			}
		}
	}
	return ProfileSummary{RequestsTotal: len(reqs), Active: active}, nil
}
