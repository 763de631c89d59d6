package publications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"repa-backend/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 100

	// WarnLimitClamped добавляется в ответ, когда запрошенный limit урезан.
	WarnLimitClamped = "limit_clamped_to_100"
)

// DemoChecker проверяет активность демо-сессии. Идентификаторы заявок и
// демо-сессий делят одно пространство имён на границе API: неизвестный
// request_id перепроверяется как demo_id до возврата 404.
type DemoChecker interface {
	IsActive(ctx context.Context, id string) (bool, error)
}

// Service выдаёт публикации заявки с фильтрами, сортировкой и пагинацией.
type Service struct {
	requests domain.RequestRepo
	pubs     domain.PublicationRepo
	demos    DemoChecker
}

// NewService создаёт сервис публикаций.
func NewService(requests domain.RequestRepo, pubs domain.PublicationRepo, demos DemoChecker) *Service {
	return &Service{requests: requests, pubs: pubs, demos: demos}
}

// ListParams — параметры выборки. Source/Sentiment/Lang — списки через запятую.
type ListParams struct {
	RequestID string
	DateFrom  *time.Time
	DateTo    *time.Time
	Source    string
	Sentiment string
	Lang      string
	Offset    int
	Limit     int
	Sort      string
}

// ListResult — страница публикаций. Total считается до пагинации.
type ListResult struct {
	Total    int
	Items    []domain.Publication
	Offset   int
	Limit    int
	Warnings []string
}

// List возвращает публикации по фильтрам. Все фильтры конъюнктивны,
// пропущенный фильтр ничего не отсекает.
func (s *Service) List(ctx context.Context, p ListParams) (ListResult, error) {
	if err := s.ensureAccessible(ctx, p.RequestID); err != nil {
		return ListResult{}, err
	}

	warnings := []string{}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
		warnings = append(warnings, WarnLimitClamped)
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}

	filter := domain.PublicationFilter{
		RequestID:  p.RequestID,
		DateFrom:   p.DateFrom,
		DateTo:     p.DateTo,
		Sources:    splitSet(p.Source),
		Sentiments: splitSet(p.Sentiment),
		Langs:      splitSet(p.Lang),
		Offset:     offset,
		Limit:      limit,
	}

	sort := p.Sort
	if sort == "" {
		sort = "-published_at"
	}
	key := strings.TrimPrefix(sort, "-")
	if key == "published_at" {
		filter.OrderByPublished = true
		filter.OrderDesc = strings.HasPrefix(sort, "-")
	} else {
		// Нераспознанный ключ не ошибка, но и не молчание: порядок остаётся
		// неопределённым, а причина видна в warnings.
		warnings = append(warnings, "unknown_sort_key:"+key)
	}

	total, items, err := s.pubs.ListPublications(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("выборка публикаций: %w", err)
	}
	if items == nil {
		items = []domain.Publication{}
	}
	return ListResult{Total: total, Items: items, Offset: offset, Limit: limit, Warnings: warnings}, nil
}

// Summary возвращает агрегаты публикаций по источникам и тональности.
func (s *Service) Summary(ctx context.Context, requestID string) (domain.PublicationFacets, error) {
	if err := s.ensureAccessible(ctx, requestID); err != nil {
		return domain.PublicationFacets{}, err
	}
	facets, err := s.pubs.PublicationFacets(ctx, requestID)
	if err != nil {
		return domain.PublicationFacets{}, fmt.Errorf("агрегаты публикаций: %w", err)
	}
	return facets, nil
}

func (s *Service) ensureAccessible(ctx context.Context, requestID string) error {
	_, err := s.requests.GetRequest(ctx, requestID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrRequestNotFound) {
		return fmt.Errorf("получение заявки: %w", err)
	}
	active, err := s.demos.IsActive(ctx, requestID)
	if err != nil {
		return err
	}
	if !active {
		return domain.ErrRequestNotFound
	}
	return nil
}

func splitSet(raw string) []string {
	if raw == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var values []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		values = append(values, trimmed)
	}
	return values
}
