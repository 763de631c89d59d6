package publications

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"repa-backend/internal/domain"
)

type stubRequestRepo struct {
	known map[string]bool
}

func (s *stubRequestRepo) CreateRequest(_ context.Context, req domain.Request) (domain.Request, error) {
	return req, nil
}

func (s *stubRequestRepo) GetRequest(_ context.Context, id string) (domain.Request, error) {
	if !s.known[id] {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return domain.Request{ID: id, Status: domain.StatusReady}, nil
}

func (s *stubRequestRepo) ListByOwner(context.Context, string) ([]domain.Request, error) {
	return nil, nil
}

func (s *stubRequestRepo) UpdateProgress(context.Context, string, int, int) error { return nil }

func (s *stubRequestRepo) MarkStatus(context.Context, string, domain.RequestStatus) error {
	return nil
}

type stubPublicationRepo struct {
	lastFilter domain.PublicationFilter
	total      int
	items      []domain.Publication
	facets     domain.PublicationFacets
	listErr    error
}

func (s *stubPublicationRepo) SavePublications(context.Context, string, []domain.Publication) error {
	return nil
}

func (s *stubPublicationRepo) ListPublications(_ context.Context, filter domain.PublicationFilter) (int, []domain.Publication, error) {
	s.lastFilter = filter
	if s.listErr != nil {
		return 0, nil, s.listErr
	}
	return s.total, s.items, nil
}

func (s *stubPublicationRepo) PublicationFacets(context.Context, string) (domain.PublicationFacets, error) {
	return s.facets, nil
}

type stubDemos struct {
	active map[string]bool
}

func (s *stubDemos) IsActive(_ context.Context, id string) (bool, error) {
	return s.active[id], nil
}

func newTestService(pubs *stubPublicationRepo, known map[string]bool, active map[string]bool) *Service {
	return NewService(&stubRequestRepo{known: known}, pubs, &stubDemos{active: active})
}

func TestListDefaultsAndSort(t *testing.T) {
	pubs := &stubPublicationRepo{total: 3, items: []domain.Publication{{ID: 1}, {ID: 2}, {ID: 3}}}
	service := newTestService(pubs, map[string]bool{"req_0001": true}, nil)

	result, err := service.List(context.Background(), ListParams{RequestID: "req_0001"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Limit != 50 || result.Offset != 0 {
		t.Fatalf("ожидали limit=50 offset=0, получили limit=%d offset=%d", result.Limit, result.Offset)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("дефолтная выборка не должна давать предупреждений: %v", result.Warnings)
	}
	if !pubs.lastFilter.OrderByPublished || !pubs.lastFilter.OrderDesc {
		t.Fatalf("по умолчанию ожидали сортировку -published_at: %+v", pubs.lastFilter)
	}
	if result.Total != 3 || len(result.Items) != 3 {
		t.Fatalf("неожиданная страница: total=%d items=%d", result.Total, len(result.Items))
	}
}

func TestListClampsLimit(t *testing.T) {
	pubs := &stubPublicationRepo{}
	service := newTestService(pubs, map[string]bool{"req_0001": true}, nil)

	result, err := service.List(context.Background(), ListParams{RequestID: "req_0001", Limit: 1000})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Limit != 100 || pubs.lastFilter.Limit != 100 {
		t.Fatalf("ожидали урезание до 100, получили %d", result.Limit)
	}
	found := false
	for _, warning := range result.Warnings {
		if warning == WarnLimitClamped {
			found = true
		}
	}
	if !found {
		t.Fatalf("урезание лимита должно быть видно в warnings: %v", result.Warnings)
	}
}

func TestListUnknownSortKey(t *testing.T) {
	pubs := &stubPublicationRepo{}
	service := newTestService(pubs, map[string]bool{"req_0001": true}, nil)

	result, err := service.List(context.Background(), ListParams{RequestID: "req_0001", Sort: "relevance"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if pubs.lastFilter.OrderByPublished {
		t.Fatalf("нераспознанный ключ не должен включать сортировку")
	}
	if len(result.Warnings) != 1 || result.Warnings[0] != "unknown_sort_key:relevance" {
		t.Fatalf("ожидали предупреждение о ключе, получили %v", result.Warnings)
	}
}

func TestListSplitsCommaFilters(t *testing.T) {
	pubs := &stubPublicationRepo{}
	service := newTestService(pubs, map[string]bool{"req_0001": true}, nil)

	_, err := service.List(context.Background(), ListParams{
		RequestID: "req_0001",
		Source:    "rss, web ,rss",
		Sentiment: "pos,neg",
	})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !reflect.DeepEqual(pubs.lastFilter.Sources, []string{"rss", "web"}) {
		t.Fatalf("ожидали дедупликацию источников, получили %v", pubs.lastFilter.Sources)
	}
	if !reflect.DeepEqual(pubs.lastFilter.Sentiments, []string{"pos", "neg"}) {
		t.Fatalf("неожиданные тональности: %v", pubs.lastFilter.Sentiments)
	}
}

func TestListOffsetBeyondTotal(t *testing.T) {
	pubs := &stubPublicationRepo{total: 7, items: nil}
	service := newTestService(pubs, map[string]bool{"req_0001": true}, nil)

	result, err := service.List(context.Background(), ListParams{RequestID: "req_0001", Offset: 500})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Total != 7 {
		t.Fatalf("total считается до пагинации, получили %d", result.Total)
	}
	if result.Items == nil || len(result.Items) != 0 {
		t.Fatalf("за пределами выборки ожидали пустой, но не nil список: %#v", result.Items)
	}
}

func TestListDemoSessionFallback(t *testing.T) {
	pubs := &stubPublicationRepo{}
	service := newTestService(pubs, map[string]bool{}, map[string]bool{"demo_0001": true})

	if _, err := service.List(context.Background(), ListParams{RequestID: "demo_0001"}); err != nil {
		t.Fatalf("активная демо-сессия должна открывать выборку: %v", err)
	}

	_, err := service.List(context.Background(), ListParams{RequestID: "demo_dead"})
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("неактивная демо-сессия должна давать ErrRequestNotFound, получили %v", err)
	}
}

func TestSummaryFacets(t *testing.T) {
	pubs := &stubPublicationRepo{facets: domain.PublicationFacets{
		Total:       16,
		BySource:    map[string]int{"rss": 9, "web": 7},
		BySentiment: map[string]int{"pos": 5, "neg": 3, "neu": 4},
	}}
	service := newTestService(pubs, map[string]bool{"req_0001": true}, nil)

	facets, err := service.Summary(context.Background(), "req_0001")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if facets.Total != 16 || facets.BySource["rss"] != 9 {
		t.Fatalf("неожиданные агрегаты: %+v", facets)
	}

	_, err = service.Summary(context.Background(), "req_missing")
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("ожидали ErrRequestNotFound, получили %v", err)
	}
}
