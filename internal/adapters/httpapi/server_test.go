package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	chi "github.com/go-chi/chi/v5"

	"repa-backend/internal/domain"
	"repa-backend/internal/usecase/auth"
	"repa-backend/internal/usecase/demo"
	"repa-backend/internal/usecase/payments"
	"repa-backend/internal/usecase/promo"
	"repa-backend/internal/usecase/publications"
	"repa-backend/internal/usecase/requests"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDs struct{ n int }

func (s *seqIDs) NewID(prefix string) string {
	s.n++
	return fmt.Sprintf("%s_%04d", prefix, s.n)
}

type stubQueue struct {
	jobs []domain.CollectJob
}

func (q *stubQueue) Enqueue(_ context.Context, job domain.CollectJob) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *stubQueue) Receive(ctx context.Context) (domain.CollectJob, domain.CollectAckFunc, error) {
	<-ctx.Done()
	return domain.CollectJob{}, nil, ctx.Err()
}

// memStore реализует все интерфейсы хранилищ поверх карт в памяти.
type memStore struct {
	users    map[string]domain.User
	requests map[string]domain.Request
	pubs     map[string][]domain.Publication
	promos   map[string]domain.PromoCode
	demos    map[string]domain.DemoSession
	payments map[string]domain.Payment
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]domain.User{},
		requests: map[string]domain.Request{},
		pubs:     map[string][]domain.Publication{},
		promos:   map[string]domain.PromoCode{},
		demos:    map[string]domain.DemoSession{},
		payments: map[string]domain.Payment{},
	}
}

func (m *memStore) UpsertUser(_ context.Context, user domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memStore) CreateRequest(_ context.Context, req domain.Request) (domain.Request, error) {
	// Как и в БД, заявка с владельцем требует существующего пользователя.
	if req.OwnerID != nil {
		if _, ok := m.users[*req.OwnerID]; !ok {
			return domain.Request{}, fmt.Errorf("владелец %s не найден", *req.OwnerID)
		}
	}
	m.requests[req.ID] = req
	return req, nil
}

func (m *memStore) GetRequest(_ context.Context, id string) (domain.Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID string) ([]domain.Request, error) {
	var out []domain.Request
	for _, req := range m.requests {
		if req.OwnerID != nil && *req.OwnerID == ownerID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (m *memStore) UpdateProgress(_ context.Context, id string, progress, etaSeconds int) error {
	req, ok := m.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	req.Progress = progress
	req.ETASeconds = &etaSeconds
	m.requests[id] = req
	return nil
}

func (m *memStore) MarkStatus(_ context.Context, id string, status domain.RequestStatus) error {
	req, ok := m.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	req.Status = status
	m.requests[id] = req
	return nil
}

func (m *memStore) SavePublications(_ context.Context, requestID string, items []domain.Publication) error {
	m.pubs[requestID] = append(m.pubs[requestID], items...)
	return nil
}

func (m *memStore) ListPublications(_ context.Context, filter domain.PublicationFilter) (int, []domain.Publication, error) {
	all := m.pubs[filter.RequestID]
	total := len(all)
	if filter.Offset >= total {
		return total, nil, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return total, all[filter.Offset:end], nil
}

func (m *memStore) PublicationFacets(_ context.Context, requestID string) (domain.PublicationFacets, error) {
	facets := domain.PublicationFacets{
		Total:       len(m.pubs[requestID]),
		BySource:    map[string]int{},
		BySentiment: map[string]int{},
	}
	for _, item := range m.pubs[requestID] {
		facets.BySource[item.Source]++
		if item.Sentiment != "" {
			facets.BySentiment[item.Sentiment]++
		}
	}
	return facets, nil
}

func (m *memStore) InsertPromo(_ context.Context, p domain.PromoCode) error {
	for _, existing := range m.promos {
		if existing.IssuedToEmail == p.IssuedToEmail && !existing.Redeemed {
			return domain.ErrPromoAlreadyIssued
		}
	}
	m.promos[p.Code] = p
	return nil
}

func (m *memStore) GetPromo(_ context.Context, code string) (domain.PromoCode, error) {
	p, ok := m.promos[code]
	if !ok {
		return domain.PromoCode{}, domain.ErrPromoNotFound
	}
	return p, nil
}

func (m *memStore) RedeemPromo(_ context.Context, code string, now time.Time) (bool, error) {
	p, ok := m.promos[code]
	if !ok || p.Redeemed || !p.ExpiresAt.After(now) {
		return false, nil
	}
	p.Redeemed = true
	m.promos[code] = p
	return true, nil
}

func (m *memStore) CreateDemo(_ context.Context, session domain.DemoSession) error {
	m.demos[session.ID] = session
	return nil
}

func (m *memStore) GetDemo(_ context.Context, id string) (domain.DemoSession, error) {
	session, ok := m.demos[id]
	if !ok {
		return domain.DemoSession{}, domain.ErrDemoNotFound
	}
	return session, nil
}

func (m *memStore) CreatePayment(_ context.Context, payment domain.Payment) (domain.Payment, error) {
	if _, exists := m.payments[payment.RequestID]; exists {
		return domain.Payment{}, domain.ErrPaymentExists
	}
	payment.ID = int64(len(m.payments) + 1)
	m.payments[payment.RequestID] = payment
	return payment, nil
}

func (m *memStore) SetPaymentStatus(_ context.Context, requestID, status string) (bool, error) {
	payment, exists := m.payments[requestID]
	if !exists {
		return false, nil
	}
	payment.Status = status
	m.payments[requestID] = payment
	return true, nil
}

type testEnv struct {
	router *chi.Mux
	store  *memStore
	queue  *stubQueue
	clock  *fakeClock
}

func newTestEnv() *testEnv {
	store := newMemStore()
	queue := &stubQueue{}
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ids := &seqIDs{}

	requestsSvc := requests.NewService(store, queue, clock, ids, "RUB")
	promosSvc := promo.NewService(store, clock, 10, 30)
	demosSvc := demo.NewService(store, clock, ids, 7*24*time.Hour, 20)
	paymentsSvc := payments.NewService(store, store)
	pubsSvc := publications.NewService(store, store, demosSvc)
	authSvc := auth.NewService(store, "test-secret", "repa-backend", "repa-api", time.Hour, clock)

	server := NewServer(requestsSvc, promosSvc, demosSvc, paymentsSvc, pubsSvc, authSvc, "RUB")
	router := chi.NewRouter()
	server.Mount(router)
	return &testEnv{router: router, store: store, queue: queue, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("сериализация тела запроса: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("разбор ответа: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestCreateRequestAccepted(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"query":       "Банк Акцепт",
		"tariff_code": "WEEK",
	}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[createRequestResponse](t, rec)
	if resp.Status != "PENDING" {
		t.Fatalf("новая заявка должна быть PENDING, получили %s", resp.Status)
	}
	if resp.Price.Amount != 199 || resp.Price.Currency != "RUB" {
		t.Fatalf("неожиданная цена: %+v", resp.Price)
	}
	if resp.Period.StartDate != "2025-05-25" || resp.Period.EndDate != "2025-05-31" {
		t.Fatalf("неожиданный период: %+v", resp.Period)
	}
	if len(env.queue.jobs) != 1 || env.queue.jobs[0].RequestID != resp.RequestID {
		t.Fatalf("задача сбора должна попасть в очередь: %+v", env.queue.jobs)
	}
}

func TestCreateRequestUnknownTariff(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"query":       "Банк Акцепт",
		"tariff_code": "YEAR",
	}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("ожидали 422 от валидации тела, получили %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != "validation_failed" {
		t.Fatalf("неожиданный код ошибки: %s", resp.Code)
	}
}

func TestRequestStatus(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"query":       "Банк Акцепт",
		"tariff_code": "WEEK",
	}, nil)
	created := decodeBody[createRequestResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/api/v1/requests/"+created.RequestID+"/status", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	status := decodeBody[requestStatusResponse](t, rec)
	if status.Status != "PENDING" || status.Progress != 0 {
		t.Fatalf("неожиданный статус: %+v", status)
	}
	if status.ETASeconds == nil || *status.ETASeconds != 10 {
		t.Fatalf("ожидали eta_seconds=10, получили %+v", status.ETASeconds)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/requests/req_missing/status", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("ожидали 404, получили %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != "request_not_found" {
		t.Fatalf("неожиданный код ошибки: %s", resp.Code)
	}
}

func TestPromoIssueConflict(t *testing.T) {
	env := newTestEnv()
	body := map[string]any{"email": "a@x.com", "reason": "welcome"}

	rec := env.do(t, http.MethodPost, "/api/v1/promocodes/request", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидали 201, получили %d: %s", rec.Code, rec.Body.String())
	}
	issued := decodeBody[promoIssueResponse](t, rec)
	if !strings.HasPrefix(issued.Code, "START_") || issued.DiscountPercent != 10 {
		t.Fatalf("неожиданный промокод: %+v", issued)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/promocodes/request", body, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("повторная выдача должна давать 409, получили %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != "already_issued" {
		t.Fatalf("неожиданный код ошибки: %s", resp.Code)
	}
}

func TestPromoValidateAndRedeem(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/promocodes/request", map[string]any{
		"email": "a@x.com", "reason": "welcome",
	}, nil)
	issued := decodeBody[promoIssueResponse](t, rec)

	rec = env.do(t, http.MethodGet, "/api/v1/promocodes/validate?code="+issued.Code, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	check := decodeBody[promoValidateResponse](t, rec)
	if !check.Valid || check.DiscountPercent == nil || *check.DiscountPercent != 10 {
		t.Fatalf("ожидали валидный код, получили %+v", check)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/promocodes/redeem?code="+issued.Code+"&request_id=req_0001", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/promocodes/redeem?code="+issued.Code+"&request_id=req_0001", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("повторное гашение должно давать 404, получили %d", rec.Code)
	}
	resp := decodeBody[errorResponse](t, rec)
	if resp.Code != "unknown_or_expired_code" {
		t.Fatalf("неожиданный код ошибки: %s", resp.Code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"query":       "Банк Акцепт",
		"tariff_code": "MONTH",
	}, nil)
	created := decodeBody[createRequestResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/payments/checkout?request_id="+created.RequestID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body.String())
	}
	checkout := decodeBody[checkoutResponse](t, rec)
	if checkout.CheckoutURL != "https://pay.example/checkout?rid="+created.RequestID {
		t.Fatalf("неожиданная ссылка: %s", checkout.CheckoutURL)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/payments/checkout?request_id="+created.RequestID, nil, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("повторный checkout должен давать 409, получили %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/payments/checkout?request_id=req_missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("checkout по неизвестной заявке должен давать 404, получили %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost,
		"/api/v1/payments/webhook?provider=stub&request_id="+created.RequestID+"&status=paid", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if env.store.payments[created.RequestID].Status != "paid" {
		t.Fatalf("вебхук должен перезаписать статус, получили %s", env.store.payments[created.RequestID].Status)
	}

	rec = env.do(t, http.MethodPost,
		"/api/v1/payments/webhook?provider=stub&request_id=req_missing&status=paid", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("вебхук без платежа должен давать 404, получили %d", rec.Code)
	}
}

func TestDemoStartAndPublications(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/demo/start", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	session := decodeBody[demoStartResponse](t, rec)
	if !strings.HasPrefix(session.DemoRequestID, "demo_") || session.Limits.MaxItems != 20 {
		t.Fatalf("неожиданная демо-сессия: %+v", session)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/publications?request_id="+session.DemoRequestID+"&limit=1000", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("активная демо-сессия должна открывать выборку, получили %d: %s", rec.Code, rec.Body.String())
	}
	page := decodeBody[publicationsResponse](t, rec)
	if page.Limit != 100 {
		t.Fatalf("ожидали урезание лимита до 100, получили %d", page.Limit)
	}
	found := false
	for _, warning := range page.Warnings {
		if warning == publications.WarnLimitClamped {
			found = true
		}
	}
	if !found {
		t.Fatalf("ожидали предупреждение об урезании лимита: %v", page.Warnings)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/publications", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("без request_id ожидали 400, получили %d", rec.Code)
	}
}

func TestTariffsCatalog(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/v1/tariffs", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	catalog := decodeBody[tariffsResponse](t, rec)
	if catalog.Currency != "RUB" || len(catalog.Items) != 3 {
		t.Fatalf("неожиданный каталог тарифов: %+v", catalog)
	}
	prices := map[string]int{}
	for _, item := range catalog.Items {
		prices[item.Code] = item.Price
	}
	if prices["WEEK"] != 199 || prices["MONTH"] != 499 || prices["QUARTER"] != 1299 {
		t.Fatalf("неожиданные цены: %v", prices)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": "user@example.com", "code": "999999",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("неверный код должен давать 401, получили %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"email": "user@example.com", "code": "000000",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body.String())
	}
	login := decodeBody[loginResponse](t, rec)
	if login.AccessToken == "" || login.TokenType != "bearer" {
		t.Fatalf("неожиданный ответ логина: %+v", login)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/profile/summary", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("профиль без токена должен давать 401, получили %d", rec.Code)
	}

	authHeader := map[string]string{"Authorization": "Bearer " + login.AccessToken}

	rec = env.do(t, http.MethodPost, "/api/v1/requests", map[string]any{
		"query":       "Банк Акцепт",
		"tariff_code": "WEEK",
	}, authHeader)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("ожидали 202, получили %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[createRequestResponse](t, rec)
	owned := env.store.requests[created.RequestID]
	if owned.OwnerID == nil || *owned.OwnerID != login.User.ID {
		t.Fatalf("авторизованная заявка должна принадлежать пользователю %s: %+v", login.User.ID, owned.OwnerID)
	}
	if _, ok := env.store.users[login.User.ID]; !ok {
		t.Fatalf("вход должен сохранить пользователя %s", login.User.ID)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/profile/summary", nil, authHeader)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d: %s", rec.Code, rec.Body.String())
	}
	profile := decodeBody[profileSummaryResponse](t, rec)
	if profile.User.Email != "user@example.com" {
		t.Fatalf("неожиданный пользователь: %+v", profile.User)
	}
	if profile.Counters.RequestsTotal != 1 || profile.Counters.Active != 1 {
		t.Fatalf("неожиданные счётчики: %+v", profile.Counters)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/profile/summary", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("мусорный токен должен давать 401, получили %d", rec.Code)
	}
}
