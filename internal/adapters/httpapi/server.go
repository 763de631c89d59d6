package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"repa-backend/internal/domain"
	"repa-backend/internal/usecase/auth"
	"repa-backend/internal/usecase/demo"
	"repa-backend/internal/usecase/payments"
	"repa-backend/internal/usecase/promo"
	"repa-backend/internal/usecase/publications"
	"repa-backend/internal/usecase/requests"
)

type contextKey string

const userContextKey contextKey = "user"

// Server собирает HTTP-обработчики API v1.
type Server struct {
	requests *requests.Service
	promos   *promo.Service
	demos    *demo.Service
	payments *payments.Service
	pubs     *publications.Service
	auth     *auth.Service
	validate *validator.Validate
	currency string
	log      zerolog.Logger
}

// Option настраивает Server.
type Option func(*Server)

// WithLogger задаёт логгер.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// NewServer создаёт HTTP API.
func NewServer(
	requestsSvc *requests.Service,
	promosSvc *promo.Service,
	demosSvc *demo.Service,
	paymentsSvc *payments.Service,
	pubsSvc *publications.Service,
	authSvc *auth.Service,
	currency string,
	opts ...Option,
) *Server {
	srv := &Server{
		requests: requestsSvc,
		promos:   promosSvc,
		demos:    demosSvc,
		payments: paymentsSvc,
		pubs:     pubsSvc,
		auth:     authSvc,
		validate: validator.New(),
		currency: currency,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Mount навешивает маршруты API на роутер.
func (s *Server) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/auth/login", s.handleLogin)

		r.Get("/tariffs", s.handleTariffs)
		r.Get("/recommendations", s.handleRecommendations)

		r.Post("/requests/validate-query", s.handleValidateQuery)
		r.Post("/requests", s.handleCreateRequest)
		r.Get("/requests/{requestID}/status", s.handleRequestStatus)

		r.Get("/publications", s.handleListPublications)
		r.Get("/analytics/summary", s.handleAnalyticsSummary)

		r.Post("/promocodes/request", s.handleIssuePromo)
		r.Get("/promocodes/validate", s.handleValidatePromo)
		r.Post("/promocodes/redeem", s.handleRedeemPromo)

		r.Post("/payments/checkout", s.handleCheckout)
		r.Post("/payments/webhook", s.handlePaymentWebhook)

		r.Post("/demo/start", s.handleStartDemo)

		r.Get("/profile/summary", s.handleProfileSummary)
	})
}

// authMiddleware разбирает опциональный bearer-токен. Отсутствие токена —
// анонимный доступ, невалидный токен — 401.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		const prefix = "Bearer "
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "invalid_token", "ожидался bearer-токен")
			return
		}
		user, err := s.auth.Verify(header[len(prefix):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token", "невалидный токен")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(domain.User)
	return user, ok
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	token, user, err := s.auth.Login(r.Context(), req.Email, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			writeError(w, http.StatusUnauthorized, "invalid_code", "неверный код подтверждения")
			return
		}
		s.internalError(w, err)
		return
	}
	resp := loginResponse{AccessToken: token, TokenType: "bearer"}
	resp.User.ID = user.ID
	resp.User.Email = user.Email
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTariffs(w http.ResponseWriter, r *http.Request) {
	items := make([]tariffResponse, 0, len(domain.Tariffs))
	for _, t := range domain.Tariffs {
		items = append(items, tariffResponse{Code: t.Code, Title: t.Title, Days: t.Days, Price: t.Price})
	}
	writeJSON(w, http.StatusOK, tariffsResponse{Items: items, Currency: s.currency})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"advice": "Публикуйте в тематических СМИ для лучшего охвата.",
	})
}

func (s *Server) handleValidateQuery(w http.ResponseWriter, r *http.Request) {
	var req validateQueryRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	result, err := s.requests.ValidateQuery(req.Query)
	if err != nil {
		if errors.Is(err, domain.ErrQueryTooShort) {
			writeError(w, http.StatusUnprocessableEntity, "query_too_short", "слишком короткая поисковая фраза")
			return
		}
		s.internalError(w, err)
		return
	}
	tokens := result.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	writeJSON(w, http.StatusOK, validateQueryResponse{
		OK:              true,
		NormalizedQuery: result.NormalizedQuery,
		Tokens:          tokens,
		EstimatedCost:   priceResponse(result.EstimatedCost),
		Warnings:        result.Warnings,
	})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	params := requests.SubmitParams{
		Query:      req.Query,
		TariffCode: req.TariffCode,
		Sources:    req.Sources,
		Language:   req.Language,
		PromoCode:  req.ApplyPromocode,
	}
	if req.StartDate != nil {
		start, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "ожидалась дата в формате YYYY-MM-DD")
			return
		}
		params.StartDate = &start
	}
	if user, ok := userFromContext(r.Context()); ok {
		params.OwnerID = &user.ID
	}

	result, err := s.requests.Submit(r.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownTariff):
			writeError(w, http.StatusBadRequest, "unknown_tariff", "неизвестный тариф")
		case errors.Is(err, domain.ErrQueryTooShort):
			writeError(w, http.StatusUnprocessableEntity, "query_too_short", "слишком короткая поисковая фраза")
		default:
			s.internalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, createRequestResponse{
		RequestID: result.Request.ID,
		Status:    string(result.Request.Status),
		Price:     priceResponse(result.Price),
		Period:    formatPeriod(result.Period),
	})
}

func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	req, err := s.requests.Status(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "request_not_found", "заявка не найдена")
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requestStatusResponse{
		RequestID:  req.ID,
		Status:     string(req.Status),
		Progress:   req.Progress,
		ETASeconds: req.ETASeconds,
	})
}

func (s *Server) handleListPublications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	requestID := query.Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "request_id обязателен")
		return
	}

	params := publications.ListParams{
		RequestID: requestID,
		Source:    query.Get("source"),
		Sentiment: query.Get("sentiment"),
		Lang:      query.Get("lang"),
		Sort:      query.Get("sort"),
	}
	var ok bool
	if params.DateFrom, ok = parseTimeParam(w, query.Get("date_from"), "date_from"); !ok {
		return
	}
	if params.DateTo, ok = parseTimeParam(w, query.Get("date_to"), "date_to"); !ok {
		return
	}
	if params.Offset, ok = parseIntParam(w, query.Get("offset"), "offset", 0); !ok {
		return
	}
	if params.Limit, ok = parseIntParam(w, query.Get("limit"), "limit", 0); !ok {
		return
	}

	result, err := s.pubs.List(r.Context(), params)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "request_not_found", "заявка не найдена")
			return
		}
		s.internalError(w, err)
		return
	}

	items := make([]publicationResponse, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, formatPublication(item))
	}
	writeJSON(w, http.StatusOK, publicationsResponse{
		Total:    result.Total,
		Items:    items,
		Offset:   result.Offset,
		Limit:    result.Limit,
		Warnings: result.Warnings,
	})
}

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "request_id обязателен")
		return
	}
	facets, err := s.pubs.Summary(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, "request_not_found", "заявка не найдена")
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analyticsSummaryResponse{
		Count:      facets.Total,
		Sources:    facets.BySource,
		Sentiments: facets.BySentiment,
	})
}

func (s *Server) handleIssuePromo(w http.ResponseWriter, r *http.Request) {
	var req promoIssueRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	issued, err := s.promos.Issue(r.Context(), req.Email, req.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrPromoAlreadyIssued) {
			writeError(w, http.StatusConflict, "already_issued", "промокод уже выдан")
			return
		}
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, promoIssueResponse{
		Code:            issued.Code,
		DiscountPercent: issued.DiscountPercent,
		ExpiresAt:       issued.ExpiresAt,
	})
}

func (s *Server) handleValidatePromo(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code обязателен")
		return
	}
	result, err := s.promos.Validate(r.Context(), code)
	if err != nil {
		s.internalError(w, err)
		return
	}
	resp := promoValidateResponse{Valid: result.Valid, Code: result.Code}
	if result.ExpiresAt != nil {
		resp.DiscountPercent = &result.DiscountPercent
		resp.Reason = &result.Reason
		resp.ExpiresAt = result.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRedeemPromo(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	requestID := r.URL.Query().Get("request_id")
	if code == "" || requestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "code и request_id обязательны")
		return
	}
	ok, err := s.promos.Redeem(r.Context(), code)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_or_expired_code", "код не найден, просрочен или уже погашен")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "request_id обязателен")
		return
	}
	payment, err := s.payments.Checkout(r.Context(), requestID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRequestNotFound):
			writeError(w, http.StatusNotFound, "request_not_found", "заявка не найдена")
		case errors.Is(err, domain.ErrPaymentExists):
			writeError(w, http.StatusConflict, "payment_exists", "платёж по заявке уже создан")
		default:
			s.internalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{CheckoutURL: payment.Link})
}

func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	provider := query.Get("provider")
	requestID := query.Get("request_id")
	status := query.Get("status")
	if provider == "" || requestID == "" || status == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "provider, request_id и status обязательны")
		return
	}
	ok, err := s.payments.ApplyWebhook(r.Context(), provider, requestID, status)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "request_not_found", "платёж по заявке не найден")
		return
	}
	s.log.Info().Str("provider", provider).Str("request_id", requestID).Str("status", status).Msg("платёжный вебхук применён")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStartDemo(w http.ResponseWriter, r *http.Request) {
	session, err := s.demos.Create(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	resp := demoStartResponse{DemoRequestID: session.ID, ExpiresAt: session.ExpiresAt}
	resp.Limits.MaxItems = session.MaxItems
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfileSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "требуется авторизация")
		return
	}
	summary, err := s.requests.Summary(r.Context(), user.ID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	resp := profileSummaryResponse{Balance: priceResponse{Currency: s.currency}}
	resp.User.ID = user.ID
	resp.User.Email = user.Email
	resp.Counters.RequestsTotal = summary.RequestsTotal
	resp.Counters.Active = summary.Active
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "некорректное тело запроса")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("внутренняя ошибка API")
	writeError(w, http.StatusInternalServerError, "internal_error", "внутренняя ошибка")
}

func formatPeriod(p domain.Period) periodResponse {
	return periodResponse{
		StartDate: p.StartDate.Format("2006-01-02"),
		EndDate:   p.EndDate.Format("2006-01-02"),
	}
}

func formatPublication(item domain.Publication) publicationResponse {
	resp := publicationResponse{
		ID:          item.ID,
		RequestID:   item.RequestID,
		Title:       item.Title,
		URL:         item.URL,
		PublishedAt: item.PublishedAt,
		Source:      item.Source,
		Lang:        item.Lang,
		Entities:    item.Entities,
	}
	if item.Sentiment != "" {
		sentiment := item.Sentiment
		resp.Sentiment = &sentiment
	}
	if resp.Entities == nil {
		resp.Entities = []string{}
	}
	return resp
}

func parseTimeParam(w http.ResponseWriter, raw, name string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, true
		}
	}
	writeError(w, http.StatusBadRequest, "invalid_"+name, "ожидалась дата "+name)
	return nil, false
}

func parseIntParam(w http.ResponseWriter, raw, name string, fallback int) (int, bool) {
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, "ожидалось число "+name)
		return 0, false
	}
	return value, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
