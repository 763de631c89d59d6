package domain

import (
	"context"
	"time"
)

// Clock отдаёт текущее время. В тестах подменяется на фиксированное.
type Clock interface {
	Now() time.Time
}

// IDGenerator выдаёт непредсказуемые идентификаторы с префиксом.
type IDGenerator interface {
	NewID(prefix string) string
}

// UserRepo управляет пользователями.
type UserRepo interface {
	// UpsertUser создаёт пользователя, если его ещё нет. Повторный вход
	// с тем же email не является ошибкой.
	UpsertUser(ctx context.Context, user User) error
}

// RequestRepo управляет заявками.
type RequestRepo interface {
	CreateRequest(ctx context.Context, req Request) (Request, error)
	GetRequest(ctx context.Context, id string) (Request, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Request, error)
	// UpdateProgress обновляет прогресс и ETA одной атомарной записью.
	UpdateProgress(ctx context.Context, id string, progress, etaSeconds int) error
	// MarkStatus переводит заявку в новый статус. Переход из терминального
	// статуса игнорируется на уровне хранилища.
	MarkStatus(ctx context.Context, id string, status RequestStatus) error
}

// PublicationFilter описывает условия выборки публикаций.
// Пустой фильтр пропускает все записи заявки.
type PublicationFilter struct {
	RequestID  string
	DateFrom   *time.Time
	DateTo     *time.Time
	Sources    []string
	Sentiments []string
	Langs      []string
	Offset     int
	Limit      int
	// OrderByPublished включает сортировку по published_at.
	OrderByPublished bool
	OrderDesc        bool
}

// PublicationRepo управляет публикациями заявки.
type PublicationRepo interface {
	// SavePublications единожды записывает пакет публикаций по завершении сбора.
	SavePublications(ctx context.Context, requestID string, items []Publication) error
	ListPublications(ctx context.Context, filter PublicationFilter) (total int, items []Publication, err error)
	PublicationFacets(ctx context.Context, requestID string) (PublicationFacets, error)
}

// PromoRepo управляет промокодами.
type PromoRepo interface {
	// InsertPromo создаёт код. Нарушение уникальности «один непогашенный код
	// на email» возвращает ErrPromoAlreadyIssued.
	InsertPromo(ctx context.Context, promo PromoCode) error
	GetPromo(ctx context.Context, code string) (PromoCode, error)
	// RedeemPromo условно гасит код: true возвращается ровно одному вызову,
	// и только для существующего, непогашенного и непросроченного кода.
	RedeemPromo(ctx context.Context, code string, now time.Time) (bool, error)
}

// DemoRepo управляет демо-сессиями.
type DemoRepo interface {
	CreateDemo(ctx context.Context, session DemoSession) error
	GetDemo(ctx context.Context, id string) (DemoSession, error)
}

// PaymentRepo управляет платежами.
type PaymentRepo interface {
	// CreatePayment создаёт платёж. Второй платёж по заявке возвращает ErrPaymentExists.
	CreatePayment(ctx context.Context, payment Payment) (Payment, error)
	// SetPaymentStatus безусловно перезаписывает статус. false — платежа нет.
	SetPaymentStatus(ctx context.Context, requestID, status string) (bool, error)
}
