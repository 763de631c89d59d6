package payments

import (
	"context"
	"errors"
	"fmt"

	"repa-backend/internal/domain"
)

const providerStub = "stub"

// Service создаёт платежи по заявкам и применяет вебхуки провайдера.
type Service struct {
	payments domain.PaymentRepo
	requests domain.RequestRepo
}

// NewService создаёт сервис платежей.
func NewService(payments domain.PaymentRepo, requests domain.RequestRepo) *Service {
	return &Service{payments: payments, requests: requests}
}

// Checkout создаёт платёж и ссылку на оплату. Повторный checkout по той же
// заявке — ошибка ErrPaymentExists, а не тихая идемпотентность: дубль
// должен быть виден сразу.
func (s *Service) Checkout(ctx context.Context, requestID string) (domain.Payment, error) {
	if _, err := s.requests.GetRequest(ctx, requestID); err != nil {
		return domain.Payment{}, err
	}
	payment := domain.Payment{
		RequestID: requestID,
		Provider:  providerStub,
		Link:      fmt.Sprintf("https://pay.example/checkout?rid=%s", requestID),
		Status:    "created",
	}
	created, err := s.payments.CreatePayment(ctx, payment)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentExists) {
			return domain.Payment{}, err
		}
		return domain.Payment{}, fmt.Errorf("создание платежа: %w", err)
	}
	return created, nil
}

// ApplyWebhook безусловно перезаписывает статус платежа значением от
// провайдера. false означает, что платежа по заявке нет.
func (s *Service) ApplyWebhook(ctx context.Context, provider, requestID, status string) (bool, error) {
	_ = provider // подпись вебхука не проверяется, провайдер только логируется
	ok, err := s.payments.SetPaymentStatus(ctx, requestID, status)
	if err != nil {
		return false, fmt.Errorf("обновление статуса платежа: %w", err)
	}
	return ok, nil
}
