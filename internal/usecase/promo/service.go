package promo

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"repa-backend/internal/domain"
	"repa-backend/internal/infra/metrics"
)

const codePrefix = "START_"

// Service выдаёт, проверяет и гасит одноразовые промокоды.
type Service struct {
	repo           domain.PromoRepo
	clock          domain.Clock
	defaultPercent int
	ttlDays        int
}

// NewService создаёт сервис промокодов.
func NewService(repo domain.PromoRepo, clock domain.Clock, defaultPercent, ttlDays int) *Service {
	return &Service{repo: repo, clock: clock, defaultPercent: defaultPercent, ttlDays: ttlDays}
}

// Issue выдаёт промокод. На один email допускается не более одного
// непогашенного кода; конфликт возвращается как ErrPromoAlreadyIssued.
func (s *Service) Issue(ctx context.Context, email, reason string) (domain.PromoCode, error) {
	code, err := generateCode()
	if err != nil {
		return domain.PromoCode{}, fmt.Errorf("генерация кода: %w", err)
	}
	promo := domain.PromoCode{
		Code:            code,
		DiscountPercent: s.defaultPercent,
		ExpiresAt:       s.clock.Now().UTC().AddDate(0, 0, s.ttlDays),
		Reason:          reason,
		Redeemed:        false,
		IssuedToEmail:   strings.TrimSpace(strings.ToLower(email)),
	}
	if err := s.repo.InsertPromo(ctx, promo); err != nil {
		if errors.Is(err, domain.ErrPromoAlreadyIssued) {
			return domain.PromoCode{}, err
		}
		return domain.PromoCode{}, fmt.Errorf("выдача промокода: %w", err)
	}
	metrics.PromoIssued.Inc()
	return promo, nil
}

// ValidateResult — результат проверки промокода. Для неизвестного кода
// заполнено только поле Code.
type ValidateResult struct {
	Valid           bool
	Code            string
	DiscountPercent int
	Reason          string
	ExpiresAt       *time.Time
}

// Validate проверяет код: существует, не погашен, не просрочен.
// Неизвестный код — не ошибка, а valid=false.
func (s *Service) Validate(ctx context.Context, code string) (ValidateResult, error) {
	promo, err := s.repo.GetPromo(ctx, code)
	if errors.Is(err, domain.ErrPromoNotFound) {
		return ValidateResult{Valid: false, Code: code}, nil
	}
	if err != nil {
		return ValidateResult{}, fmt.Errorf("чтение промокода: %w", err)
	}

	// Сравнение только в UTC: значение из хранилища без явной зоны обязано
	// трактоваться как UTC, иначе просроченный код выглядит живым.
	expiresAt := promo.ExpiresAt.UTC()
	valid := !promo.Redeemed && expiresAt.After(s.clock.Now().UTC())
	return ValidateResult{
		Valid:           valid,
		Code:            promo.Code,
		DiscountPercent: promo.DiscountPercent,
		Reason:          promo.Reason,
		ExpiresAt:       &expiresAt,
	}, nil
}

// Redeem гасит код. Неизвестный, погашенный или просроченный код — это
// false без ошибки. Из конкурентных попыток выигрывает ровно одна.
func (s *Service) Redeem(ctx context.Context, code string) (bool, error) {
	ok, err := s.repo.RedeemPromo(ctx, code, s.clock.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("погашение промокода: %w", err)
	}
	if ok {
		metrics.PromoRedeemed.Inc()
	}
	return ok, nil
}

func generateCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := crand.Read(buf); err != nil {
		return "", err
	}
	return codePrefix + strings.ToUpper(hex.EncodeToString(buf)), nil
}
