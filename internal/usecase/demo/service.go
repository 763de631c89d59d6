package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"repa-backend/internal/domain"
)

// Service создаёт демо-сессии и проверяет их активность.
type Service struct {
	repo     domain.DemoRepo
	clock    domain.Clock
	ids      domain.IDGenerator
	ttl      time.Duration
	maxItems int
}

// NewService создаёт сервис демо-сессий.
func NewService(repo domain.DemoRepo, clock domain.Clock, ids domain.IDGenerator, ttl time.Duration, maxItems int) *Service {
	return &Service{repo: repo, clock: clock, ids: ids, ttl: ttl, maxItems: maxItems}
}

// Create создаёт демо-сессию. Срок действия фиксируется при создании
// и никогда не продлевается.
func (s *Service) Create(ctx context.Context) (domain.DemoSession, error) {
	session := domain.DemoSession{
		ID:        s.ids.NewID("demo"),
		ExpiresAt: s.clock.Now().UTC().Add(s.ttl),
		MaxItems:  s.maxItems,
	}
	if err := s.repo.CreateDemo(ctx, session); err != nil {
		return domain.DemoSession{}, fmt.Errorf("создание демо-сессии: %w", err)
	}
	return session, nil
}

// IsActive сообщает, существует ли демо-сессия и не истёк ли её срок.
func (s *Service) IsActive(ctx context.Context, id string) (bool, error) {
	session, err := s.repo.GetDemo(ctx, id)
	if errors.Is(err, domain.ErrDemoNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("чтение демо-сессии: %w", err)
	}
	return session.ExpiresAt.UTC().After(s.clock.Now().UTC()), nil
}
