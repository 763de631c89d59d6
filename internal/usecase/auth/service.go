package auth

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"repa-backend/internal/domain"
)

// ErrInvalidCode возвращается при неверном коде подтверждения.
var ErrInvalidCode = errors.New("неверный код подтверждения")

// devLoginCode — упрощённый вход: любой email с фиксированным кодом.
const devLoginCode = "000000"

// Service выпускает и проверяет JWT-токены доступа.
type Service struct {
	users    domain.UserRepo
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	clock    domain.Clock
}

// NewService создаёт сервис авторизации.
func NewService(users domain.UserRepo, secret, issuer, audience string, ttl time.Duration, clock domain.Clock) *Service {
	return &Service{users: users, secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl, clock: clock}
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Login проверяет код, сохраняет пользователя и выпускает токен.
// Заявки ссылаются на пользователя по внешнему ключу, поэтому строка
// создаётся при входе, до первой авторизованной заявки.
func (s *Service) Login(ctx context.Context, email, code string) (string, domain.User, error) {
	if code != devLoginCode {
		return "", domain.User{}, ErrInvalidCode
	}
	normalized := strings.TrimSpace(strings.ToLower(email))
	user := domain.User{ID: userIDForEmail(normalized), Email: normalized}
	if err := s.users.UpsertUser(ctx, user); err != nil {
		return "", domain.User{}, fmt.Errorf("сохранение пользователя: %w", err)
	}

	now := s.clock.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", domain.User{}, fmt.Errorf("подпись токена: %w", err)
	}
	return signed, user, nil
}

// Verify проверяет токен и возвращает пользователя.
func (s *Service) Verify(tokenString string) (domain.User, error) {
	var parsed claims
	token, err := jwt.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.clock.Now().UTC() }))
	if err != nil || !token.Valid {
		return domain.User{}, domain.ErrInvalidToken
	}
	if parsed.Issuer != s.issuer || !containsAudience(parsed.Audience, s.audience) {
		return domain.User{}, domain.ErrInvalidToken
	}
	return domain.User{ID: parsed.Subject, Email: parsed.Email}, nil
}

func containsAudience(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func userIDForEmail(email string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return fmt.Sprintf("u_%X", h.Sum32()&0xFFFF)
}
