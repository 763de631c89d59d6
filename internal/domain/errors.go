package domain

import "errors"

var (
	// ErrRequestNotFound возвращается, когда заявка не найдена.
	ErrRequestNotFound = errors.New("заявка не найдена")

	// ErrUnknownTariff возвращается при неизвестном коде тарифа.
	ErrUnknownTariff = errors.New("неизвестный тариф")

	// ErrQueryTooShort возвращается при слишком короткой поисковой фразе.
	ErrQueryTooShort = errors.New("слишком короткая поисковая фраза")

	// ErrPromoAlreadyIssued возвращается, когда по email уже есть непогашенный промокод.
	ErrPromoAlreadyIssued = errors.New("промокод уже выдан")

	// ErrPromoNotFound возвращается, когда промокод не найден.
	ErrPromoNotFound = errors.New("промокод не найден")

	// ErrPaymentExists возвращается при повторном создании платежа по заявке.
	ErrPaymentExists = errors.New("платёж по заявке уже существует")

	// ErrPaymentNotFound возвращается, когда платёж по заявке не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrDemoNotFound возвращается, когда демо-сессия не найдена.
	ErrDemoNotFound = errors.New("демо-сессия не найдена")

	// ErrInvalidToken возвращается при невалидном токене доступа.
	ErrInvalidToken = errors.New("невалидный токен")
)
