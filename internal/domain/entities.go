package domain

import "time"

// User описывает владельца заявок.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Period задаёт интервал дат, покрываемый заявкой.
type Period struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Price описывает стоимость заявки в валюте сервиса.
type Price struct {
	Currency string `json:"currency"`
	Amount   int    `json:"amount"`
	Discount int    `json:"discount"`
}

// Request представляет заявку на сбор публикаций.
type Request struct {
	ID           string
	OwnerID      *string
	Query        string
	Language     string
	Sources      []string
	Period       Period
	Status       RequestStatus
	Progress     int
	ETASeconds   *int
	AppliedPromo *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Publication представляет нормализованную единицу результата сбора.
// Запись неизменяема после записи фоновым сборщиком.
type Publication struct {
	ID          int64
	RequestID   string
	Title       string
	URL         string
	PublishedAt time.Time
	Source      string
	Lang        string
	Sentiment   string
	Entities    []string
}

// PromoCode описывает одноразовый промокод со сроком действия.
type PromoCode struct {
	Code            string
	DiscountPercent int
	ExpiresAt       time.Time
	Reason          string
	Redeemed        bool
	IssuedToEmail   string
}

// DemoSession описывает анонимную демо-сессию с TTL и квотой на выдачу.
type DemoSession struct {
	ID        string
	ExpiresAt time.Time
	MaxItems  int
}

// Payment описывает платёж по заявке. На заявку приходится не более одного платежа.
type Payment struct {
	ID        int64
	RequestID string
	Provider  string
	Link      string
	Status    string
	CreatedAt time.Time
}

// PublicationFacets содержит агрегаты публикаций заявки.
type PublicationFacets struct {
	Total       int
	BySource    map[string]int
	BySentiment map[string]int
}
