package httpapi

import "time"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type validateQueryRequest struct {
	Query string `json:"query" validate:"required,min=2,max=256"`
}

type validateQueryResponse struct {
	OK              bool          `json:"ok"`
	NormalizedQuery string        `json:"normalized_query"`
	Tokens          []string      `json:"tokens"`
	EstimatedCost   priceResponse `json:"estimated_cost"`
	Warnings        []string      `json:"warnings"`
}

type createRequestRequest struct {
	Query          string   `json:"query" validate:"required,min=2,max=256"`
	TariffCode     string   `json:"tariff_code" validate:"required,oneof=WEEK MONTH QUARTER"`
	StartDate      *string  `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Sources        []string `json:"sources" validate:"omitempty,dive,oneof=rss web"`
	Language       string   `json:"language" validate:"omitempty,oneof=ru en"`
	ApplyPromocode *string  `json:"apply_promocode"`
}

type periodResponse struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type priceResponse struct {
	Currency string `json:"currency"`
	Amount   int    `json:"amount"`
	Discount int    `json:"discount"`
}

type createRequestResponse struct {
	RequestID string         `json:"request_id"`
	Status    string         `json:"status"`
	Price     priceResponse  `json:"price"`
	Period    periodResponse `json:"period"`
}

type requestStatusResponse struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
	ETASeconds *int   `json:"eta_seconds"`
}

type publicationResponse struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"`
	Lang        string    `json:"lang"`
	Sentiment   *string   `json:"sentiment"`
	Entities    []string  `json:"entities"`
}

type publicationsResponse struct {
	Total    int                   `json:"total"`
	Items    []publicationResponse `json:"items"`
	Offset   int                   `json:"offset"`
	Limit    int                   `json:"limit"`
	Warnings []string              `json:"warnings"`
}

type promoIssueRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Reason string `json:"reason" validate:"required,max=64"`
}

type promoIssueResponse struct {
	Code            string    `json:"code"`
	DiscountPercent int       `json:"discount_percent"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type promoValidateResponse struct {
	Valid           bool       `json:"valid"`
	Code            string     `json:"code"`
	DiscountPercent *int       `json:"discount_percent,omitempty"`
	Reason          *string    `json:"reason,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

type demoStartResponse struct {
	DemoRequestID string    `json:"demo_request_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	Limits        struct {
		MaxItems int `json:"max_items"`
	} `json:"limits"`
}

type tariffsResponse struct {
	Items    []tariffResponse `json:"items"`
	Currency string           `json:"currency"`
}

type tariffResponse struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Days  int    `json:"days"`
	Price int    `json:"price"`
}

type profileSummaryResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Counters struct {
		RequestsTotal int `json:"requests_total"`
		Active        int `json:"active"`
	} `json:"counters"`
	Balance priceResponse `json:"balance"`
}

type analyticsSummaryResponse struct {
	Count      int            `json:"count"`
	Sources    map[string]int `json:"sources"`
	Sentiments map[string]int `json:"sentiments"`
}
