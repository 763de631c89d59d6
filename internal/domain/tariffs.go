package domain

import "time"

// Tariff описывает тарифный план: длительность периода и цену.
type Tariff struct {
	Code  string `json:"code"`
	Title string `json:"title"`
	Days  int    `json:"days"`
	Price int    `json:"price"`
}

// Tariffs — статический каталог тарифов.
var Tariffs = []Tariff{
	{Code: "WEEK", Title: "Неделя", Days: 7, Price: 199},
	{Code: "MONTH", Title: "Месяц", Days: 30, Price: 499},
	{Code: "QUARTER", Title: "Квартал", Days: 90, Price: 1299},
}

// TariffByCode возвращает тариф по коду.
func TariffByCode(code string) (Tariff, error) {
	for _, t := range Tariffs {
		if t.Code == code {
			return t, nil
		}
	}
	return Tariff{}, ErrUnknownTariff
}

// PeriodForTariff считает покрываемый период. Без явного старта период
// заканчивается «вчера»: start = today − days, end = start + days − 1.
func PeriodForTariff(tariff Tariff, start *time.Time, now time.Time) Period {
	var from time.Time
	if start != nil {
		from = truncateToDate(*start)
	} else {
		from = truncateToDate(now).AddDate(0, 0, -tariff.Days)
	}
	to := from.AddDate(0, 0, tariff.Days-1)
	return Period{StartDate: from, EndDate: to}
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
