package clock

import (
	"time"

	"repa-backend/internal/domain"
)

// System возвращает реальное время.
type System struct{}

var _ domain.Clock = System{}

// Now отдаёт текущее время.
func (System) Now() time.Time {
	return time.Now()
}
