package idgen

import (
	crand "crypto/rand"
	"encoding/hex"

	"repa-backend/internal/domain"
)

// Hex выдаёт идентификаторы вида "<prefix>_<8 hex>".
type Hex struct{}

var _ domain.IDGenerator = Hex{}

// NewID генерирует непредсказуемый идентификатор с префиксом.
// Отказ crypto/rand означает неработоспособное окружение.
func (Hex) NewID(prefix string) string {
	buf := make([]byte, 4)
	if _, err := crand.Read(buf); err != nil {
		panic("idgen: crypto/rand недоступен: " + err.Error())
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
