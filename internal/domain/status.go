package domain

// RequestStatus — статус обработки заявки.
type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusRunning   RequestStatus = "RUNNING"
	StatusCollected RequestStatus = "COLLECTED"
	StatusAnalyzing RequestStatus = "ANALYZING"
	StatusReady     RequestStatus = "READY"
	StatusNoData    RequestStatus = "NO_DATA"
	StatusFailed    RequestStatus = "FAILED"
)

// StatusOrder перечисляет статусы конвейера обработки в порядке продвижения.
var StatusOrder = []RequestStatus{StatusPending, StatusRunning, StatusCollected, StatusAnalyzing, StatusReady}

// statusRank задаёт порядок прямых переходов. Терминальные статусы рангом не сравниваются.
var statusRank = map[RequestStatus]int{
	StatusPending:   0,
	StatusRunning:   1,
	StatusCollected: 2,
	StatusAnalyzing: 3,
	StatusReady:     4,
}

// StatusRank возвращает ранг статуса в конвейере. false — статус вне конвейера.
func StatusRank(s RequestStatus) (int, bool) {
	rank, ok := statusRank[s]
	return rank, ok
}

// IsTerminal сообщает, достигла ли заявка конечного статуса.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusNoData || s == StatusFailed
}

// CanTransition проверяет, что переход статуса не откатывает заявку назад.
// RUNNING/COLLECTED/ANALYZING объявлены, но текущим сборщиком не проходятся;
// допустимость их переходов сохранена на будущее.
func CanTransition(from, to RequestStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusNoData || to == StatusFailed {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// ActiveStatuses — статусы, при которых заявка считается находящейся в работе.
var ActiveStatuses = []RequestStatus{StatusPending, StatusRunning, StatusAnalyzing}
