package model

import "time"

// Probe дескриптор лица, поданный на распознавание, вместе с кадром, на котором он получен
type Probe struct {
	CameraID   uint
	CapturedAt time.Time
	Descriptor Descriptor
	// Положение лица на кадре [top, right, bottom, left]
	Box [4]int
	// Кадр для сохранения снимка-подтверждения. Может быть пустым
	Frame []byte
}

// OutcomeKind тип результата обработки пробы
type OutcomeKind int

const (
	// OutcomeUnknown лицо не распознано
	OutcomeUnknown OutcomeKind = iota
	// OutcomeMatched персона распознана и отмечена
	OutcomeMatched
	// OutcomeAlreadyMarked персона распознана, но сегодня уже отмечена
	OutcomeAlreadyMarked
)

func (m OutcomeKind) String() string {
	switch m {
	case OutcomeMatched:
		return "matched"
	case OutcomeAlreadyMarked:
		return "already_marked"
	default:
		return "unknown"
	}
}

// Outcome результат обработки пробы
type Outcome struct {
	Kind       OutcomeKind
	Name       string
	ExternalID string
	// Заполняется только для OutcomeMatched
	Status   Status
	Distance float64
	Record   *AttendanceRecord
}
