package store

import (
	"time"

	"github.com/kirsrus/attendance/server/model"
)

// RegistryStore постоянное хранилище реестра персон. Состояние сохраняется и читается целиком
//go:generate mockery --dir . --name RegistryStore --output ./mocks
type RegistryStore interface {
	// Читает реестр. Отсутствие сохранённого реестра - пустой реестр без ошибки.
	// Нечитаемый реестр возвращает ошибку, проверяемую model.IsCorruptState
	LoadIdentities() ([]model.Identity, error)

	// Атомарно заменяет сохранённый реестр на identities
	SaveIdentities(identities []model.Identity) error

	// Откладывает нечитаемый реестр в сторону. Следующее чтение вернёт пустой реестр
	ResetIdentities() error
}

// LedgerStore постоянное хранилище журнала посещений. Записи только добавляются
//go:generate mockery --dir . --name LedgerStore --output ./mocks
type LedgerStore interface {
	// Читает все записи журнала в порядке добавления. Отсутствующий журнал создаётся пустым.
	// Нечитаемый журнал возвращает ошибку, проверяемую model.IsCorruptState
	LoadRecords() ([]model.AttendanceRecord, error)

	// Дописывает запись в конец журнала. Запись либо сохраняется целиком, либо не сохраняется
	AppendRecord(record model.AttendanceRecord) error

	// Откладывает нечитаемый журнал в сторону и начинает новый
	ResetRecords() error
}

// ScheduleStore постоянное хранилище рабочего расписания
//go:generate mockery --dir . --name ScheduleStore --output ./mocks
type ScheduleStore interface {
	// Читает сохранённую запись. Отсутствие записи возвращает ошибку, проверяемую errors.IsNotFound,
	// нечитаемая запись - model.IsCorruptState
	LoadSchedule() (*model.ScheduleRecord, error)

	// Атомарно заменяет запись целиком
	SaveSchedule(record model.ScheduleRecord) error
}

// EvidenceStore хранилище снимков. Возвращаемые пути непрозрачны для остальных модулей
//go:generate mockery --dir . --name EvidenceStore --output ./mocks
type EvidenceStore interface {
	// Сохраняет кадр отметки посещения персоны name и возвращает путь к снимку
	SaveAttendance(at time.Time, name string, frame []byte) (string, error)

	// Сохраняет снимок, по которому регистрировалась персона name, и возвращает путь к нему
	SaveEnrollment(at time.Time, name string, image []byte) (string, error)

	// Читает снимок по пути, возвращённому при сохранении
	Image(path string) ([]byte, error)

	// Удаляет снимок
	Remove(path string) error
}

// Store все хранилища состояния программы
type Store interface {
	RegistryStore
	LedgerStore
	ScheduleStore
}
