package controller

import (
	"context"
	"time"

	"github.com/kirsrus/attendance/server/model"
)

// CameraCtl контроллер управления камерами
//go:generate mockery --dir . --name CameraCtl --output ./mocks
type CameraCtl interface {
	// Ожидает очередной кадр с любой из камер и возвращает его
	EmmitFrame() (*model.FrameEvent, error)
}

// RegistryCtl реестр зарегистрированных персон
//go:generate mockery --dir . --name RegistryCtl --output ./mocks
type RegistryCtl interface {
	// Добавляет дескриптор персоне. Возвращает true, если персона создана
	Add(name, externalID string, descriptor model.Descriptor) (model.IdentityRef, bool, error)
	// Удаляет персону по номеру в реестре
	Remove(index int) (model.Identity, error)
	// Персоны в порядке регистрации
	List() []model.IdentityRef
	// Неизменяемый срез реестра и его версия
	Snapshot() ([]model.Identity, uint64)
}

// ScheduleCtl рабочее расписание
//go:generate mockery --dir . --name ScheduleCtl --output ./mocks
type ScheduleCtl interface {
	// Действующее расписание
	Current() model.Schedule
	// Проверяет и сохраняет расписание
	Save(schedule model.Schedule) error
	// Разбирает введённые строки и сохраняет расписание
	Update(form model.ScheduleForm) (model.Schedule, error)
}

// MatcherCtl сопоставление дескриптора с реестром
//go:generate mockery --dir . --name MatcherCtl --output ./mocks
type MatcherCtl interface {
	Match(probe model.Descriptor, roster Roster, tolerance float64) (model.Match, bool)
}

// Roster источник реестра для сопоставления
type Roster interface {
	Snapshot() ([]model.Identity, uint64)
}

// LedgerCtl журнал посещений
//go:generate mockery --dir . --name LedgerCtl --output ./mocks
type LedgerCtl interface {
	// Персона name уже отмечена в день day
	AlreadyMarked(name string, day time.Time) bool
	// Статус отметки во время markTime
	Classify(markTime model.Clock, schedule model.Schedule) model.Status
	// Добавляет отметку. Повторная отметка за день возвращает ошибку, проверяемую errors.IsAlreadyExists
	Commit(name, externalID string, markTime time.Time, photoPath string, schedule model.Schedule) (model.AttendanceRecord, error)
	// Сводка за день day
	Summary(day time.Time) model.Summary
	// Записи журнала за день day или все, если day=nil
	Records(day *time.Time) []model.AttendanceRecord
	// Выгружает журнал в файл отчёта в директории dir
	Export(dir string, now time.Time) (string, error)
}

// AttendanceCtl обработка распознанных лиц
//go:generate mockery --dir . --name AttendanceCtl --output ./mocks
type AttendanceCtl interface {
	// Обрабатывает дескриптор лица, полученный с камеры или изображения
	OnProbe(ctx context.Context, probe model.Probe) (model.Outcome, error)
	// Регистрирует дескриптор персоны вместе со снимком, по которому он получен
	Enroll(name, externalID string, descriptor model.Descriptor, image []byte) (model.IdentityRef, bool, error)
}
