package db

import (
	"encoding/json"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/juju/errors"
)

type (
	// GormModelUnscoped модель эквивалент gorm.Model без сохранения удалений
	GormModelUnscoped struct {
		ID        int `gorm:"primaryKey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Config рабочее расписание. Хранится одной записью, отсутствующие значения - NULL
	Config struct {
		GormModelUnscoped
		WorkStart     *string
		WorkEnd       *string
		LateThreshold *int
		Tolerance     *float64
		Location      *string
	}
)

// TableName имя таблицы
func (Config) TableName() string {
	return "config"
}

// ToRecord маппинг в запись расписания
func (m Config) ToRecord() model.ScheduleRecord {
	return model.ScheduleRecord{
		WorkStart:     m.WorkStart,
		WorkEnd:       m.WorkEnd,
		LateThreshold: m.LateThreshold,
		Tolerance:     m.Tolerance,
		Location:      m.Location,
	}
}

// FromRecord заполняет значения расписания из записи record
func (m *Config) FromRecord(record model.ScheduleRecord) {
	m.WorkStart = record.WorkStart
	m.WorkEnd = record.WorkEnd
	m.LateThreshold = record.LateThreshold
	m.Tolerance = record.Tolerance
	m.Location = record.Location
}

type (
	// Face один дескриптор лица персоны. Порядок персон и дескрипторов задаётся Position
	Face struct {
		GormModelUnscoped
		Position   int `gorm:"index"`
		Name       string
		ExternalID string
		// Дескриптор в формате json массива
		Descriptor string
	}
)

// TableName имя таблицы
func (Face) TableName() string {
	return "faces"
}

// facesFromIdentities разворачивает персоны в строки таблицы, по одной на дескриптор
func facesFromIdentities(identities []model.Identity) ([]Face, error) {
	res := make([]Face, 0)
	for _, v := range identities {
		for _, d := range v.Descriptors {
			content, err := json.Marshal([]float64(d))
			if err != nil {
				return nil, errors.Trace(err)
			}
			res = append(res, Face{
				Position:   len(res),
				Name:       v.Name,
				ExternalID: v.ExternalID,
				Descriptor: string(content),
			})
		}
	}
	return res, nil
}

// identitiesFromFaces собирает персоны из строк таблицы в порядке первого появления
func identitiesFromFaces(faces []Face) ([]model.Identity, error) {
	res := make([]model.Identity, 0)
	index := make(map[[2]string]int)
	for _, v := range faces {
		var d []float64
		if err := json.Unmarshal([]byte(v.Descriptor), &d); err != nil {
			return nil, errors.Annotatef(err, "дескриптор записи %d", v.ID)
		}
		if len(d) == 0 {
			return nil, errors.Errorf("пустой дескриптор записи %d", v.ID)
		}
		key := [2]string{v.Name, v.ExternalID}
		pos, ok := index[key]
		if !ok {
			pos = len(res)
			index[key] = pos
			res = append(res, model.Identity{Name: v.Name, ExternalID: v.ExternalID})
		}
		res[pos].Descriptors = append(res[pos].Descriptors, model.Descriptor(d))
	}
	return res, nil
}

type (
	// Attendance отметка посещения. Одна отметка на персону в день
	Attendance struct {
		GormModelUnscoped
		Name       string `gorm:"uniqueIndex:idx_attendance_name_date"`
		ExternalID string
		Date       string `gorm:"uniqueIndex:idx_attendance_name_date"`
		Time       string
		Status     string
		PhotoPath  string
	}
)

// TableName имя таблицы
func (Attendance) TableName() string {
	return "attendance_log"
}

// FromRecord заполняет текущую структуру из записи журнала
func (m *Attendance) FromRecord(record model.AttendanceRecord) {
	*m = Attendance{
		Name:       record.Name,
		ExternalID: record.ExternalID,
		Date:       record.DateString(),
		Time:       record.Time.String(),
		Status:     string(record.Status),
		PhotoPath:  record.PhotoPath,
	}
}

// ToRecord маппинг в запись журнала
func (m Attendance) ToRecord() (model.AttendanceRecord, error) {
	date, err := time.ParseInLocation(model.DateLayout, m.Date, time.Local)
	if err != nil {
		return model.AttendanceRecord{}, errors.Annotatef(err, "дата записи %d", m.ID)
	}
	clock, err := model.ParseClock(m.Time)
	if err != nil {
		return model.AttendanceRecord{}, errors.Annotatef(err, "время записи %d", m.ID)
	}
	status, ok := model.ParseStatus(m.Status)
	if !ok {
		return model.AttendanceRecord{}, errors.Errorf("неизвестный статус %q записи %d", m.Status, m.ID)
	}
	return model.AttendanceRecord{
		Name:       m.Name,
		ExternalID: m.ExternalID,
		Date:       date,
		Time:       clock,
		Status:     status,
		PhotoPath:  m.PhotoPath,
	}, nil
}
