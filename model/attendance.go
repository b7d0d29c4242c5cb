package model

import (
	"time"
)

// Status отметка о своевременности прихода
type Status string

const (
	// StatusOnTime пришёл вовремя. Значение совместимо с файлом журнала
	StatusOnTime Status = "Present"
	// StatusLate опоздал
	StatusLate Status = "Late"
)

// ParseStatus разбор статуса из журнала. Неизвестное значение возвращается как есть с ok=false
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusOnTime, StatusLate:
		return Status(s), true
	}
	return Status(s), false
}

// DateLayout формат даты в журнале посещений
const DateLayout = "2006-01-02"

// AttendanceRecord запись журнала посещений. После создания не изменяется
type AttendanceRecord struct {
	Name       string    `json:"name"`
	ExternalID string    `json:"external_id"`
	Date       time.Time `json:"-"`
	Time       Clock     `json:"-"`
	Status     Status    `json:"status"`
	// Путь к снимку, принадлежит хранилищу снимков
	PhotoPath string `json:"photo_path"`
}

// DateString дата записи в формате журнала
func (m AttendanceRecord) DateString() string {
	return m.Date.Format(DateLayout)
}

// Row строка журнала в порядке колонок LedgerHeader
func (m AttendanceRecord) Row() []string {
	return []string{m.Name, m.ExternalID, m.DateString(), m.Time.String(), string(m.Status), m.PhotoPath}
}

// LedgerHeader заголовок файла журнала
var LedgerHeader = []string{"Name", "Student_ID", "Date", "Time", "Status", "Photo_Path"}

// Summary сводка посещений за день
type Summary struct {
	Date   string `json:"date"`
	OnTime int    `json:"on_time"`
	Late   int    `json:"late"`
	Total  int    `json:"total"`
}
