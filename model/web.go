package model

import (
	"time"
)

// AttendanceChange событие распознавания персоны для WEB-интерфейса
type AttendanceChange struct {
	// ID камеры
	CameraID   uint      `json:"camera_id"`
	CreateAt   time.Time `json:"create_at"`
	Outcome    string    `json:"outcome"`
	Name       string    `json:"name,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Photo      string    `json:"photo,omitempty"`
}

// NewAttendanceChange событие из результата обработки пробы
func NewAttendanceChange(probe Probe, outcome Outcome) AttendanceChange {
	res := AttendanceChange{
		CameraID:   probe.CameraID,
		CreateAt:   probe.CapturedAt,
		Outcome:    outcome.Kind.String(),
		Name:       outcome.Name,
		ExternalID: outcome.ExternalID,
		Status:     outcome.Status,
	}
	if outcome.Record != nil {
		res.Photo = outcome.Record.PhotoPath
	}
	return res
}

// AttendanceView запись журнала для WEB-интерфейса
type AttendanceView struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Status     Status `json:"status"`
	Photo      string `json:"photo,omitempty"`
}

// NewAttendanceView представление записи журнала
func NewAttendanceView(record AttendanceRecord) AttendanceView {
	return AttendanceView{
		Name:       record.Name,
		ExternalID: record.ExternalID,
		Date:       record.DateString(),
		Time:       record.Time.String(),
		Status:     record.Status,
		Photo:      record.PhotoPath,
	}
}

// IdentityForm регистрация персоны из WEB-интерфейса. Передаётся дескриптор или изображение в base64
type IdentityForm struct {
	Name       string     `json:"name" conform:"trim" validate:"required"`
	ExternalID string     `json:"external_id" conform:"trim" validate:"required"`
	Descriptor Descriptor `json:"descriptor"`
	Image      string     `json:"image"`
}

// ProbeForm проба из WEB-интерфейса. Передаётся дескриптор или изображение в base64
type ProbeForm struct {
	CameraID   uint       `json:"camera_id"`
	Descriptor Descriptor `json:"descriptor"`
	Image      string     `json:"image"`
}
