package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

// Clock время суток в секундах от полуночи
type Clock int

const secondsInDay = 24 * 60 * 60

// ParseClock разбирает время в формате "HH:MM" или "HH:MM:SS"
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, errors.NotValidf("время %q (ожидается HH:MM)", s)
	}
	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, p := range parts {
		if p == "" || len(p) > 2 {
			return 0, errors.NotValidf("время %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, errors.NotValidf("время %q", s)
		}
		values[i] = v
	}
	return Clock(values[0]*3600 + values[1]*60 + values[2]), nil
}

// ClockOf время суток момента t
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// AddMinutes сдвиг времени на minutes минут (без перехода через сутки)
func (m Clock) AddMinutes(minutes int) Clock {
	if minutes >= secondsInDay/60 {
		return secondsInDay - 1
	}
	res := m + Clock(minutes*60)
	if res >= secondsInDay {
		res = secondsInDay - 1
	}
	if res < 0 {
		res = 0
	}
	return res
}

// Short формат "HH:MM"
func (m Clock) Short() string {
	return fmt.Sprintf("%02d:%02d", int(m)/3600, int(m)%3600/60)
}

// Format формат "HH:MM", а при ненулевых секундах "HH:MM:SS"
func (m Clock) Format() string {
	if m%60 != 0 {
		return m.String()
	}
	return m.Short()
}

// String формат "HH:MM:SS"
func (m Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(m)/3600, int(m)%3600/60, int(m)%60)
}

// Schedule рабочее расписание и параметры распознавания
type Schedule struct {
	// Начало рабочего дня
	WorkStart Clock `validate:"min=0,max=86399"`

	// Окончание рабочего дня (только для отображения)
	WorkEnd Clock `validate:"min=0,max=86399"`

	// Допустимое опоздание в минутах
	LateThreshold int `validate:"min=0"`

	// Максимальное расстояние между дескрипторами одной персоны
	Tolerance float64 `validate:"gt=0,lte=1"`

	// Место установки
	Location string `conform:"trim"`
}

// LateAfter момент, после которого отметка считается опозданием
func (m Schedule) LateAfter() Clock {
	return m.WorkStart.AddMinutes(m.LateThreshold)
}

// Record представление расписания для сохранения
func (m Schedule) Record() ScheduleRecord {
	workStart := m.WorkStart.Format()
	workEnd := m.WorkEnd.Format()
	late := m.LateThreshold
	tolerance := m.Tolerance
	location := m.Location
	return ScheduleRecord{
		WorkStart:     &workStart,
		WorkEnd:       &workEnd,
		LateThreshold: &late,
		Tolerance:     &tolerance,
		Location:      &location,
	}
}

// Form строковое представление расписания для форм ввода
func (m Schedule) Form() ScheduleForm {
	return ScheduleForm{
		WorkStart:     m.WorkStart.Format(),
		WorkEnd:       m.WorkEnd.Format(),
		LateThreshold: strconv.Itoa(m.LateThreshold),
		Tolerance:     strconv.FormatFloat(m.Tolerance, 'f', -1, 64),
		Location:      m.Location,
	}
}

// ScheduleRecord сохраняемая запись расписания. Отсутствующий ключ представлен nil
type ScheduleRecord struct {
	WorkStart     *string  `json:"work_start,omitempty"`
	WorkEnd       *string  `json:"work_end,omitempty"`
	LateThreshold *int     `json:"late_threshold,omitempty"`
	Tolerance     *float64 `json:"recognition_tolerance,omitempty"`
	Location      *string  `json:"location,omitempty"`
}

// ScheduleForm расписание в виде введённых пользователем строк
type ScheduleForm struct {
	WorkStart     string `json:"work_start" conform:"trim" validate:"required,clock"`
	WorkEnd       string `json:"work_end" conform:"trim" validate:"omitempty,clock"`
	LateThreshold string `json:"late_threshold" conform:"trim" validate:"required"`
	Tolerance     string `json:"recognition_tolerance" conform:"trim" validate:"required"`
	Location      string `json:"location" conform:"trim"`
}

// Parse преобразует введённые строки в расписание. Ошибка разбора проверяется через errors.IsNotValid
func (m ScheduleForm) Parse() (Schedule, error) {
	var res Schedule
	var err error

	if res.WorkStart, err = ParseClock(m.WorkStart); err != nil {
		return Schedule{}, errors.Trace(err)
	}
	if m.WorkEnd != "" {
		if res.WorkEnd, err = ParseClock(m.WorkEnd); err != nil {
			return Schedule{}, errors.Trace(err)
		}
	}
	late, err := strconv.Atoi(strings.TrimSpace(m.LateThreshold))
	if err != nil {
		return Schedule{}, errors.NotValidf("допустимое опоздание %q", m.LateThreshold)
	}
	if late < 0 {
		return Schedule{}, errors.NotValidf("отрицательное допустимое опоздание %d", late)
	}
	res.LateThreshold = late

	tolerance, err := strconv.ParseFloat(strings.TrimSpace(m.Tolerance), 64)
	if err != nil {
		return Schedule{}, errors.NotValidf("порог распознавания %q", m.Tolerance)
	}
	if !(tolerance > 0 && tolerance <= 1) {
		return Schedule{}, errors.NotValidf("порог распознавания %v вне диапазона (0,1]", tolerance)
	}
	res.Tolerance = tolerance
	res.Location = strings.TrimSpace(m.Location)
	return res, nil
}
