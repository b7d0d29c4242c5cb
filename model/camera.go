package model

import (
	"regexp"
	"time"

	"github.com/juju/errors"
)

// CameraInfo описывает технические данные камеры
type CameraInfo struct {
	ID          uint   `validate:"required"`
	URL         string `conform:"trim" validate:"required,websocket"`
	Name        string `conform:"trim" validate:"required"`
	Description string `conform:"trim"`
}

// CameraAction событие в WebSocket канале камеры
type CameraAction struct {
	// Тип события:
	//    newFrame - доступен новый кадр
	Action string `json:"action"`
	// Дата события в формате "2020-11-27T12:37:54.838079"
	Timestamp string `json:"timestamp"`
	// Имя сохранённого на камере кадра формата "27-11-2020--12-37-54--1.jpg"
	FileName string `json:"filename"`
}

// Validate валидация
func (m CameraAction) Validate() error {
	if m.Action == "" {
		return errors.New("не задан параметр Action")
	}
	if m.Timestamp == "" {
		return errors.New("не задан параметр Timestamp")
	}
	if m.FileName == "" {
		return errors.New("не задан параметр FileName")
	}
	return nil
}

var frameFileNameRe = regexp.MustCompile(`^(\d+-\d+-\d+--\d+-\d+-\d+)(--\d+)?\.(jpe?g|png|bmp)$`)

// FrameFileName распарсенное имя файла кадра на камере
type FrameFileName struct {
	Time     time.Time
	FileName string
}

// Parse заполняет структуру из имени файла. Время кадра берётся в локальной зоне
func (m *FrameFileName) Parse(fileName string) error {
	*m = FrameFileName{}

	match := frameFileNameRe.FindStringSubmatch(fileName)
	if len(match) == 0 {
		return errors.Errorf("формат имени файла \"%s\" не распознан", fileName)
	}
	t, err := time.ParseInLocation("02-01-2006--15-04-05", match[1], time.Local)
	if err != nil {
		return errors.Errorf("некорректный формат записи времени \"%s\" в имени файла: %s", match[1], fileName)
	}
	m.Time = t
	m.FileName = fileName
	return nil
}

// FrameEvent кадр, полученный с камеры
type FrameEvent struct {
	CreateAt *time.Time
	Info     CameraInfo
	Image    []byte
}
