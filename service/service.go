package service

import (
	"context"

	"github.com/kirsrus/attendance/server/model"
)

// WebSvc сервис общения с WEB интерфейсом
//go:generate mockery --dir . --name WebSvc --output ./mocks
type WebSvc interface {
	// Хэндлер показа основной страницы рабочего стола
	Static(string)
	// Хэндлеры REST API с указанным префиксом
	Api(string)
	// Хэндлер WebSocket ленты событий распознавания
	Events(string)
	// Хэндлер возвращения снимка. Путь к снимку передаётся в параметре path
	Photo(string)
	// Отсылка события распознавания персоны
	AttendanceChanged(model.AttendanceChange)
	// Запуск WEB-сервера на порту port. Возвращается при остановке сервера
	Start(port uint) error
}

// EncoderSvc сервис получения дескрипторов лиц по изображению
//go:generate mockery --dir . --name EncoderSvc --output ./mocks
type EncoderSvc interface {
	// Находит лица на изображении и возвращает их дескрипторы. Изображение без лиц - пустой результат
	Encode(ctx context.Context, image []byte) ([]model.Face, error)
}

// CameraSvc работа с камерой. Держит постоянное подключение к камере
//go:generate mockery --dir . --name CameraSvc --output ./mocks
type CameraSvc interface {
	// Ожидает очередной кадр с камеры и возвращает его
	EmmitFrame() (*model.FrameEvent, error)
}
