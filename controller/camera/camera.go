package camera

import (
	"context"
	"time"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/service"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// Величина канала кадров от камер
	eventCapacity = 10
	// Пауза перед повторным опросом камер после ошибки
	restartTimeout = 5 * time.Second
)

// Camera контроллер управления группой камер. Инициализируется через NewCamera. Держит постоянное
// подключение ко всем камерам, кадры со всех камер отдаются через EmmitFrame
type Camera struct {
	ctx context.Context
	log *logrus.Entry

	camerasSvc []service.CameraSvc

	event chan *model.FrameEvent

	restartTimeout time.Duration
}

// ConfigCamera конфигурация Camera
type ConfigCamera struct {
	Log *logrus.Logger
	// Величина канала кадров от камер
	EventCapacity uint
	// Пауза перед повторным опросом камер после ошибки
	RestartTimeout time.Duration
}

// NewCamera конструктор Camera
func NewCamera(ctx context.Context, camerasSvc []service.CameraSvc, config *ConfigCamera) (*Camera, error) {
	if config == nil {
		return nil, errors.New("не установлен config")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if camerasSvc == nil {
		return nil, errors.New("не указан список camerasSvc")
	}

	capacity := uint(eventCapacity)
	if config.EventCapacity != 0 {
		capacity = config.EventCapacity
	}
	camera := Camera{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "camera",
			"scope":  "controller",
		}),
		camerasSvc: camerasSvc,

		event: make(chan *model.FrameEvent, capacity),

		restartTimeout: restartTimeout,
	}
	if config.RestartTimeout != 0 {
		camera.restartTimeout = config.RestartTimeout
	}
	go camera.loop()

	return &camera, nil
}

var _ controller.CameraCtl = (*Camera)(nil)

// Получение кадров со всех камер до завершения контекста. Каждая камера опрашивается
// независимо, ошибка одной камеры не прерывает работу остальных
func (m *Camera) loop() {
	m.log.Info("старт работы модуля")
	g := new(errgroup.Group)
	for _, v := range m.camerasSvc {
		v := v
		g.Go(func() error {
			m.pump(v)
			return nil
		})
	}
	_ = g.Wait()
	m.log.Info("завершение работы модуля")
}

// Бесконечное получение кадров с камеры cameraSvc
func (m *Camera) pump(cameraSvc service.CameraSvc) {
	for {
		event, err := cameraSvc.EmmitFrame()
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.log.Error(err)
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(m.restartTimeout):
			}
			continue
		}
		select {
		case <-m.ctx.Done():
			return
		case m.event <- event:
		}
	}
}

// EmmitFrame ожидает кадра с любой из камер. Возвращает context.Canceled при принудительном завершении работы
func (m *Camera) EmmitFrame() (*model.FrameEvent, error) {
	select {
	case <-m.ctx.Done():
		return nil, m.ctx.Err()
	case frame := <-m.event:
		return frame, nil
	}
}
