package manager

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
	requestTimeout         = 3 * time.Second
	waitRestartStartServer = 5 * time.Second
	// Величина очереди кадров на распознавание
	frameCapacity = 10
)

// ConfigManager конфигурация Manager
type ConfigManager struct {
	Log *logrus.Logger

	CameraCtl     controller.CameraCtl
	AttendanceCtl controller.AttendanceCtl

	WebSvc     service.WebSvc
	EncoderSvc service.EncoderSvc

	// Таймаут ожидания дескрипторов от кодировщика
	RequestTimeout time.Duration
	// Пауза перед перезапуском упавшего WEB-сервера
	WaitRestartServer time.Duration

	WebPort uint

	// Источник текущего времени для кадров без отметки времени
	Now func() time.Time
}

// Manager основной менеджер работы со всеми сервисами. Инициируется через NewManager
type Manager struct {
	ctx context.Context
	log *logrus.Entry

	cameraCtl     controller.CameraCtl
	attendanceCtl controller.AttendanceCtl

	webSvc     service.WebSvc
	encoderSvc service.EncoderSvc

	requestTimeout    time.Duration
	waitRestartServer time.Duration

	webPort uint
	now     func() time.Time
}

// NewManager конструктор Manager
func NewManager(ctx context.Context, config *ConfigManager) (*Manager, error) {
	if config == nil {
		return nil, errors.New("не передана конфигурация")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if config.CameraCtl == nil {
		return nil, errors.New("не передан контроллер камер")
	}
	if config.AttendanceCtl == nil {
		return nil, errors.New("не передан контроллер отметок")
	}
	if config.WebSvc == nil {
		return nil, errors.New("не передан сервис WEB")
	}
	if config.EncoderSvc == nil {
		return nil, errors.New("не передан сервис кодировщика")
	}

	manager := Manager{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "manager",
			"scope":  "controller",
		}),
		cameraCtl:     config.CameraCtl,
		attendanceCtl: config.AttendanceCtl,

		webSvc:     config.WebSvc,
		encoderSvc: config.EncoderSvc,

		requestTimeout:    requestTimeout,
		waitRestartServer: waitRestartStartServer,

		webPort: 8080,
		now:     time.Now,
	}
	if config.RequestTimeout != 0 {
		manager.requestTimeout = config.RequestTimeout
	}
	if config.WaitRestartServer != 0 {
		manager.waitRestartServer = config.WaitRestartServer
	}
	if config.WebPort != 0 {
		manager.webPort = config.WebPort
	}
	if config.Now != nil {
		manager.now = config.Now
	}

	manager.configToLog()

	return &manager, nil
}

// Вывести значения конфигурации в лог
func (m *Manager) configToLog() {
	m.log.Debugf("requestTimeout: %s", m.requestTimeout)
	m.log.Debugf("waitRestartServer: %s", m.waitRestartServer)
	m.log.Debugf("webPort: %d", m.webPort)
}

// Serve начало процесса обработки поступающих кадров. Кадры распознаются по одному в порядке
// поступления. Возвращает nil при завершении контекста
func (m *Manager) Serve() error {
	done := make(chan error, 1)
	frames := make(chan *model.FrameEvent, frameCapacity)

	g := new(errgroup.Group)

	// Получение кадров с камер
	g.Go(func() error {
		for {
			frame, err := m.cameraCtl.EmmitFrame()
			if err != nil {
				if m.ctx.Err() != nil {
					return nil
				}
				return errors.Trace(err)
			}
			select {
			case <-m.ctx.Done():
				return nil
			case frames <- frame:
			default:
				m.log.Warn("очередь кадров переполнена, кадр пропущен")
			}
		}
	})

	// WEB-сервер с перезапуском после падения
	g.Go(func() error {
		for {
			err := m.webSvc.Start(m.webPort)
			if m.ctx.Err() != nil {
				return nil
			}
			m.log.Errorf("сервер неожиданно завершил работу: %v", err)
			select {
			case <-m.ctx.Done():
				return nil
			case <-time.After(m.waitRestartServer):
			}
		}
	})

	go func() {
		done <- g.Wait()
	}()

	// Обработка полученных с камер кадров
	for {
		select {
		case err := <-done:
			return errors.Trace(err)
		case <-m.ctx.Done():
			return nil
		case frame := <-frames:
			m.frameInWorker(frame)
		}
	}
}

// Обработчик пришедшего с камеры кадра: все найденные на нём лица проходят через отметку посещений
func (m *Manager) frameInWorker(frame *model.FrameEvent) {
	ctx, cancel := context.WithTimeout(m.ctx, m.requestTimeout)
	defer cancel()

	faces, err := m.encoderSvc.Encode(ctx, frame.Image)
	if err != nil {
		if m.ctx.Err() == nil {
			m.log.Warnf("кадр камеры %d не распознан: %v", frame.Info.ID, err)
		}
		return
	}
	if len(faces) == 0 {
		return
	}

	capturedAt := m.now()
	if frame.CreateAt != nil {
		capturedAt = *frame.CreateAt
	}
	for _, face := range faces {
		probe := model.Probe{
			CameraID:   frame.Info.ID,
			CapturedAt: capturedAt,
			Descriptor: face.Descriptor,
			Box:        face.Box,
			Frame:      frame.Image,
		}
		outcome, err := m.attendanceCtl.OnProbe(m.ctx, probe)
		if err != nil {
			if m.ctx.Err() == nil {
				m.log.Error(errors.ErrorStack(err))
			}
			continue
		}
		if outcome.Kind == model.OutcomeMatched {
			m.log.Infof("отмечен %s (%s): %s", outcome.Name, outcome.ExternalID, outcome.Status)
		}
		m.webSvc.AttendanceChanged(model.NewAttendanceChange(probe, outcome))
	}
}
