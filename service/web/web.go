package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kirsrus/attendance/server/controller"
	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/validator"
	"github.com/kirsrus/attendance/server/service"
	"github.com/kirsrus/attendance/server/store"

	"github.com/juju/errors"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/sirupsen/logrus"
)

const (
	assetsDir       = "./assets"
	reportDir       = "./reports"
	shutdownTimeout = 5 * time.Second
	// Величина очереди событий одного подписчика
	eventCapacity = 10
)

// ConfigWeb конфигурация структуры Web
type ConfigWeb struct {
	Log *logrus.Logger

	Registry   controller.RegistryCtl
	Schedule   controller.ScheduleCtl
	Ledger     controller.LedgerCtl
	Attendance controller.AttendanceCtl
	// Кодировщик лиц. Без него принимаются только готовые дескрипторы
	Encoder  service.EncoderSvc
	Evidence store.EvidenceStore

	Cameras   []model.CameraInfo
	AssetsDir string
	ReportDir string

	// Источник текущего времени
	Now func() time.Time
}

// Web служба WEB-сервисов. Инициализируется через NewWeb
type Web struct {
	ctx       context.Context
	log       *logrus.Entry
	validator *validator.Validator
	e         *echo.Echo

	registry   controller.RegistryCtl
	schedule   controller.ScheduleCtl
	ledger     controller.LedgerCtl
	attendance controller.AttendanceCtl
	encoder    service.EncoderSvc
	evidence   store.EvidenceStore

	cameras   []model.CameraInfo
	assetsDir string
	reportDir string
	now       func() time.Time

	// Подписчики ленты событий: id -> chan model.AttendanceChange
	eventSubscribePool *sync.Map
}

// NewWeb конструктор структуры Web
func NewWeb(ctx context.Context, config *ConfigWeb) (*Web, error) {
	if config == nil {
		return nil, errors.New("не установлена конфигурация")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if config.Registry == nil || config.Schedule == nil || config.Ledger == nil || config.Attendance == nil {
		return nil, errors.New("не переданы контроллеры")
	}

	web := Web{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "web",
			"scope":  "service",
		}),
		validator: validator.Get(),
		e:         echo.New(),

		registry:   config.Registry,
		schedule:   config.Schedule,
		ledger:     config.Ledger,
		attendance: config.Attendance,
		encoder:    config.Encoder,
		evidence:   config.Evidence,

		cameras:   config.Cameras,
		assetsDir: assetsDir,
		reportDir: reportDir,
		now:       time.Now,

		eventSubscribePool: new(sync.Map),
	}
	if config.AssetsDir != "" {
		web.assetsDir = config.AssetsDir
	}
	if config.ReportDir != "" {
		web.reportDir = config.ReportDir
	}
	if config.Now != nil {
		web.now = config.Now
	}
	if web.cameras == nil {
		web.cameras = make([]model.CameraInfo, 0)
	}

	web.e.HideBanner = true
	web.e.HidePort = true
	web.e.Use(middleware.Recover())
	web.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	return &web, nil
}

var _ service.WebSvc = (*Web)(nil)

// Start запуск HTTP-сервера. При завершении контекста сервер останавливается и возвращается nil
func (m *Web) Start(port uint) error {
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-stopped:
		case <-m.ctx.Done():
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := m.e.Shutdown(ctx); err != nil {
				m.log.Warnf("ошибка остановки сервера: %v", err)
			}
		}
	}()

	m.log.Infof("старт HTTP-сервера на порту :%d", port)
	err := m.e.Start(fmt.Sprintf(":%d", port))
	if m.ctx.Err() != nil {
		return nil
	}
	return errors.Trace(err)
}

// ServeHTTP обработка запроса зарегистрированными хэндлерами
func (m *Web) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.e.ServeHTTP(w, r)
}

// Static статический контент рабочего стола
func (m *Web) Static(path string) {
	m.e.Static(path, m.assetsDir)
}

// httpError ответ с кодом, соответствующим типу ошибки
func (m *Web) httpError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.IsNotValid(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsAlreadyExists(err):
		status = http.StatusConflict
	case errors.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errors.IsNotSupported(err):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		m.log.Error(errors.ErrorStack(err))
	} else {
		m.log.Debugf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	return c.JSON(status, map[string]string{"message": err.Error()})
}
