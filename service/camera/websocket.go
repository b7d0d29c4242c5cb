package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/validator"
	"github.com/kirsrus/attendance/server/service"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

const (
	// Шаблон доступа к сохранённому на камере кадру
	FrameUrlTemplate  = "http://%s/frames/%s"
	MaximumResultChan = 20
	ReconnectTimeout  = 5 * time.Second
	DownloadTimeout   = 2 * time.Second

	actionNewFrame = "newFrame"
)

// Тип текущего состояния подключения к камере
type connectType int

const (
	connectUnknown = iota
	connectSuccess
	connectFailed
)

// Websocket имплементация подключения к камере по WebSocket. Инициируется через NewWebsocket.
// Постоянно держит соединение, пока не завершён контекст
type Websocket struct {
	cameraInfo       model.CameraInfo
	ctx              context.Context
	log              *logrus.Entry
	reconnectTimeout time.Duration
	downloadTimeout  time.Duration
	// Канал передачи результата
	resultChan    chan model.FrameEvent
	connectedFlag connectType
}

// ConfigWebsocket конфигурация Websocket
type ConfigWebsocket struct {
	Log              *logrus.Logger
	CameraInfo       model.CameraInfo
	ReconnectTimeout time.Duration
	DownloadTimeout  time.Duration
}

// NewWebsocket конструктор структуры Websocket
func NewWebsocket(ctx context.Context, config *ConfigWebsocket) (*Websocket, error) {
	if config == nil {
		return nil, errors.New("не задана конфигурация config")
	}
	if err := validator.Get().Validate(&config.CameraInfo); err != nil {
		return nil, errors.Annotate(err, "некорректное описание камеры")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}

	res := &Websocket{
		cameraInfo: config.CameraInfo,
		ctx:        ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module":  "camera",
			"scope":   "service",
			"id":      config.CameraInfo.ID,
			"address": config.CameraInfo.URL,
		}),
		reconnectTimeout: ReconnectTimeout,
		downloadTimeout:  DownloadTimeout,
		resultChan:       make(chan model.FrameEvent, MaximumResultChan),
		connectedFlag:    connectUnknown,
	}
	if config.ReconnectTimeout != 0 {
		res.reconnectTimeout = config.ReconnectTimeout
	}
	if config.DownloadTimeout != 0 {
		res.downloadTimeout = config.DownloadTimeout
	}

	// Запускаем бесконечный цикл переподключения к камере
	go res.loop()

	return res, nil
}

var _ service.CameraSvc = (*Websocket)(nil)

// Бесконечный цикл обращения к WebSocket камеры. При завершении контекста цикл завершается
func (m *Websocket) loop() {
	m.log.Info("старт работы модуля")

	for {
		select {
		case <-m.ctx.Done():
			m.log.Info("завершение работы модуля")
			return
		default:
		}

		err := m.connect()

		if err != nil && err.Error() != context.Canceled.Error() {
			select {
			case <-m.ctx.Done():
			case <-time.After(m.reconnectTimeout):
			}
		}
	}
}

// Подключение по WebSocket к камере
func (m *Websocket) connect() error {
	read := make(chan []byte, 10)
	done := make(chan error, 1)

	conn, _, err := websocket.DefaultDialer.DialContext(m.ctx, m.cameraInfo.URL, nil)
	if err != nil {
		if m.connectedFlag == connectUnknown || m.connectedFlag == connectSuccess {
			m.log.Warnf("ошибка подключения: %v", err)
		}
		m.connectedFlag = connectFailed
		return errors.Trace(err)
	}
	defer func() { _ = conn.Close() }()
	if m.connectedFlag == connectUnknown || m.connectedFlag == connectFailed {
		m.log.Infof("подключение установлено")
		m.connectedFlag = connectSuccess
	}

	// Бесконечно читаем из канала WebSocket
	go func() {
		for {
			tpe, message, err := conn.ReadMessage()
			if err != nil {
				if !strings.Contains(err.Error(), "use of closed network connection") {
					m.log.Warnf("ошибка чтения из WebSocket: %v", err)
					done <- errors.Trace(err)
				} else {
					done <- nil
				}
				return
			}
			if tpe != websocket.TextMessage {
				m.log.Warnf("пропущено нетиповое послание типа %d, размера %d", tpe, len(message))
				continue
			}

			select {
			case <-m.ctx.Done():
				return
			case read <- message:
			default:
				m.log.Warnf("очередь read переполнена")
			}
		}
	}()

	// Камера может прислать одно и то же событие несколько раз подряд
	var previousFileName string
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		case err := <-done:
			return err
		case message := <-read:
			msg := model.CameraAction{}
			if err = json.Unmarshal(message, &msg); err != nil {
				m.log.Warnf("пришёл некорректный json \"%s\" с ошибкой: %s", string(message), err.Error())
				continue
			}
			if err = msg.Validate(); err != nil {
				m.log.Warnf("ошибка валидации полученного json: %v", err)
				continue
			}
			if msg.Action != actionNewFrame || msg.FileName == previousFileName {
				continue
			}
			previousFileName = msg.FileName

			// Время съёмки в имени файла
			frameFileName := model.FrameFileName{}
			if err = frameFileName.Parse(msg.FileName); err != nil {
				m.log.Warnf("нераспознаваемое имя файла '%s': %v", msg.FileName, err)
				continue
			}

			addr, _ := url.Parse(m.cameraInfo.URL)
			content, err := m.downloadContent(fmt.Sprintf(FrameUrlTemplate, addr.Host, url.PathEscape(msg.FileName)))
			if err != nil {
				continue
			}

			createAt := frameFileName.Time
			select {
			case m.resultChan <- model.FrameEvent{CreateAt: &createAt, Info: m.cameraInfo, Image: content}:
			default:
				m.log.Warnf("канал resultChan переполнен")
			}
		}
	}
}

// Скачиваем контент по URL адресу
func (m *Websocket) downloadContent(URL string) ([]byte, error) {
	var client = &http.Client{
		Timeout: m.downloadTimeout,
	}

	req, err := http.NewRequestWithContext(m.ctx, "GET", URL, nil)
	if err != nil {
		return []byte{}, errors.Trace(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		m.log.Warnf("кадр %s не скачан: %v", req.URL.String(), err)
		return []byte{}, errors.Trace(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		m.log.Warnf("для скачивания %s возвращён статус %d", URL, resp.StatusCode)
		return []byte{}, errors.Errorf("для скачивания %s возвращён статус %d", URL, resp.StatusCode)
	}
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		m.log.Warnf("ошибка получения тела кадра %s: %s", req.URL.String(), err)
		return []byte{}, errors.Trace(err)
	}

	m.log.Debugf("кадр %s (%d байт) скачан", req.URL.String(), len(data))
	return data, nil
}

// EmmitFrame ожидает кадр от камеры. При завершении контекста возвращается его ошибка
func (m *Websocket) EmmitFrame() (*model.FrameEvent, error) {
	select {
	case result := <-m.resultChan:
		return &result, nil
	case <-m.ctx.Done():
		return nil, m.ctx.Err()
	}
}
