package encoder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/kirsrus/attendance/server/model"
	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/validator"
	"github.com/kirsrus/attendance/server/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	writeChanCapacity    = 10
	cacheExpiration      = 5 * time.Minute  // Время жизни записи в кэше
	cacheCleanupInterval = 10 * time.Minute // Интервал очистки мёртвых записей (сборщик мусора)
	reconnectTimeout     = 10 * time.Second
	requestTimeout       = 3 * time.Second
)

// Тип текущего состояния подключения к кодировщику
type connectType int

const (
	connectUnknown = iota
	connectSuccess
	connectFailed
)

// Encoder общение с внешним кодировщиком лиц по WebSocket. Имплементирует интерфейс EncoderSvc.
// Инициируется конструктором NewEncoder
type Encoder struct {
	ctx              context.Context
	log              *logrus.Entry
	encoderUrl       string
	reconnectTimeout time.Duration
	requestTimeout   time.Duration
	connectedFlag    connectType
	writeChan        chan []byte // Канал отправки данных кодировщику
	// Ожидающие ответа запросы по токену
	cache     *cache.Cache
	validator *validator.Validator
}

// ConfigEncoder конфигурация конструктора NewEncoder
type ConfigEncoder struct {
	Log              *logrus.Logger
	EncoderUrl       string `conform:"trim" validate:"required,websocket"`
	ReconnectTimeout time.Duration
	RequestTimeout   time.Duration
}

// NewEncoder конструктор Encoder
func NewEncoder(ctx context.Context, config *ConfigEncoder) (*Encoder, error) {
	if config == nil {
		return nil, errors.New("не задана конфигурация config")
	} else if err := validator.Get().Validate(config); err != nil {
		return nil, errors.Annotate(err, "ошибка в конфигурации")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}

	encoder := &Encoder{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module":  "encoder",
			"scope":   "service",
			"address": config.EncoderUrl,
		}),
		encoderUrl:       config.EncoderUrl,
		reconnectTimeout: reconnectTimeout,
		requestTimeout:   requestTimeout,
		connectedFlag:    connectUnknown,
		writeChan:        make(chan []byte, writeChanCapacity),
		cache:            cache.New(cacheExpiration, cacheCleanupInterval),
		validator:        validator.Get(),
	}
	if config.ReconnectTimeout != 0 {
		encoder.reconnectTimeout = config.ReconnectTimeout
	}
	if config.RequestTimeout != 0 {
		encoder.requestTimeout = config.RequestTimeout
	}

	go encoder.loop()

	return encoder, nil
}

var _ service.EncoderSvc = (*Encoder)(nil)

// Кольцевое обращение к кодировщику
func (m *Encoder) loop() {
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

// Подключение по WebSocket к кодировщику
func (m *Encoder) connect() error {
	conn, _, err := websocket.DefaultDialer.DialContext(m.ctx, m.encoderUrl, nil)
	if err != nil {
		if m.connectedFlag == connectUnknown || m.connectedFlag == connectSuccess {
			m.log.Warnf("ошибка подключения: %v", err)
		}
		m.connectedFlag = connectFailed
		return errors.Trace(err)
	}
	if m.connectedFlag == connectUnknown || m.connectedFlag == connectFailed {
		m.log.Infof("подключение установлено")
		m.connectedFlag = connectSuccess
	}

	g, ctx := errgroup.WithContext(m.ctx)

	// Закрытие соединения прерывает чтение
	g.Go(func() error {
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})

	// Чтение из канала
	g.Go(func() error {
		for {
			tpe, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil || strings.Contains(err.Error(), "use of closed network connection") {
					return ctx.Err()
				}
				m.log.Warnf("ошибка чтения из WebSocket: %v", err)
				return errors.Trace(err)
			}
			if tpe != websocket.TextMessage {
				m.log.Warnf("пропущено нетиповое послание типа %d, размера %d", tpe, len(message))
				continue
			}

			var response model.EncoderResponse
			if err = json.Unmarshal(message, &response); err != nil {
				m.log.Errorf("не удалось распаковать JSON от кодировщика: %v", err)
				continue
			}
			if err = m.validator.Validate(&response); err != nil {
				m.log.Errorf("ошибка валидации ответа кодировщика: %v", err)
				continue
			}

			// Ищем в кэше, кому направлен этот ответ
			if value, found := m.cache.Get(response.UidRequest); found {
				select {
				case value.(chan model.EncoderResponse) <- response:
				default:
					m.log.Warnf("очередь ответа для %s переполнена", response.UidRequest)
				}
				m.cache.Delete(response.UidRequest)
			} else {
				m.log.Debugf("ответ на неизвестный или просроченный запрос %s", response.UidRequest)
			}
		}
	})

	// Запись в канал
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case write := <-m.writeChan:
				if err := conn.WriteMessage(websocket.TextMessage, write); err != nil {
					m.log.Warnf("ошибка записи в WebSocket: %v", err)
					return errors.Trace(err)
				}
			}
		}
	})

	err = g.Wait()
	return errors.Trace(err)
}

// Encode отправляет изображение кодировщику и ожидает найденные лица
func (m *Encoder) Encode(ctx context.Context, image []byte) ([]model.Face, error) {
	if len(image) == 0 {
		return nil, errors.NotValidf("пустое изображение")
	}
	key := uuid.New().String()
	response := make(chan model.EncoderResponse, 1)
	if err := m.cache.Add(key, response, cache.DefaultExpiration); err != nil {
		return nil, errors.Annotate(err, "ошибка добавления в кэш")
	}
	defer m.cache.Delete(key)

	request := model.EncoderRequest{
		UidRequest: key,
		Image:      base64.StdEncoding.EncodeToString(image),
	}
	requestByte, err := json.Marshal(request)
	if err != nil {
		return nil, errors.Annotate(err, "ошибка кодирования EncoderRequest в JSON")
	}
	select {
	case m.writeChan <- requestByte:
	default:
		m.log.Warn("канал передачи данных writeChan забит")
		return nil, errors.New("канал передачи данных забит")
	}

	// Ожидаем ответа
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.ctx.Done():
		return nil, m.ctx.Err()
	case <-time.After(m.requestTimeout):
		m.log.Debugf("время ожидания ответа для ключа %s вышло", key)
		return nil, errors.Timeoutf("ответ кодировщика на запрос %s", key)
	case resp := <-response:
		if resp.Error != "" {
			return nil, errors.Errorf("ошибка кодировщика: %s", resp.Error)
		}
		if resp.Faces == nil {
			return []model.Face{}, nil
		}
		return resp.Faces, nil
	}
}
