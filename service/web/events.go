package web

import (
	"net/http"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo"
)

// Каждые pingInterval в канал подаётся ping, иначе клиент его закроет
const pingInterval = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Events лента событий распознавания через WebSocket
func (m *Web) Events(path string) {
	m.e.GET(path, func(c echo.Context) error {
		ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			m.log.Warnf("ошибка подключения к ленте событий: %v", err)
			return nil
		}
		defer ws.Close()

		id := uuid.New().String()
		events := make(chan model.AttendanceChange, eventCapacity)
		m.eventSubscribePool.Store(id, events)
		defer m.eventSubscribePool.Delete(id)
		m.log.Debugf("подписчик %s подключён к ленте событий", id)

		// Чтение нужно только для обнаружения закрытия соединения клиентом
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()
		for {
			select {
			case <-m.ctx.Done():
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			case <-closed:
				m.log.Debugf("подписчик %s отключился от ленты событий", id)
				return nil
			case <-ping.C:
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return nil
				}
			case event := <-events:
				if err := ws.WriteJSON(event); err != nil {
					m.log.Debugf("ошибка отправки события подписчику %s: %v", id, err)
					return nil
				}
			}
		}
	})
}

// AttendanceChanged рассылка события распознавания всем подписчикам ленты
func (m *Web) AttendanceChanged(change model.AttendanceChange) {
	m.eventSubscribePool.Range(func(key, value interface{}) bool {
		inChan, ok := value.(chan model.AttendanceChange)
		if !ok {
			m.log.Errorf("в eventSubscribePool неожиданный тип данных: %T", value)
			return true
		}
		select {
		case inChan <- change:
			m.log.Debugf("событие отправлено на WEB")
		default:
			m.log.Warnf("канал %s из eventSubscribePool переполнен", key)
		}
		return true
	})
}
