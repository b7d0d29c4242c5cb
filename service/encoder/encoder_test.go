package encoder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirsrus/attendance/server/model"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEncoderServer тестовый кодировщик. Изображение "лицо" возвращает одно лицо,
// "ошибка" - ошибку, "молчание" остаётся без ответа, остальные - пустой список лиц
func newEncoderServer(t *testing.T) string {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var request model.EncoderRequest
			if err := json.Unmarshal(message, &request); err != nil {
				return
			}
			image, _ := base64.StdEncoding.DecodeString(request.Image)
			response := model.EncoderResponse{UidRequest: request.UidRequest}
			switch string(image) {
			case "лицо":
				response.Faces = []model.Face{{Box: [4]int{10, 60, 70, 5}, Descriptor: model.Descriptor{0.1, 0.2, 0.3}}}
			case "ошибка":
				response.Error = "не удалось декодировать изображение"
			case "молчание":
				continue
			}
			content, _ := json.Marshal(response)
			if err := conn.WriteMessage(websocket.TextMessage, content); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestNewEncoder(t *testing.T) {
	_, err := NewEncoder(context.Background(), nil)
	assert.Error(t, err)
	_, err = NewEncoder(context.Background(), &ConfigEncoder{EncoderUrl: "http://127.0.0.1:1"})
	assert.Error(t, err)
	_, err = NewEncoder(context.Background(), &ConfigEncoder{EncoderUrl: " "})
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	encoder, err := NewEncoder(ctx, &ConfigEncoder{
		EncoderUrl:       newEncoderServer(t),
		ReconnectTimeout: 50 * time.Millisecond,
		RequestTimeout:   300 * time.Millisecond,
	})
	require.NoError(t, err)

	// Ожидаем подключения
	var faces []model.Face
	require.Eventually(t, func() bool {
		faces, err = encoder.Encode(ctx, []byte("лицо"))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond)
	require.Len(t, faces, 1)
	assert.Equal(t, model.Descriptor{0.1, 0.2, 0.3}, faces[0].Descriptor)
	assert.Equal(t, [4]int{10, 60, 70, 5}, faces[0].Box)

	faces, err = encoder.Encode(ctx, []byte("пусто"))
	require.NoError(t, err)
	assert.Empty(t, faces)

	_, err = encoder.Encode(ctx, []byte("ошибка"))
	assert.Error(t, err)

	_, err = encoder.Encode(ctx, []byte("молчание"))
	assert.True(t, errors.IsTimeout(err))

	_, err = encoder.Encode(ctx, nil)
	assert.True(t, errors.IsNotValid(err))
}
