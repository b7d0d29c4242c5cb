package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "нет.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "attendance.log", cfg.Log.Filename)
	assert.Equal(t, "file", cfg.Db.Type)
	assert.Equal(t, "face_encodings.gob", cfg.Storage.FacesFile)
	assert.Equal(t, "attendance.csv", cfg.Storage.LedgerFile)
	assert.Equal(t, "config.json", cfg.Storage.ScheduleFile)
	assert.Equal(t, "first", cfg.Match.Strategy)
	assert.Equal(t, uint(8080), cfg.Http.Port)
	assert.Equal(t, 3*time.Second, cfg.Encoder.TimeOut)
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), FileName)
	content := `
log:
  level: debug
db:
  type: sqlite
  path: /var/lib/attendance
encoder:
  address: ws://127.0.0.1:8001/encode
  timeout: 500
match:
  strategy: nearest
camera:
  info:
    - id: 1
      address: ws://127.0.0.1:8000/feed
      name: Вход
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))

	cfg, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "sqlite", cfg.Db.Type)
	assert.Equal(t, "ws://127.0.0.1:8001/encode", cfg.Encoder.Address)
	assert.Equal(t, 500*time.Millisecond, cfg.Encoder.TimeOut)
	assert.Equal(t, "nearest", cfg.Match.Strategy)
	require.Len(t, cfg.Camera.Info, 1)
	assert.Equal(t, "Вход", cfg.Camera.Info[0].Name)
	assert.Equal(t, "/var/lib/attendance/attendance.csv", cfg.DataPath(cfg.Storage.LedgerFile))
	assert.Equal(t, "/tmp/x.csv", cfg.DataPath("/tmp/x.csv"))
}
