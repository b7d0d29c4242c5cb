package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jinzhu/configor"
	"github.com/juju/errors"
)

const (
	FileName = "attendance.yaml"
	// Префикс переменных окружения, переопределяющих конфигурацию (ATTENDANCE_HTTP_PORT и т.п.)
	EnvPrefix = "ATTENDANCE"
)

// Load читает конфигурацию из файла filepath. Отсутствие файла не ошибка: берутся значения
// по умолчанию и переменные окружения
func Load(filepath string) (*Config, error) {
	var config Config
	files := make([]string, 0, 1)
	if filepath != "" {
		if _, err := os.Stat(filepath); err == nil {
			files = append(files, filepath)
		} else if !os.IsNotExist(err) {
			return nil, errors.Annotatef(err, "файл конфигурации %s недоступен", filepath)
		}
	}
	loader := configor.New(&configor.Config{ENVPrefix: EnvPrefix})
	if err := loader.Load(&config, files...); err != nil {
		return nil, errors.Annotatef(err, "ошибка чтения файла конфигурации %s", filepath)
	}
	// Корректировки значений
	config.Encoder.TimeOut = config.Encoder.TimeOut * time.Millisecond
	return &config, nil
}

// DataPath путь к файлу или директории хранилища
func (m *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.Db.Path, name)
}

// ReconnectTimeout таймаут переподключения к камере
func (m *Config) ReconnectTimeout() time.Duration {
	return time.Duration(m.Camera.ReconnectTimeout) * time.Second
}

// DownloadTimeout таймаут скачивания кадра
func (m *Config) DownloadTimeout() time.Duration {
	return time.Duration(m.Camera.DownloadTimeout) * time.Second
}
