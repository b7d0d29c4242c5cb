package file

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/tool"
	"github.com/kirsrus/attendance/server/store"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/renameio"
	"github.com/juju/errors"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	defaultImageExt = ".jpg"
	// Кэш прочитанных снимков
	imageExpiration      = 10 * time.Minute
	imageCleanupInterval = 30 * time.Minute
)

// Evidence файловое хранилище снимков. Инициируется через NewEvidence
type Evidence struct {
	ctx         context.Context
	log         *logrus.Entry
	evidenceDir string
	facesDir    string

	// Прочитанные снимки по пути. Удаление снимка удаляет и запись кэша
	cache *cache.Cache
}

// ConfigEvidence конфигурация Evidence
type ConfigEvidence struct {
	Log *logrus.Logger

	// Директория снимков-подтверждений отметок
	EvidenceDir string

	// Директория снимков, по которым регистрировались персоны
	FacesDir string
}

// NewEvidence конструктор Evidence
func NewEvidence(ctx context.Context, config *ConfigEvidence) (*Evidence, error) {
	if config == nil {
		return nil, errors.New("не указана конфигурация")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if config.EvidenceDir == "" || config.FacesDir == "" {
		return nil, errors.New("в конфигурации не указаны директории снимков")
	}
	for _, v := range []string{config.EvidenceDir, config.FacesDir} {
		if err := ensureDir(v); err != nil {
			return nil, errors.Trace(err)
		}
	}

	evidence := Evidence{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "evidence",
			"scope":  "store",
		}),
		evidenceDir: config.EvidenceDir,
		facesDir:    config.FacesDir,
		cache:       cache.New(imageExpiration, imageCleanupInterval),
	}
	return &evidence, nil
}

var _ store.EvidenceStore = (*Evidence)(nil)

// SaveAttendance сохраняет кадр в поддиректорию дня: <EvidenceDir>/<YYYY.MM.DD>/<имя>_<время>.<расширение>
func (m *Evidence) SaveAttendance(at time.Time, name string, frame []byte) (string, error) {
	path, err := m.save(filepath.Join(m.evidenceDir, at.Format(tool.DirLayout)), at, name, frame)
	return path, errors.Trace(err)
}

// SaveEnrollment сохраняет снимок регистрации: <FacesDir>/<имя>_<время>.<расширение>
func (m *Evidence) SaveEnrollment(at time.Time, name string, image []byte) (string, error) {
	path, err := m.save(m.facesDir, at, name, image)
	return path, errors.Trace(err)
}

func (m *Evidence) save(dir string, at time.Time, name string, content []byte) (string, error) {
	if len(content) == 0 {
		return "", errors.NotValidf("пустое изображение")
	}
	if err := ensureDir(dir); err != nil {
		return "", errors.Trace(err)
	}

	base := fmt.Sprintf("%s_%s", tool.SafeFileName(name), at.Format(tool.StampLayout))
	ext := imageExt(content)
	path := filepath.Join(dir, base+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}

	if err := renameio.WriteFile(path, content, 0644); err != nil {
		m.log.Errorf("ошибка сохранения файла %s: %s", path, err)
		return "", errors.Trace(err)
	}
	m.log.Debugf("сохранён снимок %s", path)
	return path, nil
}

// imageExt расширение файла по содержимому. Для неопознанного содержимого ".jpg"
func imageExt(content []byte) string {
	mime := mimetype.Detect(content)
	if !strings.HasPrefix(mime.String(), "image/") || mime.Extension() == "" {
		return defaultImageExt
	}
	return mime.Extension()
}

// Image читает снимок. Читаются только файлы из директорий хранилища
func (m *Evidence) Image(path string) ([]byte, error) {
	if !m.owns(path) {
		return nil, errors.NotValidf("путь %s вне хранилища снимков", path)
	}
	if cached, ok := m.cache.Get(path); ok {
		return cached.([]byte), nil
	}
	content, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundf("снимок %s", path)
		}
		return nil, errors.Trace(err)
	}
	m.cache.Set(path, content, cache.DefaultExpiration)
	return content, nil
}

// Remove удаляет снимок. Отсутствие файла не ошибка
func (m *Evidence) Remove(path string) error {
	if path == "" {
		return nil
	}
	if !m.owns(path) {
		return errors.NotValidf("путь %s вне хранилища снимков", path)
	}
	m.cache.Delete(path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return nil
}

// owns путь находится внутри одной из директорий хранилища
func (m *Evidence) owns(path string) bool {
	for _, root := range []string{m.evidenceDir, m.facesDir} {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel) {
			return true
		}
	}
	return false
}
