package file

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kirsrus/attendance/server/pkg/logger"
	"github.com/kirsrus/attendance/server/pkg/tool"
	"github.com/kirsrus/attendance/server/store"

	"github.com/juju/errors"
	"github.com/sirupsen/logrus"
)

// Files хранилище в файлах: реестр в gob, журнал в CSV, расписание в JSON. Инициируется через NewFiles
type Files struct {
	ctx          context.Context
	log          *logrus.Entry
	facesFile    string
	ledgerFile   string
	scheduleFile string
}

// ConfigFiles конфигурация Files
type ConfigFiles struct {
	Log *logrus.Logger

	// Реестр дескрипторов лиц (gob)
	FacesFile string

	// Журнал посещений (csv)
	LedgerFile string

	// Рабочее расписание (json)
	ScheduleFile string
}

// NewFiles конструктор Files
func NewFiles(ctx context.Context, config *ConfigFiles) (*Files, error) {
	if config == nil {
		return nil, errors.New("не указана конфигурация")
	}
	if config.Log == nil {
		config.Log = logger.Discard()
	}
	if config.FacesFile == "" || config.LedgerFile == "" || config.ScheduleFile == "" {
		return nil, errors.New("в конфигурации не указаны файлы хранилища")
	}
	for _, v := range []string{config.FacesFile, config.LedgerFile, config.ScheduleFile} {
		if err := ensureDir(filepath.Dir(v)); err != nil {
			return nil, errors.Trace(err)
		}
	}

	files := Files{
		ctx: ctx,
		log: config.Log.WithFields(map[string]interface{}{
			"module": "file",
			"scope":  "store",
		}),
		facesFile:    config.FacesFile,
		ledgerFile:   config.LedgerFile,
		scheduleFile: config.ScheduleFile,
	}
	return &files, nil
}

var _ store.Store = (*Files)(nil)

// ensureDir создаёт директорию, если её нет
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Annotatef(err, "ошибка создания директории %s", dir)
	}
	return nil
}

// quarantine переименовывает нечитаемый файл в <path>.corrupt-<время>
func quarantine(log *logrus.Entry, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Trace(err)
	}
	target := path + ".corrupt-" + time.Now().Format(tool.ReportLayout)
	for i := 1; ; i++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = path + ".corrupt-" + time.Now().Format(tool.ReportLayout) + "_" + strconv.Itoa(i)
	}
	if err := os.Rename(path, target); err != nil {
		return errors.Annotatef(err, "ошибка переноса файла %s", path)
	}
	log.Warnf("повреждённый файл %s перенесён в %s", path, target)
	return nil
}
