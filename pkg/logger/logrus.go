package logger

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	RotateMaxSize    = 30 // MB
	RotateLocalTime  = true
	RotateMaxAge     = 365 // Дней
	RotateMaxBackups = 10  // Колличество файлов
	RotateCompress   = true

	timestampFormat = "2006.01.02 15:04:05"
)

// Config конфигурация лога
type Config struct {
	Path    string
	File    string
	Level   logrus.Level
	Console bool
}

// Get быстрый конфиг на консоль
func Get(level logrus.Level) *logrus.Logger {
	return New(Config{
		Level:   level,
		Console: true,
	})
}

// New логирование с конфигурацией. При Console=true или пустом File лог пишется только на консоль,
// иначе одновременно на консоль и в файл с ротацией
func New(config Config) *logrus.Logger {
	log := logrus.New()
	log.Level = config.Level
	log.Formatter = &logrus.TextFormatter{
		DisableColors:   false,
		TimestampFormat: timestampFormat,
	}
	if config.Console || config.File == "" {
		log.Out = os.Stdout
	} else {
		log.Out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(config.Path, config.File),
			MaxSize:    RotateMaxSize, // MB
			MaxAge:     RotateMaxAge,  // Day
			MaxBackups: RotateMaxBackups,
			LocalTime:  RotateLocalTime,
			Compress:   RotateCompress,
		})
	}
	log.AddHook(LogrusContextHook{})
	log.Infof("----------===== начало записи в лог %s =====----------", time.Now().Format(timestampFormat))
	return log
}

// Discard логгер, который ничего не пишет. Используется, когда логгер в конфигурации не передан
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = ioutil.Discard
	return log
}
