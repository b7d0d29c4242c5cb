package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogrusContextHook добавляет в запись лога место вызова (файл:строка)
type LogrusContextHook struct{}

// Levels уровни, для которых срабатывает хук
func (hook LogrusContextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire добавление поля source
func (hook LogrusContextHook) Fire(entry *logrus.Entry) error {
	pc := make([]uintptr, 16)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "github.com/sirupsen/logrus") && !strings.HasSuffix(frame.File, "logger/hook.go") {
			entry.Data["source"] = fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
			break
		}
		if !more {
			break
		}
	}
	return nil
}
