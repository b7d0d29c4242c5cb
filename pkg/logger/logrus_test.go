package logger

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestContextHook(t *testing.T) {
	log := Discard()
	buf := new(bytes.Buffer)
	log.Out = buf
	log.Formatter = &logrus.TextFormatter{DisableColors: true, DisableTimestamp: true}
	log.AddHook(LogrusContextHook{})

	log.Warn("проверка")

	assert.Contains(t, buf.String(), "source=logrus_test.go:")
	assert.Contains(t, buf.String(), "проверка")
}

func TestNewConsole(t *testing.T) {
	log := New(Config{Level: logrus.DebugLevel, Console: true})
	assert.Equal(t, logrus.DebugLevel, log.Level)
}
