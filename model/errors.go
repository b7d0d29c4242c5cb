package model

import (
	"fmt"

	"github.com/juju/errors"
)

// CorruptStateError сохранённое состояние (реестр, журнал, расписание) не читается.
// Обрабатывается на месте: вместо него используется пустое состояние или значения по умолчанию
type CorruptStateError struct {
	Path string
	Err  error
}

// NewCorruptState конструктор CorruptStateError
func NewCorruptState(path string, err error) error {
	return &CorruptStateError{Path: path, Err: err}
}

func (m *CorruptStateError) Error() string {
	return fmt.Sprintf("повреждённое состояние %s: %v", m.Path, m.Err)
}

// IsCorruptState проверяет, что причиной ошибки err является CorruptStateError
func IsCorruptState(err error) bool {
	_, ok := errors.Cause(err).(*CorruptStateError)
	return ok
}
