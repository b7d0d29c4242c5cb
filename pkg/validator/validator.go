package validator

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/leebenson/conform"
)

var (
	valid Validator
	once  sync.Once
)

// Validator валидатор. Инициализируется через NewValidator
type Validator struct {
	validator *validator.Validate
}

// NewValidator конструктор валидатора Validator
func NewValidator() *Validator {
	v := Validator{
		validator: validator.New(),
	}

	// Регистрируем внешние валидаторы
	if err := v.validator.RegisterValidation("websocket", validatorWebsocket); err != nil {
		panic(err)
	}
	if err := v.validator.RegisterValidation("clock", validatorClock); err != nil {
		panic(err)
	}

	return &v
}

// Validate корректировка строк и валидация структуры
func (m *Validator) Validate(i interface{}) error {
	if err := conform.Strings(i); err != nil {
		return err
	}
	return m.validator.Struct(i)
}

// Var валидация отдельного значения по тегу
func (m *Validator) Var(field interface{}, tag string) error {
	return m.validator.Var(field, tag)
}

// Get единожды инициализирует и возвращает валидатор
func Get() *Validator {
	once.Do(func() {
		valid = *NewValidator()
	})
	return &valid
}
