package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/kirsrus/attendance/server/model"
)

// Валидатор времени суток в формате HH:MM или HH:MM:SS
func validatorClock(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := model.ParseClock(value)
	return err == nil
}
