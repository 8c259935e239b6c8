package api

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"machine-efficiency-backend/internal/shifttime"
)

var registerOnce sync.Once

// registerValidators adds the custom tags used by request bodies to gin's
// validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("clock", validateClock)
	})
}

// validateClock accepts "HH:MM" and "HH:MM:SS" strings.
func validateClock(fl validator.FieldLevel) bool {
	_, err := shifttime.Parse(fl.Field().String())
	return err == nil
}
