package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("db_driver", oneOf("sqlite", "postgres", "mysql"))
	v.RegisterValidation("session_backend", oneOf("memory", "redis", "sqlite"))
	v.RegisterValidation("snapshot_mode", oneOf("reuse", "requery"))
	v.RegisterValidation("log_level", oneOf("debug", "info", "warn", "error"))

	return &Validator{
		validate: v,
	}
}

// Validate validates a complete configuration
func (v *Validator) Validate(config *Config) error {
	if err := v.validate.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			e := validationErrors[0]
			return ValidationError{
				Field:   e.Namespace(),
				Message: fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value()),
				Value:   e.Value(),
			}
		}
		return err
	}
	return nil
}

// oneOf accepts the empty string, which is filled by defaults.
func oneOf(values ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || slices.Contains(values, value)
	}
}
