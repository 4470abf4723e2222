package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sahilchouksey/coursemart-api/utils/apperror"
	"github.com/sahilchouksey/coursemart-api/utils/auth"
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
	policy   auth.PasswordPolicy
}

// NewValidator creates a validator whose `password` tag enforces policy.
// A nil policy means auth.DefaultPasswordPolicy.
func NewValidator(policy auth.PasswordPolicy) *Validator {
	if policy == nil {
		policy = auth.DefaultPasswordPolicy
	}

	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		policy:   policy,
	}
	// RegisterValidation only fails on empty tag names
	_ = v.validate.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return len(v.policy(fl.Field().String())) == 0
	})
	return v
}

// ValidateStruct validates a struct using struct tags and returns a
// validation apperror listing every failed rule
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.Validation("Validation failed", err.Error())
	}
	return apperror.Validation("Validation failed", v.formatValidationErrors(validationErrs)...)
}

// formatValidationErrors converts validation errors to user-friendly messages
func (v *Validator) formatValidationErrors(errs validator.ValidationErrors) []string {
	messages := make([]string, 0, len(errs))

	for _, e := range errs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", field))
		case "email":
			messages = append(messages, "Invalid email format")
		case "password":
			messages = append(messages, v.policy(e.Value().(string))...)
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", field, e.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param()))
		case "len":
			messages = append(messages, fmt.Sprintf("%s must be exactly %s characters", field, e.Param()))
		case "numeric":
			messages = append(messages, fmt.Sprintf("%s must contain only digits", field))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", field, e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", field))
		}
	}

	return messages
}

// SanitizeString removes potentially dangerous characters
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
