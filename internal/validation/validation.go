// Package validation checks service inputs with go-playground/validator and
// turns failures into VALIDATION_ERROR app errors carrying JSON field names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	apperrors "github.com/glefebvre/reelvault/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Validator wraps a configured validator.Validate
type Validator struct {
	v *validator.Validate
}

// New creates a Validator that reports fields by their json name
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

var defaultValidator = New()

// Struct validates s with the package validator
func Struct(s interface{}) error {
	return defaultValidator.Struct(s)
}

// Var validates a single value against tag, reporting it as field
func Var(field string, value interface{}, tag string) error {
	return defaultValidator.Var(field, value, tag)
}

// Struct validates s and returns a VALIDATION_ERROR listing every failing field
func (val *Validator) Struct(s interface{}) error {
	return val.translate(val.v.Struct(s), "")
}

// Var validates a single value against tag
func (val *Validator) Var(field string, value interface{}, tag string) error {
	return val.translate(val.v.Var(value, tag), field)
}

func (val *Validator) translate(err error, field string) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.InternalError("validation could not run", err)
	}

	messages := lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
		return describe(fe, field)
	})
	fields := lo.Uniq(lo.Map(fieldErrs, func(fe validator.FieldError, _ int) string {
		return fieldName(fe, field)
	}))

	return apperrors.ValidationError(strings.Join(messages, "; ")).WithContext("fields", fields)
}

func fieldName(fe validator.FieldError, override string) string {
	if override != "" {
		return override
	}
	return fe.Field()
}

func describe(fe validator.FieldError, override string) string {
	name := fieldName(fe, override)
	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "min", "gte":
		if isList {
			return fmt.Sprintf("%s must contain at least %s item(s)", name, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		if isList {
			return fmt.Sprintf("%s must contain at most %s item(s)", name, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.Join(strings.Fields(fe.Param()), ", "))
	case "url", "http_url", "uri":
		return fmt.Sprintf("%s must be a valid URL", name)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", name)
	default:
		return fmt.Sprintf("%s is invalid", name)
	}
}

// CleanList trims every entry, drops blanks and keeps the original order.
// The result is never nil.
func CleanList(values []string) []string {
	cleaned := lo.Compact(lo.Map(values, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	if cleaned == nil {
		return []string{}
	}
	return cleaned
}

// TrimOptional trims *s and maps blank strings to nil
func TrimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
