// Package validation wraps go-playground/validator with the rules shared by
// the record boundary and the HTTP layer.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Errors aggregates field errors.
type Errors struct {
	Errors []FieldError `json:"errors"`
}

func (e Errors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Details flattens the errors for an AppError details map.
func (e Errors) Details() map[string]interface{} {
	fields := make(map[string]interface{}, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fe.Field] = fe.Message
	}
	return map[string]interface{}{"fields": fields}
}

// Validator provides struct and value validation
type Validator struct {
	validate *validator.Validate
}

var (
	instance *Validator
	once     sync.Once
)

// GetValidator returns the shared validator instance
func GetValidator() *Validator {
	once.Do(func() {
		instance = NewValidator()
	})
	return instance
}

// NewValidator creates a new validator with custom rules
func NewValidator() *Validator {
	v := &Validator{validate: validator.New()}

	// Use JSON tag names in error messages
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation("hexcolor", hexColor)
	_ = v.validate.RegisterValidation("notblank", notBlank)

	return v
}

// Validate performs struct tag validation
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return v.formatValidationError(err)
	}
	return nil
}

// ValidateVar validates a single variable
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

// IsHexColor reports whether s is a #RGB or #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

func (v *Validator) formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := Errors{}
	for _, e := range validationErrors {
		out.Errors = append(out.Errors, FieldError{
			Field:   fieldPath(e.Namespace()),
			Message: errorMessage(e.Tag(), e.Param()),
			Code:    strings.ToUpper(e.Tag()),
		})
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func errorMessage(tag, param string) string {
	switch tag {
	case "required", "notblank":
		return "This field is required"
	case "max":
		return fmt.Sprintf("Must be at most %s", param)
	case "min":
		return fmt.Sprintf("Must be at least %s", param)
	case "hexcolor":
		return "Must be a valid hex color (e.g., #FF5733)"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", param)
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", param)
	default:
		return fmt.Sprintf("Failed %s validation", tag)
	}
}

func hexColor(fl validator.FieldLevel) bool {
	color := fl.Field().String()
	return color == "" || IsHexColor(color)
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
