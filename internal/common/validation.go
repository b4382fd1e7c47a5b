package common

import (
	"fmt"
	"regexp"
	"strings"
)

var reCurrencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidationError is one failed rule on one field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s (got %v)", e.Field, e.Message, e.Value)
}

func invalid(field string, value interface{}, msg string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: msg}
}

// Validator collects rule failures across fields so callers can report
// every problem with a record at once.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

// Field runs rules against value and records each failure.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// ErrorMessage joins every failure with "; ".
func (v *Validator) ErrorMessage() string {
	msgs := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Error returns nil when all rules passed, otherwise an error wrapping ErrValidation.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, v.ErrorMessage())
}

// ValidationRule checks one value; nil means the value passed.
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required rejects nil and blank strings.
func Required(fieldName string, value interface{}) *ValidationError {
	switch v := value.(type) {
	case nil:
		return invalid(fieldName, value, "is required")
	case string:
		if strings.TrimSpace(v) == "" {
			return invalid(fieldName, value, "is required")
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return invalid(fieldName, value, "is required")
		}
	}
	return nil
}

// CurrencyCode accepts three upper-case letters (ISO 4217).
func CurrencyCode(fieldName string, value interface{}) *ValidationError {
	str, ok := value.(string)
	if !ok {
		return invalid(fieldName, value, "must be a string")
	}
	if !reCurrencyCode.MatchString(str) {
		return invalid(fieldName, value, "must be 3 uppercase letters (ISO 4217)")
	}
	return nil
}

// NonNegative accepts numbers that are zero or greater.
func NonNegative(fieldName string, value interface{}) *ValidationError {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return invalid(fieldName, value, "must be a number")
	}
	if f < 0 {
		return invalid(fieldName, value, "must not be negative")
	}
	return nil
}

// ValidateAndReturnError maps collected failures to a gRPC InvalidArgument status.
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return InvalidArgumentError(validator.ErrorMessage())
	}
	return nil
}
