// Package validator plugs go-playground/validator into echo's
// c.Validate.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator implements echo.Validator.
type CustomValidator struct {
	v *validator.Validate
}

func New() *CustomValidator {
	return &CustomValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks i against its `validate` struct tags.  Field errors are
// flattened into one readable message.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &ValidationError{Fields: fieldNames(verrs), msg: strings.Join(msgs, "; ")}
}

// ValidationError lists the offending fields.
type ValidationError struct {
	Fields []string
	msg    string
}

func (e *ValidationError) Error() string { return e.msg }

func describe(fe validator.FieldError) string {
	name := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", name, fe.Tag())
}

func fieldNames(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, strings.ToLower(fe.Field()))
	}
	return out
}
