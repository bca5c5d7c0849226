// Package validation wraps validator/v10 and converts its failures into
// domain validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	domainerrors "github.com/slatehq/slate-server/internal/errors"
	"github.com/slatehq/slate-server/internal/id"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that reports fields by their JSON names and knows
// the "fileid" and "collectionid" tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "":
			return fld.Name
		case "-":
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("fileid", prefixedID(id.PrefixFile))
	_ = v.RegisterValidation("collectionid", prefixedID(id.PrefixCollection))

	return &Validator{v: v}
}

func prefixedID(prefix string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return id.HasPrefix(fl.Field().String(), prefix)
	}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err, "")
	}
	return nil
}

// Var validates a single value against tag, reporting failures under field.
func (v *Validator) Var(field string, value any, tag string) error {
	if err := v.v.Var(value, tag); err != nil {
		return v.formatError(err, field)
	}
	return nil
}

// formatError converts validator errors to a domain error whose details map
// each failing field to a readable message.
func (v *Validator) formatError(err error, field string) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string, len(validationErrs))
	for _, e := range validationErrs {
		name := e.Field()
		if field != "" {
			name = field
		}
		fieldErrors[name] = friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

// Message returns the first readable failure in err, or err's text.
func Message(err error) string {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		if details, ok := domainErr.Details.(map[string]string); ok {
			for field, msg := range details {
				return field + " " + msg
			}
		}
		return domainErr.Message
	}
	return err.Error()
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "fileid":
		return "must be a file id"
	case "collectionid":
		return "must be a collection id"
	case "dive", "unique":
		return "must not contain duplicates"
	default:
		return "is invalid"
	}
}
