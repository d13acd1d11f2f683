// Package validation checks configuration structs using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with readable, flag-named messages.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the custom tags used by the config structs:
//   - notblank: the string has a non-space character.
//   - oneofci: like oneof, ignoring case.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use flag tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("flag"); name != "" && name != "-" {
			return name
		}
		return fld.Name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("oneofci", func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, opt := range strings.Fields(fl.Param()) {
			if strings.EqualFold(val, opt) {
				return true
			}
		}
		return false
	})

	return &Validator{v: v}
}

// Validate validates a struct. Field failures are reported together, sorted
// by field name.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", e.Field(), v.friendlyMessage(e)))
	}
	sort.Strings(msgs)

	return errors.New(strings.Join(msgs, "; "))
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "notblank":
		return "is required"
	case "oneof", "oneofci":
		return "must be one of: " + e.Param()
	case "excluded_with":
		return "cannot be combined with -" + strings.ToLower(e.Param())
	default:
		return "is invalid"
	}
}
