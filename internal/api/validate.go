package api

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON name, which is also the form field name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError maps form field names to messages
type ValidationError map[string]string

func (v ValidationError) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid email: " + strings.Join(parts, "; ")
}

// Trimmed returns a copy with surrounding whitespace removed
func (e EmailCreate) Trimmed() EmailCreate {
	return EmailCreate{
		FromAddress: strings.TrimSpace(e.FromAddress),
		Subject:     strings.TrimSpace(e.Subject),
		Body:        strings.TrimSpace(e.Body),
	}
}

// Validate checks the fields the submission form marks as required
func (e EmailCreate) Validate() error {
	err := validate.Struct(e)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := ValidationError{}
	for _, fe := range fieldErrs {
		errs[fe.Field()] = message(fe.Tag())
	}
	return errs
}

func message(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	default:
		return "is invalid"
	}
}
