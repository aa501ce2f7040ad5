package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// checkStruct runs tag validation and collects one message per field.
func checkStruct(input interface{}, errs fieldErrors) {
	err := validate.Struct(input)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs.add("_", err.Error())
		return
	}
	for _, fe := range verrs {
		errs.add(fieldPath(fe), fieldMessage(fe))
	}
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + toSnake(fe.Param()) + " is empty"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "min":
		return "must have at least " + fe.Param() + " characters"
	case "max":
		return "must have at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}

func toSnake(name string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			if prevLower {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
			prevLower = false
		} else {
			prevLower = true
		}
		b.WriteRune(r)
	}
	return b.String()
}
