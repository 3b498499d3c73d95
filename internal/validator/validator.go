package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Echo compatible validator with proper tag semantics
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

// Var validates a single value against a tag, e.g. Var(email, "required,email").
func (cv *CustomValidator) Var(field any, tag string) error {
	return cv.validator.Var(field, tag)
}

func Create() CustomValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		// form names win so error fields match what the browser posted
		formName := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if formName != "" && formName != "-" {
			return formName
		}

		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}

		jsonName := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if jsonName == "-" {
			return ""
		}
		if jsonName == "-," {
			return "-"
		}
		return jsonName
	})

	return CustomValidator{validator: validate}
}
