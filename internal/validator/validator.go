package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	revPattern  = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
	userPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Echo compatible validator with proper tag semantics
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	return cv.validator.Struct(i)
}

func Create() CustomValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		jsonName := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if jsonName == "-" {
			return ""
		}
		if jsonName != "" {
			return jsonName
		}
		return strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
	})

	// registration only fails on empty tag names or nil functions
	_ = validate.RegisterValidation("gitrev", func(fl validator.FieldLevel) bool {
		return revPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return userPattern.MatchString(fl.Field().String())
	})

	return CustomValidator{validator: validate}
}
