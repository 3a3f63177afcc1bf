package status

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Error struct {
	Fields  *map[string]string `json:"fields,omitempty"`
	Message string             `json:"message"`
}

func StringError(err string) Error {
	return Error{Message: err}
}

func ValidationError(err error) Error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return Error{Message: "validation error"}
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		fields[fieldError.Field()] = fmt.Sprintf("failed to validate while checking condition: %s", fieldError.Tag())
	}
	return Error{Message: "validation error", Fields: &fields}
}

var (
	InternalServerError = echo.NewHTTPError(http.StatusInternalServerError, StringError("something went wrong"))
	UnavailableError    = echo.NewHTTPError(http.StatusServiceUnavailable, StringError("no sample yet"))
)
