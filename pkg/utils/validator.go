package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/turtacn/marketguard/pkg/errors"
)

// tickerPattern accepts equity tickers plus the index (^VIX), futures (ES=F)
// and share-class (BRK.B) forms the providers use.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.=^\-]{0,14}$`)

var defaultValidator *validator.Validate

func init() {
	defaultValidator = validator.New()
	_ = defaultValidator.RegisterValidation("ticker", validateTicker)
}

// ValidateStruct validates s and returns an invalid_request AppError whose
// metadata maps each failing field to a readable reason.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperrors.ErrInvalidRequest(err.Error())
	}
	appErr := apperrors.ErrInvalidRequest("request validation failed")
	for _, fe := range validationErrors {
		appErr = appErr.WithMetadata(toSnakeCase(fe.Field()), formatValidationError(fe))
	}
	return appErr
}

// ValidTicker reports whether s is an upper-cased ticker symbol.
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

func validateTicker(fl validator.FieldLevel) bool {
	return ValidTicker(fl.Field().String())
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ticker":
		return "must be a ticker symbol"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// toSnakeCase converts CamelCase field names for error metadata.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
