package core

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"weatherproxy/internal/types"
)

// Validator wraps go-playground/validator. Field names in errors come from
// the `query` struct tag (falling back to `json`) so clients see the
// parameter names they sent.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers custom validation tags.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	// notblank rejects strings made only of whitespace.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{
		validate: v,
		logger:   logger,
	}
}

// ValidateStruct validates s and converts the first violation into a 400
// AppError. A missing city keeps the historical "No city defined" message.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		v.logger.Error("struct validation failed unexpectedly", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fe := verrs[0]
	field := fe.Field()
	details := map[string]any{"field": field, "rule": fe.Tag()}

	switch fe.Tag() {
	case "required", "notblank":
		if field == "city" {
			return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingCity, "No city defined", err, details)
		}
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			fmt.Sprintf("missing required field: %s", field), err, details)
	default:
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidField,
			fmt.Sprintf("invalid value for field: %s", field), err, details)
	}
}
