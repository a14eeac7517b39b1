package core

import (
	"errors"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"subscribe/internal/types"
)

// Validator wraps go-playground/validator. Field names in reported errors
// come from the json tag so they match what clients send.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator creates a new Validator and registers the json tag name
// function and the custom "notblank" rule.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v, logger: logger}
}

// ValidateStruct runs the struct's validate tags. Failures of "required"
// or "notblank" become ErrCodeValidationMissingField; the failing field
// names are listed, sorted, under Details["fields"].
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Error("struct validation misconfigured", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)

	return types.NewAppErrorWithDetails(
		types.ErrCodeValidationMissingField,
		"missing required fields: "+strings.Join(fields, ", "),
		err,
		map[string]any{"fields": fields},
	)
}

// MissingFields extracts the field list from an error returned by
// ValidateStruct. It returns nil for any other error.
func MissingFields(err error) []string {
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationMissingField {
		return nil
	}
	fields, _ := appErr.Details["fields"].([]string)
	return fields
}
