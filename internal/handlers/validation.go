package handlers

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest runs struct tag validation and turns the first failure into a
// client-facing message keyed by the JSON field name.
func validateRequest(req any) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "Invalid request body"
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt", "gte", "min":
		return field + " must be at least " + fe.Param()
	case "lte", "max":
		return field + " must be at most " + fe.Param()
	case "oneof":
		return field + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return field + " is invalid"
	}
}

func parseTimestamp(raw string) (time.Time, bool) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func validateBookSessionRequest(req bookSessionRequest) string {
	if msg := validateRequest(req); msg != "" {
		return msg
	}
	if _, ok := parseTimestamp(req.ScheduledAt); !ok {
		return "scheduled_at must be a valid RFC3339 timestamp"
	}
	return ""
}

func validateInterviewerProfileRequest(req upsertInterviewerProfileRequest) string {
	if msg := validateRequest(req); msg != "" {
		return msg
	}
	for _, skill := range req.Skills {
		if strings.TrimSpace(skill) == "" {
			return "skills must not contain empty values"
		}
	}
	for _, company := range req.Companies {
		if strings.TrimSpace(company) == "" {
			return "companies must not contain empty values"
		}
	}
	return ""
}
