package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/benvon/cookmate/internal/apperr"
	"github.com/benvon/cookmate/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Report JSON field names instead of Go struct field names
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Register custom validators for enums
	if err := Validate.RegisterValidation("skill_level", validateSkillLevel); err != nil {
		panic(fmt.Sprintf("failed to register skill_level validator: %v", err))
	}
	if err := Validate.RegisterValidation("session_status", validateSessionStatus); err != nil {
		panic(fmt.Sprintf("failed to register session_status validator: %v", err))
	}
	if err := Validate.RegisterValidation("interaction_type", validateInteractionType); err != nil {
		panic(fmt.Sprintf("failed to register interaction_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("password_strength", validatePasswordStrength); err != nil {
		panic(fmt.Sprintf("failed to register password_strength validator: %v", err))
	}
}

// validateSkillLevel validates that a string is a valid SkillLevel enum value
func validateSkillLevel(fl validator.FieldLevel) bool {
	return models.SkillLevel(fl.Field().String()).Valid()
}

// validateSessionStatus validates that a string is a valid SessionStatus enum value
func validateSessionStatus(fl validator.FieldLevel) bool {
	return models.SessionStatus(fl.Field().String()).Valid()
}

// validateInteractionType validates that a string is a valid InteractionType enum value
func validateInteractionType(fl validator.FieldLevel) bool {
	return models.InteractionType(fl.Field().String()).Valid()
}

// validatePasswordStrength requires at least one lowercase letter, one uppercase letter and one digit
func validatePasswordStrength(fl validator.FieldLevel) bool {
	var lower, upper, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return lower && upper && digit
}

// Struct validates s and converts field failures into an *apperr.ValidationError
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate request: %w", err)
	}

	ve := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		ve.Add(fieldPath(fe), describe(fe))
	}
	return ve
}

// fieldPath strips the top-level struct name from the namespace (StartRequest.context.pace -> context.pace)
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "skill_level":
		return "must be one of beginner, intermediate, expert"
	case "session_status":
		return "must be one of active, paused, completed, abandoned"
	case "interaction_type":
		return "must be a known interaction type"
	case "password_strength":
		return "must contain at least one lowercase letter, one uppercase letter, and one number"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "is invalid"
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}
