package shared

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator reporting json field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateStruct runs v against s and converts failures into a ValidationFailed error.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return InvalidArgument("validate: %v", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		rejected := fe.Value()
		if strings.Contains(strings.ToLower(fe.Field()), "password") {
			rejected = nil
		}
		fields = append(fields, FieldError{
			Field:         fe.Field(),
			Code:          strings.ToUpper(fe.Tag()),
			Message:       fieldMessage(fe),
			RejectedValue: rejected,
		})
	}
	return NewValidationError(fields...)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
