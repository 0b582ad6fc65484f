package utils

import (
	"github.com/go-playground/validator/v10"
)

// Input structs keep the `binding` tag convention; the validator is wired to
// read it directly since there is no HTTP binding layer in front of the core.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// ValidateStruct checks the binding tags on an input struct and converts any
// failure into a ValidationError.
func ValidateStruct(input any) error {
	if err := validate.Struct(input); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return NewValidationError("field %s failed on %s", fe.Field(), fe.Tag())
		}
		return NewValidationError("%s", err.Error())
	}
	return nil
}
