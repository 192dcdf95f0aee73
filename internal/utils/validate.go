package utils

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// kenyanPhoneRegex accepts MSISDNs in local or international form,
// e.g. 0712345678, 254712345678, +254112345678.
var kenyanPhoneRegex = regexp.MustCompile(`^(?:254|\+254|0)?(7|1)\d{8}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("kephone", func(fl validator.FieldLevel) bool {
		return kenyanPhoneRegex.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStruct runs the shared validator over a request struct.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
