package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail reports whether the address passes go-playground/validator's
// email rule. Used for reminder addresses before they are persisted.
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}
