package nudges

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/referrush/csdash/internal/backend"
)

// ErrInvalidContact wraps contact values that fail validation.
var ErrInvalidContact = errors.New("nudges: invalid contact")

var phonePattern = regexp.MustCompile(`^[0-9+ ]{7,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("touchpoint", func(fl validator.FieldLevel) bool {
		return ValidTouchpoint(fl.Field().String())
	})
	_ = v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return Channel(fl.Field().String()).Valid()
	})
	return v
}

type emailContact struct {
	Value string `validate:"required,email"`
}

type phoneContact struct {
	Value string `validate:"required,phone"`
}

// NormalizeContact trims value and checks it against the rules of kind.
func NormalizeContact(kind backend.ContactKind, value string) (string, error) {
	value = strings.TrimSpace(value)
	var target any
	switch kind {
	case backend.ContactEmail:
		target = emailContact{Value: value}
	case backend.ContactPhone:
		target = phoneContact{Value: value}
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidContact, kind)
	}
	if err := validate.Struct(target); err != nil {
		return "", fmt.Errorf("%w: %s %q", ErrInvalidContact, kind, value)
	}
	return value, nil
}
